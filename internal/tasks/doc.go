// Package tasks runs the playlist creation pipeline with real-time progress reporting.
//
// # Stages
//
// [PlaylistEngine.CreatePlaylist] drives the stages in order:
//
//  1. [QuotaGate] : rejects free users at their monthly limit (never increments)
//  2. [DraftGenerator] : one bounded call to the text generator
//  3. [DraftParser] : ordered recovery chain that always yields a usable draft
//  4. [TrackResolver] : rate-limited worker pool matching candidates against the catalog
//  5. [PlaylistAssembler] : create, fill, cover, refetch on the hosting service
//  6. [ResultPersister] : saves the record and counts usage
//
// Stages are described by step values tagged fatal or non-fatal and executed by one driver loop.
// A fatal failure stops the run. Non-fatal failures become warnings.
//
// # Results
//
// A run returns a [Result]: [Success], [SuccessWithWarning] when the playlist exists but its
// record could not be saved, or [Failure] with a [FailureKind]. Once the playlist has been
// created the run never reports the external side effect as absent: [Failure] carries the
// playlist when a later fatal step fails.
//
// # Progress Reporting
//
// Every stage emits [ProgressUpdate] values on an optional channel. Sends never block;
// updates are dropped when the channel is full.
//
// # Usage Accounting
//
// [UsageAccountant] has two implementations. [AtomicAccountant] uses the store's single-statement
// increment and falls back to [ReadWriteAccountant], which reads, adds one and writes back.
package tasks
