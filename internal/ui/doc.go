// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through a single generation run:
//  1. [ConfirmView] : Review the playlist criteria before starting
//  2. [RunView] : Watch each pipeline stage with a spinner and recent track searches
//  3. [ResultView] : See the created playlist, a warning, or the failure kind
//  4. [HistoryView] : Browse previously generated playlists
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the PlaylistEngine; the run's goroutine closes it and then hands over the Result.
//
// Keyboard navigation uses vim-style bindings (j/k, y/n, g, h, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
