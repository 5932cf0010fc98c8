package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	"golang.org/x/time/rate"
)

// ResolverOpts bounds catalog search fan-out.
type ResolverOpts struct {
	NumWorkers    int           // Concurrent searches (default: 5, max: 10)
	RateLimit     float64       // Searches per second (default: 5)
	SearchTimeout time.Duration // Per-search timeout (default: 10s)
}

// TrackResolver matches candidate tracks against the catalog.
type TrackResolver struct {
	catalog services.Catalog
	opts    ResolverOpts
	logger  *log.Logger
}

type searchJob struct {
	index     int
	candidate models.CandidateTrack
}

type searchResult struct {
	index     int
	candidate models.CandidateTrack
	uri       string
	err       error
}

// NewTrackResolver creates a [TrackResolver], filling unset options with defaults.
func NewTrackResolver(catalog services.Catalog, opts ResolverOpts, logger *log.Logger) *TrackResolver {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 10 * time.Second
	}
	return &TrackResolver{
		catalog: catalog,
		opts:    opts,
		logger:  shared.WithLogger(logger, "component", "resolver"),
	}
}

// Resolve searches every candidate and returns the matches in candidate order.
//
// Misses are logged and dropped. When nothing matches it returns [shared.ErrNoTracksFound],
// or [shared.ErrAuthExpired] when every search was rejected for the token.
func (r *TrackResolver) Resolve(
	ctx context.Context,
	candidates []models.CandidateTrack,
	token string,
	progress chan<- ProgressUpdate,
) ([]models.ResolvedTrack, error) {
	total := len(candidates)
	if total == 0 {
		return nil, fmt.Errorf("%w: no candidates to resolve", shared.ErrNoTracksFound)
	}

	limiter := rate.NewLimiter(rate.Limit(r.opts.RateLimit), 1)
	jobs := make(chan searchJob, total)
	results := make(chan searchResult, total)

	var wg sync.WaitGroup
	for i := 0; i < min(r.opts.NumWorkers, total); i++ {
		wg.Add(1)
		go r.searchWorker(ctx, &wg, limiter, token, jobs, results)
	}

	for i, c := range candidates {
		jobs <- searchJob{index: i, candidate: c}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	sendProgress(progress, stageUpdate(ResolveTracks, 0, total, "Searching the catalog..."))

	uris := make([]string, total)
	completed, authFailures, misses := 0, 0, 0
	for res := range results {
		completed++
		if res.err != nil {
			misses++
			if errors.Is(res.err, shared.ErrAuthExpired) {
				authFailures++
			}
			r.logger.Warn("candidate dropped", "track", res.candidate.String(), "error", res.err)
			sendProgress(progress, searchTrackUpdate(completed, total, res.candidate, false))
			continue
		}
		uris[res.index] = res.uri
		sendProgress(progress, searchTrackUpdate(completed, total, res.candidate, true))
	}

	resolved := make([]models.ResolvedTrack, 0, total-misses)
	for i, uri := range uris {
		if uri == "" {
			continue
		}
		resolved = append(resolved, models.ResolvedTrack{CatalogURI: uri, Candidate: candidates[i]})
	}

	r.logger.Info("tracks resolved", "resolved", len(resolved), "candidates", total)
	if len(resolved) > 0 {
		return resolved, nil
	}
	if authFailures > 0 && authFailures == misses {
		return nil, fmt.Errorf("%w: catalog rejected the access token", shared.ErrAuthExpired)
	}
	return nil, fmt.Errorf("%w: none of %d candidates matched", shared.ErrNoTracksFound, total)
}

// searchWorker runs catalog searches from jobs until the channel is drained.
func (r *TrackResolver) searchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	token string,
	jobs <-chan searchJob,
	results chan<- searchResult,
) {
	defer wg.Done()

	for job := range jobs {
		res := searchResult{index: job.index, candidate: job.candidate}
		if err := limiter.Wait(ctx); err != nil {
			res.err = fmt.Errorf("%w: %v", shared.ErrTimeout, err)
			results <- res
			continue
		}

		searchCtx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
		res.uri, res.err = r.catalog.SearchTrack(searchCtx, token, job.candidate.Query())
		cancel()

		if res.err == nil && res.uri == "" {
			res.err = shared.ErrTrackNotFound
		}
		results <- res
	}
}
