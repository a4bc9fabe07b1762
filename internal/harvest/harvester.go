// Package harvest collects every record of a virtualized, infinitely scrolling list.
//
// A Harvester scrolls the list one increment at a time, merges the records the
// Extractor sees into a Cache, checkpoints whenever the cache grows, and stops when
// the Policy judges the end of the list reached, the attempt ceiling is hit, or a stop
// is requested through the StopSignal.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xharvest/internal/events"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// DefaultLongSettle is the wait after jumping to the top or bottom of the list
const DefaultLongSettle = 2 * time.Second

// DefaultInlineLimit is the largest record count sent inside a completion event
const DefaultInlineLimit = 500

// Outcome is how a harvest ended
type Outcome string

const (
	OutcomeConverged         Outcome = "converged"
	OutcomeConvergedVerified Outcome = "converged_verified"
	OutcomeTruncated         Outcome = "truncated"
	OutcomeCancelled         Outcome = "cancelled"
	OutcomeFailed            Outcome = "failed"
)

// Message returns a human readable summary for n records
func (o Outcome) Message(n int) string {
	switch o {
	case OutcomeConverged, OutcomeConvergedVerified:
		return fmt.Sprintf("Export complete! Found %d records.", n)
	case OutcomeTruncated:
		return fmt.Sprintf("Stopped after the scroll limit with %d records; the list may be incomplete.", n)
	case OutcomeCancelled:
		return fmt.Sprintf("Export stopped. Kept %d records collected so far.", n)
	default:
		return fmt.Sprintf("Export failed after collecting %d records.", n)
	}
}

// Config tunes a single harvest
type Config struct {
	Schema types.Schema
	Policy Policy
	// LongSettle is waited after the initial scroll to the top and during verification
	LongSettle  time.Duration
	InlineLimit int
	Progress    PercentRange
	// Seed pre-populates the cache, e.g. from a previous checkpoint
	Seed []types.Record
}

// Deps are the collaborators a harvest runs against
type Deps struct {
	Extractor Extractor
	Driver    ScrollDriver
	Store     CheckpointStore
	Signal    StopSignal
	Sink      events.Sink
	Log       zerolog.Logger
}

// Result is returned by Run
type Result struct {
	RunID      string
	ListType   types.ListType
	Outcome    Outcome
	Records    []types.Record
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Harvester drives one harvest. It is not safe for concurrent Runs.
type Harvester struct {
	cfg       Config
	extractor Extractor
	driver    ScrollDriver
	store     CheckpointStore
	gate      *Gate
	sink      events.Sink
	log       zerolog.Logger
	newID     func() string
}

// New creates a harvester
func New(cfg Config, deps Deps) *Harvester {
	cfg.Policy = cfg.Policy.withDefaults()
	if cfg.LongSettle < 0 {
		cfg.LongSettle = 0
	}
	if cfg.InlineLimit <= 0 {
		cfg.InlineLimit = DefaultInlineLimit
	}
	if !cfg.Progress.valid() {
		cfg.Progress = FullRange
	}
	if deps.Store == nil {
		deps.Store = NewMemoryCheckpoint()
	}
	if deps.Sink == nil {
		deps.Sink = events.NewLogSink(deps.Log)
	}
	log := deps.Log.With().Str("component", "harvest").Str("list", string(cfg.Schema.Name)).Logger()

	return &Harvester{
		cfg:       cfg,
		extractor: deps.Extractor,
		driver:    deps.Driver,
		store:     deps.Store,
		gate:      NewGate(deps.Signal, log),
		sink:      deps.Sink,
		log:       log,
		newID:     uuid.NewString,
	}
}

// Run harvests until the list converges, the ceiling is reached or a stop is requested.
//
// The checkpoint is written on every growth and once more at the end, whatever the
// outcome. Run returns an error only if the page could not be read (the partial
// result is still returned) or the completion event could not be delivered.
func (h *Harvester) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     h.newID(),
		ListType:  h.cfg.Schema.Name,
		StartedAt: time.Now(),
	}
	log := h.log.With().Str("run_id", res.RunID).Logger()

	cache := NewCache(h.cfg.Schema)
	cache.Merge(h.cfg.Seed)
	state := ScanState{LastReported: cache.Len()}
	rep := newReporter(h.store, h.sink, log, res.RunID, h.cfg.Schema.Name, h.cfg.Policy.AttemptCeiling, h.cfg.Progress)

	log.Info().
		Int("ceiling", h.cfg.Policy.AttemptCeiling).
		Int("seeded", cache.Len()).
		Msg("Starting harvest")

	outcome, scanErr := h.scan(ctx, log, cache, &state, rep)
	if scanErr != nil {
		if ctx.Err() != nil {
			outcome, scanErr = OutcomeCancelled, nil
		} else {
			outcome = OutcomeFailed
		}
	}

	res.Outcome = outcome
	res.Attempts = state.Attempt
	res.Records = cache.Values()

	// A cancelled ctx must not prevent the final flush
	fctx := context.WithoutCancel(ctx)
	checkpointed := rep.Flush(fctx, state.Attempt, res.Records) == nil
	rep.Finish(fctx, len(res.Records))
	deliverErr := rep.Complete(fctx, outcome, res.Records, h.cfg.InlineLimit, checkpointed)
	res.FinishedAt = time.Now()

	log.Info().
		Str("outcome", string(outcome)).
		Int("records", len(res.Records)).
		Int("attempts", state.Attempt).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Harvest finished")

	if scanErr != nil {
		return res, scanErr
	}
	if deliverErr != nil {
		return res, fmt.Errorf("failed to deliver completion event: %w", errors.Join(events.ErrUndelivered, deliverErr))
	}
	return res, nil
}

// scan runs the loop and returns the terminal outcome
func (h *Harvester) scan(ctx context.Context, log zerolog.Logger, cache *Cache, state *ScanState, rep *Reporter) (Outcome, error) {
	h.gate.Reset(ctx)
	if err := h.driver.ScrollTo(ctx, 0); err != nil {
		return "", fmt.Errorf("failed to scroll to top: %w", err)
	}
	if err := Sleep(ctx, h.cfg.LongSettle); err != nil {
		return OutcomeCancelled, nil
	}

	for {
		if h.gate.ShouldStop(ctx) {
			log.Info().Int("attempt", state.Attempt).Msg("Stop requested")
			return OutcomeCancelled, nil
		}
		state.Attempt++

		visible, err := h.extractor.ExtractVisible(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to extract visible records: %w", err)
		}
		prev, next := cache.Merge(visible)
		if next > state.LastReported {
			rep.OnGrowth(ctx, state.Attempt, cache)
			state.LastReported = next
		}

		if err := h.driver.Advance(ctx); err != nil {
			return "", fmt.Errorf("failed to scroll: %w", err)
		}
		height, err := h.driver.Height(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to read document height: %w", err)
		}
		atBottom, err := h.driver.AtBottom(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to read scroll position: %w", err)
		}

		sig := Signals{
			Grew:            next > prev,
			HeightUnchanged: height == state.PrevHeight,
			AtBottom:        atBottom,
		}
		var d Decision
		*state, d = h.cfg.Policy.Next(*state, sig)

		log.Debug().
			Int("attempt", state.Attempt).
			Int("records", next).
			Int("height", height).
			Bool("at_bottom", atBottom).
			Int("no_growth", state.NoGrowth).
			Stringer("decision", d).
			Msg("Iteration")

		switch d {
		case Converge:
			return OutcomeConverged, nil
		case Verify:
			if err := h.verify(ctx, cache, state, rep, height); err != nil {
				return "", err
			}
			return OutcomeConvergedVerified, nil
		case Truncate:
			log.Warn().Int("attempts", state.Attempt).Msg("Attempt ceiling reached before the list converged")
			return OutcomeTruncated, nil
		}
		state.PrevHeight = height
	}
}

// verify re-renders the list end to recapture items unmounted near the boundary
func (h *Harvester) verify(ctx context.Context, cache *Cache, state *ScanState, rep *Reporter, height int) error {
	if err := h.driver.ScrollTo(ctx, 0); err != nil {
		return fmt.Errorf("verification: failed to scroll to top: %w", err)
	}
	if err := Sleep(ctx, h.cfg.LongSettle); err != nil {
		return err
	}
	if err := h.driver.ScrollTo(ctx, height); err != nil {
		return fmt.Errorf("verification: failed to scroll to %d: %w", height, err)
	}
	if err := Sleep(ctx, h.cfg.LongSettle); err != nil {
		return err
	}

	visible, err := h.extractor.ExtractVisible(ctx)
	if err != nil {
		return fmt.Errorf("verification: failed to extract visible records: %w", err)
	}
	if _, next := cache.Merge(visible); next > state.LastReported {
		rep.OnGrowth(ctx, state.Attempt, cache)
		state.LastReported = next
	}
	return nil
}
