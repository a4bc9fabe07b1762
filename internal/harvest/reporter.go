package harvest

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xharvest/internal/events"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// PercentRange is the slice of the overall progress bar a harvest reports into.
// A harvest that runs after an earlier phase can report into 50-100, for example.
type PercentRange struct {
	Lo float64
	Hi float64
}

// FullRange reports progress from 0 to 100
var FullRange = PercentRange{Lo: 0, Hi: 100}

func (r PercentRange) valid() bool {
	return r.Lo >= 0 && r.Hi <= 100 && r.Lo < r.Hi
}

// Reporter writes checkpoints and emits progress events.
// A checkpoint write always happens before the event announcing it.
type Reporter struct {
	store   CheckpointStore
	sink    events.Sink
	log     zerolog.Logger
	runID   string
	list    types.ListType
	ceiling int
	rng     PercentRange
	last    float64
}

func newReporter(store CheckpointStore, sink events.Sink, log zerolog.Logger, runID string, list types.ListType, ceiling int, rng PercentRange) *Reporter {
	if !rng.valid() {
		rng = FullRange
	}
	return &Reporter{
		store:   store,
		sink:    sink,
		log:     log,
		runID:   runID,
		list:    list,
		ceiling: ceiling,
		rng:     rng,
		last:    rng.Lo,
	}
}

// percent maps an attempt count into the reporting range without ever going backwards
func (r *Reporter) percent(attempt int) float64 {
	p := 100.0
	if r.ceiling > 0 {
		p = math.Min(float64(attempt)/float64(r.ceiling)*100, 100)
	}
	p = r.rng.Lo + p*(r.rng.Hi-r.rng.Lo)/100
	if p < r.last {
		p = r.last
	}
	r.last = p
	return p
}

// OnGrowth persists the cache and announces the new size
func (r *Reporter) OnGrowth(ctx context.Context, attempt int, cache *Cache) {
	n := cache.Len()
	msg := fmt.Sprintf("Found %d records so far...", n)
	if err := r.store.Write(ctx, cache.Values()); err != nil {
		r.log.Warn().Err(err).Int("records", n).Msg("Checkpoint write failed")
		msg = fmt.Sprintf("Found %d records so far (checkpoint not saved: %v)", n, err)
	}
	r.progress(ctx, msg, attempt, n)
}

// Flush writes the final snapshot. It reports failures like OnGrowth does and returns them.
func (r *Reporter) Flush(ctx context.Context, attempt int, records []types.Record) error {
	if err := r.store.Write(ctx, records); err != nil {
		r.log.Error().Err(err).Int("records", len(records)).Msg("Final checkpoint write failed")
		r.progress(ctx, fmt.Sprintf("Could not save checkpoint: %v", err), attempt, len(records))
		return err
	}
	return nil
}

// Finish emits the closing 100% progress event
func (r *Reporter) Finish(ctx context.Context, n int) {
	r.last = r.rng.Hi
	r.emit(ctx, events.Event{
		Kind:        events.KindProgress,
		Message:     fmt.Sprintf("Collection complete. Processing %d records...", n),
		Percent:     r.rng.Hi,
		RecordCount: n,
	})
}

// Complete emits the completion event. Records travel inline only when there are at most
// inlineLimit of them; otherwise the host must read the checkpoint.
// Unlike progress events, a delivery failure here is returned.
func (r *Reporter) Complete(ctx context.Context, outcome Outcome, records []types.Record, inlineLimit int, checkpointed bool) error {
	ev := events.Event{
		Kind:            events.KindComplete,
		RunID:           r.runID,
		ListType:        r.list,
		Message:         outcome.Message(len(records)),
		Percent:         r.rng.Hi,
		RecordCount:     len(records),
		Outcome:         string(outcome),
		ResultsLocation: events.LocationCheckpoint,
	}
	if len(records) <= inlineLimit || !checkpointed {
		ev.ResultsLocation = events.LocationInline
		ev.Records = records
	}
	return r.sink.Emit(ctx, ev)
}

func (r *Reporter) progress(ctx context.Context, msg string, attempt, n int) {
	r.emit(ctx, events.Event{
		Kind:        events.KindProgress,
		Message:     msg,
		Percent:     r.percent(attempt),
		RecordCount: n,
	})
}

func (r *Reporter) emit(ctx context.Context, ev events.Event) {
	ev.RunID = r.runID
	ev.ListType = r.list
	if err := r.sink.Emit(ctx, ev); err != nil {
		r.log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to deliver progress event")
	}
}
