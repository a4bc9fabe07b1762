package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ibeckermayer/xharvest/internal/events"
	"github.com/ibeckermayer/xharvest/internal/export"
	"github.com/ibeckermayer/xharvest/internal/harvest"
	"github.com/ibeckermayer/xharvest/internal/scraper"
	"github.com/ibeckermayer/xharvest/internal/store"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// HarvestOptions describe one harvest
type HarvestOptions struct {
	URL string
	// Resume seeds the cache from the list's checkpoint instead of starting empty
	Resume bool
	// Output is where the JSON export is written; empty skips the export
	Output   string
	Sink     events.Sink
	Progress harvest.PercentRange
}

// HarvestResult is the harvest result plus where it was exported
type HarvestResult struct {
	*harvest.Result
	ExportPath  string
	ExportBytes int
}

// Harvest opens the list page and collects every record on it.
//
// The partial result is returned alongside an error when the page could not be
// read, so callers can still report what was collected.
func (a *App) Harvest(ctx context.Context, opts HarvestOptions) (*HarvestResult, error) {
	lt, err := scraper.DetectListType(opts.URL)
	if err != nil {
		return nil, err
	}
	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrHarvestActive
	}
	defer a.busy.Store(false)

	s := a.getSnapshot()
	log := a.log.With().Str("list", string(lt)).Logger()

	cookies, err := a.cookies()
	if err != nil {
		return nil, err
	}
	if err := ping(ctx, s.backend); err != nil {
		return nil, err
	}

	cp := s.backend.Checkpoint(string(lt))
	var seed []types.Record
	if opts.Resume {
		seed, err = cp.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint: %w", err)
		}
		log.Info().Int("records", len(seed)).Msg("Resuming from checkpoint")
	}

	sink, err := a.sink(ctx, s.config, opts.Sink)
	if err != nil {
		return nil, err
	}

	page, err := s.open(ctx, opts.URL, cookies)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	prof := s.config.Profile(lt)
	hc := s.config.Harvest
	h := harvest.New(harvest.Config{
		Schema: types.SchemaFor(lt),
		Policy: harvest.Policy{
			NoGrowthLimit:  hc.NoGrowthLimit,
			AttemptCeiling: prof.AttemptCeiling,
		},
		LongSettle:  millis(hc.LongSettleMs),
		InlineLimit: hc.InlineLimit,
		Progress:    opts.Progress,
		Seed:        seed,
	}, harvest.Deps{
		Extractor: page.Extractor(),
		Driver:    page.Driver(prof.ScrollIncrementPx, millis(prof.SettleDelayMs), hc.BottomTolerancePx),
		Store:     cp,
		Signal:    s.backend.Signal(),
		Sink:      sink,
		Log:       a.rootLog,
	})

	res, runErr := h.Run(page.Context())
	out := &HarvestResult{Result: res}

	a.recordRun(ctx, opts.URL, res, runErr)
	if runErr != nil {
		return out, runErr
	}

	if opts.Output != "" {
		n, err := export.WriteFile(opts.Output, types.SchemaFor(lt), res.Records, hc.ExportSizeLimit)
		switch {
		case errors.Is(err, export.ErrNoRecords):
			log.Warn().Msg("Nothing collected, skipping export")
		case err != nil:
			return out, fmt.Errorf("failed to export: %w", err)
		default:
			out.ExportPath, out.ExportBytes = opts.Output, n
			log.Info().Str("path", opts.Output).Int("bytes", n).Msg("Exported")
		}
	}
	return out, nil
}

// recordRun saves the run to history even when ctx was cancelled
func (a *App) recordRun(ctx context.Context, url string, res *harvest.Result, runErr error) {
	if res == nil {
		return
	}
	run := &store.Run{
		ID:          res.RunID,
		ListType:    res.ListType,
		URL:         url,
		Outcome:     string(res.Outcome),
		RecordCount: len(res.Records),
		Attempts:    res.Attempts,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := a.history.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		a.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run")
	}
}
