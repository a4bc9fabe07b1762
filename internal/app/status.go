package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/browser"

	"github.com/ibeckermayer/xharvest/internal/export"
	"github.com/ibeckermayer/xharvest/internal/report"
	"github.com/ibeckermayer/xharvest/internal/store"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// ListStatus is the stored state of one list type
type ListStatus struct {
	ListType     types.ListType
	Checkpointed int
	LastRun      *store.Run
}

// Status summarises the session, backend and per-list progress
type Status struct {
	Authenticated bool
	Backend       string
	Running       bool
	Lists         []ListStatus
}

// Status reads every list's checkpoint and latest run
func (a *App) Status(ctx context.Context) (*Status, error) {
	s := a.getSnapshot()
	if err := ping(ctx, s.backend); err != nil {
		return nil, err
	}

	st := &Status{
		Authenticated: a.IsAuthenticated(),
		Backend:       s.config.Harvest.CheckpointBackend,
		Running:       a.busy.Load(),
	}
	for _, lt := range types.ListTypes() {
		recs, err := s.backend.Checkpoint(string(lt)).Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s checkpoint: %w", lt, err)
		}
		ls := ListStatus{ListType: lt, Checkpointed: len(recs)}

		runs, err := a.history.RecentRuns(ctx, lt, 1)
		if err != nil {
			return nil, err
		}
		if len(runs) > 0 {
			ls.LastRun = &runs[0]
		}
		st.Lists = append(st.Lists, ls)
	}
	return st, nil
}

// ExportOptions describe an export of a stored checkpoint
type ExportOptions struct {
	ListType types.ListType
	// Path defaults to the list's default filename in the cache dir
	Path string
	// ReportPath, when set, also renders an HTML report
	ReportPath string
	OpenReport bool
}

// ExportResult says what was written
type ExportResult struct {
	Path       string
	Bytes      int
	Records    int
	ReportPath string
}

// Export writes the checkpoint of a list type as JSON, and optionally as an HTML report
func (a *App) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	if !opts.ListType.Valid() {
		return nil, fmt.Errorf("unknown list type %q", opts.ListType)
	}
	s := a.getSnapshot()
	if err := ping(ctx, s.backend); err != nil {
		return nil, err
	}

	recs, err := s.backend.Checkpoint(string(opts.ListType)).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if len(recs) == 0 {
		return nil, export.ErrNoRecords
	}

	path := opts.Path
	if path == "" {
		path = filepath.Join(a.cacheDir, "exports", export.DefaultFilename(opts.ListType))
	}
	schema := types.SchemaFor(opts.ListType)
	n, err := export.WriteFile(path, schema, recs, s.config.Harvest.ExportSizeLimit)
	if err != nil {
		return nil, err
	}
	res := &ExportResult{Path: path, Bytes: n, Records: len(recs)}
	a.log.Info().Str("path", path).Int("records", len(recs)).Msg("Exported checkpoint")

	if opts.ReportPath == "" {
		return res, nil
	}
	if err := a.writeReport(ctx, opts.ReportPath, schema, recs); err != nil {
		return res, err
	}
	res.ReportPath = opts.ReportPath

	if opts.OpenReport {
		if err := a.openURL(opts.ReportPath); err != nil {
			a.log.Warn().Err(err).Msg("Failed to open report")
		}
	}
	return res, nil
}

func (a *App) writeReport(ctx context.Context, path string, schema types.Schema, recs []types.Record) error {
	b, err := report.New(0)
	if err != nil {
		return err
	}

	sum := report.Summary{Finished: time.Now()}
	if runs, err := a.history.RecentRuns(ctx, schema.Name, 1); err == nil && len(runs) > 0 {
		sum = report.Summary{
			RunID:    runs[0].ID,
			Outcome:  runs[0].Outcome,
			Attempts: runs[0].Attempts,
			Finished: runs[0].FinishedAt,
		}
	}

	r, err := b.Build(schema, recs, sum)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if err := r.WriteFile(path); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func openInBrowser(path string) error {
	return browser.OpenFile(path)
}
