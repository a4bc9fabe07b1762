package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/xharvest/internal/app"
	"github.com/ibeckermayer/xharvest/internal/auth"
	"github.com/ibeckermayer/xharvest/internal/events"
	"github.com/ibeckermayer/xharvest/internal/export"
	"github.com/ibeckermayer/xharvest/internal/harvest"
	"github.com/ibeckermayer/xharvest/internal/scraper"
)

// HarvestOptions holds flags for the harvest command.
type HarvestOptions struct {
	*RootOptions
	Resume bool
	Output string
	HTML   string
	Open   bool
}

// NewHarvestCommand creates the harvest command.
func NewHarvestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HarvestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "harvest <url>",
		Short: "Collect every record of a list page",
		Long: `Open an X list page and scroll it until the end of the list is reached.

Supported pages are /<handle>/followers, /<handle>/following, /i/bookmarks and
the home timeline. Ctrl-C, or "xharvest stop" from another terminal, ends the
harvest early and keeps what was collected.

Example:
  xharvest harvest https://x.com/jack/followers -o followers.json
  xharvest harvest https://x.com/i/bookmarks --resume --html bookmarks.html --open`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "start from the list's checkpoint")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "JSON export path (default: twitter_<list>.json)")
	cmd.Flags().StringVar(&opts.HTML, "html", "", "also write an HTML report")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "open the HTML report when done")

	return cmd
}

func runHarvest(cmd *cobra.Command, opts *HarvestOptions, url string) error {
	lt, err := scraper.DetectListType(url)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot harvest this page", err)
	}
	output := opts.Output
	if output == "" {
		output = export.DefaultFilename(lt)
	}
	if output, err = filepath.Abs(output); err != nil {
		return WrapExitError(ExitCommandError, "bad output path", err)
	}

	a, log, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	sink := events.NewChanSink(64)
	var res *app.HarvestResult

	var g errgroup.Group
	g.Go(func() error {
		defer sink.Close()
		var err error
		res, err = a.Harvest(ctx, app.HarvestOptions{
			URL:    url,
			Resume: opts.Resume,
			Output: output,
			Sink:   sink,
		})
		return err
	})
	g.Go(func() error {
		return printProgress(cmd.OutOrStdout(), sink, opts.Format)
	})

	if err := g.Wait(); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotAuthenticated):
			return WrapExitError(ExitCommandError, "run xharvest login first", err)
		case errors.Is(err, app.ErrHarvestActive):
			return WrapExitError(ExitCommandError, "harvest", err)
		}
		return WrapExitError(ExitFailure, "harvest failed", err)
	}

	if opts.HTML != "" {
		if _, err := a.Export(context.WithoutCancel(ctx), app.ExportOptions{
			ListType:   lt,
			Path:       output,
			ReportPath: opts.HTML,
			OpenReport: opts.Open,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to write report")
		}
	}

	if res.Outcome == harvest.OutcomeTruncated {
		return &ExitError{Code: ExitFailure, Message: "scroll limit reached before the end of the list"}
	}
	return nil
}

// printProgress writes events until the sink is closed. JSON output is one event per line.
// The sink is drained even after a write error so the harvest never blocks on it.
func printProgress(w io.Writer, sink *events.ChanSink, format string) error {
	var werr error
	enc := json.NewEncoder(w)
	for ev := range sink.C() {
		if werr != nil {
			continue
		}
		if format == "json" {
			ev.Records = nil
			werr = enc.Encode(ev)
			continue
		}
		_, werr = fmt.Fprintln(w, progressLine(ev))
	}
	return werr
}
