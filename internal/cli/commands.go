package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xharvest/internal/app"
	"github.com/ibeckermayer/xharvest/internal/export"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// NewStopCommand creates the stop command.
func NewStopCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask a running harvest to stop",
		Long: `Ask a running harvest to stop after its current scroll. The harvest writes
its final checkpoint and exports what it collected.

The request goes through the checkpoint backend, so it reaches harvests in other
processes for the file, sqlite and redis backends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()
			if err := a.RequestStop(ctx); err != nil {
				return WrapExitError(ExitFailure, "stop", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
			return nil
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, checkpoints and last runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()
			st, err := a.Status(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "status", err)
			}
			return writeStatus(cmd.OutOrStdout(), st, rootOpts.Format)
		},
	}
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
	HTML   string
	Open   bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <followers|following|bookmarks|timeline>",
		Short: "Export the checkpoint of a list",
		Long: `Write the last checkpoint of a list as JSON, without opening a browser.
Use it to recover the records of a harvest that was interrupted.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: listTypeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			lt, err := parseListType(args[0])
			if err != nil {
				return err
			}

			a, _, err := setup(opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()
			res, err := a.Export(ctx, app.ExportOptions{
				ListType:   lt,
				Path:       opts.Output,
				ReportPath: opts.HTML,
				OpenReport: opts.Open,
			})
			if errors.Is(err, export.ErrNoRecords) {
				return WrapExitError(ExitFailure, fmt.Sprintf("no %s checkpoint", lt), err)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "export", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", res.Records, res.Path)
			if res.ReportPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", res.ReportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "JSON export path (default: cache dir)")
	cmd.Flags().StringVar(&opts.HTML, "html", "", "also write an HTML report")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "open the HTML report")

	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [list]",
		Short: "List recent harvests",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var lt types.ListType
			if len(args) == 1 {
				var err error
				if lt, err = parseListType(args[0]); err != nil {
					return err
				}
			}

			a, _, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.History(cmd.Context(), lt, limit)
			if err != nil {
				return WrapExitError(ExitFailure, "history", err)
			}
			return writeHistory(cmd.OutOrStdout(), runs, rootOpts.Format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to X in a browser window",
		Long: `Open a browser window on the X login page. Once you reach the home timeline the
session cookies are stored and later harvests run headless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()
			if err := a.Login(ctx); err != nil {
				return WrapExitError(ExitFailure, "login", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
			return nil
		},
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored X session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Logout(); err != nil {
				return WrapExitError(ExitFailure, "logout", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the harvests listed under [schedule] until interrupted",
		Long: `Run every [[schedule.jobs]] entry of the config file on its cron expression.

Example config:
  [[schedule.jobs]]
  name = "nightly-bookmarks"
  cron = "0 3 * * *"
  url = "https://x.com/i/bookmarks"
  output = "/backups/bookmarks.json"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()
			if err := a.RunSchedule(ctx); err != nil {
				code := ExitFailure
				if errors.Is(err, app.ErrNoJobs) {
					code = ExitCommandError
				}
				return WrapExitError(code, "schedule", err)
			}
			return nil
		},
	}
}

func listTypeNames() []string {
	var names []string
	for _, lt := range types.ListTypes() {
		names = append(names, string(lt))
	}
	return names
}

func parseListType(s string) (types.ListType, error) {
	lt := types.ListType(s)
	if !lt.Valid() {
		return "", WrapExitError(ExitCommandError, "bad list",
			fmt.Errorf("%q is not one of %v", s, listTypeNames()))
	}
	return lt, nil
}
