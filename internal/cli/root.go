// Package cli implements the xharvest command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xharvest/internal/app"
	"github.com/ibeckermayer/xharvest/internal/auth"
	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "xharvest",
		Short: "Export X followers, following, bookmarks and timeline",
		Long: `xharvest scrolls an X list page in a real browser and keeps every record it
sees, even after the page unmounts it, until the end of the list is reached.

Progress is checkpointed so an interrupted harvest can be exported or resumed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: user config dir)")

	cmd.AddCommand(NewHarvestCommand(opts))
	cmd.AddCommand(NewStopCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))

	return cmd
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// loadConfig reads the config file, .env files and XHARVEST_* overrides
func loadConfig(opts *RootOptions) (*config.Config, error) {
	config.LoadDotEnv()

	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFile(opts.ConfigPath)
	} else {
		cfg, _, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup builds the logger and the App every command runs against
func setup(opts *RootOptions) (*app.App, zerolog.Logger, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, zerolog.Nop(), WrapExitError(ExitCommandError, "configuration", err)
	}
	log, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), WrapExitError(ExitCommandError, "logging", err)
	}

	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, log, WrapExitError(ExitCommandError, "failed to resolve cookie path", err)
	}
	authManager := auth.NewManager(auth.NewCookieStore(cookiePath), log)

	a, err := app.New(app.Options{Config: cfg, Auth: authManager, Log: log})
	if err != nil {
		return nil, log, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return a, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
