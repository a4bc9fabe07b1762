package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ibeckermayer/xharvest/internal/app"
	"github.com/ibeckermayer/xharvest/internal/events"
	"github.com/ibeckermayer/xharvest/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // harvest failed or ended without converging
	ExitCommandError = 2 // bad flags, config or environment
)

// ExitError carries the exit code a command failed with
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, ExitFailure by default
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressLine renders a progress event for the terminal
func progressLine(ev events.Event) string {
	if ev.Kind == events.KindComplete {
		return fmt.Sprintf("%s (%s)", ev.Message, ev.Outcome)
	}
	return fmt.Sprintf("[%3.0f%%] %s", ev.Percent, ev.Message)
}

func writeStatus(w io.Writer, st *app.Status, format string) error {
	if format == "json" {
		return writeJSON(w, st)
	}

	session := "logged in"
	if !st.Authenticated {
		session = "not logged in (run xharvest login)"
	}
	fmt.Fprintf(w, "Session:    %s\n", session)
	fmt.Fprintf(w, "Checkpoint: %s\n", st.Backend)
	if st.Running {
		fmt.Fprintln(w, "A harvest is running in this process")
	}
	fmt.Fprintln(w)

	t := newTable(w)
	t.AppendHeader(table.Row{"List", "Checkpointed", "Last run", "Outcome"})
	for _, ls := range st.Lists {
		last, outcome := "-", "-"
		if ls.LastRun != nil {
			last = ls.LastRun.FinishedAt.Local().Format(time.DateTime)
			outcome = ls.LastRun.Outcome
		}
		t.AppendRow(table.Row{ls.ListType, ls.Checkpointed, last, outcome})
	}
	t.Render()
	return nil
}

func writeHistory(w io.Writer, runs []store.Run, format string) error {
	if format == "json" {
		if runs == nil {
			runs = []store.Run{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No harvests recorded yet")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Started", "List", "Outcome", "Records", "Scrolls", "Duration"})
	for _, r := range runs {
		outcome := r.Outcome
		if r.Error != "" {
			outcome += ": " + firstLine(r.Error)
		}
		t.AppendRow(table.Row{
			r.StartedAt.Local().Format(time.DateTime), r.ListType, outcome,
			r.RecordCount, r.Attempts, r.Duration().Round(time.Second),
		})
	}
	t.Render()
	return nil
}

// newTable returns a table that renders to w
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
