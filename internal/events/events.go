// Package events carries harvest progress and completion notifications to the host.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// ErrUndelivered is returned when an event could not reach its destination
var ErrUndelivered = errors.New("event could not be delivered")

// Kind distinguishes progress from completion events
type Kind string

const (
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
)

// Location says where a completion event's records can be found
type Location string

const (
	LocationInline     Location = "inline"
	LocationCheckpoint Location = "checkpoint"
)

// Event is a notification from a running harvest
type Event struct {
	Kind        Kind           `json:"kind"`
	RunID       string         `json:"run_id,omitempty"`
	ListType    types.ListType `json:"list_type,omitempty"`
	Message     string         `json:"message,omitempty"`
	Percent     float64        `json:"percent"`
	RecordCount int            `json:"record_count"`

	// Completion only
	Outcome         string         `json:"outcome,omitempty"`
	ResultsLocation Location       `json:"results_location,omitempty"`
	Records         []types.Record `json:"records,omitempty"`
}

// Sink receives events
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, ev Event) error

// Emit calls f(ctx, ev)
func (f SinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// LogSink writes events to a zerolog logger
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink that logs every event
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit logs the event at info level
func (s *LogSink) Emit(_ context.Context, ev Event) error {
	e := s.log.Info().
		Str("kind", string(ev.Kind)).
		Int("records", ev.RecordCount).
		Float64("percent", ev.Percent)
	if ev.Kind == KindComplete {
		e = e.Str("outcome", ev.Outcome).Str("results", string(ev.ResultsLocation))
	}
	e.Msg(ev.Message)
	return nil
}

// ChanSink delivers events over a channel until closed
type ChanSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewChanSink creates a channel sink with the given buffer size
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buffer)}
}

// C returns the receive side of the sink
func (s *ChanSink) C() <-chan Event {
	return s.ch
}

// Emit sends the event, blocking until the receiver takes it or ctx ends.
// Emitting on a closed sink returns ErrUndelivered.
func (s *ChanSink) Emit(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUndelivered
	}
	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrUndelivered, ctx.Err())
	}
}

// Close closes the channel; further emits fail
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Multi fans an event out to several sinks
type Multi []Sink

// Emit delivers to every sink and joins their errors
func (m Multi) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
