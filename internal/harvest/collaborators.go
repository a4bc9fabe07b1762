package harvest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Extractor reads the records currently rendered in the list.
// It must not scroll or wait; malformed items are dropped, not reported.
type Extractor interface {
	ExtractVisible(ctx context.Context) ([]types.Record, error)
}

// ScrollDriver moves the viewport and reports its geometry
type ScrollDriver interface {
	// Advance scrolls one increment and waits for lazy content to settle
	Advance(ctx context.Context) error
	ScrollTo(ctx context.Context, y int) error
	Height(ctx context.Context) (int, error)
	AtBottom(ctx context.Context) (bool, error)
}

// CheckpointStore persists the latest snapshot of a harvest.
// Read returns an empty slice, not an error, when nothing was written yet.
type CheckpointStore interface {
	Write(ctx context.Context, records []types.Record) error
	Read(ctx context.Context) ([]types.Record, error)
	Clear(ctx context.Context) error
}

// StopSignal is a one-shot stop flag settable from outside the harvest
type StopSignal interface {
	RequestStop(ctx context.Context) error
	// ConsumeStop reports whether a stop was requested and clears the request
	ConsumeStop(ctx context.Context) (bool, error)
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MemoryCheckpoint keeps the checkpoint in process memory
type MemoryCheckpoint struct {
	mu      sync.RWMutex
	records []types.Record
}

// NewMemoryCheckpoint creates an empty in-memory checkpoint
func NewMemoryCheckpoint() *MemoryCheckpoint {
	return &MemoryCheckpoint{}
}

func (m *MemoryCheckpoint) Write(_ context.Context, records []types.Record) error {
	cp := make([]types.Record, len(records))
	for i, r := range records {
		cp[i] = r.Clone()
	}
	m.mu.Lock()
	m.records = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryCheckpoint) Read(_ context.Context) ([]types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Record, len(m.records))
	for i, r := range m.records {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *MemoryCheckpoint) Clear(_ context.Context) error {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
	return nil
}

// MemorySignal is a StopSignal for callers in the same process
type MemorySignal struct {
	stop atomic.Bool
}

func (s *MemorySignal) RequestStop(_ context.Context) error {
	s.stop.Store(true)
	return nil
}

func (s *MemorySignal) ConsumeStop(_ context.Context) (bool, error) {
	return s.stop.Swap(false), nil
}
