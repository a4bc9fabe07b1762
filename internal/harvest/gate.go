package harvest

import (
	"context"

	"github.com/rs/zerolog"
)

// Gate is polled at the top of every loop iteration.
// Worst-case stop latency is one scroll-and-settle cycle.
type Gate struct {
	signal StopSignal
	log    zerolog.Logger
}

// NewGate wraps a stop signal store
func NewGate(signal StopSignal, log zerolog.Logger) *Gate {
	if signal == nil {
		signal = &MemorySignal{}
	}
	return &Gate{signal: signal, log: log}
}

// ShouldStop consumes a pending stop request. A done context also counts as a stop.
// Store errors are logged and read as "keep going".
func (g *Gate) ShouldStop(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	stop, err := g.signal.ConsumeStop(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("Failed to read stop signal")
		return false
	}
	return stop
}

// Reset discards a stop request left over from an earlier harvest
func (g *Gate) Reset(ctx context.Context) {
	if stale, err := g.signal.ConsumeStop(ctx); err != nil {
		g.log.Warn().Err(err).Msg("Failed to clear stop signal")
	} else if stale {
		g.log.Debug().Msg("Cleared stale stop request")
	}
}
