package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyNext(t *testing.T) {
	p := Policy{NoGrowthLimit: 10, AttemptCeiling: 100}

	tests := []struct {
		name         string
		state        ScanState
		sig          Signals
		wantDecision Decision
		wantNoGrowth int
	}{
		{
			name:         "growth resets counter",
			state:        ScanState{Attempt: 5, NoGrowth: 7},
			sig:          Signals{Grew: true, AtBottom: true},
			wantDecision: Continue,
			wantNoGrowth: 0,
		},
		{
			name:         "no growth counts up",
			state:        ScanState{Attempt: 5, NoGrowth: 3},
			sig:          Signals{},
			wantDecision: Continue,
			wantNoGrowth: 4,
		},
		{
			name:         "sustained no growth away from bottom keeps going",
			state:        ScanState{Attempt: 50, NoGrowth: 30},
			sig:          Signals{},
			wantDecision: Continue,
			wantNoGrowth: 31,
		},
		{
			name:         "threshold needs strictly more than limit",
			state:        ScanState{Attempt: 20, NoGrowth: 9},
			sig:          Signals{AtBottom: true},
			wantDecision: Continue,
			wantNoGrowth: 10,
		},
		{
			name:         "stalled at bottom converges",
			state:        ScanState{Attempt: 20, NoGrowth: 10},
			sig:          Signals{AtBottom: true},
			wantDecision: Converge,
			wantNoGrowth: 11,
		},
		{
			name:         "stall wins over frozen height",
			state:        ScanState{Attempt: 20, NoGrowth: 10},
			sig:          Signals{AtBottom: true, HeightUnchanged: true},
			wantDecision: Converge,
			wantNoGrowth: 11,
		},
		{
			name:         "frozen height at bottom verifies",
			state:        ScanState{Attempt: 4, NoGrowth: 1},
			sig:          Signals{AtBottom: true, HeightUnchanged: true},
			wantDecision: Verify,
			wantNoGrowth: 2,
		},
		{
			name:         "frozen height mid list continues",
			state:        ScanState{Attempt: 4},
			sig:          Signals{HeightUnchanged: true, Grew: true},
			wantDecision: Continue,
			wantNoGrowth: 0,
		},
		{
			name:         "ceiling truncates",
			state:        ScanState{Attempt: 100},
			sig:          Signals{Grew: true},
			wantDecision: Truncate,
			wantNoGrowth: 0,
		},
		{
			name:         "verify wins over ceiling",
			state:        ScanState{Attempt: 100},
			sig:          Signals{HeightUnchanged: true, AtBottom: true},
			wantDecision: Verify,
			wantNoGrowth: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, d := p.Next(tt.state, tt.sig)
			assert.Equal(t, tt.wantDecision, d)
			assert.Equal(t, tt.wantNoGrowth, got.NoGrowth)
			assert.Equal(t, tt.state.Attempt, got.Attempt)
		})
	}
}

func TestPolicyDefaults(t *testing.T) {
	_, d := Policy{}.Next(ScanState{Attempt: DefaultAttemptCeiling}, Signals{Grew: true})
	assert.Equal(t, Truncate, d)

	_, d = Policy{}.Next(ScanState{Attempt: 1, NoGrowth: DefaultNoGrowthLimit}, Signals{AtBottom: true})
	assert.Equal(t, Converge, d)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "verify", Verify.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
