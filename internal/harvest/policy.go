package harvest

// DefaultNoGrowthLimit is how many consecutive iterations without new records
// are tolerated before a harvest at the bottom of the list is considered done.
const DefaultNoGrowthLimit = 10

// DefaultAttemptCeiling bounds the number of iterations of a single harvest
const DefaultAttemptCeiling = 500

// ScanState is the per-harvest loop state
type ScanState struct {
	Attempt      int
	NoGrowth     int
	PrevHeight   int
	LastReported int
}

// Signals are observed once per iteration after scrolling
type Signals struct {
	Grew            bool
	HeightUnchanged bool
	AtBottom        bool
}

// Decision is what the loop should do next
type Decision int

const (
	Continue Decision = iota
	Converge
	Verify
	Truncate
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Converge:
		return "converge"
	case Verify:
		return "verify"
	case Truncate:
		return "truncate"
	default:
		return "unknown"
	}
}

// Policy decides when a harvest has reached the end of the list
type Policy struct {
	NoGrowthLimit  int
	AttemptCeiling int
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		NoGrowthLimit:  DefaultNoGrowthLimit,
		AttemptCeiling: DefaultAttemptCeiling,
	}
}

func (p Policy) withDefaults() Policy {
	if p.NoGrowthLimit <= 0 {
		p.NoGrowthLimit = DefaultNoGrowthLimit
	}
	if p.AttemptCeiling <= 0 {
		p.AttemptCeiling = DefaultAttemptCeiling
	}
	return p
}

// Next folds one iteration's signals into s and returns the decision.
// Rules are checked in order and the first match wins:
//  1. sustained no-growth while at the bottom converges
//  2. a frozen document height at the bottom triggers a verification pass
//  3. reaching the attempt ceiling truncates
func (p Policy) Next(s ScanState, sig Signals) (ScanState, Decision) {
	p = p.withDefaults()

	if sig.Grew {
		s.NoGrowth = 0
	} else {
		s.NoGrowth++
	}

	switch {
	case s.NoGrowth > p.NoGrowthLimit && sig.AtBottom:
		return s, Converge
	case sig.HeightUnchanged && sig.AtBottom:
		return s, Verify
	case s.Attempt >= p.AttemptCeiling:
		return s, Truncate
	}
	return s, Continue
}
