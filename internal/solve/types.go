package solve

import (
	"errors"
	"time"

	"psq/internal/backend"
)

// #region errors

// ErrSolveExhausted marks a solve that hit its overall deadline with
// zero successful backend evaluations. Surfaced to the caller as a
// service-unavailable-class condition.
var ErrSolveExhausted = errors.New("solve exhausted")

// #endregion

// #region state

// State is the solver's explicit loop state. The external evaluation is
// the single suspension point per iteration.
type State string

const (
	StateInitializing    State = "initializing"
	StateEvaluating      State = "evaluating"
	StateConverged       State = "converged"
	StateBudgetExhausted State = "budget_exhausted"
	StateFailed          State = "failed"
)

// #endregion

// #region options

// Options control one solve. Zero values fall back to defaults.
type Options struct {
	Depth            int           // ansatz layers, > 0
	Shots            int           // final sampling budget, > 0
	MaxIterations    int           // optimizer iteration budget
	Tolerance        float64       // converged when the search step shrinks below this
	InitialStep      float64       // starting compass-search step
	EvalTimeout      time.Duration // per backend evaluation
	RetryAttempts    int           // transient retries per evaluation
	RetryBackoff     time.Duration // base backoff, doubled per retry
	FailureThreshold int           // consecutive failed evaluations before fallback
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{
		Depth:            2,
		Shots:            1024,
		MaxIterations:    100,
		Tolerance:        1e-3,
		InitialStep:      0.2,
		EvalTimeout:      30 * time.Second,
		RetryAttempts:    2,
		RetryBackoff:     100 * time.Millisecond,
		FailureThreshold: 3,
	}
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxIterations == 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.Tolerance == 0 {
		o.Tolerance = def.Tolerance
	}
	if o.InitialStep == 0 {
		o.InitialStep = def.InitialStep
	}
	if o.EvalTimeout == 0 {
		o.EvalTimeout = def.EvalTimeout
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = def.RetryBackoff
	}
	if o.FailureThreshold == 0 {
		o.FailureThreshold = def.FailureThreshold
	}
	return o
}

// #endregion

// #region metadata

// Metadata describes how a solve actually executed.
type Metadata struct {
	Backend      string // backend that produced the final distribution
	BackendKind  string
	Fallback     bool   // a backend substitution happened mid-request
	FallbackFrom string // primary backend name when Fallback is set
	State        State
	Iterations   int
	Evaluations  int // successful backend evaluations
	Depth        int
	Shots        int
	Partial      bool // overall deadline hit after >= 1 successful evaluation
	BestEnergy   float64
	WorstEnergy  float64
	Duration     time.Duration
}

// #endregion

// #region result

// Result is the solver deliverable: the sampled distribution for the
// final parameter set, the best energy observed across all iterations,
// and execution metadata.
type Result struct {
	Distribution backend.Distribution
	BestEnergy   float64
	Params       []float64
	Meta         Metadata
}

// #endregion
