// Package solve runs the variational optimization loop against a
// pluggable backend, with retry, circuit-breaker fallback, and
// deadline-bounded partial results.
package solve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"psq/internal/backend"
	"psq/internal/ising"
	"psq/internal/qubo"
)

// #region solver

// Solver optimizes variational parameters against a primary backend,
// substituting the fallback backend for the remainder of a request once
// the primary trips the failure threshold.
type Solver struct {
	primary  backend.Backend
	fallback backend.Backend // nil disables fallback
}

// New creates a solver. fallback may be nil; a local simulator is the
// usual choice.
func New(primary, fallback backend.Backend) *Solver {
	return &Solver{primary: primary, fallback: fallback}
}

// #endregion solver

// #region solve

// Solve minimizes the expected Hamiltonian value over 2·depth parameters
// (γ, β per layer) by compass search, one backend evaluation per
// iteration, then samples the final parameter set with the shot budget.
// The context carries the overall deadline; hitting it with at least one
// successful evaluation yields a partial result, with zero yields
// ErrSolveExhausted.
func (s *Solver) Solve(ctx context.Context, h *ising.Hamiltonian, opts Options) (Result, error) {
	if opts.Depth <= 0 {
		return Result{}, fmt.Errorf("depth %d must be positive: %w", opts.Depth, qubo.ErrInvalidInput)
	}
	if opts.Shots <= 0 {
		return Result{}, fmt.Errorf("shot budget %d must be positive: %w", opts.Shots, qubo.ErrInvalidInput)
	}
	opts = opts.withDefaults()

	r := &run{
		solver: s,
		opts:   opts,
		start:  time.Now(),
		meta: Metadata{
			State:       StateInitializing,
			Depth:       opts.Depth,
			Shots:       opts.Shots,
			BestEnergy:  math.Inf(1),
			WorstEnergy: math.Inf(-1),
		},
	}
	defer r.release()

	// Pick the starting backend. An unavailable primary is a degraded
	// start, not a failure.
	r.active = s.primary
	if !r.active.IsAvailable(ctx) && s.fallback != nil && s.fallback != s.primary {
		log.Printf("[SOLVE] backend %s unavailable, starting on fallback %s", s.primary.Name(), s.fallback.Name())
		r.markFallback()
	}

	if err := r.acquire(ctx, h); err != nil {
		// One more chance on the fallback before giving up.
		if r.active == s.primary && r.switchToFallback(ctx, h) == nil {
			log.Printf("[SOLVE] acquire on %s failed, switched to %s: %v", s.primary.Name(), r.active.Name(), err)
		} else {
			r.meta.State = StateFailed
			return Result{}, fmt.Errorf("acquire backend session: %w", err)
		}
	}
	r.h = h

	return r.optimize(ctx)
}

// #endregion solve

// #region run

// run holds the mutable state of one solve.
type run struct {
	solver *Solver
	opts   Options
	start  time.Time
	meta   Metadata

	h      *ising.Hamiltonian
	active backend.Backend
	sess   backend.Session

	failures  int // consecutive failed evaluations on the active backend
	succeeded int
}

func (r *run) acquire(ctx context.Context, h *ising.Hamiltonian) error {
	sess, err := r.active.Acquire(ctx, h)
	if err != nil {
		return err
	}
	r.sess = sess
	r.meta.Backend = r.active.Name()
	r.meta.BackendKind = string(r.active.Kind())
	return nil
}

func (r *run) release() {
	if r.sess == nil {
		return
	}
	if err := r.sess.Release(); err != nil {
		log.Printf("[SOLVE] release session on %s: %v", r.active.Name(), err)
	}
	r.sess = nil
}

func (r *run) markFallback() {
	r.meta.Fallback = true
	r.meta.FallbackFrom = r.solver.primary.Name()
	r.active = r.solver.fallback
}

// switchToFallback opens the circuit on the primary and moves the
// session to the fallback backend. Returns an error when no switch is
// possible.
func (r *run) switchToFallback(ctx context.Context, h *ising.Hamiltonian) error {
	if r.solver.fallback == nil || r.active == r.solver.fallback {
		return fmt.Errorf("no fallback backend left: %w", backend.ErrUnavailable)
	}
	r.release()
	r.markFallback()
	r.failures = 0
	if err := r.acquire(ctx, h); err != nil {
		return fmt.Errorf("acquire fallback %s: %w", r.active.Name(), err)
	}
	return nil
}

func (r *run) observe(energy float64) {
	if energy < r.meta.BestEnergy {
		r.meta.BestEnergy = energy
	}
	if energy > r.meta.WorstEnergy {
		r.meta.WorstEnergy = energy
	}
}

// #endregion run

// #region optimize

// optimize is the compass-search loop: cycle coordinate directions, one
// candidate evaluation per iteration, move on improvement, halve the
// step after a sweep without improvement, converge when the step drops
// below tolerance.
func (r *run) optimize(ctx context.Context) (Result, error) {
	params := make([]float64, 2*r.opts.Depth)
	for i := range params {
		params[i] = 0.1
	}

	r.meta.State = StateEvaluating
	best, err := r.evaluate(ctx, params)
	if err != nil {
		return r.abort(ctx, params, err)
	}
	r.meta.Iterations++
	r.observe(best)

	step := r.opts.InitialStep
	dims := len(params)
	dir := 0
	improved := false

	for r.meta.Iterations < r.opts.MaxIterations {
		candidate := append([]float64(nil), params...)
		coord := dir / 2
		if dir%2 == 0 {
			candidate[coord] += step
		} else {
			candidate[coord] -= step
		}

		v, err := r.evaluate(ctx, candidate)
		if err != nil {
			return r.abort(ctx, params, err)
		}
		r.meta.Iterations++
		r.observe(v)

		if v < best {
			params, best = candidate, v
			improved = true
		}

		dir++
		if dir == 2*dims {
			dir = 0
			if !improved {
				step /= 2
				if step < r.opts.Tolerance {
					r.meta.State = StateConverged
					break
				}
			}
			improved = false
		}
	}
	if r.meta.State == StateEvaluating {
		r.meta.State = StateBudgetExhausted
	}

	return r.finish(ctx, params)
}

// abort handles a failed evaluation mid-loop. A dead parent context with
// prior successes degrades to a partial result; anything else fails the
// solve.
func (r *run) abort(ctx context.Context, params []float64, cause error) (Result, error) {
	if ctx.Err() != nil && r.succeeded > 0 {
		log.Printf("[SOLVE] deadline reached after %d evaluations, returning partial result", r.succeeded)
		r.meta.Partial = true
		r.meta.State = StateBudgetExhausted
		return r.finish(ctx, params)
	}
	if ctx.Err() != nil {
		r.meta.State = StateFailed
		r.meta.Duration = time.Since(r.start)
		return Result{}, fmt.Errorf("deadline reached with no successful evaluation: %w", ErrSolveExhausted)
	}
	r.meta.State = StateFailed
	r.meta.Duration = time.Since(r.start)
	return Result{}, fmt.Errorf("solve failed: %w", cause)
}

// finish samples the final parameter set and packages the result. When
// the request deadline is already gone, sampling runs under a short
// grace context so a partial result still carries a distribution.
func (r *run) finish(ctx context.Context, params []float64) (Result, error) {
	sampleCtx := ctx
	if ctx.Err() != nil {
		grace, cancel := context.WithTimeout(context.Background(), r.opts.EvalTimeout)
		defer cancel()
		sampleCtx = grace
	}

	dist, err := r.sample(sampleCtx, params)
	if err != nil {
		r.meta.State = StateFailed
		r.meta.Duration = time.Since(r.start)
		if r.succeeded == 0 {
			return Result{}, fmt.Errorf("sampling failed with no successful evaluation: %w", ErrSolveExhausted)
		}
		return Result{}, fmt.Errorf("sample final distribution: %w", err)
	}

	r.meta.Duration = time.Since(r.start)
	return Result{
		Distribution: dist,
		BestEnergy:   r.meta.BestEnergy,
		Params:       params,
		Meta:         r.meta,
	}, nil
}

// #endregion optimize

// #region evaluation

// evaluate runs one objective evaluation with transient retries and the
// circuit breaker. Consecutive failures past the threshold open the
// circuit and move the rest of the request to the fallback backend.
func (r *run) evaluate(ctx context.Context, params []float64) (float64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		v, err := r.evaluateOnce(ctx, params)
		if err == nil {
			r.failures = 0
			r.succeeded++
			r.meta.Evaluations++
			return v, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !retryable(err) {
			return 0, err
		}

		r.failures++
		log.Printf("[SOLVE] evaluation on %s failed (%d consecutive): %v", r.active.Name(), r.failures, err)

		if r.failures >= r.opts.FailureThreshold {
			if ferr := r.switchToFallback(ctx, r.h); ferr != nil {
				return 0, fmt.Errorf("circuit open on %s: %w", r.meta.Backend, ferr)
			}
			log.Printf("[SOLVE] circuit open, substituted fallback backend %s", r.active.Name())
		}
	}
}

// evaluateOnce retries a single evaluation across transient failures
// with doubling backoff, bounded by RetryAttempts.
func (r *run) evaluateOnce(ctx context.Context, params []float64) (float64, error) {
	var lastErr error
	for attempt := 0; attempt <= r.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, r.opts.RetryBackoff<<uint(attempt-1)); err != nil {
				return 0, err
			}
		}

		evalCtx, cancel := context.WithTimeout(ctx, r.opts.EvalTimeout)
		v, err := r.sess.Evaluate(evalCtx, params)
		cancel()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !retryable(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}

// sample draws the final distribution, sharing the breaker/fallback
// behavior of evaluate.
func (r *run) sample(ctx context.Context, params []float64) (backend.Distribution, error) {
	for {
		if err := ctx.Err(); err != nil {
			return backend.Distribution{}, err
		}

		sampleCtx, cancel := context.WithTimeout(ctx, r.opts.EvalTimeout)
		dist, err := r.sess.Sample(sampleCtx, params, r.opts.Shots)
		cancel()
		if err == nil {
			r.failures = 0
			return dist, nil
		}
		if ctx.Err() != nil {
			return backend.Distribution{}, ctx.Err()
		}
		if !retryable(err) {
			return backend.Distribution{}, err
		}

		r.failures++
		log.Printf("[SOLVE] sampling on %s failed (%d consecutive): %v", r.active.Name(), r.failures, err)

		if r.failures >= r.opts.FailureThreshold {
			if ferr := r.switchToFallback(ctx, r.h); ferr != nil {
				return backend.Distribution{}, fmt.Errorf("circuit open on %s: %w", r.meta.Backend, ferr)
			}
			log.Printf("[SOLVE] circuit open during sampling, substituted fallback backend %s", r.active.Name())
		}
	}
}

// retryable reports whether an evaluation error counts as transient.
func retryable(err error) bool {
	return errors.Is(err, backend.ErrTransient) ||
		errors.Is(err, backend.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// sleep waits for d or until the context dies.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion evaluation
