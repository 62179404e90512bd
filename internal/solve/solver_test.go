package solve

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"psq/internal/backend"
	"psq/internal/ising"
	"psq/internal/qubo"
)

// #region stubs

// stubBackend scripts backend behavior for breaker and fallback tests.
type stubBackend struct {
	name       string
	available  bool
	acquireErr error
	sess       *stubSession
}

func (b *stubBackend) Name() string                          { return b.name }
func (b *stubBackend) Kind() backend.Kind                    { return backend.KindRemote }
func (b *stubBackend) IsAvailable(ctx context.Context) bool  { return b.available }
func (b *stubBackend) Acquire(ctx context.Context, h *ising.Hamiltonian) (backend.Session, error) {
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	return b.sess, nil
}

type stubSession struct {
	evalCalls   int
	sampleCalls int
	released    int
	evaluate    func(ctx context.Context, call int) (float64, error)
	sample      func(ctx context.Context, call int) (backend.Distribution, error)
}

func (s *stubSession) Evaluate(ctx context.Context, params []float64) (float64, error) {
	s.evalCalls++
	return s.evaluate(ctx, s.evalCalls)
}

func (s *stubSession) Sample(ctx context.Context, params []float64, shots int) (backend.Distribution, error) {
	s.sampleCalls++
	if s.sample == nil {
		return backend.Distribution{Counts: map[string]int{"0": shots}, Shots: shots}, nil
	}
	return s.sample(ctx, s.sampleCalls)
}

func (s *stubSession) Release() error {
	s.released++
	return nil
}

func failingSession() *stubSession {
	return &stubSession{
		evaluate: func(ctx context.Context, call int) (float64, error) {
			return 0, fmt.Errorf("simulated outage: %w", backend.ErrTransient)
		},
	}
}

func solveHamiltonian() *ising.Hamiltonian {
	return &ising.Hamiltonian{
		N:        1,
		Linear:   map[int]float64{0: 1.0},
		Coupling: map[qubo.Pair]float64{},
	}
}

// #endregion stubs

func TestSolve_InvalidOptions(t *testing.T) {
	s := New(backend.NewStatevector(), nil)
	h := solveHamiltonian()

	if _, err := s.Solve(context.Background(), h, Options{Depth: 0, Shots: 16}); !errors.Is(err, qubo.ErrInvalidInput) {
		t.Errorf("zero depth: got %v, want ErrInvalidInput", err)
	}
	if _, err := s.Solve(context.Background(), h, Options{Depth: 1, Shots: 0}); !errors.Is(err, qubo.ErrInvalidInput) {
		t.Errorf("zero shots: got %v, want ErrInvalidInput", err)
	}
}

func TestSolve_ConvergesOnStatevector(t *testing.T) {
	s := New(backend.NewStatevector(), nil)
	res, err := s.Solve(context.Background(), solveHamiltonian(), Options{Depth: 1, Shots: 64})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if res.Meta.State != StateConverged && res.Meta.State != StateBudgetExhausted {
		t.Errorf("state = %q, want converged or budget_exhausted", res.Meta.State)
	}
	if res.Meta.Partial {
		t.Error("unexpected partial flag on a clean solve")
	}
	if res.Meta.Fallback {
		t.Error("unexpected fallback on a clean solve")
	}
	// Spectrum of H = s₀ is {−1, +1}; the uniform start sits at 0 and
	// optimization must not end above it.
	if res.BestEnergy > 1e-9 || res.BestEnergy < -1-1e-9 {
		t.Errorf("best energy %v outside [-1, 0]", res.BestEnergy)
	}
	if res.Meta.BestEnergy > res.Meta.WorstEnergy {
		t.Errorf("best %v above worst %v", res.Meta.BestEnergy, res.Meta.WorstEnergy)
	}
	if len(res.Params) != 2 {
		t.Errorf("got %d params, want 2", len(res.Params))
	}

	total := 0
	for _, c := range res.Distribution.Counts {
		total += c
	}
	if total != 64 {
		t.Errorf("distribution counts sum to %d, want 64", total)
	}
	if res.Meta.Evaluations == 0 || res.Meta.Iterations == 0 {
		t.Errorf("expected recorded work, got %+v", res.Meta)
	}
}

func TestSolve_FallbackAfterThreshold(t *testing.T) {
	primary := &stubBackend{name: "flaky_remote", available: true, sess: failingSession()}
	s := New(primary, backend.NewStatevector())

	res, err := s.Solve(context.Background(), solveHamiltonian(), Options{
		Depth:            1,
		Shots:            16,
		MaxIterations:    4,
		FailureThreshold: 3,
		RetryBackoff:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	// RetryAttempts 0 means one attempt per evaluation, so the breaker
	// opens after exactly FailureThreshold calls to the primary.
	if primary.sess.evalCalls != 3 {
		t.Errorf("primary evaluations = %d, want 3", primary.sess.evalCalls)
	}
	if primary.sess.released != 1 {
		t.Errorf("primary session released %d times, want 1", primary.sess.released)
	}
	if !res.Meta.Fallback {
		t.Error("fallback not recorded in metadata")
	}
	if res.Meta.FallbackFrom != "flaky_remote" {
		t.Errorf("FallbackFrom = %q, want flaky_remote", res.Meta.FallbackFrom)
	}
	if res.Meta.Backend != "statevector_local" {
		t.Errorf("Backend = %q, want statevector_local", res.Meta.Backend)
	}
	if res.Meta.BackendKind != string(backend.KindStatevector) {
		t.Errorf("BackendKind = %q, want statevector", res.Meta.BackendKind)
	}
}

func TestSolve_RetriesBeforeCountingFailure(t *testing.T) {
	// Two transient failures then success, all inside one evaluation's
	// retry budget: no fallback, no failure surfaced.
	sess := &stubSession{
		evaluate: func(ctx context.Context, call int) (float64, error) {
			if call <= 2 {
				return 0, backend.ErrTransient
			}
			return -0.5, nil
		},
	}
	primary := &stubBackend{name: "flaky_remote", available: true, sess: sess}
	s := New(primary, backend.NewStatevector())

	res, err := s.Solve(context.Background(), solveHamiltonian(), Options{
		Depth:         1,
		Shots:         8,
		MaxIterations: 1,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Meta.Fallback {
		t.Error("retryable blip should not trip the breaker")
	}
	if res.Meta.Backend != "flaky_remote" {
		t.Errorf("Backend = %q, want flaky_remote", res.Meta.Backend)
	}
	if sess.evalCalls != 3 {
		t.Errorf("evaluate calls = %d, want 3", sess.evalCalls)
	}
}

func TestSolve_NoFallbackExhaustsBreaker(t *testing.T) {
	primary := &stubBackend{name: "flaky_remote", available: true, sess: failingSession()}
	s := New(primary, nil)

	_, err := s.Solve(context.Background(), solveHamiltonian(), Options{
		Depth:            1,
		Shots:            16,
		FailureThreshold: 2,
		RetryBackoff:     time.Millisecond,
	})
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable once the circuit opens with no fallback", err)
	}
}

func TestSolve_UnavailablePrimaryStartsOnFallback(t *testing.T) {
	primary := &stubBackend{name: "down_remote", available: false, sess: failingSession()}
	s := New(primary, backend.NewStatevector())

	res, err := s.Solve(context.Background(), solveHamiltonian(), Options{Depth: 1, Shots: 16})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Meta.Fallback || res.Meta.Backend != "statevector_local" {
		t.Errorf("expected degraded start on fallback, got %+v", res.Meta)
	}
	if primary.sess.evalCalls != 0 {
		t.Errorf("unavailable primary was still evaluated %d times", primary.sess.evalCalls)
	}
}

func TestSolve_AcquireFailureSwitchesToFallback(t *testing.T) {
	primary := &stubBackend{name: "broken_remote", available: true, acquireErr: backend.ErrUnavailable}
	s := New(primary, backend.NewStatevector())

	res, err := s.Solve(context.Background(), solveHamiltonian(), Options{Depth: 1, Shots: 16})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Meta.Fallback || res.Meta.Backend != "statevector_local" {
		t.Errorf("expected fallback after failed acquire, got %+v", res.Meta)
	}
}

func TestSolve_DeadlineWithPartialResult(t *testing.T) {
	sess := &stubSession{
		evaluate: func(ctx context.Context, call int) (float64, error) {
			if call == 1 {
				return -1.0, nil
			}
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	primary := &stubBackend{name: "slow_remote", available: true, sess: sess}
	s := New(primary, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := s.Solve(ctx, solveHamiltonian(), Options{Depth: 1, Shots: 16})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Meta.Partial {
		t.Error("expected partial flag after deadline with one success")
	}
	if res.Meta.State != StateBudgetExhausted {
		t.Errorf("state = %q, want budget_exhausted", res.Meta.State)
	}
	if res.BestEnergy != -1.0 {
		t.Errorf("best energy = %v, want -1.0 from the single evaluation", res.BestEnergy)
	}
	if len(res.Distribution.Counts) == 0 {
		t.Error("partial result carries no distribution")
	}
}

func TestSolve_DeadlineWithNoEvaluations(t *testing.T) {
	s := New(backend.NewStatevector(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Solve(ctx, solveHamiltonian(), Options{Depth: 1, Shots: 16})
	if !errors.Is(err, ErrSolveExhausted) {
		t.Errorf("got %v, want ErrSolveExhausted", err)
	}
}

func TestWithDefaults(t *testing.T) {
	o := Options{Depth: 3, Shots: 256}.withDefaults()
	if o.MaxIterations != 100 || o.Tolerance != 1e-3 || o.FailureThreshold != 3 {
		t.Errorf("defaults not applied: %+v", o)
	}
	// A zero retry budget is a deliberate choice, not an unset field.
	if o.RetryAttempts != 0 {
		t.Errorf("RetryAttempts = %d, want 0 preserved", o.RetryAttempts)
	}
}
