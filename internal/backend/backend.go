// Package backend abstracts the samplers the variational solver runs
// against: exact statevector simulation, shot-limited simulation, and an
// externally hosted sampler behind HTTP. The solver only ever sees the
// Backend/Session capability pair.
package backend

import (
	"context"
	"errors"

	"psq/internal/ising"
)

// #region errors

// ErrTransient marks a single failed evaluation (timeout, connection
// error). The solver retries these with bounded backoff.
var ErrTransient = errors.New("backend transient failure")

// ErrUnavailable marks a backend that cannot currently take work at all
// (health probe failed, circuit open). Triggers fallback.
var ErrUnavailable = errors.New("backend unavailable")

// #endregion

// #region kind

// Kind identifies the backend family.
type Kind string

const (
	KindStatevector Kind = "statevector"
	KindSampler     Kind = "sampler"
	KindRemote      Kind = "remote"
)

// #endregion

// #region distribution

// Distribution is a sampled bitstring histogram. Position i of each
// bitstring is the value of variable index i.
type Distribution struct {
	Counts map[string]int
	Shots  int
}

// #endregion

// #region interfaces

// Backend is a sampler capable of evaluating a variational ansatz over
// a fixed Hamiltonian. Sessions are scoped to one problem and are not
// safe for concurrent use; callers serialize evaluations per session.
type Backend interface {
	Name() string
	Kind() Kind
	IsAvailable(ctx context.Context) bool
	Acquire(ctx context.Context, h *ising.Hamiltonian) (Session, error)
}

// Session is one problem-scoped handle on a backend. Release must be
// called on every exit path.
type Session interface {
	// Evaluate returns the expected Hamiltonian value under the ansatz
	// distribution for the given variational parameters.
	Evaluate(ctx context.Context, params []float64) (float64, error)
	// Sample draws shots bitstrings from the ansatz distribution.
	Sample(ctx context.Context, params []float64, shots int) (Distribution, error)
	Release() error
}

// #endregion

// #region bits

// FormatBits renders mask z over n variables as a bitstring where
// position i is the value of variable index i.
func FormatBits(z uint64, n int) string {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		if z&(1<<uint(i)) != 0 {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

// #endregion
