// Package ising converts quadratic binary cost models into the
// equivalent spin Hamiltonian form consumed by the variational solver.
// Pure algebra: no I/O, no backend specifics.
package ising

import (
	"errors"
	"fmt"
	"sort"

	"psq/internal/qubo"
)

// #region errors

// ErrIndexMismatch marks an internal invariant violation between a cost
// model and its variable index. Treated as a defect, never recovered.
var ErrIndexMismatch = errors.New("index mismatch")

// #endregion

// #region hamiltonian

// Hamiltonian is the spin {-1,+1} representation of a cost model:
// H(s) = Offset + Σᵢ Linear[i]·sᵢ + Σᵢⱼ Coupling[(i,j)]·sᵢ·sⱼ.
// Evaluating H on the spin image of a binary assignment (sᵢ = 2xᵢ − 1)
// reproduces the cost model's value exactly, offset included.
type Hamiltonian struct {
	N        int
	Linear   map[int]float64
	Coupling map[qubo.Pair]float64
	Offset   float64
}

// LinearTerms returns the linear coefficients sorted by index.
func (h *Hamiltonian) LinearTerms() []qubo.Term {
	terms := make([]qubo.Term, 0, len(h.Linear))
	for i, c := range h.Linear {
		terms = append(terms, qubo.Term{Pair: qubo.Pair{I: i, J: i}, Coeff: c})
	}
	sort.Slice(terms, func(a, b int) bool { return terms[a].Pair.I < terms[b].Pair.I })
	return terms
}

// CouplingTerms returns the coupling coefficients sorted by (I, J).
func (h *Hamiltonian) CouplingTerms() []qubo.Term {
	terms := make([]qubo.Term, 0, len(h.Coupling))
	for p, c := range h.Coupling {
		terms = append(terms, qubo.Term{Pair: p, Coeff: c})
	}
	sort.Slice(terms, func(a, b int) bool {
		if terms[a].Pair.I != terms[b].Pair.I {
			return terms[a].Pair.I < terms[b].Pair.I
		}
		return terms[a].Pair.J < terms[b].Pair.J
	})
	return terms
}

// EvalSpins evaluates H on a spin assignment (one value in {-1,+1} per
// variable index), offset included.
func (h *Hamiltonian) EvalSpins(spins []int) float64 {
	e := h.Offset
	for i, c := range h.Linear {
		e += c * float64(spins[i])
	}
	for p, c := range h.Coupling {
		e += c * float64(spins[p.I]) * float64(spins[p.J])
	}
	return e
}

// EnergyOfBits evaluates H on a bitstring. Position i of the string is
// the value of variable index i; '1' maps to spin +1.
func (h *Hamiltonian) EnergyOfBits(bits string) (float64, error) {
	if len(bits) != h.N {
		return 0, fmt.Errorf("bitstring length %d, want %d: %w", len(bits), h.N, ErrIndexMismatch)
	}
	spins := make([]int, h.N)
	for i := 0; i < h.N; i++ {
		switch bits[i] {
		case '0':
			spins[i] = -1
		case '1':
			spins[i] = 1
		default:
			return 0, fmt.Errorf("bitstring byte %q at %d: %w", bits[i], i, ErrIndexMismatch)
		}
	}
	return h.EvalSpins(spins), nil
}

// EnergyOfMask evaluates H on a bitmask where bit i of z is variable i.
func (h *Hamiltonian) EnergyOfMask(z uint64) float64 {
	spin := func(i int) float64 {
		if z&(1<<uint(i)) != 0 {
			return 1
		}
		return -1
	}
	e := h.Offset
	for i, c := range h.Linear {
		e += c * spin(i)
	}
	for p, c := range h.Coupling {
		e += c * spin(p.I) * spin(p.J)
	}
	return e
}

// #endregion hamiltonian

// #region transform

// FromCostModel applies the substitution xᵢ = (1 + sᵢ)/2 to every term
// of the cost model and accumulates the resulting spin-linear, coupling,
// and constant contributions.
func FromCostModel(m *qubo.CostModel, idx *qubo.VarIndex) (*Hamiltonian, error) {
	n := idx.Len()
	if m.Len() != n {
		return nil, fmt.Errorf("cost model over %d variables, index has %d: %w", m.Len(), n, ErrIndexMismatch)
	}

	h := &Hamiltonian{
		N:        n,
		Linear:   make(map[int]float64),
		Coupling: make(map[qubo.Pair]float64),
	}

	for _, t := range m.Terms() {
		i, j, q := t.Pair.I, t.Pair.J, t.Coeff
		if i < 0 || j >= n {
			return nil, fmt.Errorf("coefficient pair (%d,%d) outside index range [0,%d): %w", i, j, n, ErrIndexMismatch)
		}

		if i == j {
			// q·x = q/2 + (q/2)·s
			h.Offset += q / 2
			h.Linear[i] += q / 2
		} else {
			// q·xᵢxⱼ = q/4 + (q/4)·sᵢ + (q/4)·sⱼ + (q/4)·sᵢsⱼ
			h.Offset += q / 4
			h.Linear[i] += q / 4
			h.Linear[j] += q / 4
			h.Coupling[qubo.Pair{I: i, J: j}] += q / 4
		}
	}

	return h, nil
}

// #endregion transform
