package backend

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"psq/internal/ising"
)

// #region circuit

// maxSimQubits caps local simulation; amplitude storage is 2^n.
const maxSimQubits = 20

// circuit is the shared QAOA simulation core: alternating diagonal cost
// layers and RX mixer layers over a full statevector. Parameters are
// laid out per layer as (γ_k, β_k), so len(params) = 2·depth.
type circuit struct {
	n        int
	energies []float64 // Hamiltonian value per bitmask, offset included
}

func newCircuit(h *ising.Hamiltonian) (*circuit, error) {
	if h.N > maxSimQubits {
		return nil, fmt.Errorf("problem size %d exceeds local simulation cap %d qubits", h.N, maxSimQubits)
	}
	size := uint64(1) << uint(h.N)
	energies := make([]float64, size)
	for z := uint64(0); z < size; z++ {
		energies[z] = h.EnergyOfMask(z)
	}
	return &circuit{n: h.N, energies: energies}, nil
}

// run prepares the uniform superposition and applies depth layers of
// phase separation and mixing, returning the final amplitudes.
func (c *circuit) run(params []float64) ([]complex128, error) {
	if len(params) == 0 || len(params)%2 != 0 {
		return nil, fmt.Errorf("parameter count %d, want positive even (γ,β per layer)", len(params))
	}

	size := 1 << uint(c.n)
	amps := make([]complex128, size)
	init := complex(1/math.Sqrt(float64(size)), 0)
	for z := range amps {
		amps[z] = init
	}

	for layer := 0; layer < len(params)/2; layer++ {
		gamma, beta := params[2*layer], params[2*layer+1]

		// Cost layer: diagonal phase e^{-iγE(z)}
		for z := range amps {
			amps[z] *= cmplx.Exp(complex(0, -gamma*c.energies[z]))
		}

		// Mixer layer: RX(2β) on every qubit
		cos := complex(math.Cos(beta), 0)
		isin := complex(0, -math.Sin(beta))
		for q := 0; q < c.n; q++ {
			bit := 1 << uint(q)
			for z := 0; z < size; z++ {
				if z&bit != 0 {
					continue
				}
				a, b := amps[z], amps[z|bit]
				amps[z] = cos*a + isin*b
				amps[z|bit] = isin*a + cos*b
			}
		}
	}

	return amps, nil
}

// probabilities returns |amp|² per bitmask.
func (c *circuit) probabilities(params []float64) ([]float64, error) {
	amps, err := c.run(params)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(amps))
	for z, a := range amps {
		probs[z] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs, nil
}

// expectation returns Σ p(z)·E(z) over the final distribution.
func (c *circuit) expectation(params []float64) (float64, error) {
	probs, err := c.probabilities(params)
	if err != nil {
		return 0, err
	}
	var e float64
	for z, p := range probs {
		e += p * c.energies[z]
	}
	return e, nil
}

// #endregion circuit

// #region statevector

// Statevector is the exact local backend: deterministic expectations and
// deterministic largest-remainder sampling, no shot noise.
type Statevector struct {
	name string
}

// NewStatevector creates the exact simulation backend.
func NewStatevector() *Statevector {
	return &Statevector{name: "statevector_local"}
}

func (b *Statevector) Name() string { return b.name }

func (b *Statevector) Kind() Kind { return KindStatevector }

// IsAvailable always holds for local simulation.
func (b *Statevector) IsAvailable(ctx context.Context) bool { return true }

// Acquire precomputes the energy table for the problem.
func (b *Statevector) Acquire(ctx context.Context, h *ising.Hamiltonian) (Session, error) {
	c, err := newCircuit(h)
	if err != nil {
		return nil, fmt.Errorf("acquire statevector session: %w", err)
	}
	return &statevectorSession{circuit: c}, nil
}

type statevectorSession struct {
	circuit *circuit
}

func (s *statevectorSession) Evaluate(ctx context.Context, params []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.circuit.expectation(params)
}

func (s *statevectorSession) Sample(ctx context.Context, params []float64, shots int) (Distribution, error) {
	if err := ctx.Err(); err != nil {
		return Distribution{}, err
	}
	probs, err := s.circuit.probabilities(params)
	if err != nil {
		return Distribution{}, err
	}
	return apportion(probs, shots, s.circuit.n), nil
}

func (s *statevectorSession) Release() error { return nil }

// apportion converts exact probabilities into integer counts summing to
// shots via largest-remainder rounding. Deterministic: ties broken by
// bitmask order.
func apportion(probs []float64, shots int, n int) Distribution {
	type slot struct {
		z     int
		count int
		frac  float64
	}
	slots := make([]slot, len(probs))
	assigned := 0
	for z, p := range probs {
		exact := p * float64(shots)
		c := int(math.Floor(exact))
		slots[z] = slot{z: z, count: c, frac: exact - float64(c)}
		assigned += c
	}

	// Hand the remaining shots to the largest fractional parts.
	sort.SliceStable(slots, func(a, b int) bool { return slots[a].frac > slots[b].frac })
	for i := 0; i < len(slots) && assigned < shots; i++ {
		slots[i].count++
		assigned++
	}

	counts := make(map[string]int)
	for _, s := range slots {
		if s.count > 0 {
			counts[FormatBits(uint64(s.z), n)] = s.count
		}
	}
	return Distribution{Counts: counts, Shots: shots}
}

// #endregion statevector
