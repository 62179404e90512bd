package backend

import (
	"context"
	"fmt"
	"math/rand"

	"psq/internal/ising"
)

// #region sampler

// Sampler is the shot-limited local backend: the same simulation core as
// Statevector, but expectations and distributions are estimated from a
// finite number of seeded pseudo-random draws, mimicking hardware shot
// noise.
type Sampler struct {
	name      string
	seed      int64
	evalShots int
}

// NewSampler creates a shot-based simulation backend. evalShots bounds
// the per-evaluation sample size used to estimate expectations.
func NewSampler(seed int64, evalShots int) *Sampler {
	if evalShots <= 0 {
		evalShots = 1024
	}
	return &Sampler{name: "sampler_local", seed: seed, evalShots: evalShots}
}

func (b *Sampler) Name() string { return b.name }

func (b *Sampler) Kind() Kind { return KindSampler }

// IsAvailable always holds for local simulation.
func (b *Sampler) IsAvailable(ctx context.Context) bool { return true }

// Acquire precomputes the energy table and seeds the session RNG.
func (b *Sampler) Acquire(ctx context.Context, h *ising.Hamiltonian) (Session, error) {
	c, err := newCircuit(h)
	if err != nil {
		return nil, fmt.Errorf("acquire sampler session: %w", err)
	}
	return &samplerSession{
		circuit:   c,
		rng:       rand.New(rand.NewSource(b.seed)),
		evalShots: b.evalShots,
	}, nil
}

type samplerSession struct {
	circuit   *circuit
	rng       *rand.Rand
	evalShots int
}

func (s *samplerSession) Evaluate(ctx context.Context, params []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	probs, err := s.circuit.probabilities(params)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < s.evalShots; i++ {
		z := s.draw(probs)
		sum += s.circuit.energies[z]
	}
	return sum / float64(s.evalShots), nil
}

func (s *samplerSession) Sample(ctx context.Context, params []float64, shots int) (Distribution, error) {
	if err := ctx.Err(); err != nil {
		return Distribution{}, err
	}
	probs, err := s.circuit.probabilities(params)
	if err != nil {
		return Distribution{}, err
	}
	counts := make(map[string]int)
	for i := 0; i < shots; i++ {
		z := s.draw(probs)
		counts[FormatBits(uint64(z), s.circuit.n)]++
	}
	return Distribution{Counts: counts, Shots: shots}, nil
}

func (s *samplerSession) Release() error { return nil }

// draw samples one bitmask from the probability vector by inverse CDF.
func (s *samplerSession) draw(probs []float64) int {
	r := s.rng.Float64()
	var cum float64
	for z, p := range probs {
		cum += p
		if r < cum {
			return z
		}
	}
	return len(probs) - 1 // float rounding: fall back to the last mask
}

// #endregion sampler
