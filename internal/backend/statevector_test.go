package backend

import (
	"context"
	"math"
	"testing"

	"psq/internal/ising"
	"psq/internal/qubo"
)

func singleQubit() *ising.Hamiltonian {
	return &ising.Hamiltonian{
		N:        1,
		Linear:   map[int]float64{0: 1.0},
		Coupling: map[qubo.Pair]float64{},
	}
}

func twoQubit() *ising.Hamiltonian {
	return &ising.Hamiltonian{
		N:        2,
		Linear:   map[int]float64{0: 1.0, 1: -0.5},
		Coupling: map[qubo.Pair]float64{{I: 0, J: 1}: 0.25},
		Offset:   0.5,
	}
}

func TestStatevector_ZeroGammaKeepsUniform(t *testing.T) {
	h := twoQubit()
	sess, err := NewStatevector().Acquire(context.Background(), h)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer sess.Release()

	// With γ = 0 the phase layer is identity and the uniform state is
	// an eigenstate of the mixer, so the expectation is the plain mean
	// of the four energies.
	var mean float64
	for z := uint64(0); z < 4; z++ {
		mean += h.EnergyOfMask(z)
	}
	mean /= 4

	got, err := sess.Evaluate(context.Background(), []float64{0, 0.7})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(got-mean) > 1e-9 {
		t.Errorf("expectation = %v, want uniform mean %v", got, mean)
	}
}

func TestStatevector_SingleQubitOptimum(t *testing.T) {
	// For H = s₀ a depth-1 layer with γ = −π/4, β = π/4 rotates the
	// uniform state exactly onto |0⟩, the minimum-energy basis state.
	sess, err := NewStatevector().Acquire(context.Background(), singleQubit())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer sess.Release()

	params := []float64{-math.Pi / 4, math.Pi / 4}
	got, err := sess.Evaluate(context.Background(), params)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(got-(-1.0)) > 1e-9 {
		t.Errorf("expectation = %v, want -1", got)
	}

	dist, err := sess.Sample(context.Background(), params, 100)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if dist.Counts["0"] != 100 {
		t.Errorf("counts = %v, want all 100 shots on \"0\"", dist.Counts)
	}
}

func TestStatevector_ExpectationBounded(t *testing.T) {
	h := twoQubit()
	sess, err := NewStatevector().Acquire(context.Background(), h)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer sess.Release()

	min, max := math.Inf(1), math.Inf(-1)
	for z := uint64(0); z < 4; z++ {
		e := h.EnergyOfMask(z)
		min, max = math.Min(min, e), math.Max(max, e)
	}

	for _, params := range [][]float64{
		{0.1, 0.2},
		{1.3, -0.4, 0.8, 2.1},
		{-2.0, 0.5, 0.3, 0.9, 1.1, -0.7},
	} {
		got, err := sess.Evaluate(context.Background(), params)
		if err != nil {
			t.Fatalf("Evaluate(%v): %v", params, err)
		}
		if got < min-1e-9 || got > max+1e-9 {
			t.Errorf("expectation %v outside spectrum [%v, %v]", got, min, max)
		}
	}
}

func TestStatevector_BadParameterCount(t *testing.T) {
	sess, err := NewStatevector().Acquire(context.Background(), singleQubit())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer sess.Release()

	for _, params := range [][]float64{nil, {0.5}, {0.1, 0.2, 0.3}} {
		if _, err := sess.Evaluate(context.Background(), params); err == nil {
			t.Errorf("Evaluate(%v): expected parameter layout error", params)
		}
	}
}

func TestStatevector_QubitCap(t *testing.T) {
	h := &ising.Hamiltonian{N: maxSimQubits + 1}
	if _, err := NewStatevector().Acquire(context.Background(), h); err == nil {
		t.Error("expected simulation cap error")
	}
}

func TestStatevector_CancelledContext(t *testing.T) {
	sess, err := NewStatevector().Acquire(context.Background(), singleQubit())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer sess.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sess.Evaluate(ctx, []float64{0.1, 0.2}); err == nil {
		t.Error("expected context error")
	}
}

func TestApportion_SumsToShots(t *testing.T) {
	cases := [][]float64{
		{0.5, 0.5},
		{0.3333, 0.3333, 0.3334},
		{1.0 / 3, 1.0 / 3, 1.0 / 3},
		{0.7, 0.1, 0.1, 0.1},
	}
	for _, probs := range cases {
		for _, shots := range []int{1, 7, 1024} {
			n := 0
			for 1<<uint(n) < len(probs) {
				n++
			}
			dist := apportion(probs, shots, n)
			total := 0
			for _, c := range dist.Counts {
				total += c
			}
			if total != shots {
				t.Errorf("probs %v shots %d: counts sum to %d", probs, shots, total)
			}
		}
	}
}

func TestFormatBits(t *testing.T) {
	// Position i of the string is the value of variable index i.
	if got := FormatBits(0b01, 2); got != "10" {
		t.Errorf("FormatBits(0b01, 2) = %q, want \"10\"", got)
	}
	if got := FormatBits(0b110, 3); got != "011" {
		t.Errorf("FormatBits(0b110, 3) = %q, want \"011\"", got)
	}
	if got := FormatBits(0, 4); got != "0000" {
		t.Errorf("FormatBits(0, 4) = %q, want \"0000\"", got)
	}
}
