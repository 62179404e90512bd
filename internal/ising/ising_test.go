package ising

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"psq/internal/qubo"
)

// spinImage maps a binary assignment to spins, 0 → −1 and 1 → +1.
func spinImage(bits []int) []int {
	spins := make([]int, len(bits))
	for i, b := range bits {
		spins[i] = 2*b - 1
	}
	return spins
}

// assertEquivalent checks H(spin image) == cost(x) over all 2^n binary
// assignments of a model.
func assertEquivalent(t *testing.T, m *qubo.CostModel, h *Hamiltonian) {
	t.Helper()
	n := m.Len()
	bits := make([]int, n)
	for z := uint64(0); z < 1<<uint(n); z++ {
		for i := 0; i < n; i++ {
			bits[i] = int(z >> uint(i) & 1)
		}
		want := m.Energy(bits)
		got := h.EvalSpins(spinImage(bits))
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("assignment %v: spin energy %v, binary energy %v", bits, got, want)
		}
		if mask := h.EnergyOfMask(z); math.Abs(mask-want) > 1e-9 {
			t.Fatalf("assignment %v: mask energy %v, binary energy %v", bits, mask, want)
		}
	}
}

func TestFromCostModel_ScenarioEquivalence(t *testing.T) {
	sensors := []qubo.SensorReading{
		{SensorID: "TEMP", Severity: 2.5},
		{SensorID: "PRESSURE", Severity: 3.0},
	}
	patterns := []qubo.Pattern{
		{PatternID: "PUMP_CAVITATION", AffectedSensors: []string{"PRESSURE", "FLOW"}},
	}
	model, idx, err := qubo.Build(sensors, patterns, 1.0, 1.0, 1.0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, err := FromCostModel(model, idx)
	if err != nil {
		t.Fatalf("FromCostModel: %v", err)
	}
	assertEquivalent(t, model, h)
}

func TestFromCostModel_RandomEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 25; trial++ {
		n := 1 + rng.Intn(10)
		idx := &qubo.VarIndex{SensorCount: n}
		for i := 0; i < n; i++ {
			idx.Names = append(idx.Names, "v")
		}
		m := qubo.NewCostModel(n)
		for k := 0; k < 3*n; k++ {
			i, j := rng.Intn(n), rng.Intn(n)
			m.Add(i, j, rng.NormFloat64()*4)
		}
		h, err := FromCostModel(m, idx)
		if err != nil {
			t.Fatalf("trial %d: FromCostModel: %v", trial, err)
		}
		assertEquivalent(t, m, h)
	}
}

func TestFromCostModel_SingleLinearTerm(t *testing.T) {
	idx := &qubo.VarIndex{Names: []string{"v"}, SensorCount: 1}
	m := qubo.NewCostModel(1)
	m.Add(0, 0, 2.0)

	h, err := FromCostModel(m, idx)
	if err != nil {
		t.Fatalf("FromCostModel: %v", err)
	}
	// 2x → offset 1 + 1·s
	if h.Offset != 1.0 {
		t.Errorf("offset = %v, want 1.0", h.Offset)
	}
	if h.Linear[0] != 1.0 {
		t.Errorf("linear[0] = %v, want 1.0", h.Linear[0])
	}
	if len(h.Coupling) != 0 {
		t.Errorf("unexpected couplings %v", h.Coupling)
	}
}

func TestFromCostModel_SingleQuadraticTerm(t *testing.T) {
	idx := &qubo.VarIndex{Names: []string{"a", "b"}, SensorCount: 2}
	m := qubo.NewCostModel(2)
	m.Add(0, 1, 4.0)

	h, err := FromCostModel(m, idx)
	if err != nil {
		t.Fatalf("FromCostModel: %v", err)
	}
	// 4·x₀x₁ → offset 1 + s₀ + s₁ + s₀s₁
	if h.Offset != 1.0 {
		t.Errorf("offset = %v, want 1.0", h.Offset)
	}
	if h.Linear[0] != 1.0 || h.Linear[1] != 1.0 {
		t.Errorf("linear = %v, want 1.0 each", h.Linear)
	}
	if got := h.Coupling[qubo.Pair{I: 0, J: 1}]; got != 1.0 {
		t.Errorf("coupling = %v, want 1.0", got)
	}
}

func TestFromCostModel_IndexMismatch(t *testing.T) {
	idx := &qubo.VarIndex{Names: []string{"a"}, SensorCount: 1}
	if _, err := FromCostModel(qubo.NewCostModel(2), idx); !errors.Is(err, ErrIndexMismatch) {
		t.Errorf("size mismatch: got %v, want ErrIndexMismatch", err)
	}
}

func TestEnergyOfBits(t *testing.T) {
	h := &Hamiltonian{
		N:        2,
		Linear:   map[int]float64{0: 1.0, 1: -0.5},
		Coupling: map[qubo.Pair]float64{{I: 0, J: 1}: 0.25},
		Offset:   3.0,
	}

	// "10": s₀=+1, s₁=−1 → 3 + 1 + 0.5 − 0.25
	got, err := h.EnergyOfBits("10")
	if err != nil {
		t.Fatalf("EnergyOfBits: %v", err)
	}
	if got != 4.25 {
		t.Errorf("energy(\"10\") = %v, want 4.25", got)
	}

	if _, err := h.EnergyOfBits("101"); !errors.Is(err, ErrIndexMismatch) {
		t.Errorf("wrong length: got %v, want ErrIndexMismatch", err)
	}
	if _, err := h.EnergyOfBits("1x"); !errors.Is(err, ErrIndexMismatch) {
		t.Errorf("bad byte: got %v, want ErrIndexMismatch", err)
	}
}

func TestTermOrdering(t *testing.T) {
	h := &Hamiltonian{
		N:      3,
		Linear: map[int]float64{2: 1, 0: 1, 1: 1},
		Coupling: map[qubo.Pair]float64{
			{I: 1, J: 2}: 1,
			{I: 0, J: 2}: 1,
			{I: 0, J: 1}: 1,
		},
	}
	lin := h.LinearTerms()
	for i := 1; i < len(lin); i++ {
		if lin[i-1].Pair.I >= lin[i].Pair.I {
			t.Fatalf("linear terms out of order: %v", lin)
		}
	}
	cpl := h.CouplingTerms()
	for i := 1; i < len(cpl); i++ {
		prev, cur := cpl[i-1].Pair, cpl[i].Pair
		if prev.I > cur.I || (prev.I == cur.I && prev.J >= cur.J) {
			t.Fatalf("coupling terms out of order: %v", cpl)
		}
	}
}
