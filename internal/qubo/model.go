package qubo

import (
	"fmt"
	"sort"
)

// #region cost-model

// CostModel is a quadratic cost function over binary decision variables,
// stored as a mapping from canonical index pairs to real coefficients.
// Self-pairs carry linear terms. Built once, read-only afterward.
type CostModel struct {
	coeff map[Pair]float64
	n     int
}

// NewCostModel creates an empty model over n variables.
func NewCostModel(n int) *CostModel {
	return &CostModel{
		coeff: make(map[Pair]float64),
		n:     n,
	}
}

// Len returns the variable count the model is defined over.
func (m *CostModel) Len() int {
	return m.n
}

// Add accumulates v onto the coefficient for the unordered pair (i, j).
// Accumulation, not overwrite: multiple expansion terms may target the
// same pair.
func (m *CostModel) Add(i, j int, v float64) {
	m.coeff[canonical(i, j)] += v
}

// Coefficient returns the coefficient for the unordered pair (i, j).
// Symmetric by construction: Coefficient(i, j) == Coefficient(j, i).
func (m *CostModel) Coefficient(i, j int) float64 {
	return m.coeff[canonical(i, j)]
}

// Terms returns all nonzero-keyed coefficients sorted by (I, J).
// The sorted order makes every downstream consumer (Ising encoding,
// fingerprinting, tests) independent of map iteration order.
func (m *CostModel) Terms() []Term {
	terms := make([]Term, 0, len(m.coeff))
	for p, c := range m.coeff {
		terms = append(terms, Term{Pair: p, Coeff: c})
	}
	sort.Slice(terms, func(a, b int) bool {
		if terms[a].Pair.I != terms[b].Pair.I {
			return terms[a].Pair.I < terms[b].Pair.I
		}
		return terms[a].Pair.J < terms[b].Pair.J
	})
	return terms
}

// Energy evaluates the model on a binary assignment (one value in {0,1}
// per variable index).
func (m *CostModel) Energy(assignment []int) float64 {
	var e float64
	for _, t := range m.Terms() {
		e += t.Coeff * float64(assignment[t.Pair.I]) * float64(assignment[t.Pair.J])
	}
	return e
}

// #endregion cost-model

// #region build

// Build constructs the diagnosis cost model
//
//	E(z, y) = α·Σᵢ wᵢ(1 − zᵢ) + β·Σⱼ vⱼ·yⱼ + γ·Σᵢ wᵢ·(zᵢ − Σⱼ Aᵢⱼ·yⱼ)²
//
// dropped to its variable-dependent part (the constant α·Σᵢ wᵢ does not
// move the minimiser and is not stored). zᵢ retains sensor i, yⱼ selects
// pattern j, Aᵢⱼ marks pattern j affecting sensor i, vⱼ is the optional
// pattern weight (default 1). Minimising favours retaining high-severity
// sensors (−α·wᵢ on zᵢ), penalises pattern count (+β·vⱼ on yⱼ), and
// penalises retain/selection inconsistency (γ expansion). The residual
// is severity-weighted so explaining a high-severity sensor beats the
// parsimony penalty whenever wᵢ exceeds β·vⱼ; without the weighting a
// covering pattern only ever ties the no-pattern assignment. This sign
// convention is fixed; the ranking and monotonicity tests pin it down.
//
// Index assignment is input order, sensors before patterns, so identical
// input always yields an identical VarIndex and bit-identical coefficients.
func Build(sensors []SensorReading, patterns []Pattern, alpha, beta, gamma float64) (*CostModel, *VarIndex, error) {
	if alpha < 0 || beta < 0 || gamma < 0 {
		return nil, nil, fmt.Errorf("hyperparameters must be non-negative (alpha=%g beta=%g gamma=%g): %w", alpha, beta, gamma, ErrInvalidInput)
	}

	idx := &VarIndex{
		Names:        make([]string, 0, len(sensors)+len(patterns)),
		Index:        make(map[string]int, len(sensors)+len(patterns)),
		SensorCount:  len(sensors),
		PatternCount: len(patterns),
	}

	// 1. Sensor-retain variables, input order
	for _, s := range sensors {
		if s.Severity < 0 {
			return nil, nil, fmt.Errorf("sensor %q has negative severity %g: %w", s.SensorID, s.Severity, ErrInvalidInput)
		}
		name := "z_" + s.SensorID
		if _, dup := idx.Index[name]; dup {
			return nil, nil, fmt.Errorf("duplicate sensor id %q: %w", s.SensorID, ErrInvalidInput)
		}
		idx.Index[name] = len(idx.Names)
		idx.Names = append(idx.Names, name)
	}

	// 2. Pattern-select variables, input order
	for _, p := range patterns {
		name := "y_" + p.PatternID
		if _, dup := idx.Index[name]; dup {
			return nil, nil, fmt.Errorf("duplicate pattern id %q: %w", p.PatternID, ErrInvalidInput)
		}
		idx.Index[name] = len(idx.Names)
		idx.Names = append(idx.Names, name)
	}

	model := NewCostModel(idx.Len())

	// 3. Coverage term: −α·wᵢ on each retain variable
	for i, s := range sensors {
		model.Add(idx.SensorVar(i), idx.SensorVar(i), -alpha*s.Severity)
	}

	// 4. Parsimony term: +β·vⱼ on each select variable
	for j, p := range patterns {
		w := p.Weight
		if w == 0 {
			w = 1.0
		}
		model.Add(idx.PatternVar(j), idx.PatternVar(j), beta*w)
	}

	// 5. Consistency term: γ·wᵢ·(zᵢ − Σⱼ Aᵢⱼyⱼ)² per sensor, expanded.
	// zᵢ² = zᵢ and yⱼ² = yⱼ for binaries, so square terms fold into
	// linear coefficients.
	affecting := affectingVars(sensors, patterns, idx)
	for i := range sensors {
		zi := idx.SensorVar(i)
		gw := gamma * sensors[i].Severity
		vars := affecting[i]

		model.Add(zi, zi, gw)
		for a, yj := range vars {
			model.Add(zi, yj, -2*gw)
			model.Add(yj, yj, gw)
			for _, yk := range vars[a+1:] {
				model.Add(yj, yk, 2*gw)
			}
		}
	}

	return model, idx, nil
}

// affectingVars returns, per input sensor, the pattern variable indices
// affecting it, in pattern input order. Affected sensors not present in
// the request contribute nothing.
func affectingVars(sensors []SensorReading, patterns []Pattern, idx *VarIndex) [][]int {
	sensorPos := make(map[string]int, len(sensors))
	for i, s := range sensors {
		sensorPos[s.SensorID] = i
	}

	out := make([][]int, len(sensors))
	for j, p := range patterns {
		seen := make(map[int]bool)
		for _, sid := range p.AffectedSensors {
			i, ok := sensorPos[sid]
			if !ok || seen[i] {
				continue
			}
			seen[i] = true
			out[i] = append(out[i], idx.PatternVar(j))
		}
	}
	return out
}

// #endregion build
