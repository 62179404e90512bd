// Package decode turns sampled bitstring distributions into ranked,
// explainable root-cause hypotheses.
package decode

import (
	"fmt"
	"sort"

	"psq/internal/backend"
	"psq/internal/ising"
	"psq/internal/qubo"
)

// #region hypothesis

// Hypothesis is one candidate explanation reconstructed from a sampled
// bitstring. An empty SelectedPatterns list is the valid "no known
// explanation" hypothesis.
type Hypothesis struct {
	Bits             string
	SelectedPatterns []string // pattern IDs, input order
	RetainedSensors  []string // sensor IDs with the retain bit set, input order
	CoveredSensors   []string // flagged sensors explained by the selection
	ResidualSensors  []string // flagged sensors left unexplained
	Energy           float64
	Count            int
	Frequency        float64 // Count / total shots
	Confidence       float64 // bounded [0,100]
}

// #endregion

// #region confidence-weights

// Confidence blends energy rank, sample frequency, and coverage. Each
// component is normalized to [0,1] and independently monotonic: lower
// energy, higher frequency, or more coverage never lowers confidence.
const (
	confEnergyWeight   = 0.5
	confFreqWeight     = 0.2
	confCoverageWeight = 0.3
)

// #endregion

// #region decode

// Decode reconstructs a hypothesis per distinct sampled bitstring,
// computes its energy via the Hamiltonian, and ranks the result:
// energy ascending, then sample count descending, then selected-pattern
// count ascending, then bitstring lexical order. The ordering is total,
// so decoding the same distribution twice yields the same sequence.
func Decode(dist backend.Distribution, idx *qubo.VarIndex, sensors []qubo.SensorReading, patterns []qubo.Pattern, h *ising.Hamiltonian) ([]Hypothesis, error) {
	counts := dist.Counts
	if len(counts) == 0 {
		// Nothing sampled: report the bare "no known explanation"
		// hypothesis rather than an empty result.
		zeros := make([]byte, idx.Len())
		for i := range zeros {
			zeros[i] = '0'
		}
		counts = map[string]int{string(zeros): 0}
	}

	affected := affectedSets(sensors, patterns)

	hyps := make([]Hypothesis, 0, len(counts))
	for bits, count := range counts {
		hyp, err := reconstruct(bits, count, dist.Shots, idx, sensors, patterns, affected, h)
		if err != nil {
			return nil, err
		}
		hyps = append(hyps, hyp)
	}

	scoreConfidence(hyps, len(sensors))

	sort.Slice(hyps, func(a, b int) bool {
		if hyps[a].Energy != hyps[b].Energy {
			return hyps[a].Energy < hyps[b].Energy
		}
		if hyps[a].Count != hyps[b].Count {
			return hyps[a].Count > hyps[b].Count
		}
		if len(hyps[a].SelectedPatterns) != len(hyps[b].SelectedPatterns) {
			return len(hyps[a].SelectedPatterns) < len(hyps[b].SelectedPatterns)
		}
		return hyps[a].Bits < hyps[b].Bits
	})

	return hyps, nil
}

// reconstruct decodes one bitstring into its hypothesis.
func reconstruct(bits string, count, shots int, idx *qubo.VarIndex, sensors []qubo.SensorReading, patterns []qubo.Pattern, affected []map[string]bool, h *ising.Hamiltonian) (Hypothesis, error) {
	if len(bits) != idx.Len() {
		return Hypothesis{}, fmt.Errorf("bitstring %q has %d bits, index has %d variables: %w", bits, len(bits), idx.Len(), ising.ErrIndexMismatch)
	}

	energy, err := h.EnergyOfBits(bits)
	if err != nil {
		return Hypothesis{}, err
	}

	hyp := Hypothesis{
		Bits:   bits,
		Energy: energy,
		Count:  count,
	}
	if shots > 0 {
		hyp.Frequency = float64(count) / float64(shots)
	}

	for i, s := range sensors {
		if bits[idx.SensorVar(i)] == '1' {
			hyp.RetainedSensors = append(hyp.RetainedSensors, s.SensorID)
		}
	}

	covered := make(map[string]bool)
	for j, p := range patterns {
		if bits[idx.PatternVar(j)] != '1' {
			continue
		}
		hyp.SelectedPatterns = append(hyp.SelectedPatterns, p.PatternID)
		for sid := range affected[j] {
			covered[sid] = true
		}
	}

	for _, s := range sensors {
		if covered[s.SensorID] {
			hyp.CoveredSensors = append(hyp.CoveredSensors, s.SensorID)
		} else {
			hyp.ResidualSensors = append(hyp.ResidualSensors, s.SensorID)
		}
	}

	return hyp, nil
}

// affectedSets intersects each pattern's affected sensors with the
// flagged sensors of this request.
func affectedSets(sensors []qubo.SensorReading, patterns []qubo.Pattern) []map[string]bool {
	flagged := make(map[string]bool, len(sensors))
	for _, s := range sensors {
		flagged[s.SensorID] = true
	}
	out := make([]map[string]bool, len(patterns))
	for j, p := range patterns {
		out[j] = make(map[string]bool)
		for _, sid := range p.AffectedSensors {
			if flagged[sid] {
				out[j][sid] = true
			}
		}
	}
	return out
}

// scoreConfidence fills in confidence for every hypothesis relative to
// the energy spread of the distribution.
func scoreConfidence(hyps []Hypothesis, sensorCount int) {
	best, worst := hyps[0].Energy, hyps[0].Energy
	for _, h := range hyps[1:] {
		if h.Energy < best {
			best = h.Energy
		}
		if h.Energy > worst {
			worst = h.Energy
		}
	}

	for i := range hyps {
		energyScore := 1.0
		if worst > best {
			energyScore = (worst - hyps[i].Energy) / (worst - best)
		}
		coverageScore := 1.0
		if sensorCount > 0 {
			coverageScore = float64(len(hyps[i].CoveredSensors)) / float64(sensorCount)
		}

		conf := 100 * (confEnergyWeight*energyScore + confFreqWeight*hyps[i].Frequency + confCoverageWeight*coverageScore)
		if conf < 0 {
			conf = 0
		}
		if conf > 100 {
			conf = 100
		}
		hyps[i].Confidence = conf
	}
}

// #endregion decode
