package qubo

import "fmt"

// #region exhaustive

// maxExhaustiveVars caps brute-force enumeration at a size where 2^n
// stays cheap.
const maxExhaustiveVars = 24

// Minimize enumerates all 2^n binary assignments and returns every
// assignment attaining the minimum energy, together with that energy.
// Used by the sweep tooling and by tests as the exact reference answer.
func Minimize(m *CostModel) ([][]int, float64, error) {
	n := m.Len()
	if n > maxExhaustiveVars {
		return nil, 0, fmt.Errorf("exhaustive search over %d variables exceeds cap %d: %w", n, maxExhaustiveVars, ErrInvalidInput)
	}

	terms := m.Terms()
	best := 0.0
	var winners [][]int

	assignment := make([]int, n)
	for z := uint64(0); z < 1<<uint(n); z++ {
		for i := 0; i < n; i++ {
			if z&(1<<uint(i)) != 0 {
				assignment[i] = 1
			} else {
				assignment[i] = 0
			}
		}
		var e float64
		for _, t := range terms {
			e += t.Coeff * float64(assignment[t.Pair.I]) * float64(assignment[t.Pair.J])
		}
		switch {
		case z == 0 || e < best:
			best = e
			winners = winners[:0]
			winners = append(winners, append([]int(nil), assignment...))
		case e == best:
			winners = append(winners, append([]int(nil), assignment...))
		}
	}

	return winners, best, nil
}

// #endregion exhaustive
