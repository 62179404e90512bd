package main

import (
	"flag"
	"fmt"
	"os"

	"psq/internal/config"
	"psq/internal/library"
	"psq/internal/qubo"
)

// #region main

// sweep runs a brute-force β sweep over one instance: for each β it
// enumerates all assignments of the cost model and reports the minimum
// energy and the smallest selected-pattern count among the minimizers.
// Useful for checking parsimony pressure before trusting a solve.
func main() {
	sensorsPath := flag.String("sensors", "", "path to sensor anomalies CSV")
	patternsPath := flag.String("patterns", "", "path to pattern library YAML")
	betaMin := flag.Float64("beta-min", 0.0, "sweep start")
	betaMax := flag.Float64("beta-max", 5.0, "sweep end")
	steps := flag.Int("steps", 10, "number of sweep points")
	flag.Parse()

	if *sensorsPath == "" || *patternsPath == "" || *steps < 1 {
		fmt.Fprintln(os.Stderr, "usage: sweep --sensors sensors.csv --patterns patterns.yaml [--beta-min f] [--beta-max f] [--steps n]")
		os.Exit(2)
	}

	cfg := config.Load()

	sensors, err := library.LoadSensorsCSV(*sensorsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load sensors: %v\n", err)
		os.Exit(1)
	}
	patterns, err := library.LoadPatterns(*patternsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load patterns: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%10s  %12s  %s\n", "BETA", "MIN ENERGY", "PATTERNS")
	for i := 0; i < *steps; i++ {
		beta := *betaMin
		if *steps > 1 {
			beta += (*betaMax - *betaMin) * float64(i) / float64(*steps-1)
		}

		model, idx, err := qubo.Build(sensors, patterns, cfg.Alpha, beta, cfg.Gamma)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build model at beta=%.3f: %v\n", beta, err)
			os.Exit(1)
		}
		winners, energy, err := qubo.Minimize(model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "enumerate at beta=%.3f: %v\n", beta, err)
			os.Exit(1)
		}

		fmt.Printf("%10.3f  %12.4f  %d\n", beta, energy, minPatternCount(winners, idx))
	}
}

// #endregion main

// #region helpers

// minPatternCount returns the smallest selected-pattern count among the
// minimum-energy assignments.
func minPatternCount(winners [][]int, idx *qubo.VarIndex) int {
	best := -1
	for _, w := range winners {
		count := 0
		for j := 0; j < idx.PatternCount; j++ {
			count += w[idx.PatternVar(j)]
		}
		if best == -1 || count < best {
			best = count
		}
	}
	return best
}

// #endregion helpers
