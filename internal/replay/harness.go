// Package replay runs recorded diagnosis cases against the exact local
// simulator and checks their outcomes against pinned expectations.
// Fixtures stand in for the hosted backend in regression runs: same
// inputs, same configuration, same ranked hypotheses every time.
package replay

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"psq/internal/backend"
	"psq/internal/config"
	"psq/internal/decode"
	"psq/internal/diagnose"
)

// energyTolerance absorbs float noise when comparing pinned energies.
const energyTolerance = 1e-6

// #region types

// CaseResult captures the outcome of replaying one fixture case.
type CaseResult struct {
	AnomalyID string
	Passed    bool
	Failures  []string // one line per violated expectation

	Top      *decode.Hypothesis // ranked first, nil when the case errored
	Coverage float64
	Err      error
}

// Summary aggregates a replay run.
type Summary struct {
	Description string
	TotalCases  int
	Passed      int
	Failed      int
	Errored     int
	Duration    time.Duration
}

// Ok reports whether every case passed.
func (s Summary) Ok() bool { return s.Failed == 0 && s.Errored == 0 }

// #endregion types

// #region replay

// Replay runs every fixture case through the full pipeline and compares
// the top-ranked hypothesis against the case's expectations.
func Replay(ctx context.Context, f *Fixture) ([]CaseResult, Summary) {
	start := time.Now()

	cfg := replayConfig(f.Config)
	results := make([]CaseResult, 0, len(f.Cases))

	for _, c := range f.Cases {
		results = append(results, replayCase(ctx, cfg, c))
	}

	return results, summarize(f.Description, results, time.Since(start))
}

func replayCase(ctx context.Context, cfg config.Config, c FixtureCase) CaseResult {
	res := CaseResult{AnomalyID: c.AnomalyID}

	d, err := diagnose.New(cfg, backend.NewStatevector(), nil)
	if err != nil {
		res.Err = err
		return res
	}

	out, err := d.Diagnose(ctx, diagnose.Request{
		AnomalyID: c.AnomalyID,
		Sensors:   c.ToSensors(),
		Patterns:  c.ToPatterns(),
	})
	if err != nil {
		res.Err = err
		return res
	}
	if len(out.Hypotheses) == 0 {
		res.Err = fmt.Errorf("case %s produced no hypotheses", c.AnomalyID)
		return res
	}

	top := out.Hypotheses[0]
	res.Top = &top
	res.Coverage = out.Metrics.CoverageRate
	res.Failures = checkExpectations(c.Expected, top, out.Metrics.CoverageRate)
	res.Passed = len(res.Failures) == 0
	return res
}

// checkExpectations compares one case's top hypothesis against its
// pinned expectations and returns a line per violation.
func checkExpectations(want FixtureExpected, top decode.Hypothesis, coverage float64) []string {
	var failures []string

	if want.TopPatterns != nil && !sameSet(want.TopPatterns, top.SelectedPatterns) {
		failures = append(failures,
			fmt.Sprintf("top patterns %v, want %v", top.SelectedPatterns, want.TopPatterns))
	}
	if want.Residuals != nil && !sameSet(want.Residuals, top.ResidualSensors) {
		failures = append(failures,
			fmt.Sprintf("residuals %v, want %v", top.ResidualSensors, want.Residuals))
	}
	if want.BestEnergy != nil && math.Abs(top.Energy-*want.BestEnergy) > energyTolerance {
		failures = append(failures,
			fmt.Sprintf("top energy %g, want %g", top.Energy, *want.BestEnergy))
	}
	if want.MinCoverageRate != nil && coverage < *want.MinCoverageRate {
		failures = append(failures,
			fmt.Sprintf("coverage %.1f%% below floor %.1f%%", coverage, *want.MinCoverageRate))
	}

	return failures
}

// replayConfig builds the service configuration for a fixture, filling
// unset budgets from the service defaults.
func replayConfig(fc FixtureConfig) config.Config {
	cfg := config.Load()
	cfg.BackendType = "statevector"

	if fc.Alpha > 0 {
		cfg.Alpha = fc.Alpha
	}
	if fc.Beta > 0 {
		cfg.Beta = fc.Beta
	}
	if fc.Gamma > 0 {
		cfg.Gamma = fc.Gamma
	}
	if fc.Depth > 0 {
		cfg.Depth = fc.Depth
	}
	if fc.Shots > 0 {
		cfg.Shots = fc.Shots
	}
	if fc.MaxIterations > 0 {
		cfg.MaxIterations = fc.MaxIterations
	}
	return cfg
}

func summarize(description string, results []CaseResult, d time.Duration) Summary {
	s := Summary{
		Description: description,
		TotalCases:  len(results),
		Duration:    d,
	}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Errored++
		case r.Passed:
			s.Passed++
		default:
			s.Failed++
		}
	}
	return s
}

// sameSet compares two ID lists ignoring order.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// #endregion replay
