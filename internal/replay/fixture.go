package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"psq/internal/qubo"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a regression fixture: a
// shared solver configuration plus a list of recorded diagnosis cases
// with their expected outcomes.
type Fixture struct {
	Description string        `json:"description"`
	Config      FixtureConfig `json:"config"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureConfig pins the hyperparameters and solver budgets for every
// case in the fixture. Replays always run on the exact local simulator,
// so a fixed config yields a fixed outcome.
type FixtureConfig struct {
	Alpha         float64 `json:"alpha"`
	Beta          float64 `json:"beta"`
	Gamma         float64 `json:"gamma"`
	Depth         int     `json:"depth"`
	Shots         int     `json:"shots"`
	MaxIterations int     `json:"max_iterations"`
}

// FixtureCase is one recorded diagnosis input with its expectations.
type FixtureCase struct {
	AnomalyID string           `json:"anomaly_id"`
	Sensors   []FixtureSensor  `json:"sensors"`
	Patterns  []FixturePattern `json:"patterns"`
	Expected  FixtureExpected  `json:"expected"`
}

// FixtureSensor mirrors qubo.SensorReading with JSON tags.
type FixtureSensor struct {
	ID       string  `json:"id"`
	Severity float64 `json:"severity"`
}

// FixturePattern mirrors qubo.Pattern with JSON tags.
type FixturePattern struct {
	ID      string   `json:"id"`
	Affects []string `json:"affects"`
	Weight  float64  `json:"weight"`
}

// FixtureExpected captures the assertions for one case. Nil or empty
// fields are not checked.
type FixtureExpected struct {
	TopPatterns     []string `json:"top_patterns"`      // exact selected set of the top hypothesis
	Residuals       []string `json:"residuals"`         // exact residual sensors of the top hypothesis
	BestEnergy      *float64 `json:"best_energy"`       // top hypothesis energy, within tolerance
	MinCoverageRate *float64 `json:"min_coverage_rate"` // lower bound on the coverage percentage
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("fixture %s has no cases", path)
	}
	return &f, nil
}

// ToSensors converts fixture sensors to their domain type.
func (c *FixtureCase) ToSensors() []qubo.SensorReading {
	out := make([]qubo.SensorReading, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		out = append(out, qubo.SensorReading{SensorID: s.ID, Severity: s.Severity})
	}
	return out
}

// ToPatterns converts fixture patterns to their domain type.
func (c *FixtureCase) ToPatterns() []qubo.Pattern {
	out := make([]qubo.Pattern, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		out = append(out, qubo.Pattern{PatternID: p.ID, AffectedSensors: p.Affects, Weight: p.Weight})
	}
	return out
}

// #endregion fixture-loader
