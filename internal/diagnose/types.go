package diagnose

import (
	"psq/internal/decode"
	"psq/internal/qubo"
	"psq/internal/solve"
)

// #region request

// Request is the validated diagnosis input. The transport layer owns
// shape validation; semantic contract violations (duplicates, negative
// severity, non-positive budgets) surface here as ErrInvalidInput.
type Request struct {
	AnomalyID string
	PlantID   string
	Sensors   []qubo.SensorReading
	Patterns  []qubo.Pattern

	// Hyperparameter overrides; nil means use the configured default.
	Alpha *float64
	Beta  *float64
	Gamma *float64

	// Solver overrides; zero means use the configured default.
	Depth int
	Shots int
}

// #endregion

// #region result

// Result is the final deliverable: ranked hypotheses plus execution
// metadata and quality indicators. Serialization is the caller's concern.
type Result struct {
	RunID      string
	AnomalyID  string
	PlantID    string
	Hypotheses []decode.Hypothesis
	Metrics    decode.QualityMetrics
	Solve      solve.Metadata
	CacheHit   bool
}

// #endregion
