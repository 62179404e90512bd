package qubo

import "errors"

// #region errors

// ErrInvalidInput marks semantic contract violations in request data
// (duplicate identifiers, negative severities, bad hyperparameters).
// Never retried; always surfaced to the caller.
var ErrInvalidInput = errors.New("invalid input")

// #endregion

// #region sensor-reading

// SensorReading is a single anomalous sensor flagged upstream.
type SensorReading struct {
	SensorID string
	Severity float64 // abnormality magnitude, must be >= 0
}

// #endregion

// #region pattern

// Pattern encodes a known failure mode and the sensors it affects.
type Pattern struct {
	PatternID       string
	Description     string
	AffectedSensors []string
	Weight          float64 // optional topology weight, 0 means default (1.0)
}

// #endregion

// #region var-index

// VarIndex is the stable mapping from decision-variable names to
// zero-based indices. Sensors first (retain variables z_<id>), then
// patterns (select variables y_<id>), both in input order. Every
// downstream stage addresses matrices and bitstrings through it.
type VarIndex struct {
	Names        []string       // index → variable name
	Index        map[string]int // variable name → index
	SensorCount  int
	PatternCount int
}

// Len returns the total variable count.
func (v *VarIndex) Len() int {
	return len(v.Names)
}

// SensorVar returns the variable index for the i-th input sensor.
func (v *VarIndex) SensorVar(i int) int {
	return i
}

// PatternVar returns the variable index for the j-th input pattern.
func (v *VarIndex) PatternVar(j int) int {
	return v.SensorCount + j
}

// #endregion

// #region pair

// Pair is an unordered variable-index pair in canonical form (I <= J).
// A self-pair (I == J) holds a linear coefficient.
type Pair struct {
	I, J int
}

// canonical orders the pair so I <= J.
func canonical(i, j int) Pair {
	if i > j {
		i, j = j, i
	}
	return Pair{I: i, J: j}
}

// #endregion

// #region term

// Term is one coefficient of the cost model in canonical pair form.
type Term struct {
	Pair  Pair
	Coeff float64
}

// #endregion
