package decode

// #region quality-metrics

// QualityMetrics summarizes how well a ranked hypothesis set explains
// the flagged sensors.
type QualityMetrics struct {
	CoverageRate        float64  // percent of flagged sensors the top hypothesis covers
	AveragePatternCount float64  // mean selected-pattern count across hypotheses
	ResidualAnomalies   []string // top hypothesis's unexplained sensors
}

// Metrics computes quality indicators over a ranked hypothesis sequence.
func Metrics(hyps []Hypothesis, sensorCount int) QualityMetrics {
	var m QualityMetrics
	if len(hyps) == 0 {
		return m
	}

	top := hyps[0]
	if sensorCount > 0 {
		m.CoverageRate = 100 * float64(len(top.CoveredSensors)) / float64(sensorCount)
	} else {
		m.CoverageRate = 100
	}
	m.ResidualAnomalies = append(m.ResidualAnomalies, top.ResidualSensors...)

	var total int
	for _, h := range hyps {
		total += len(h.SelectedPatterns)
	}
	m.AveragePatternCount = float64(total) / float64(len(hyps))

	return m
}

// #endregion
