// Package library loads sensor anomalies and the failure-pattern
// library from disk. One library version is loaded per diagnosis.
package library

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"psq/internal/qubo"
)

// #region yaml-shapes

type patternFile struct {
	Patterns []patternEntry `yaml:"patterns"`
}

type patternEntry struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Affects     []string `yaml:"affects"`
	Weight      float64  `yaml:"weight"`
}

// #endregion

// #region load-patterns

// LoadPatterns reads a YAML pattern library and validates it.
func LoadPatterns(path string) ([]qubo.Pattern, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern library: %w", err)
	}

	var file patternFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse pattern library %s: %w", path, err)
	}

	patterns := make([]qubo.Pattern, 0, len(file.Patterns))
	for _, e := range file.Patterns {
		patterns = append(patterns, qubo.Pattern{
			PatternID:       e.ID,
			Description:     e.Description,
			AffectedSensors: e.Affects,
			Weight:          e.Weight,
		})
	}

	if err := ValidatePatterns(patterns); err != nil {
		return nil, fmt.Errorf("pattern library %s: %w", path, err)
	}
	return patterns, nil
}

// ValidatePatterns checks library consistency: unique non-empty IDs,
// non-empty sensor sets, non-negative weights.
func ValidatePatterns(patterns []qubo.Pattern) error {
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if p.PatternID == "" {
			return fmt.Errorf("pattern with empty id: %w", qubo.ErrInvalidInput)
		}
		if seen[p.PatternID] {
			return fmt.Errorf("duplicate pattern id %q: %w", p.PatternID, qubo.ErrInvalidInput)
		}
		seen[p.PatternID] = true
		if len(p.AffectedSensors) == 0 {
			return fmt.Errorf("pattern %q affects no sensors: %w", p.PatternID, qubo.ErrInvalidInput)
		}
		if p.Weight < 0 {
			return fmt.Errorf("pattern %q has negative weight %g: %w", p.PatternID, p.Weight, qubo.ErrInvalidInput)
		}
	}
	return nil
}

// #endregion load-patterns

// #region load-sensors

// LoadSensorsCSV reads flagged sensors from a CSV file with a
// sensor_id,severity header row.
func LoadSensorsCSV(path string) ([]qubo.SensorReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sensor file: %w", err)
	}
	defer f.Close()
	return ReadSensors(f)
}

// ReadSensors parses sensor_id,severity CSV rows from r.
func ReadSensors(r io.Reader) ([]qubo.SensorReading, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read sensor header: %w", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != "sensor_id" || strings.TrimSpace(header[1]) != "severity" {
		return nil, fmt.Errorf("sensor file needs a sensor_id,severity header, got %v: %w", header, qubo.ErrInvalidInput)
	}

	var sensors []qubo.SensorReading
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sensor row %d: %w", line, err)
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, fmt.Errorf("sensor row %d has empty id: %w", line, qubo.ErrInvalidInput)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate sensor id %q at row %d: %w", id, line, qubo.ErrInvalidInput)
		}
		seen[id] = true
		sev, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("sensor row %d severity: %w", line, err)
		}
		if sev < 0 {
			return nil, fmt.Errorf("sensor %q has negative severity %g: %w", id, sev, qubo.ErrInvalidInput)
		}
		sensors = append(sensors, qubo.SensorReading{SensorID: id, Severity: sev})
	}
	return sensors, nil
}

// #endregion load-sensors
