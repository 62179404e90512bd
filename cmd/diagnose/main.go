package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"psq/internal/audit"
	"psq/internal/config"
	"psq/internal/diagnose"
	"psq/internal/library"
)

// #region main

func main() {
	sensorsPath := flag.String("sensors", "", "path to sensor anomalies CSV (sensor_id,severity)")
	patternsPath := flag.String("patterns", "", "path to pattern library YAML")
	anomalyID := flag.String("anomaly", "adhoc", "anomaly window identifier")
	plantID := flag.String("plant", "", "plant identifier")
	jsonOut := flag.Bool("json", false, "output full result as JSON")
	noAudit := flag.Bool("no-audit", false, "skip recording the run to the audit store")
	flag.Parse()

	if *sensorsPath == "" || *patternsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: diagnose --sensors sensors.csv --patterns patterns.yaml [--anomaly id] [--plant id] [--json]")
		os.Exit(2)
	}

	cfg := config.Load()

	sensors, err := library.LoadSensorsCSV(*sensorsPath)
	if err != nil {
		log.Fatalf("load sensors: %v", err)
	}
	patterns, err := library.LoadPatterns(*patternsPath)
	if err != nil {
		log.Fatalf("load patterns: %v", err)
	}

	diag, err := diagnose.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("wire backends: %v", err)
	}

	result, err := diag.Diagnose(context.Background(), diagnose.Request{
		AnomalyID: *anomalyID,
		PlantID:   *plantID,
		Sensors:   sensors,
		Patterns:  patterns,
	})
	if err != nil {
		log.Fatalf("diagnose: %v", err)
	}

	if !*noAudit {
		recordRun(cfg.DBPath, result)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encode result: %v", err)
		}
		return
	}

	printResult(result)
}

// #endregion main

// #region output

func printResult(result *diagnose.Result) {
	fmt.Printf("Run %s — anomaly %s\n", result.RunID, result.AnomalyID)
	fmt.Printf("Backend %s (%s)", result.Solve.Backend, result.Solve.BackendKind)
	if result.Solve.Fallback {
		fmt.Printf(" [fallback from %s]", result.Solve.FallbackFrom)
	}
	if result.Solve.Partial {
		fmt.Printf(" [partial]")
	}
	fmt.Printf(" — %d iterations, best energy %.4f\n\n", result.Solve.Iterations, result.Solve.BestEnergy)

	for i, h := range result.Hypotheses {
		label := strings.Join(h.SelectedPatterns, ", ")
		if label == "" {
			label = "(no known explanation)"
		}
		fmt.Printf("%2d. %-40s energy=%.4f freq=%.3f conf=%.1f\n", i+1, label, h.Energy, h.Frequency, h.Confidence)
		if len(h.ResidualSensors) > 0 {
			fmt.Printf("    residual: %s\n", strings.Join(h.ResidualSensors, ", "))
		}
	}

	fmt.Printf("\ncoverage %.1f%%, avg patterns %.2f", result.Metrics.CoverageRate, result.Metrics.AveragePatternCount)
	if len(result.Metrics.ResidualAnomalies) > 0 {
		fmt.Printf(", unexplained: %s", strings.Join(result.Metrics.ResidualAnomalies, ", "))
	}
	fmt.Println()
}

// #endregion output

// #region audit

// recordRun persists the run. Audit failures are logged, never fatal.
func recordRun(dbPath string, result *diagnose.Result) {
	store, err := audit.NewStore(dbPath)
	if err != nil {
		log.Printf("[AUDIT] open store: %v", err)
		return
	}
	defer store.Close()

	resultJSON, _ := json.Marshal(result)
	rec := audit.RunRecord{
		RunID:           result.RunID,
		AnomalyID:       result.AnomalyID,
		PlantID:         result.PlantID,
		Backend:         result.Solve.Backend,
		BackendKind:     result.Solve.BackendKind,
		Fallback:        result.Solve.Fallback,
		Partial:         result.Solve.Partial,
		Depth:           result.Solve.Depth,
		Shots:           result.Solve.Shots,
		BestEnergy:      result.Solve.BestEnergy,
		WorstEnergy:     result.Solve.WorstEnergy,
		HypothesisCount: len(result.Hypotheses),
		CoverageRate:    result.Metrics.CoverageRate,
		DurationMS:      result.Solve.Duration.Milliseconds(),
		ResultJSON:      string(resultJSON),
	}
	if err := store.RecordRun(rec); err != nil {
		log.Printf("[AUDIT] record run: %v", err)
		return
	}

	event := "solved"
	if result.Solve.Fallback {
		event = "solved_degraded"
	}
	if err := store.LogEvent(audit.ProvenanceEntry{
		RunID:  result.RunID,
		Event:  event,
		Detail: fmt.Sprintf("backend=%s state=%s", result.Solve.Backend, result.Solve.State),
	}); err != nil {
		log.Printf("[AUDIT] log event: %v", err)
	}
}

// #endregion audit
