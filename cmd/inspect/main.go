package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"psq/internal/audit"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the audit database")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show a single run in detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/psq_audit.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	store, err := audit.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *runID != "" {
		err = runDetailMode(store, *runID, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(store *audit.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	fmt.Printf("%-36s  %-16s  %-18s  %4s  %8s  %8s  %s\n",
		"RUN", "ANOMALY", "BACKEND", "HYPS", "ENERGY", "COV%", "CREATED")
	for _, r := range runs {
		backend := r.Backend
		if r.Fallback {
			backend += "*"
		}
		fmt.Printf("%-36s  %-16s  %-18s  %4d  %8.3f  %8.1f  %s\n",
			r.RunID, r.AnomalyID, backend, r.HypothesisCount, r.BestEnergy,
			r.CoverageRate, r.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(store *audit.Store, runID string, jsonOut bool) error {
	rec, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	events, err := store.ListEvents(runID)
	if err != nil {
		return err
	}

	if jsonOut {
		out := struct {
			Run    audit.RunRecord         `json:"run"`
			Events []audit.ProvenanceEntry `json:"events"`
		}{Run: rec, Events: events}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("run        %s\n", rec.RunID)
	fmt.Printf("anomaly    %s", rec.AnomalyID)
	if rec.PlantID != "" {
		fmt.Printf(" (plant %s)", rec.PlantID)
	}
	fmt.Println()
	fmt.Printf("backend    %s (%s) fallback=%v partial=%v\n", rec.Backend, rec.BackendKind, rec.Fallback, rec.Partial)
	fmt.Printf("solve      depth=%d shots=%d best=%.4f worst=%.4f %dms\n",
		rec.Depth, rec.Shots, rec.BestEnergy, rec.WorstEnergy, rec.DurationMS)
	fmt.Printf("quality    %d hypotheses, coverage %.1f%%\n", rec.HypothesisCount, rec.CoverageRate)
	fmt.Printf("created    %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05Z"))

	if len(events) > 0 {
		fmt.Println("\nprovenance:")
		for _, e := range events {
			fmt.Printf("  %s  %-16s %s\n", e.CreatedAt.Format("15:04:05"), e.Event, e.Detail)
		}
	}
	return nil
}

// #endregion detail-mode
