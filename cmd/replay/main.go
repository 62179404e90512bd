// Command replay runs recorded diagnosis fixtures against the exact
// local simulator and reports drift from their pinned expectations.
// Exit code 0 means every case passed, 1 means drift, 2 means a
// fixture could not be loaded or executed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"psq/internal/replay"
)

// #region main

func main() {
	jsonOut := flag.Bool("json", false, "print case results as JSON")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: replay [--json] fixture.json [fixture.json ...]")
		os.Exit(2)
	}

	exitCode := 0
	for _, path := range paths {
		code := runFixture(path, *jsonOut)
		if code > exitCode {
			exitCode = code
		}
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixture(path string, jsonOut bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	results, summary := replay.Replay(context.Background(), f)

	if jsonOut {
		out := struct {
			Summary replay.Summary      `json:"summary"`
			Cases   []replay.CaseResult `json:"cases"`
		}{summary, results}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "encode results: %v\n", err)
			return 2
		}
	} else {
		printResults(path, results, summary)
	}

	switch {
	case summary.Errored > 0:
		return 2
	case summary.Failed > 0:
		return 1
	default:
		return 0
	}
}

func printResults(path string, results []replay.CaseResult, summary replay.Summary) {
	fmt.Printf("%s: %s\n", path, summary.Description)
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Printf("  ERROR %-20s %v\n", r.AnomalyID, r.Err)
		case r.Passed:
			fmt.Printf("  PASS  %-20s coverage %.1f%%\n", r.AnomalyID, r.Coverage)
		default:
			fmt.Printf("  FAIL  %-20s\n", r.AnomalyID)
			for _, line := range r.Failures {
				fmt.Printf("        %s\n", line)
			}
		}
	}
	fmt.Printf("  %d passed, %d failed, %d errored in %s\n",
		summary.Passed, summary.Failed, summary.Errored, summary.Duration.Round(time.Millisecond))
}

// #endregion fixture-mode
