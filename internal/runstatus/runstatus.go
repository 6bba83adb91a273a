// Package runstatus evaluates a run's overall health into an exit code
// (0 healthy, 1 warning, 2 broken) plus a short, priority-ordered list of
// human-readable messages.
package runstatus

import (
	"encoding/json"
	"fmt"

	"github.com/hardstop/hardstop/internal/fetcher"
	"github.com/hardstop/hardstop/pkg/types"
)

// ExitCode is the evaluator's overall verdict.
type ExitCode int

const (
	ExitHealthy ExitCode = 0
	ExitWarning ExitCode = 1
	ExitBroken  ExitCode = 2
)

// DoctorFindings is the subset of a doctor/preflight check the evaluator
// consumes. Any of these may be the zero value when unavailable.
type DoctorFindings struct {
	ConfigError          string
	SchemaDrift          string
	EnabledSourcesCount  int
	HealthBudgetBlockers []string // BLOCKED sources
	HealthBudgetWarnings []string // WATCH sources
	SuppressionWarnings  []string
}

// Input bundles everything the evaluator needs. IngestRuns being nil
// (vs. an empty, non-nil slice) distinguishes "ingest was never run" from
// "ingest ran over zero sources" — mirrors the Python
// `ingest_runs_provided is not None` check.
type Input struct {
	FetchResults        []fetcher.FetchResult
	IngestRuns          []types.SourceRun
	Doctor              DoctorFindings
	StaleSources        []string
	StaleThresholdHours int
	Strict              bool
}

// Evaluate runs the priority-ordered BROKEN checks, then the OR-combined
// WARNING checks, then defaults to HEALTHY.
func Evaluate(in Input) (ExitCode, []string) {
	if in.Doctor.ConfigError != "" {
		return ExitBroken, []string{"Config error: " + in.Doctor.ConfigError}
	}
	if in.Doctor.SchemaDrift != "" {
		return ExitBroken, []string{"Schema drift: " + in.Doctor.SchemaDrift}
	}
	if in.Doctor.EnabledSourcesCount == 0 {
		return ExitBroken, []string{"No enabled sources configured"}
	}
	if len(in.Doctor.HealthBudgetBlockers) > 0 {
		return ExitBroken, []string{fmtCount(len(in.Doctor.HealthBudgetBlockers), "source(s) exhausted failure budget")}
	}

	var successfulFetches, failedFetches []fetcher.FetchResult
	for _, r := range in.FetchResults {
		switch r.Status {
		case types.RunStatusSuccess:
			successfulFetches = append(successfulFetches, r)
		case types.RunStatusFailure:
			failedFetches = append(failedFetches, r)
		}
	}
	if len(in.FetchResults) > 0 && len(successfulFetches) == 0 && len(failedFetches) > 0 {
		return ExitBroken, []string{fmt.Sprintf("All %d sources failed to fetch", len(failedFetches))}
	}

	ingestDataAvailable := in.IngestRuns != nil
	if len(in.FetchResults) > 0 && ingestDataAvailable && len(in.IngestRuns) == 0 {
		hasItemsToIngest := false
		for _, r := range successfulFetches {
			if len(r.Items) > 0 {
				hasItemsToIngest = true
				break
			}
		}
		if hasItemsToIngest {
			return ExitBroken, []string{"Ingest crashed before processing any source"}
		}
	}

	var warnings []string
	if len(failedFetches) > 0 {
		warnings = append(warnings, fmtCount(len(failedFetches), "source(s) failed to fetch"))
	}
	if len(in.StaleSources) > 0 {
		warnings = append(warnings, fmtCount(len(in.StaleSources), "source(s) stale (no success recently)"))
	}
	if len(in.IngestRuns) > 0 {
		failedIngests := 0
		errorRuns := 0
		errorTotal := 0
		for _, r := range in.IngestRuns {
			if r.Status == types.RunStatusFailure {
				failedIngests++
			}
			if n := ingestErrorCount(r); n > 0 {
				errorRuns++
				errorTotal += n
			}
		}
		if failedIngests > 0 {
			warnings = append(warnings, fmtCount(failedIngests, "source(s) failed during ingest"))
		}
		if errorRuns > 0 {
			warnings = append(warnings, fmtCountTotal(errorRuns, "source(s) had ingest errors", errorTotal))
		}
	}
	for _, w := range in.Doctor.SuppressionWarnings {
		warnings = append(warnings, "Suppression: "+w)
	}
	if len(in.Doctor.HealthBudgetWarnings) > 0 {
		warnings = append(warnings, fmtCount(len(in.Doctor.HealthBudgetWarnings), "source(s) near failure budget"))
	}

	if len(warnings) > 0 {
		if len(warnings) > 3 {
			warnings = warnings[:3]
		}
		code := ExitWarning
		if in.Strict {
			code = ExitBroken
		}
		return code, warnings
	}

	if len(in.FetchResults) > 0 {
		if len(successfulFetches) > 0 {
			return ExitHealthy, []string{"All systems healthy"}
		}
		return ExitWarning, []string{"No successful fetches"}
	}
	return ExitWarning, []string{"No fetch results available"}
}

func ingestErrorCount(r types.SourceRun) int {
	if len(r.DiagnosticsJSON) == 0 {
		return 0
	}
	var diagnostics struct {
		Errors int `json:"errors"`
	}
	if err := json.Unmarshal(r.DiagnosticsJSON, &diagnostics); err != nil {
		return 0
	}
	return diagnostics.Errors
}

func fmtCount(n int, suffix string) string {
	return fmt.Sprintf("%d %s", n, suffix)
}

func fmtCountTotal(n int, suffix string, total int) string {
	return fmt.Sprintf("%d %s (%d total)", n, suffix, total)
}
