package types

// RunPhase is FETCH or INGEST — the two-phase per-source execution model.
type RunPhase string

const (
	PhaseFetch  RunPhase = "FETCH"
	PhaseIngest RunPhase = "INGEST"
)

// RunStatus is the outcome of one SourceRun row.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailure RunStatus = "FAILURE"
)

// SourceRun is the two-phase per-source execution row.
//
// Contract: for every processed source in every INGEST phase there is
// exactly one row per (SourceID, RunGroupID, INGEST); FETCH rows are
// created once per source attempt.
type SourceRun struct {
	RunID       string   `json:"run_id"`
	RunGroupID  string   `json:"run_group_id"`
	SourceID    string   `json:"source_id"`
	Phase       RunPhase `json:"phase"`
	RunAtUTC    string   `json:"run_at_utc"`
	Status      RunStatus `json:"status"`
	StatusCode  *int     `json:"status_code,omitempty"`
	Error       string   `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`

	// FETCH counters
	ItemsFetched    int `json:"items_fetched"`
	ItemsNew        int `json:"items_new"`
	BytesDownloaded int `json:"bytes_downloaded"`

	// INGEST counters
	ItemsProcessed      int `json:"items_processed"`
	ItemsSuppressed     int `json:"items_suppressed"`
	ItemsEventsCreated  int `json:"items_events_created"`
	ItemsAlertsTouched  int `json:"items_alerts_touched"`

	DiagnosticsJSON []byte `json:"diagnostics_json,omitempty"`
}

// TruncateError caps an error string at the spec's 1000-char limit for
// storage in SourceRun.Error.
func TruncateError(err string) string {
	const maxLen = 1000
	if len(err) <= maxLen {
		return err
	}
	return err[:maxLen]
}
