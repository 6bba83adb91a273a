package types

// RunMode gates whether nondeterministic inputs are allowed to appear in a
// RunRecord's BestEffort block.
type RunMode string

const (
	ModeStrict     RunMode = "strict"
	ModeBestEffort RunMode = "best-effort"
)

// ArtifactRef is a pointer to an emitted artifact (RunRecord input or
// output), carried by RunRecord.InputRefs / OutputRefs.
type ArtifactRef struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Hash   string `json:"hash"`
	Schema string `json:"schema,omitempty"`
	Bytes  int    `json:"bytes,omitempty"`
}

// Diagnostic is a small machine-readable note attached to a RunRecord
// alongside the plain-string Warnings/Errors lists.
type Diagnostic struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // "info", "warning", "error"
}

// BestEffortMetadata captures nondeterministic inputs (jitter seed, the set
// of adapter versions exercised) for a RunRecord emitted in best-effort mode.
// It is always empty/omitted under strict mode.
type BestEffortMetadata struct {
	Seed          int64  `json:"seed"`
	InputsVersion string `json:"inputs_version"`
	Notes         string `json:"notes,omitempty"`
}

// RunCost is a best-effort process resource snapshot (RSS/CPU/FDs),
// attached when the gopsutil-backed sampler succeeds.
type RunCost struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	OpenFDs    int32   `json:"open_fds"`
}

// RunRecord is the operator-level run envelope, emitted per top-level
// fetch, ingest or run operation in a finally-style path so failures still
// produce a record.
type RunRecord struct {
	RunID      string  `json:"run_id"`
	OperatorID string  `json:"operator_id"`
	Mode       RunMode `json:"mode"`
	StartedAt  string  `json:"started_at"`
	EndedAt    string  `json:"ended_at"`

	ConfigHash string `json:"config_hash"`

	InputRefs  []ArtifactRef `json:"input_refs"`
	OutputRefs []ArtifactRef `json:"output_refs"`

	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	BestEffort *BestEffortMetadata `json:"best_effort,omitempty"`
	Cost       *RunCost            `json:"cost,omitempty"`

	// ArtifactHash is populated by RunRecordWriter.Emit after hashing and
	// never set by callers directly; it is excluded from its own hash
	// computation.
	ArtifactHash string `json:"artifact_hash,omitempty"`
}
