// Package types holds the shared data-model structs for Hardstop: the shapes
// that flow between the Store, the pipeline stages, and the artifact layer.
// These are plain structs with json tags and no behavior, matching the
// convention of the original pkg/types package.
package types

// RawItemStatus is the pipeline status of a captured upstream payload.
type RawItemStatus string

const (
	RawItemStatusNew        RawItemStatus = "NEW"
	RawItemStatusNormalized RawItemStatus = "NORMALIZED"
	RawItemStatusFailed     RawItemStatus = "FAILED"
)

// SourceTier is the configured tier of a feed source.
type SourceTier string

const (
	TierGlobal   SourceTier = "global"
	TierRegional SourceTier = "regional"
	TierLocal    SourceTier = "local"
	TierUnknown  SourceTier = "unknown"
)

// RawItem is the captured upstream payload before normalization.
//
// Uniqueness is by (SourceID, CanonicalID) when CanonicalID is present,
// else by (SourceID, ContentHash). Status only ever advances
// NEW -> NORMALIZED or NEW -> FAILED. A suppressed item stays NEW in
// Status but is excluded from ingest queries via SuppressionStatus.
type RawItem struct {
	RawID          string     `json:"raw_id"`
	SourceID       string     `json:"source_id"`
	Tier           SourceTier `json:"tier"`
	FetchedAtUTC   string     `json:"fetched_at_utc"`
	PublishedAtUTC string     `json:"published_at_utc,omitempty"`
	CanonicalID    string     `json:"canonical_id,omitempty"`
	URL            string     `json:"url,omitempty"`
	Title          string     `json:"title,omitempty"`
	PayloadJSON    []byte     `json:"payload_json"`
	ContentHash    string     `json:"content_hash"`
	Status         RawItemStatus `json:"status"`
	TrustTier      int        `json:"trust_tier"`

	SuppressionStatus   string `json:"suppression_status,omitempty"` // "" or "SUPPRESSED"
	PrimaryRuleID       string `json:"primary_rule_id,omitempty"`
	RuleIDsJSON         []byte `json:"rule_ids_json,omitempty"`
	SuppressedAtUTC     string `json:"suppressed_at_utc,omitempty"`
	SuppressionStage    string `json:"suppression_stage,omitempty"`
	SuppressionReason   string `json:"suppression_reason_code,omitempty"`
}

// RawItemCandidate is what a Source Adapter returns per item, before it is
// saved (and deduped) into the raw_items table.
type RawItemCandidate struct {
	CanonicalID    string         `json:"canonical_id,omitempty"`
	Title          string         `json:"title,omitempty"`
	URL            string         `json:"url,omitempty"`
	PublishedAtUTC string         `json:"published_at_utc,omitempty"`
	Payload        map[string]any `json:"payload"`
}

// AdapterFetchResult is what a Source Adapter returns for one fetch call.
type AdapterFetchResult struct {
	Items           []RawItemCandidate
	StatusCode      int
	BytesDownloaded int
}
