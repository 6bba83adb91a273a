package types

// SourceAdapterType selects which Source Adapter variant handles a source.
type SourceAdapterType string

const (
	AdapterRSS        SourceAdapterType = "rss"
	AdapterGovAlertJSON SourceAdapterType = "gov_alert_json"
	AdapterFEMA       SourceAdapterType = "fema_hybrid"
)

// TierDefaults holds the per-tier defaults (trust tier, classification
// floor, weighting bias, fetch cadence) a SourceConfig falls back to when it
// doesn't override them.
type TierDefaults struct {
	TrustTier           int     `yaml:"trust_tier"`
	ClassificationFloor int     `yaml:"classification_floor"`
	WeightingBias       int     `yaml:"weighting_bias"`
	PerHostMinSeconds   float64 `yaml:"per_host_min_seconds"`
}

// SourceConfig is one configured feed source.
type SourceConfig struct {
	SourceID   string            `yaml:"source_id"`
	Type       SourceAdapterType `yaml:"type"`
	Tier       SourceTier        `yaml:"tier"`
	URL        string            `yaml:"url"`
	Enabled    bool              `yaml:"enabled"`

	TrustTier           *int     `yaml:"trust_tier,omitempty"`
	ClassificationFloor *int     `yaml:"classification_floor,omitempty"`
	WeightingBias       *int     `yaml:"weighting_bias,omitempty"`
	PerHostMinSeconds   *float64 `yaml:"per_host_min_seconds,omitempty"`

	APIKeyRef string `yaml:"api_key_ref,omitempty"`
}

// SourcesConfig is the top-level sources.yaml document.
type SourcesConfig struct {
	TierDefaults map[SourceTier]TierDefaults `yaml:"tier_defaults"`
	Sources      []SourceConfig              `yaml:"sources"`
}

// SuppressionField is a field a suppression rule matches against. FieldAny
// tries title, then summary, then raw_text, then url, in that order, and
// stops at the first non-empty value.
type SuppressionField string

const (
	FieldTitle     SuppressionField = "title"
	FieldSummary   SuppressionField = "summary"
	FieldRawText   SuppressionField = "raw_text"
	FieldURL       SuppressionField = "url"
	FieldEventType SuppressionField = "event_type"
	FieldSourceID  SuppressionField = "source_id"
	FieldTier      SuppressionField = "tier"
	FieldAny       SuppressionField = "any"
)

// SuppressionMatchType selects how SuppressionRule.Pattern is applied.
type SuppressionMatchType string

const (
	MatchKeyword SuppressionMatchType = "keyword"
	MatchExact   SuppressionMatchType = "exact"
	MatchRegex   SuppressionMatchType = "regex"
)

// SuppressionRule is one global or per-source suppression rule. Rules are
// evaluated global-first, then per-source, in file order; the first match
// is the primary match recorded on the suppressed item/event. RuleSourceID
// is the rule's own scoping field ("" == applies globally), distinct from
// FieldSourceID, which lets a rule's *pattern* match against an item's
// source_id.
type SuppressionRule struct {
	RuleID        string               `yaml:"rule_id"`
	Enabled       bool                 `yaml:"enabled"`
	RuleSourceID  string               `yaml:"source_id,omitempty"` // "" == global
	Field         SuppressionField     `yaml:"field"`
	Match         SuppressionMatchType `yaml:"match"`
	Pattern       string               `yaml:"pattern"`
	CaseSensitive bool                 `yaml:"case_sensitive,omitempty"`
	Note          string               `yaml:"note,omitempty"`
	Reason        string               `yaml:"reason_code,omitempty"`
}

// SuppressionConfig is the top-level suppression.yaml document.
type SuppressionConfig struct {
	Rules []SuppressionRule `yaml:"rules"`
}

// RuntimeConfig is the top-level runtime.yaml document: everything that
// isn't per-source or a suppression rule.
type RuntimeConfig struct {
	OperatorID   string `yaml:"operator_id"`
	Mode         RunMode `yaml:"mode"` // strict | best-effort
	RNGSeed      int64  `yaml:"rng_seed"`

	AlertMergeWindowHours int `yaml:"alert_merge_window_hours"`
	ShipmentLinkMax       int `yaml:"shipment_link_max"`

	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Output   OutputConfig   `yaml:"output"`
}

// DatabaseConfig is the pgx connection config block.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxConns        int32  `yaml:"max_conns"`
	ConnectTimeoutS int    `yaml:"connect_timeout_seconds"`
}

// CacheConfig is the optional Redis-backed health-score cache config block.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

// OutputConfig controls where artifacts (RunRecords, IncidentEvidence,
// daily briefs) are written, and replay-mode canonicalization.
type OutputConfig struct {
	Dir              string `yaml:"dir"`
	CanonicalizeTime string `yaml:"canonicalize_time,omitempty"` // fixed RFC3339 value, replay mode only; takes priority over Precision
	Precision        *int   `yaml:"canonicalize_time_precision,omitempty"` // truncate timestamps to N subsecond digits (0-6); ignored outside that range
}
