// Package ops wires the Fetch, Ingest, Brief, Doctor, and Replay phases
// into the plain Go functions an external cmd/ entry point calls. Fetch,
// IngestExternal and Run are wrapped in the same emit-a-RunRecord-in-a-defer
// shape so a panic or mid-run error still produces an audit artifact
// instead of a silent crash; Brief, Doctor, ReplayIncident and the sources
// helpers emit no RunRecord.
package ops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hardstop/hardstop/internal/adapters"
	"github.com/hardstop/hardstop/internal/artifact"
	"github.com/hardstop/hardstop/internal/brief"
	"github.com/hardstop/hardstop/internal/dedupe"
	"github.com/hardstop/hardstop/internal/fetcher"
	"github.com/hardstop/hardstop/internal/health"
	"github.com/hardstop/hardstop/internal/ingest"
	"github.com/hardstop/hardstop/internal/runstatus"
	"github.com/hardstop/hardstop/internal/scoring"
	"github.com/hardstop/hardstop/internal/secrets"
	"github.com/hardstop/hardstop/pkg/types"
)

// Store is the subset of internal/store.Store every operation needs,
// composed from the narrower interfaces each phase package already
// declares.
type Store interface {
	ingest.Store
	brief.Store
	health.Store
	NewNetworkLoader(ctx context.Context) types.NetworkFixtureLoader
	SaveRawItem(ctx context.Context, sourceID string, tier types.SourceTier, trustTier int, candidate types.RawItemCandidate, contentHash string, fetchedAtUTC string) (*types.RawItem, bool, error)
}

// ConfigPaths are the on-disk locations of the three config documents,
// used only for ConfigFingerprint bookkeeping on a RunRecord — the configs
// themselves are loaded once by the caller and passed in already-parsed.
type ConfigPaths struct {
	RuntimePath      string
	SourcesPath      string
	SuppressionPath  string
}

// Deps bundles everything every ops function needs. Callers build one Deps
// at process startup and pass it to every operation.
type Deps struct {
	Store             Store
	Runtime           *types.RuntimeConfig
	Sources           *types.SourcesConfig
	Suppression       *types.SuppressionConfig
	Registry          *adapters.Registry
	Secrets           secrets.Resolver
	Logger            *slog.Logger
	Paths             ConfigPaths
	RunWriter         *artifact.RunRecordWriter
	StaleThresholdHours int
	HealthLookback      int
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) strict() bool {
	return d.Runtime.Mode == types.ModeStrict
}

func newRunID() string {
	return uuid.New().String()
}

// configHash recomputes the config fingerprint from the paths the caller
// configured; a RunRecord still emits with an empty config_hash and a
// warning if the paths are unset or unreadable, never a hard failure.
func configHash(d Deps, warnings *[]string) string {
	hash, err := artifact.ConfigFingerprint(d.Paths.RuntimePath, d.Paths.SourcesPath, d.Paths.SuppressionPath)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("computing config fingerprint: %v", err))
		return ""
	}
	return hash
}

// emit finalizes and writes rec (stamping ended_at, cost, and the
// artifact hash). A write error is logged, not returned — a RunRecord that
// fails to write to disk must never mask the underlying operation's own
// result.
func emit(d Deps, rec *types.RunRecord) {
	rec.EndedAt = time.Now().UTC().Format(time.RFC3339)
	if cost, diag := artifact.CostSnapshot(); cost != nil {
		rec.Cost = cost
	} else if diag != nil {
		rec.Diagnostics = append(rec.Diagnostics, *diag)
	}

	writer := d.RunWriter
	if writer == nil {
		return
	}
	if _, err := writer.Emit(*rec, ""); err != nil {
		d.logger().Error("writing run record", "run_id", rec.RunID, "error", err)
	}
}

func newRunRecord(d Deps, runID string, startedAt time.Time) types.RunRecord {
	return types.RunRecord{
		RunID:      runID,
		OperatorID: d.Runtime.OperatorID,
		Mode:       d.Runtime.Mode,
		StartedAt:  startedAt.UTC().Format(time.RFC3339),
	}
}

// Fetch runs the Fetch phase over every enabled source (optionally
// narrowed by tier), emitting a RunRecord that references no artifacts of
// its own (fetched items are not yet persisted — that's FetchAndSave/Run's
// job) but records per-source outcomes as warnings/errors.
func Fetch(ctx context.Context, d Deps, tier *types.SourceTier, sinceHours *int, failFast bool) (rec types.RunRecord, results []fetcher.FetchResult, err error) {
	startedAt := time.Now().UTC()
	rec = newRunRecord(d, newRunID(), startedAt)
	defer func() {
		if r := recover(); r != nil {
			rec.Errors = append(rec.Errors, fmt.Sprintf("panic: %v", r))
		}
		rec.ConfigHash = configHash(d, &rec.Warnings)
		emit(d, &rec)
	}()

	f := fetcher.New(d.Registry, d.Secrets, d.logger(), d.Runtime.RNGSeed, d.strict())
	results, fetchErr := f.FetchAll(ctx, d.Sources, tier, true, sinceHours, failFast)
	if fetchErr != nil {
		rec.Errors = append(rec.Errors, fetchErr.Error())
		err = fetchErr
	}
	for _, r := range results {
		if r.Status == types.RunStatusFailure {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("%s: %s", r.SourceID, r.Error))
		}
	}
	if !d.strict() {
		rec.BestEffort = f.BestEffortMetadata(f.VersionsOf())
	}
	return rec, results, err
}

// saveFetchResults persists every successfully fetched candidate from
// results into raw_items, computing each candidate's dedup content hash
// inline. A per-item save failure is recorded but does not abort the
// remaining items.
func saveFetchResults(ctx context.Context, d Deps, sourcesByID map[string]types.SourceConfig, results []fetcher.FetchResult) (saved int, warnings []string) {
	for _, r := range results {
		if r.Status != types.RunStatusSuccess {
			continue
		}
		cfg, ok := sourcesByID[r.SourceID]
		if !ok {
			continue
		}
		trust := d.Sources.TierDefaults[cfg.Tier].TrustTier
		if cfg.TrustTier != nil {
			trust = *cfg.TrustTier
		}
		for _, item := range r.Items {
			hash, err := dedupe.ContentHash(item)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: hashing candidate: %v", r.SourceID, err))
				continue
			}
			if _, _, err := d.Store.SaveRawItem(ctx, r.SourceID, cfg.Tier, trust, item, hash, r.FetchedAtUTC); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: saving raw item: %v", r.SourceID, err))
				continue
			}
			saved++
		}
	}
	return saved, warnings
}

func sourcesByID(cfg *types.SourcesConfig) map[string]types.SourceConfig {
	out := make(map[string]types.SourceConfig, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out[s.SourceID] = s
	}
	return out
}

// sourceSetups derives the ingest.Options.SourceSetups map from the loaded
// sources and suppression configs: each source's resolved tier defaults
// plus its own scoped suppression rules.
func sourceSetups(sourcesCfg *types.SourcesConfig, suppressionCfg *types.SuppressionConfig) map[string]ingest.SourceSetup {
	bySource := make(map[string][]types.SuppressionRule)
	for _, rule := range suppressionCfg.Rules {
		if rule.RuleSourceID != "" {
			bySource[rule.RuleSourceID] = append(bySource[rule.RuleSourceID], rule)
		}
	}

	out := make(map[string]ingest.SourceSetup, len(sourcesCfg.Sources))
	for _, s := range sourcesCfg.Sources {
		defaults := sourcesCfg.TierDefaults[s.Tier]
		if s.TrustTier != nil {
			defaults.TrustTier = *s.TrustTier
		}
		if s.ClassificationFloor != nil {
			defaults.ClassificationFloor = *s.ClassificationFloor
		}
		if s.WeightingBias != nil {
			defaults.WeightingBias = *s.WeightingBias
		}
		out[s.SourceID] = ingest.SourceSetup{
			Tier:                s.Tier,
			TrustTier:           defaults.TrustTier,
			ClassificationFloor: defaults.ClassificationFloor,
			WeightingBias:       defaults.WeightingBias,
			SuppressionRules:    bySource[s.SourceID],
		}
	}
	return out
}

func globalSuppressionRules(cfg *types.SuppressionConfig) []types.SuppressionRule {
	var out []types.SuppressionRule
	for _, r := range cfg.Rules {
		if r.RuleSourceID == "" {
			out = append(out, r)
		}
	}
	return out
}

// IngestExternal runs the Ingest phase over whatever raw items are already
// on file (no fetch), for operators re-running correlation over existing
// data.
func IngestExternal(ctx context.Context, d Deps, sourceID string, limit, sinceHours int, noSuppress, allowIngestErrors, failFast bool, runGroupID string) (rec types.RunRecord, result ingest.Result, err error) {
	startedAt := time.Now().UTC()
	rec = newRunRecord(d, newRunID(), startedAt)
	defer func() {
		if r := recover(); r != nil {
			rec.Errors = append(rec.Errors, fmt.Sprintf("panic: %v", r))
		}
		rec.ConfigHash = configHash(d, &rec.Warnings)
		emit(d, &rec)
	}()

	loader := d.Store.NewNetworkLoader(ctx)
	facilities, loadErr := loader.LoadFacilities()
	if loadErr != nil {
		rec.Errors = append(rec.Errors, loadErr.Error())
		err = loadErr
		return rec, result, err
	}
	lanes, loadErr := loader.LoadLanes()
	if loadErr != nil {
		rec.Errors = append(rec.Errors, loadErr.Error())
		err = loadErr
		return rec, result, err
	}
	shipments, loadErr := loader.LoadShipments()
	if loadErr != nil {
		rec.Errors = append(rec.Errors, loadErr.Error())
		err = loadErr
		return rec, result, err
	}

	if runGroupID == "" {
		runGroupID = newRunID()
	}

	opts := ingest.Options{
		Limit:                 limit,
		SourceID:              sourceID,
		SinceHours:            sinceHours,
		NoSuppress:            noSuppress,
		RunGroupID:            runGroupID,
		FailFast:              failFast,
		AllowIngestErrors:     allowIngestErrors,
		GlobalSuppressionRules: globalSuppressionRules(d.Suppression),
		SourceSetups:          sourceSetups(d.Sources, d.Suppression),
		Facilities:            facilities,
		Lanes:                 lanes,
		Shipments:             shipments,
		ShipmentLinkMax:       d.Runtime.ShipmentLinkMax,
		AlertMergeWindowHours: d.Runtime.AlertMergeWindowHours,
		RiskKeywords:          scoring.DefaultRiskKeywords(),
		NowUTC:                time.Now().UTC(),
	}

	result, ingestErr := ingest.Ingest(ctx, d.Store, opts)
	if ingestErr != nil {
		rec.Errors = append(rec.Errors, ingestErr.Error())
		err = ingestErr
	}
	if result.Errors > 0 {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("%d item(s) failed during ingest", result.Errors))
	}
	return rec, result, err
}

// Run executes the full Fetch -> save -> Ingest pipeline in one RunRecord
// and returns the run-status exit code alongside it: 0 HEALTHY, 1 WARNING,
// 2 BROKEN.
func Run(ctx context.Context, d Deps) (rec types.RunRecord, exitCode int, err error) {
	startedAt := time.Now().UTC()
	rec = newRunRecord(d, newRunID(), startedAt)
	runGroupID := rec.RunID

	var fetchResults []fetcher.FetchResult
	var ingestRuns []types.SourceRun
	var findings runstatus.DoctorFindings

	defer func() {
		if r := recover(); r != nil {
			rec.Errors = append(rec.Errors, fmt.Sprintf("panic: %v", r))
		}
		rec.ConfigHash = configHash(d, &rec.Warnings)

		var staleSources []string
		if healths, healthErr := health.GetAllSourceHealth(ctx, d.Store, sourceIDsOf(d.Sources), d.lookback(), d.staleThreshold(), time.Now().UTC()); healthErr == nil {
			for _, h := range healths {
				if h.Score.BudgetState == health.BudgetBlocked {
					findings.HealthBudgetBlockers = append(findings.HealthBudgetBlockers, h.SourceID)
				}
				if h.Score.BudgetState == health.BudgetWatch {
					findings.HealthBudgetWarnings = append(findings.HealthBudgetWarnings, h.SourceID)
				}
				if h.Metrics.StaleHours != nil && *h.Metrics.StaleHours > float64(d.staleThreshold()) {
					staleSources = append(staleSources, h.SourceID)
				}
			}
		}
		findings.EnabledSourcesCount = countEnabled(d.Sources)

		code, messages := runstatus.Evaluate(runstatus.Input{
			FetchResults:        fetchResults,
			IngestRuns:          ingestRuns,
			Doctor:              findings,
			StaleSources:        staleSources,
			StaleThresholdHours: d.staleThreshold(),
			Strict:              d.strict(),
		})
		exitCode = int(code)
		rec.Warnings = append(rec.Warnings, messages...)

		emit(d, &rec)
	}()

	f := fetcher.New(d.Registry, d.Secrets, d.logger(), d.Runtime.RNGSeed, d.strict())
	var fetchErr error
	fetchResults, fetchErr = f.FetchAll(ctx, d.Sources, nil, true, nil, false)
	if fetchErr != nil {
		rec.Errors = append(rec.Errors, fetchErr.Error())
		err = fetchErr
	}
	if !d.strict() {
		rec.BestEffort = f.BestEffortMetadata(f.VersionsOf())
	}

	_, saveWarnings := saveFetchResults(ctx, d, sourcesByID(d.Sources), fetchResults)
	rec.Warnings = append(rec.Warnings, saveWarnings...)

	loader := d.Store.NewNetworkLoader(ctx)
	facilities, _ := loader.LoadFacilities()
	lanes, _ := loader.LoadLanes()
	shipments, _ := loader.LoadShipments()

	_, ingestErr := ingest.Ingest(ctx, d.Store, ingest.Options{
		RunGroupID:            runGroupID,
		GlobalSuppressionRules: globalSuppressionRules(d.Suppression),
		SourceSetups:          sourceSetups(d.Sources, d.Suppression),
		Facilities:            facilities,
		Lanes:                 lanes,
		Shipments:             shipments,
		ShipmentLinkMax:       d.Runtime.ShipmentLinkMax,
		AlertMergeWindowHours: d.Runtime.AlertMergeWindowHours,
		RiskKeywords:          scoring.DefaultRiskKeywords(),
		NowUTC:                time.Now().UTC(),
	})
	if ingestErr != nil {
		rec.Errors = append(rec.Errors, ingestErr.Error())
		if err == nil {
			err = ingestErr
		}
	}

	for _, sourceID := range sourceIDsOf(d.Sources) {
		runs, runsErr := d.Store.RecentRuns(ctx, sourceID, types.PhaseIngest, 1)
		if runsErr == nil {
			ingestRuns = append(ingestRuns, runs...)
		}
	}

	return rec, exitCode, err
}

func sourceIDsOf(cfg *types.SourcesConfig) []string {
	out := make([]string, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, s.SourceID)
	}
	return out
}

func countEnabled(cfg *types.SourcesConfig) int {
	n := 0
	for _, s := range cfg.Sources {
		if s.Enabled {
			n++
		}
	}
	return n
}

func (d Deps) staleThreshold() int {
	if d.StaleThresholdHours > 0 {
		return d.StaleThresholdHours
	}
	return 48
}

func (d Deps) lookback() int {
	if d.HealthLookback > 0 {
		return d.HealthLookback
	}
	return 10
}

// Doctor surfaces aggregated source health plus a config check (runtime
// config loaded and operator_id set; no schema check is run) as a
// DoctorFindings the caller can feed into runstatus.Evaluate directly, or
// render as a standalone preflight report.
func Doctor(ctx context.Context, d Deps) (runstatus.DoctorFindings, []health.SourceHealth, error) {
	var findings runstatus.DoctorFindings
	findings.EnabledSourcesCount = countEnabled(d.Sources)

	if err := validateConfigs(d); err != nil {
		findings.ConfigError = err.Error()
		return findings, nil, nil
	}

	healths, err := health.GetAllSourceHealth(ctx, d.Store, sourceIDsOf(d.Sources), d.lookback(), d.staleThreshold(), time.Now().UTC())
	if err != nil {
		return findings, nil, fmt.Errorf("computing source health: %w", err)
	}
	for _, h := range healths {
		if h.Score.BudgetState == health.BudgetBlocked {
			findings.HealthBudgetBlockers = append(findings.HealthBudgetBlockers, h.SourceID)
		}
		if h.Score.BudgetState == health.BudgetWatch {
			findings.HealthBudgetWarnings = append(findings.HealthBudgetWarnings, h.SourceID)
		}
	}
	return findings, healths, nil
}

func validateConfigs(d Deps) error {
	if d.Runtime == nil {
		return fmt.Errorf("runtime config not loaded")
	}
	if d.Runtime.OperatorID == "" {
		return fmt.Errorf("operator_id is required")
	}
	return nil
}

// Brief assembles the brief.v1 read model for the trailing windowHours.
func Brief(ctx context.Context, d Deps, windowHours int) (brief.Model, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	return brief.Build(ctx, d.Store, windowHours, time.Now().UTC())
}

// ReplayIncident locates the latest IncidentEvidence for alertID and
// checks it against its producing RunRecord and the caller's current
// config fingerprint.
func ReplayIncident(ctx context.Context, d Deps, incidentsDir, runsDir, alertID, correlationKey string) (artifact.ReplayResult, error) {
	var warnings []string
	hash := configHash(d, &warnings)
	return artifact.Replay(incidentsDir, runsDir, alertID, correlationKey, hash)
}

// SourcesHealth exposes GetAllSourceHealth directly for the `sources
// health` surface.
func SourcesHealth(ctx context.Context, d Deps) ([]health.SourceHealth, error) {
	return health.GetAllSourceHealth(ctx, d.Store, sourceIDsOf(d.Sources), d.lookback(), d.staleThreshold(), time.Now().UTC())
}

// SourcesTest runs a single source through Fetch without saving or
// ingesting its results, the `sources test <id>` surface's boundary
// function.
func SourcesTest(ctx context.Context, d Deps, sourceID string) (fetcher.FetchResult, error) {
	var cfg types.SourceConfig
	found := false
	for _, s := range d.Sources.Sources {
		if s.SourceID == sourceID {
			cfg = s
			found = true
			break
		}
	}
	if !found {
		return fetcher.FetchResult{}, fmt.Errorf("unknown source_id %q", sourceID)
	}

	f := fetcher.New(d.Registry, d.Secrets, d.logger(), d.Runtime.RNGSeed, d.strict())
	defaults := d.Sources.TierDefaults[cfg.Tier]
	perHostMinSeconds := defaults.PerHostMinSeconds
	if cfg.PerHostMinSeconds != nil {
		perHostMinSeconds = *cfg.PerHostMinSeconds
	}
	result := f.FetchOne(ctx, cfg, perHostMinSeconds, 0, nil)
	if result.Status == types.RunStatusFailure {
		return result, fmt.Errorf("fetch failed: %s", result.Error)
	}
	return result, nil
}

// suppressionRulesFor is a small helper other ops callers (sources list,
// export) can use to show which rules would apply to a given source
// without running the pipeline.
func suppressionRulesFor(d Deps, sourceID string) []types.SuppressionRule {
	rules := globalSuppressionRules(d.Suppression)
	for _, r := range d.Suppression.Rules {
		if r.RuleSourceID == sourceID {
			rules = append(rules, r)
		}
	}
	return rules
}
