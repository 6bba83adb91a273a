// Package fetcher runs the Fetch phase: per-source adapter calls, rate
// limited per host, emitting one FetchResult per source.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hardstop/hardstop/internal/adapters"
	"github.com/hardstop/hardstop/internal/secrets"
	"github.com/hardstop/hardstop/pkg/types"
)

// FetchResult is the outcome of fetching one source.
type FetchResult struct {
	SourceID        string
	FetchedAtUTC    string
	Status          types.RunStatus
	StatusCode      *int
	Error           string
	DurationSeconds float64
	Items           []types.RawItemCandidate
	BytesDownloaded int
}

// Fetcher runs per-source fetches against the adapter registry, enforcing
// one rate.Limiter per host so concurrent sources hitting the same host
// still respect per_host_min_seconds.
type Fetcher struct {
	registry *adapters.Registry
	secrets  secrets.Resolver
	logger   *slog.Logger
	rngSeed  int64
	strict   bool

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rng      *rand.Rand
}

// New returns a Fetcher. strict forces jitter to 0 regardless of
// rngSeed, matching the spec's strict-mode determinism guarantee. resolver
// may be nil, in which case sources with a non-empty APIKeyRef fail fast
// with a clear error instead of fetching unauthenticated.
func New(registry *adapters.Registry, resolver secrets.Resolver, logger *slog.Logger, rngSeed int64, strict bool) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = secrets.Unconfigured{}
	}
	seed := rngSeed
	if strict {
		seed = 0
	}
	return &Fetcher{
		registry: registry,
		secrets:  resolver,
		logger:   logger,
		rngSeed:  seed,
		strict:   strict,
		limiters: make(map[string]*rate.Limiter),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// limiterFor returns (creating if needed) the per-host limiter for a
// source's URL, refilling at 1/per_host_min_seconds with a burst of 1 —
// the same externally observable spacing as the teacher's manual
// last_fetch_time[host] sleep loop.
func (f *Fetcher) limiterFor(rawURL string, perHostMinSeconds float64) *rate.Limiter {
	host := hostOf(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	lim, ok := f.limiters[host]
	if !ok {
		if perHostMinSeconds <= 0 {
			perHostMinSeconds = 1
		}
		lim = rate.NewLimiter(rate.Limit(1.0/perHostMinSeconds), 1)
		f.limiters[host] = lim
	}
	return lim
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// jitter returns a deterministic uniform delay on [0, jitterSeconds),
// collapsing to 0 in strict mode.
func (f *Fetcher) jitter(jitterSeconds float64) time.Duration {
	if f.strict || jitterSeconds <= 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Duration(f.rng.Float64() * jitterSeconds * float64(time.Second))
}

// FetchOne fetches a single source, applying its host's rate limiter and
// jitter before calling the adapter.
func (f *Fetcher) FetchOne(ctx context.Context, cfg types.SourceConfig, perHostMinSeconds, jitterSeconds float64, sinceHours *int) FetchResult {
	start := time.Now()
	now := func() string { return time.Now().UTC().Format(time.RFC3339) }

	lim := f.limiterFor(cfg.URL, perHostMinSeconds)
	if err := lim.Wait(ctx); err != nil {
		return FetchResult{
			SourceID: cfg.SourceID, FetchedAtUTC: now(), Status: types.RunStatusFailure,
			Error: types.TruncateError(fmt.Sprintf("rate limiter wait: %v", err)),
			DurationSeconds: time.Since(start).Seconds(),
		}
	}

	if d := f.jitter(jitterSeconds); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return FetchResult{
				SourceID: cfg.SourceID, FetchedAtUTC: now(), Status: types.RunStatusFailure,
				Error: types.TruncateError(ctx.Err().Error()),
				DurationSeconds: time.Since(start).Seconds(),
			}
		}
	}

	var apiKey string
	if cfg.APIKeyRef != "" {
		resolved, err := f.secrets.Resolve(ctx, cfg.APIKeyRef)
		if err != nil {
			return FetchResult{
				SourceID: cfg.SourceID, FetchedAtUTC: now(), Status: types.RunStatusFailure,
				Error:           types.TruncateError(fmt.Sprintf("resolving api_key_ref: %v", err)),
				DurationSeconds: time.Since(start).Seconds(),
			}
		}
		apiKey = resolved
	}

	result, err := f.registry.FetchWith(ctx, cfg, sinceHours, apiKey)
	fetchedAt := now()
	duration := time.Since(start).Seconds()

	if err != nil {
		var statusCode *int
		if result.StatusCode != 0 {
			sc := result.StatusCode
			statusCode = &sc
		}
		f.logger.Warn("source fetch failed", "source_id", cfg.SourceID, "error", err)
		return FetchResult{
			SourceID: cfg.SourceID, FetchedAtUTC: fetchedAt, Status: types.RunStatusFailure,
			StatusCode: statusCode, Error: types.TruncateError(err.Error()),
			DurationSeconds: duration, BytesDownloaded: result.BytesDownloaded,
		}
	}

	statusCode := result.StatusCode
	return FetchResult{
		SourceID: cfg.SourceID, FetchedAtUTC: fetchedAt, Status: types.RunStatusSuccess,
		StatusCode: &statusCode, DurationSeconds: duration,
		Items: result.Items, BytesDownloaded: result.BytesDownloaded,
	}
}

// FetchAll fetches every enabled source (optionally filtered by tier). If
// failFast is set, the first per-source failure short-circuits the
// remaining sources; the caller is still responsible for emitting a
// RunRecord with the partial results before propagating.
func (f *Fetcher) FetchAll(ctx context.Context, sourcesCfg *types.SourcesConfig, tier *types.SourceTier, enabledOnly bool, sinceHours *int, failFast bool) ([]FetchResult, error) {
	results := make([]FetchResult, 0, len(sourcesCfg.Sources))

	for _, src := range sourcesCfg.Sources {
		if enabledOnly && !src.Enabled {
			continue
		}
		if tier != nil && src.Tier != *tier {
			continue
		}

		defaults := sourcesCfg.TierDefaults[src.Tier]
		perHostMinSeconds := defaults.PerHostMinSeconds
		if src.PerHostMinSeconds != nil {
			perHostMinSeconds = *src.PerHostMinSeconds
		}

		r := f.FetchOne(ctx, src, perHostMinSeconds, 5, sinceHours)
		results = append(results, r)

		if failFast && r.Status == types.RunStatusFailure {
			return results, fmt.Errorf("source %s failed: %s", src.SourceID, r.Error)
		}
	}

	return results, nil
}

// BestEffortMetadata returns the run's nondeterministic-inputs block for a
// best-effort run: the seed used and the sorted-joined set of adapter
// versions exercised. In strict mode it returns nil.
func (f *Fetcher) BestEffortMetadata(versionsUsed []string) *types.BestEffortMetadata {
	if f.strict {
		return nil
	}
	sorted := append([]string(nil), versionsUsed...)
	sort.Strings(sorted)
	return &types.BestEffortMetadata{
		Seed:          f.rngSeed,
		InputsVersion: strings.Join(sorted, ","),
	}
}

// VersionsOf returns the adapter_version for every adapter registered, for
// BestEffortMetadata bookkeeping.
func (f *Fetcher) VersionsOf() []string {
	out := make([]string, 0)
	for _, t := range f.registry.List() {
		if a, ok := f.registry.Get(t); ok {
			out = append(out, a.AdapterVersion())
		}
	}
	sort.Strings(out)
	return out
}

// HTTPClientWithTimeout returns a timeout-bounded http.Client, used when
// wiring a Registry at process startup.
func HTTPClientWithTimeout(d time.Duration) *http.Client {
	return &http.Client{Timeout: d}
}
