// Package adapters implements Hardstop's closed set of source adapters:
// RSS/Atom feeds, JSON government-alert feeds, and the hybrid FEMA feed.
// Adapters are pure over the network response: no DB writes, no shared
// state between calls.
package adapters

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/hardstop/hardstop/pkg/types"
)

// Adapter is the interface every source adapter variant implements.
type Adapter interface {
	// Type returns the adapter's registry key, matching SourceConfig.Type.
	Type() types.SourceAdapterType

	// AdapterVersion identifies this adapter's output shape, folded into a
	// run's BestEffortMetadata.InputsVersion.
	AdapterVersion() string

	// Fetch retrieves candidates for one source. sinceHours, if non-nil,
	// asks the adapter to only return items newer than that many hours
	// old; adapters that can't filter server-side may ignore it and let
	// the Dedup/Raw-Item Repo drop duplicates downstream. apiKey, if
	// non-empty, is the resolved credential for cfg.APIKeyRef (resolved by
	// the caller — adapters never see the ref itself) and is sent as a
	// bearer token.
	Fetch(ctx context.Context, cfg types.SourceConfig, sinceHours *int, apiKey string) (types.AdapterFetchResult, error)
}

// Registry is a mutex-guarded lookup from adapter type to Adapter,
// modeled on the Executor/Capabilities/Registry trio: a closed variant set
// with no Register call exposed outside this package.
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.SourceAdapterType]Adapter
}

// NewRegistry returns a Registry pre-populated with the three built-in
// adapter variants (rss serves both "rss" and feeds declared "atom" under
// the same type, gov_alert_json, fema_hybrid). There is no exported way to
// register additional adapters: the variant set is closed by design.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = http.DefaultClient
	}
	r := &Registry{adapters: make(map[types.SourceAdapterType]Adapter, 3)}
	r.register(NewRSSAdapter(client))
	r.register(NewGovAlertJSONAdapter(client))
	r.register(NewFEMAAdapter(client))
	return r
}

func (r *Registry) register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Type()] = a
}

// Get returns the adapter registered for typ, if any.
func (r *Registry) Get(typ types.SourceAdapterType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[typ]
	return a, ok
}

// List returns the registered adapter types.
func (r *Registry) List() []types.SourceAdapterType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.SourceAdapterType, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	return out
}

// ErrUnknownAdapterType is returned by FetchWith when a source config names
// a type with no registered adapter.
type ErrUnknownAdapterType struct {
	Type types.SourceAdapterType
}

func (e *ErrUnknownAdapterType) Error() string {
	return fmt.Sprintf("no adapter registered for type %q", e.Type)
}

// FetchWith looks up the adapter for cfg.Type and calls Fetch, returning
// ErrUnknownAdapterType if the source names a type with no adapter.
func (r *Registry) FetchWith(ctx context.Context, cfg types.SourceConfig, sinceHours *int, apiKey string) (types.AdapterFetchResult, error) {
	a, ok := r.Get(cfg.Type)
	if !ok {
		return types.AdapterFetchResult{}, &ErrUnknownAdapterType{Type: cfg.Type}
	}
	return a.Fetch(ctx, cfg, sinceHours, apiKey)
}
