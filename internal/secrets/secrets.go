// Package secrets resolves a source config's api_key_ref (e.g.
// "op://gov-feeds/nws-api/credential") into a literal credential value at
// fetch time. Adapters never see the ref itself, only the resolved string.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/1Password/connect-sdk-go/connect"
	"github.com/1Password/connect-sdk-go/onepassword"
)

// Resolver resolves an api_key_ref to a literal credential value.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Unconfigured is the default Resolver when no 1Password Connect config is
// present. It fails fast and explicitly on any non-empty ref, rather than
// fetching a government-alert source unauthenticated and silently getting
// 401s.
type Unconfigured struct{}

func (Unconfigured) Resolve(_ context.Context, ref string) (string, error) {
	return "", fmt.Errorf("api_key_ref %q set but no secret resolver configured", ref)
}

// defaultField is used when a ref names only an item, with no field.
const defaultField = "credential"

// parseRef splits "<item>" or "<item>/<field>" into its parts.
func parseRef(ref string) (item, field string) {
	ref = strings.TrimPrefix(ref, "op://")
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], defaultField
}

// OnePasswordResolver resolves api_key_ref values against a 1Password
// Connect vault. One resolver instance serves every source; resolved
// values are cached in-process for the life of the run so a source fetched
// repeatedly (e.g. across a long-lived doctor/ops process) doesn't hit
// Connect every time.
type OnePasswordResolver struct {
	client  connect.Client
	vaultID string
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// Config holds 1Password Connect configuration.
type Config struct {
	Host    string // OP_CONNECT_HOST
	Token   string // OP_CONNECT_TOKEN
	VaultID string // OP_VAULT_ID
}

// NewOnePasswordResolver returns a Resolver backed by 1Password Connect.
func NewOnePasswordResolver(cfg Config, logger *slog.Logger) (*OnePasswordResolver, error) {
	if cfg.Host == "" || cfg.Token == "" || cfg.VaultID == "" {
		return nil, fmt.Errorf("1Password configuration incomplete: host, token, and vault_id are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OnePasswordResolver{
		client:  connect.NewClientWithUserAgent(cfg.Host, cfg.Token, "hardstop"),
		vaultID: cfg.VaultID,
		logger:  logger,
		cache:   make(map[string]string),
	}, nil
}

// Resolve looks up ref's item by title, then returns the value of its
// named field (defaulting to "credential" when ref names no field).
func (r *OnePasswordResolver) Resolve(_ context.Context, ref string) (string, error) {
	r.mu.RLock()
	if v, ok := r.cache[ref]; ok {
		r.mu.RUnlock()
		return v, nil
	}
	r.mu.RUnlock()

	itemTitle, fieldLabel := parseRef(ref)

	items, err := r.client.GetItemsByTitle(itemTitle, r.vaultID)
	if err != nil {
		return "", fmt.Errorf("looking up 1Password item %q: %w", itemTitle, err)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("1Password item %q not found in vault", itemTitle)
	}

	item, err := r.client.GetItem(items[0].ID, r.vaultID)
	if err != nil {
		return "", fmt.Errorf("fetching 1Password item %q: %w", itemTitle, err)
	}

	value, err := fieldValue(item, fieldLabel)
	if err != nil {
		return "", fmt.Errorf("resolving api_key_ref %q: %w", ref, err)
	}

	r.mu.Lock()
	r.cache[ref] = value
	r.mu.Unlock()

	r.logger.Debug("resolved api_key_ref", "item", itemTitle, "field", fieldLabel)
	return value, nil
}

func fieldValue(item *onepassword.Item, label string) (string, error) {
	for _, f := range item.Fields {
		if f.Label == label || f.ID == label {
			return f.Value, nil
		}
	}
	return "", fmt.Errorf("field %q not present on item %q", label, item.Title)
}
