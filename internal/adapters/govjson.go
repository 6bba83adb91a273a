package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hardstop/hardstop/pkg/types"
)

const govAlertJSONAdapterVersion = "gov-alert-json-adapter.v1"

// govAlertFeed is the NWS CAP-style alerts API shape:
// https://api.weather.gov/alerts/active — a GeoJSON FeatureCollection.
type govAlertFeed struct {
	Features []govAlertFeature `json:"features"`
}

type govAlertFeature struct {
	ID         string               `json:"id"`
	Properties govAlertProperties   `json:"properties"`
}

type govAlertProperties struct {
	ID          string   `json:"id"`
	Event       string   `json:"event"`
	Headline    string   `json:"headline"`
	Description string   `json:"description"`
	AreaDesc    string   `json:"areaDesc"`
	Sent        string   `json:"sent"`
	Effective   string   `json:"effective"`
	Onset       string   `json:"onset"`
	Web         string   `json:"web"`
}

// GovAlertJSONAdapter handles JSON government-alert feeds (NWS active
// alerts and similar CAP-over-JSON endpoints).
type GovAlertJSONAdapter struct {
	client *http.Client
}

// NewGovAlertJSONAdapter returns an Adapter for source.type == "gov_alert_json".
func NewGovAlertJSONAdapter(client *http.Client) *GovAlertJSONAdapter {
	return &GovAlertJSONAdapter{client: client}
}

func (a *GovAlertJSONAdapter) Type() types.SourceAdapterType { return types.AdapterGovAlertJSON }

func (a *GovAlertJSONAdapter) AdapterVersion() string { return govAlertJSONAdapterVersion }

func (a *GovAlertJSONAdapter) Fetch(ctx context.Context, cfg types.SourceConfig, sinceHours *int, apiKey string) (types.AdapterFetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return types.AdapterFetchResult{}, fmt.Errorf("building request for %s: %w", cfg.SourceID, err)
	}
	req.Header.Set("Accept", "application/geo+json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return types.AdapterFetchResult{}, fmt.Errorf("fetching %s: %w", cfg.SourceID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.AdapterFetchResult{StatusCode: resp.StatusCode}, fmt.Errorf("reading body for %s: %w", cfg.SourceID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.AdapterFetchResult{StatusCode: resp.StatusCode, BytesDownloaded: len(body)},
			fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, cfg.SourceID)
	}

	var feed govAlertFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return types.AdapterFetchResult{StatusCode: resp.StatusCode, BytesDownloaded: len(body)},
			fmt.Errorf("parsing gov-alert feed for %s: %w", cfg.SourceID, err)
	}

	items := make([]types.RawItemCandidate, 0, len(feed.Features))
	for _, f := range feed.Features {
		canonicalID := f.Properties.ID
		if canonicalID == "" {
			canonicalID = f.ID
		}
		published := f.Properties.Onset
		if published == "" {
			published = f.Properties.Effective
		}
		if published == "" {
			published = f.Properties.Sent
		}
		items = append(items, types.RawItemCandidate{
			CanonicalID:    canonicalID,
			Title:          f.Properties.Headline,
			URL:            f.Properties.Web,
			PublishedAtUTC: published,
			Payload: map[string]any{
				"event":       f.Properties.Event,
				"headline":    f.Properties.Headline,
				"description": f.Properties.Description,
				"area_desc":   f.Properties.AreaDesc,
				"sent":        f.Properties.Sent,
			},
		})
	}

	return types.AdapterFetchResult{
		Items:           items,
		StatusCode:      resp.StatusCode,
		BytesDownloaded: len(body),
	}, nil
}
