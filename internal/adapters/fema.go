package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hardstop/hardstop/pkg/types"
)

const femaAdapterVersion = "fema-hybrid-adapter.v1"

// femaListResponse is FEMA's OpenFEMA disaster-declarations summary shape:
// a flat list endpoint with one row per declared disaster.
type femaListResponse struct {
	Declarations []femaDeclaration `json:"DisasterDeclarationsSummaries"`
}

type femaDeclaration struct {
	DisasterNumber   int    `json:"disasterNumber"`
	DeclarationType  string `json:"declarationType"`
	DeclarationTitle string `json:"declarationTitle"`
	IncidentType     string `json:"incidentType"`
	State            string `json:"state"`
	DeclarationDate  string `json:"declarationDate"`
}

// FEMAAdapter serves source.type "fema_hybrid". Each fetch makes a single
// list call against the declarations-summary endpoint; no per-declaration
// detail call is made, so items carry only the summary fields (the summary
// endpoint has no free-text description).
type FEMAAdapter struct {
	client *http.Client
}

// NewFEMAAdapter returns an Adapter for source.type == "fema_hybrid".
func NewFEMAAdapter(client *http.Client) *FEMAAdapter {
	return &FEMAAdapter{client: client}
}

func (a *FEMAAdapter) Type() types.SourceAdapterType { return types.AdapterFEMA }

func (a *FEMAAdapter) AdapterVersion() string { return femaAdapterVersion }

func (a *FEMAAdapter) Fetch(ctx context.Context, cfg types.SourceConfig, sinceHours *int, apiKey string) (types.AdapterFetchResult, error) {
	listBody, listStatus, listBytes, err := a.get(ctx, cfg.URL, apiKey)
	if err != nil {
		return types.AdapterFetchResult{StatusCode: listStatus, BytesDownloaded: listBytes},
			fmt.Errorf("fetching fema list for %s: %w", cfg.SourceID, err)
	}

	var list femaListResponse
	if err := json.Unmarshal(listBody, &list); err != nil {
		return types.AdapterFetchResult{StatusCode: listStatus, BytesDownloaded: listBytes},
			fmt.Errorf("parsing fema list for %s: %w", cfg.SourceID, err)
	}

	totalBytes := listBytes
	items := make([]types.RawItemCandidate, 0, len(list.Declarations))
	for _, d := range list.Declarations {
		canonicalID := fmt.Sprintf("fema-%d-%s", d.DisasterNumber, d.State)
		title := d.DeclarationTitle
		if title == "" {
			title = fmt.Sprintf("%s declaration, %s", d.IncidentType, d.State)
		}
		items = append(items, types.RawItemCandidate{
			CanonicalID:    canonicalID,
			Title:          title,
			PublishedAtUTC: d.DeclarationDate,
			Payload: map[string]any{
				"disaster_number":   d.DisasterNumber,
				"declaration_type":  d.DeclarationType,
				"declaration_title": d.DeclarationTitle,
				"incident_type":     d.IncidentType,
				"state":             d.State,
				"declaration_date":  d.DeclarationDate,
			},
		})
	}

	return types.AdapterFetchResult{
		Items:           items,
		StatusCode:      listStatus,
		BytesDownloaded: totalBytes,
	}, nil
}

func (a *FEMAAdapter) get(ctx context.Context, url, apiKey string) ([]byte, int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, len(body), fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, resp.StatusCode, len(body), nil
}
