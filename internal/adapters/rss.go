package adapters

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/hardstop/hardstop/pkg/types"
)

const rssAdapterVersion = "rss-adapter.v1"

// rssFeed is the RSS 2.0 <rss><channel><item> shape.
type rssFeed struct {
	Channel rssChannel `xml:"channel"`
}

// atomFeed is the Atom <feed><entry> shape.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	ID        string     `xml:"id"`
	Updated   string     `xml:"updated"`
	Published string     `xml:"published"`
	Summary   string     `xml:"summary"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

// xmlRootName returns the local name of a document's root element, used to
// pick between the RSS and Atom unmarshal targets without guessing from
// content-type headers (feeds routinely lie about those).
func xmlRootName(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// RSSAdapter handles both RSS 2.0 and Atom feeds; the feed dialect is
// detected from the document's root element.
type RSSAdapter struct {
	client *http.Client
}

// NewRSSAdapter returns an Adapter for source.type == "rss" (and "atom"
// feeds declared under the same type).
func NewRSSAdapter(client *http.Client) *RSSAdapter {
	return &RSSAdapter{client: client}
}

func (a *RSSAdapter) Type() types.SourceAdapterType { return types.AdapterRSS }

func (a *RSSAdapter) AdapterVersion() string { return rssAdapterVersion }

func (a *RSSAdapter) Fetch(ctx context.Context, cfg types.SourceConfig, sinceHours *int, apiKey string) (types.AdapterFetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return types.AdapterFetchResult{}, fmt.Errorf("building request for %s: %w", cfg.SourceID, err)
	}
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

	rootName, err := xmlRootName(body)
	if err != nil {
		return types.AdapterFetchResult{StatusCode: resp.StatusCode, BytesDownloaded: len(body)},
			fmt.Errorf("parsing feed for %s: %w", cfg.SourceID, err)
	}

	var feed rssFeed
	var atom atomFeed
	switch rootName {
	case "feed":
		if err := xml.Unmarshal(body, &atom); err != nil {
			return types.AdapterFetchResult{StatusCode: resp.StatusCode, BytesDownloaded: len(body)},
				fmt.Errorf("parsing atom feed for %s: %w", cfg.SourceID, err)
		}
	default:
		if err := xml.Unmarshal(body, &feed); err != nil {
			return types.AdapterFetchResult{StatusCode: resp.StatusCode, BytesDownloaded: len(body)},
				fmt.Errorf("parsing rss feed for %s: %w", cfg.SourceID, err)
		}
	}

	var items []types.RawItemCandidate
	for _, it := range feed.Channel.Items {
		canonicalID := it.GUID
		if canonicalID == "" {
			canonicalID = it.Link
		}
		items = append(items, types.RawItemCandidate{
			CanonicalID:    canonicalID,
			Title:          it.Title,
			URL:            it.Link,
			PublishedAtUTC: it.PubDate,
			Payload: map[string]any{
				"title":       it.Title,
				"description": it.Description,
				"link":        it.Link,
				"guid":        it.GUID,
				"pub_date":    it.PubDate,
			},
		})
	}
	for _, e := range atom.Entries {
		canonicalID := e.ID
		if canonicalID == "" {
			canonicalID = e.link()
		}
		published := e.Published
		if published == "" {
			published = e.Updated
		}
		items = append(items, types.RawItemCandidate{
			CanonicalID:    canonicalID,
			Title:          e.Title,
			URL:            e.link(),
			PublishedAtUTC: published,
			Payload: map[string]any{
				"title":   e.Title,
				"summary": e.Summary,
				"link":    e.link(),
				"id":      e.ID,
				"updated": e.Updated,
			},
		})
	}

	return types.AdapterFetchResult{
		Items:           items,
		StatusCode:      resp.StatusCode,
		BytesDownloaded: len(body),
	}, nil
}
