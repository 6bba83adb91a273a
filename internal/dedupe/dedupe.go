// Package dedupe computes the content hash used to deduplicate raw items
// within a source: SHA-256 over the RFC 8785 canonical JSON of a fixed
// subset of candidate fields.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/hardstop/hardstop/pkg/types"
)

// contentShape is the fixed subset of a candidate hashed for dedup
// purposes: canonical_id/title/url plus whichever of
// title/summary/description/content the payload carries.
type contentShape struct {
	CanonicalID    string `json:"canonical_id"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	PayloadContent struct {
		Title       string `json:"title"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Content     string `json:"content"`
	} `json:"payload_content"`
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ContentHash returns the dedup content hash for a candidate: SHA-256 over
// the RFC 8785 canonical JSON of its content shape, matching the
// jcsPayload pattern used elsewhere for artifact hashing.
func ContentHash(c types.RawItemCandidate) (string, error) {
	shape := contentShape{
		CanonicalID: c.CanonicalID,
		Title:       c.Title,
		URL:         c.URL,
	}
	shape.PayloadContent.Title = stringField(c.Payload, "title")
	shape.PayloadContent.Summary = stringField(c.Payload, "summary")
	shape.PayloadContent.Description = stringField(c.Payload, "description")
	shape.PayloadContent.Content = stringField(c.Payload, "content")

	raw, err := json.Marshal(shape)
	if err != nil {
		return "", fmt.Errorf("marshaling content shape: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalizing content shape: %w", err)
	}

	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
