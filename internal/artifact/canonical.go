// Package artifact implements Hardstop's deterministic audit artifacts:
// canonical JSON hashing, RunRecord emission, IncidentEvidence construction,
// and config-fingerprint/replay support.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// CanonicalJSON marshals v and transforms it to RFC 8785 canonical JSON.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling for canonicalization: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing json: %w", err)
	}
	return canon, nil
}

// Hash returns the SHA-256 hex digest of the canonical JSON of v with any
// top-level "artifact_hash" field removed first (the hash must not include
// itself).
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling for hashing: %w", err)
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err == nil {
		if _, ok := asMap["artifact_hash"]; ok {
			delete(asMap, "artifact_hash")
			raw, err = json.Marshal(asMap)
			if err != nil {
				return "", fmt.Errorf("re-marshaling without artifact_hash: %w", err)
			}
		}
	}

	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalizing for hash: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// HashesEqual compares two artifact hashes, a small helper kept separate so
// replay comparisons read intention-revealing rather than a bare `==`.
func HashesEqual(a, b string) bool {
	return bytes.Equal([]byte(a), []byte(b))
}
