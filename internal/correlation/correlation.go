// Package correlation derives the stable correlation key for an event and
// builds/merges the Alert it belongs to.
package correlation

import (
	"sort"
	"strings"

	"github.com/hardstop/hardstop/pkg/types"
)

var bucketKeywords = []struct {
	bucket   string
	keywords []string
}{
	{"SPILL", []string{"spill"}},
	{"STRIKE", []string{"strike"}},
	{"CLOSURE", []string{"closure", "shut down", "shutdown"}},
	{"WEATHER", []string{"storm", "hurricane", "tornado"}},
	{"REG", []string{"regulation", "rule"}},
}

// riskBucket returns a deterministic risk bucket: the normalized
// event_type if it maps to a known bucket, else the first 24 chars of the
// event_type, else a keyword scan over title+body, else OTHER.
func riskBucket(eventType types.EventType, title, rawText string) string {
	et := strings.ToUpper(string(eventType))
	switch {
	case strings.Contains(et, "SPILL"):
		return "SPILL"
	case strings.Contains(et, "STRIKE"):
		return "STRIKE"
	case strings.Contains(et, "CLOSURE"):
		return "CLOSURE"
	case strings.Contains(et, "WEATHER"):
		return "WEATHER"
	case strings.Contains(et, "REG"):
		return "REG"
	case strings.Contains(et, "SAFETY"):
		return "SAFETY"
	}
	if et != "" {
		if len(et) > 24 {
			return et[:24]
		}
		return et
	}

	text := strings.ToLower(title + " " + rawText)
	for _, bk := range bucketKeywords {
		for _, kw := range bk.keywords {
			if strings.Contains(text, kw) {
				return bk.bucket
			}
		}
	}
	return "OTHER"
}

func topOrNone(ids []string) string {
	if len(ids) == 0 {
		return "NONE"
	}
	dedup := make(map[string]bool, len(ids))
	var unique []string
	for _, id := range ids {
		if !dedup[id] {
			dedup[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)
	return unique[0]
}

// BuildKey derives the stable "BUCKET|FACILITY|LANE" correlation key for
// an event after entity linking.
func BuildKey(eventType types.EventType, title, rawText string, facilities, lanes []string) string {
	bucket := riskBucket(eventType, title, rawText)
	facility := topOrNone(facilities)
	lane := topOrNone(lanes)
	return bucket + "|" + facility + "|" + lane
}
