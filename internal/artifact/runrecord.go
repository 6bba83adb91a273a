package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hardstop/hardstop/pkg/types"
)

// RunRecordWriter writes RunRecord JSON files under a destination directory.
type RunRecordWriter struct {
	DestDir string

	// CanonicalizeTime, when non-empty, is a fixed RFC3339 value every
	// ISO timestamp field in the record is normalized to before hashing
	// and writing — replay mode's bit-for-bit matching knob. Takes
	// priority over Precision when both are set.
	CanonicalizeTime string

	// Precision, when non-nil and within 0-6, truncates every ISO
	// timestamp field's subsecond digits to that many places (0 means
	// whole seconds) instead of pinning them to a fixed value. Values
	// outside 0-6 are ignored and the timestamp is left untouched.
	Precision *int
}

// Emit computes rec's ArtifactHash, writes it to DestDir, and returns the
// path written. basename, if non-empty, names the file `<basename>.json`
// (deterministic replay); otherwise the file is named from the record's
// started-at timestamp and run id.
func (w *RunRecordWriter) Emit(rec types.RunRecord, basename string) (string, error) {
	rec = w.canonicalizeTimestamps(rec)

	hash, err := Hash(rec)
	if err != nil {
		return "", fmt.Errorf("hashing run record: %w", err)
	}
	rec.ArtifactHash = hash

	name := basename
	if name == "" {
		name = defaultRunRecordName(rec)
	}
	path := filepath.Join(w.DestDir, name+".json")

	body, err := CanonicalJSON(rec)
	if err != nil {
		return "", fmt.Errorf("canonicalizing run record: %w", err)
	}
	if err := os.MkdirAll(w.DestDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run record dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("writing run record: %w", err)
	}
	return path, nil
}

// canonicalizeTimestamps normalizes StartedAt/EndedAt for replay mode,
// leaving every other field (including BestEffort, which replay mode never
// carries under strict=true) untouched. CanonicalizeTime, if set, pins both
// fields to a fixed value; otherwise Precision truncates their subsecond
// digits; otherwise the record is returned unchanged.
func (w *RunRecordWriter) canonicalizeTimestamps(rec types.RunRecord) types.RunRecord {
	if w.CanonicalizeTime != "" {
		rec.StartedAt = w.CanonicalizeTime
		rec.EndedAt = w.CanonicalizeTime
		return rec
	}
	if w.Precision != nil {
		rec.StartedAt = truncateTimestamp(rec.StartedAt, *w.Precision)
		rec.EndedAt = truncateTimestamp(rec.EndedAt, *w.Precision)
	}
	return rec
}

// truncateTimestamp truncates timestamp's subsecond digits to precision
// places (0 = whole seconds) and re-renders it as a UTC RFC3339 timestamp
// with a "Z" suffix. precision outside 0-6, or a timestamp that doesn't
// parse, is returned unchanged.
func truncateTimestamp(timestamp string, precision int) string {
	if precision < 0 || precision > 6 {
		return timestamp
	}
	parsed, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return timestamp
	}
	microFactor := 1
	for i := 0; i < 6-precision; i++ {
		microFactor *= 10
	}
	micros := parsed.Nanosecond() / 1000
	truncatedMicros := (micros / microFactor) * microFactor
	truncated := time.Date(
		parsed.Year(), parsed.Month(), parsed.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(),
		truncatedMicros*1000, time.UTC,
	).UTC()
	return truncated.Format("2006-01-02T15:04:05") + formatFractional(truncatedMicros, precision) + "Z"
}

// formatFractional renders micros (0-999999) as a zero-padded fractional
// string with exactly precision digits, or "" when precision is 0.
func formatFractional(micros, precision int) string {
	if precision == 0 {
		return ""
	}
	digits := fmt.Sprintf("%06d", micros)[:precision]
	return "." + digits
}

func defaultRunRecordName(rec types.RunRecord) string {
	compact := compactTimestamp(rec.StartedAt)
	return fmt.Sprintf("%s_%s", compact, rec.RunID)
}

// compactTimestamp turns an RFC3339 timestamp into YYYYMMDD_HHMMSS,
// falling back to the current time if t doesn't parse (an empty or
// malformed StartedAt must never abort artifact emission).
func compactTimestamp(t string) string {
	parsed, err := time.Parse(time.RFC3339, t)
	if err != nil {
		parsed = time.Now().UTC()
	}
	return parsed.UTC().Format("20060102_150405")
}

// sanitizeSlug lower-cases s and replaces runs of non-alphanumeric
// characters with a single hyphen, for use in IncidentEvidence filenames.
func sanitizeSlug(s string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			prevHyphen = false
			continue
		}
		if !prevHyphen {
			b.WriteByte('-')
			prevHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// IncidentEvidencePath returns the deterministic path an IncidentEvidence
// artifact is written to: output/incidents/<alert>__<event>__<key-slug>.json.
func IncidentEvidencePath(outputDir, alertID, eventID, correlationKey string) string {
	name := fmt.Sprintf("%s__%s__%s.json", alertID, eventID, sanitizeSlug(correlationKey))
	return filepath.Join(outputDir, "incidents", name)
}

// WriteIncidentEvidence writes an already-hashed IncidentEvidence artifact
// to its deterministic path, creating the incidents directory if needed.
func WriteIncidentEvidence(outputDir string, ev types.IncidentEvidence) (string, error) {
	alertID := ev.Inputs.AlertID
	eventID := ev.Inputs.Event.EventID
	path := IncidentEvidencePath(outputDir, alertID, eventID, ev.CorrelationKey)

	body, err := CanonicalJSON(ev)
	if err != nil {
		return "", fmt.Errorf("canonicalizing incident evidence: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating incidents dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("writing incident evidence: %w", err)
	}
	return path, nil
}
