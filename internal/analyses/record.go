package analyses

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ArtifactRecord is the storage form of an Artifact. Each field holds raw
// JSON exactly as persisted, which may be structured JSON, a JSON string
// wrapping serialized JSON, or (for Original) a plain string.
type ArtifactRecord struct {
	DocumentID string
	Type       string
	Original   json.RawMessage
	Translated json.RawMessage
	Checklist  json.RawMessage
	Report     json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewArtifactRecord encodes a structured artifact for storage.
func NewArtifactRecord(a Artifact) (ArtifactRecord, error) {
	rec := ArtifactRecord{
		DocumentID: a.DocumentID,
		Type:       a.Type,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	var err error
	if a.Original != nil {
		if rec.Original, err = json.Marshal(a.Original); err != nil {
			return ArtifactRecord{}, fmt.Errorf("encode original: %w", err)
		}
	}
	if a.Translated != nil {
		if rec.Translated, err = json.Marshal(a.Translated); err != nil {
			return ArtifactRecord{}, fmt.Errorf("encode translated: %w", err)
		}
	}
	if a.Checklist != nil {
		if rec.Checklist, err = json.Marshal(a.Checklist); err != nil {
			return ArtifactRecord{}, fmt.Errorf("encode checklist: %w", err)
		}
	}
	if a.Report != nil {
		if rec.Report, err = json.Marshal(a.Report); err != nil {
			return ArtifactRecord{}, fmt.Errorf("encode report: %w", err)
		}
	}
	return rec, nil
}

// Decode normalizes every stored shape into a structured Artifact. Original
// always comes back with a plain-text Text when present.
func (r ArtifactRecord) Decode() (Artifact, error) {
	a := Artifact{
		DocumentID: r.DocumentID,
		Type:       r.Type,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}

	original, err := decodeOriginal(r.Original)
	if err != nil {
		return Artifact{}, err
	}
	a.Original = original

	if a.Translated, err = decodeTranslated(r.Translated); err != nil {
		return Artifact{}, err
	}

	var checklist Checklist
	ok, err := decodeField(r.Checklist, &checklist)
	if err != nil {
		return Artifact{}, fmt.Errorf("checklist: %w", err)
	}
	if ok {
		if checklist.Kind == "" {
			checklist.Kind = ChecklistUnspecialized
			if len(checklist.Items) > 0 {
				checklist.Kind = ChecklistSpecialized
			}
		}
		a.Checklist = &checklist
	}

	var report Report
	ok, err = decodeField(r.Report, &report)
	if err != nil {
		return Artifact{}, fmt.Errorf("report: %w", err)
	}
	if ok {
		a.Report = &report
	}
	return a, nil
}

func decodeOriginal(raw json.RawMessage) (*Original, error) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return nil, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("original: %w: %v", ErrMalformedArtifact, err)
		}
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "{") {
			var nested Original
			if err := json.Unmarshal([]byte(trimmed), &nested); err == nil {
				return &nested, nil
			}
		}
		return &Original{Text: text}, nil
	}
	var original Original
	if err := json.Unmarshal(raw, &original); err != nil {
		return nil, fmt.Errorf("original: %w: %v", ErrMalformedArtifact, err)
	}
	return &original, nil
}

func decodeTranslated(raw json.RawMessage) ([]Clause, error) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return nil, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("translated: %w: %v", ErrMalformedArtifact, err)
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, nil
		}
		if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
			return []Clause{{Index: 0, Text: text}}, nil
		}
		raw = json.RawMessage(trimmed)
	}
	if raw[0] == '{' {
		var wrapped struct {
			Clauses []Clause `json:"clauses"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("translated: %w: %v", ErrMalformedArtifact, err)
		}
		return wrapped.Clauses, nil
	}
	var clauses []Clause
	if err := json.Unmarshal(raw, &clauses); err != nil {
		return nil, fmt.Errorf("translated: %w: %v", ErrMalformedArtifact, err)
	}
	return clauses, nil
}

// decodeField unmarshals raw into dst, unwrapping one level of string
// encoding. It reports false when the field is absent.
func decodeField(raw json.RawMessage, dst any) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return false, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
		}
		text = strings.TrimSpace(text)
		if text == "" || text == "null" {
			return false, nil
		}
		raw = json.RawMessage(text)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	return true, nil
}

func isAbsent(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
