package model

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/types"
)

// ModuleSpecific holds the category-dependent fields of a record
type ModuleSpecific map[string]any

// Metadata is the taxonomy envelope attached to every memory record
type Metadata struct {
	Category       types.Category `json:"category"`
	Source         types.Source   `json:"source"`
	Confidence     *float64       `json:"confidence,omitempty"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	ModuleSpecific ModuleSpecific `json:"moduleSpecific,omitempty"`
}

// Confidence returns a pointer to v, for building Metadata literals
func Confidence(v float64) *float64 {
	return &v
}

// Clone returns a copy that shares no mutable state with m
func (m Metadata) Clone() Metadata {
	copied := m
	if m.Confidence != nil {
		c := *m.Confidence
		copied.Confidence = &c
	}
	if m.Tags != nil {
		copied.Tags = slices.Clone(m.Tags)
	}
	if m.ModuleSpecific != nil {
		copied.ModuleSpecific = maps.Clone(m.ModuleSpecific)
	}
	return copied
}

// Time parses the record timestamp
func (m Metadata) Time() (time.Time, error) {
	return ParseTimestamp(m.Timestamp)
}

// ParseMetadata decodes a JSON metadata object. Type mismatches are
// reported as ErrInvalidMetadata naming the offending field.
func ParseMetadata(raw []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, goerr.Wrap(ErrInvalidMetadata, "metadata field has wrong type",
				goerr.V(FieldKey, typeErr.Field),
				goerr.V(ExpectedTypeKey, typeErr.Type.String()),
				goerr.V(ActualTypeKey, typeErr.Value))
		}
		return nil, goerr.Wrap(ErrInvalidMetadata, "metadata is not a JSON object", goerr.V("cause", err.Error()))
	}
	return &m, nil
}

// timestampLayouts are the ISO-8601 forms accepted for record timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// isoMillis matches the millisecond precision UTC form used for defaults
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in the canonical record timestamp form
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// ParseTimestamp parses an ISO-8601 timestamp
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, goerr.New("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, goerr.New("timestamp is not ISO-8601", goerr.V("timestamp", s))
}

// ToFloat converts a loosely typed numeric value, as decoded from JSON or
// supplied by ingestors, into a float64
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
