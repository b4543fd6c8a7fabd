package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Normalize fills defaults for absent optional fields. Values already set
// are never overwritten and the input is not mutated.
func Normalize(m Metadata) Metadata {
	return normalizeAt(m, time.Now())
}

func normalizeAt(m Metadata, now time.Time) Metadata {
	n := m.Clone()
	if n.Confidence == nil {
		n.Confidence = Confidence(n.Source.DefaultConfidence())
	}
	if n.Timestamp == "" {
		n.Timestamp = FormatTimestamp(now)
	}
	if n.Timezone == "" {
		n.Timezone = "UTC"
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.ModuleSpecific == nil {
		n.ModuleSpecific = ModuleSpecific{}
	}
	return n
}

// Validate checks metadata against the taxonomy and stops at the first
// violation. Checks run in order: timestamp, timezone, category, source,
// confidence, module specific fields.
func Validate(m Metadata) error {
	if _, err := ParseTimestamp(m.Timestamp); err != nil {
		return goerr.Wrap(ErrInvalidMetadata, "timestamp must be ISO-8601",
			goerr.V(FieldKey, "timestamp"),
			goerr.V("timestamp", m.Timestamp))
	}

	if strings.TrimSpace(m.Timezone) == "" {
		return goerr.Wrap(ErrInvalidMetadata, "timezone is required",
			goerr.V(FieldKey, "timezone"))
	}

	if !m.Category.IsValid() {
		return goerr.Wrap(ErrInvalidMetadata, "category is not in the taxonomy",
			goerr.V(FieldKey, "category"),
			goerr.V(CategoryKey, m.Category))
	}

	if !m.Source.IsValid() {
		return goerr.Wrap(ErrInvalidMetadata, "source is not allowed",
			goerr.V(FieldKey, "source"),
			goerr.V(SourceKey, m.Source))
	}

	if m.Confidence == nil {
		return goerr.Wrap(ErrInvalidMetadata, "confidence is required",
			goerr.V(FieldKey, "confidence"))
	}
	if c := *m.Confidence; math.IsNaN(c) || c < 0 || c > 1 {
		return goerr.Wrap(ErrInvalidMetadata, "confidence must be between 0 and 1",
			goerr.V(FieldKey, "confidence"),
			goerr.V("confidence", c))
	}

	if m.ModuleSpecific == nil {
		return goerr.Wrap(ErrInvalidMetadata, "moduleSpecific must be an object",
			goerr.V(FieldKey, "moduleSpecific"))
	}

	if _, err := DetailsOf(m.Category, m.ModuleSpecific); err != nil {
		return err
	}

	// JSON cannot carry NaN or Inf, so they must not reach the backend
	if err := checkFinite("moduleSpecific", m.ModuleSpecific); err != nil {
		return err
	}

	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func nonFiniteError(field string, f float64) error {
	return goerr.Wrap(ErrInvalidMetadata, "number must be finite",
		goerr.V(FieldKey, field),
		goerr.V("value", fmt.Sprint(f)))
}

// checkFinite walks nested module specific data for NaN and Inf values
func checkFinite(path string, v any) error {
	switch x := v.(type) {
	case float64:
		if !isFinite(x) {
			return nonFiniteError(path, x)
		}
	case float32:
		if !isFinite(float64(x)) {
			return nonFiniteError(path, float64(x))
		}
	case ModuleSpecific:
		return checkFinite(path, map[string]any(x))
	case map[string]any:
		for k, e := range x {
			if err := checkFinite(path+"."+k, e); err != nil {
				return err
			}
		}
	case map[string]float64:
		for k, e := range x {
			if err := checkFinite(path+"."+k, e); err != nil {
				return err
			}
		}
	case []any:
		for i, e := range x {
			if err := checkFinite(fmt.Sprintf("%s[%d]", path, i), e); err != nil {
				return err
			}
		}
	case []float64:
		for i, e := range x {
			if err := checkFinite(fmt.Sprintf("%s[%d]", path, i), e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sanitize returns a copy of m without PII keys in the module specific
// data. The input is left untouched; sanitizing twice is a no-op.
func Sanitize(m Metadata) Metadata {
	s := m.Clone()
	for _, key := range piiFields {
		delete(s.ModuleSpecific, key)
	}
	return s
}

// Prepare runs the full write pipeline: normalize, validate, sanitize
func Prepare(m Metadata) (Metadata, error) {
	n := Normalize(m)
	if err := Validate(n); err != nil {
		return Metadata{}, err
	}
	return Sanitize(n), nil
}
