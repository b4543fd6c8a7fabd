package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/types"
)

// completeFields returns module specific data satisfying every required key
func completeFields(c types.Category) model.ModuleSpecific {
	samples := map[string]any{
		"workout_type":      "strength",
		"duration_mins":     45,
		"rpe":               7.5,
		"date":              "2024-03-01",
		"steps":             9000,
		"sleep_hours":       7.2,
		"workout_count":     1,
		"meal_type":         "lunch",
		"calories":          640,
		"plan_adherence":    "adhered",
		"hours":             7.5,
		"quality_score":     8,
		"stress_score":      4,
		"test_date":         "2024-02-20",
		"scan_date":         "2024-02-21",
		"weight_kg":         81.4,
		"body_fat_percent":  19.8,
		"period":            "14d",
		"intervention_type": "sleep",
		"recommendation":    "Lights out by 22:30",
		"start_date":        "2024-03-01",
		"status":            "active",
		"intervention_id":   "iv-1",
		"outcome":           "improved sleep by 40 minutes",
		"completion_date":   "2024-04-01",
	}
	ms := model.ModuleSpecific{}
	for _, k := range c.RequiredKeys() {
		ms[k] = samples[k]
	}
	return ms
}

func validMetadata(c types.Category) model.Metadata {
	return model.Normalize(model.Metadata{
		Category:       c,
		Source:         types.SourceUserInput,
		ModuleSpecific: completeFields(c),
	})
}

func errField(t *testing.T, err error) any {
	t.Helper()
	var ge *goerr.Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected goerr.Error, got %T: %v", err, err)
	}
	return ge.Values()[model.FieldKey]
}

func TestNormalize(t *testing.T) {
	t.Run("fills confidence from source default", func(t *testing.T) {
		for _, src := range types.AllSources() {
			n := model.Normalize(model.Metadata{Source: src})
			gt.V(t, n.Confidence).NotNil()
			gt.V(t, *n.Confidence).Equal(src.DefaultConfidence())
		}
	})

	t.Run("fills remaining defaults", func(t *testing.T) {
		before := time.Now().Add(-time.Second)
		n := model.Normalize(model.Metadata{Source: types.SourceLabImport})

		gt.V(t, *n.Confidence).Equal(1.0)
		gt.V(t, n.Timezone).Equal("UTC")
		gt.A(t, n.Tags).Length(0)
		gt.V(t, n.Tags).NotNil()
		gt.V(t, n.ModuleSpecific).NotNil()

		ts, err := n.Time()
		gt.NoError(t, err)
		gt.B(t, ts.After(before)).True()
	})

	t.Run("never overwrites supplied values", func(t *testing.T) {
		in := model.Metadata{
			Source:     types.SourceUserInput,
			Confidence: model.Confidence(0.42),
			Timestamp:  "2023-05-01T08:00:00Z",
			Timezone:   "Asia/Tokyo",
			Tags:       []string{"morning"},
		}
		n := model.Normalize(in)

		gt.V(t, *n.Confidence).Equal(0.42)
		gt.V(t, n.Timestamp).Equal("2023-05-01T08:00:00Z")
		gt.V(t, n.Timezone).Equal("Asia/Tokyo")
		gt.V(t, n.Tags).Equal([]string{"morning"})
	})

	t.Run("explicit zero confidence is kept", func(t *testing.T) {
		n := model.Normalize(model.Metadata{Source: types.SourceUserInput, Confidence: model.Confidence(0)})
		gt.V(t, *n.Confidence).Equal(0.0)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := model.Metadata{Source: types.SourceUserInput}
		_ = model.Normalize(in)
		gt.V(t, in.Confidence).Nil()
		gt.V(t, in.Timestamp).Equal("")
	})
}

func TestValidate_RequiredFields(t *testing.T) {
	for _, c := range types.AllCategories() {
		t.Run(c.String(), func(t *testing.T) {
			m := validMetadata(c)
			gt.NoError(t, model.Validate(m))

			t.Run("extra keys are accepted", func(t *testing.T) {
				extra := m.Clone()
				extra.ModuleSpecific["note"] = "anything"
				gt.NoError(t, model.Validate(extra))
			})

			for _, key := range c.RequiredKeys() {
				t.Run("missing "+key, func(t *testing.T) {
					missing := m.Clone()
					delete(missing.ModuleSpecific, key)
					err := model.Validate(missing)
					gt.Error(t, err).Is(model.ErrInvalidMetadata)
					gt.V(t, errField(t, err)).Equal("moduleSpecific." + key)
				})
			}
		})
	}
}

func TestValidate_Envelope(t *testing.T) {
	base := validMetadata(types.CategoryRecoverySleep)

	tests := []struct {
		name   string
		mutate func(m *model.Metadata)
		field  string
	}{
		{"empty timestamp", func(m *model.Metadata) { m.Timestamp = "" }, "timestamp"},
		{"malformed timestamp", func(m *model.Metadata) { m.Timestamp = "yesterday" }, "timestamp"},
		{"empty timezone", func(m *model.Metadata) { m.Timezone = " " }, "timezone"},
		{"unknown category", func(m *model.Metadata) { m.Category = "invalid.category" }, "category"},
		{"unknown source", func(m *model.Metadata) { m.Source = "carrier_pigeon" }, "source"},
		{"missing confidence", func(m *model.Metadata) { m.Confidence = nil }, "confidence"},
		{"confidence above one", func(m *model.Metadata) { m.Confidence = model.Confidence(1.01) }, "confidence"},
		{"negative confidence", func(m *model.Metadata) { m.Confidence = model.Confidence(-0.1) }, "confidence"},
		{"NaN confidence", func(m *model.Metadata) { m.Confidence = model.Confidence(math.NaN()) }, "confidence"},
		{"nil module specific", func(m *model.Metadata) { m.ModuleSpecific = nil }, "moduleSpecific"},
		{"non-numeric hours", func(m *model.Metadata) { m.ModuleSpecific["hours"] = "lots" }, "moduleSpecific.hours"},
		{"null required key", func(m *model.Metadata) { m.ModuleSpecific["hours"] = nil }, "moduleSpecific.hours"},
		{"NaN hours", func(m *model.Metadata) { m.ModuleSpecific["hours"] = math.NaN() }, "moduleSpecific.hours"},
		{"infinite hours", func(m *model.Metadata) { m.ModuleSpecific["hours"] = math.Inf(1) }, "moduleSpecific.hours"},
		{"NaN string hours", func(m *model.Metadata) { m.ModuleSpecific["hours"] = "NaN" }, "moduleSpecific.hours"},
		{"infinite extra key", func(m *model.Metadata) { m.ModuleSpecific["hrv"] = math.Inf(-1) }, "moduleSpecific.hrv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base.Clone()
			tt.mutate(&m)
			err := model.Validate(m)
			gt.Error(t, err).Is(model.ErrInvalidMetadata)
			gt.V(t, errField(t, err)).Equal(tt.field)
		})
	}

	t.Run("fail fast reports the first violation", func(t *testing.T) {
		m := base.Clone()
		m.Timezone = ""
		m.Category = "invalid.category"
		m.Confidence = model.Confidence(7)
		gt.V(t, errField(t, model.Validate(m))).Equal("timezone")
	})

	t.Run("boundary confidences are valid", func(t *testing.T) {
		for _, c := range []float64{0, 1} {
			m := base.Clone()
			m.Confidence = model.Confidence(c)
			gt.NoError(t, model.Validate(m))
		}
	})

	t.Run("numeric strings are accepted", func(t *testing.T) {
		m := base.Clone()
		m.ModuleSpecific["hours"] = "6.5"
		gt.NoError(t, model.Validate(m))
	})

	t.Run("date-only timestamp is accepted", func(t *testing.T) {
		m := base.Clone()
		m.Timestamp = "2024-03-01"
		gt.NoError(t, model.Validate(m))
	})
}

func TestValidate_NonFiniteUserDefined(t *testing.T) {
	tests := map[string]struct {
		data  model.ModuleSpecific
		field string
	}{
		"top level": {
			data:  model.ModuleSpecific{"score": math.NaN()},
			field: "moduleSpecific.score",
		},
		"nested object": {
			data:  model.ModuleSpecific{"vitals": map[string]any{"hrv": math.Inf(1)}},
			field: "moduleSpecific.vitals.hrv",
		},
		"inside array": {
			data:  model.ModuleSpecific{"laps": []any{61.2, math.Inf(-1)}},
			field: "moduleSpecific.laps[1]",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m := model.Normalize(model.Metadata{
				Category:       types.CategoryUserDefined,
				Source:         types.SourceUserInput,
				ModuleSpecific: tc.data,
			})
			err := model.Validate(m)
			gt.Error(t, err).Is(model.ErrInvalidMetadata)
			gt.V(t, errField(t, err)).Equal(tc.field)
		})
	}

	t.Run("finite values pass", func(t *testing.T) {
		m := model.Normalize(model.Metadata{
			Category:       types.CategoryUserDefined,
			Source:         types.SourceUserInput,
			ModuleSpecific: model.ModuleSpecific{"laps": []any{61.2, 60.8}, "score": 3},
		})
		gt.NoError(t, model.Validate(m))
	})
}

func TestSanitize(t *testing.T) {
	in := model.Metadata{
		Category: types.CategoryUserDefined,
		Source:   types.SourceAdminManual,
		Tags:     []string{"a"},
		ModuleSpecific: model.ModuleSpecific{
			"email":       "user@example.com",
			"phone":       "+1-555-0100",
			"address":     "1 Main St",
			"ssn":         "000-00-0000",
			"credit_card": "4111111111111111",
			"goal":        "run a marathon",
		},
	}

	out := model.Sanitize(in)

	t.Run("strips PII keys", func(t *testing.T) {
		for _, key := range model.PIIFields() {
			_, found := out.ModuleSpecific[key]
			gt.B(t, found).Describef("%s must be removed", key).False()
		}
		gt.V(t, out.ModuleSpecific["goal"]).Equal("run a marathon")
	})

	t.Run("does not mutate input", func(t *testing.T) {
		gt.N(t, len(in.ModuleSpecific)).Equal(6)
		gt.V(t, in.ModuleSpecific["email"]).Equal("user@example.com")
	})

	t.Run("is idempotent", func(t *testing.T) {
		gt.V(t, model.Sanitize(out)).Equal(out)
	})

	t.Run("tolerates missing module specific", func(t *testing.T) {
		s := model.Sanitize(model.Metadata{Source: types.SourceUserInput})
		gt.V(t, s.ModuleSpecific).Nil()
	})
}

func TestPrepare(t *testing.T) {
	t.Run("normalizes, validates and sanitizes", func(t *testing.T) {
		ms := completeFields(types.CategoryRecoveryStress)
		ms["email"] = "user@example.com"

		out, err := model.Prepare(model.Metadata{
			Category:       types.CategoryRecoveryStress,
			Source:         types.SourceDeviceSync,
			ModuleSpecific: ms,
		})
		gt.NoError(t, err).Required()
		gt.V(t, *out.Confidence).Equal(0.90)
		_, found := out.ModuleSpecific["email"]
		gt.B(t, found).False()
	})

	t.Run("rejects invalid category", func(t *testing.T) {
		_, err := model.Prepare(model.Metadata{Category: "invalid.category", Source: types.SourceUserInput})
		gt.Error(t, err).Is(model.ErrInvalidMetadata)
	})
}

func TestParseMetadata(t *testing.T) {
	t.Run("decodes a valid object", func(t *testing.T) {
		m, err := model.ParseMetadata([]byte(`{"category":"recovery.sleep","source":"device_sync","confidence":0.9,"moduleSpecific":{"hours":7,"quality_score":8}}`))
		gt.NoError(t, err).Required()
		gt.V(t, m.Category).Equal(types.CategoryRecoverySleep)
		gt.V(t, *m.Confidence).Equal(0.9)
		gt.V(t, m.ModuleSpecific["hours"]).Equal(float64(7))
	})

	tests := []struct {
		name string
		raw  string
	}{
		{"non-numeric confidence", `{"category":"user.defined","source":"user_input","confidence":"high"}`},
		{"tags not array of strings", `{"category":"user.defined","source":"user_input","tags":[1,2]}`},
		{"module specific not object", `{"category":"user.defined","source":"user_input","moduleSpecific":"x"}`},
		{"not an object", `["nope"]`},
		{"broken json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.ParseMetadata([]byte(tt.raw))
			gt.Error(t, err).Is(model.ErrInvalidMetadata)
		})
	}
}
