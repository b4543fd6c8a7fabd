package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulsekit/healthmem/pkg/domain/types"
)

// Event is a domain event that can be remembered. Memory renders the
// natural-language text and the taxonomy metadata for the store.
type Event interface {
	Memory() (string, Metadata)
}

// EventMeta carries the envelope fields shared by all events. Zero values
// fall back to the event's default source and to the normalizer defaults.
type EventMeta struct {
	Source   types.Source `json:"source,omitempty"`
	At       time.Time    `json:"at,omitzero"`
	Timezone string       `json:"timezone,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
}

func (e EventMeta) metadata(fallback types.Source, d Details) Metadata {
	m := Metadata{
		Category:       d.Category(),
		Source:         e.Source,
		Timezone:       e.Timezone,
		Tags:           e.Tags,
		ModuleSpecific: d.Fields(),
	}
	if m.Source == "" {
		m.Source = fallback
	}
	if !e.At.IsZero() {
		m.Timestamp = FormatTimestamp(e.At)
	}
	return m
}

// WorkoutEvent is a completed training session
type WorkoutEvent struct {
	EventMeta
	WorkoutType  string  `json:"workout_type"`
	DurationMins int     `json:"duration_mins"`
	RPE          float64 `json:"rpe"`
	Notes        string  `json:"notes"`
}

func (e WorkoutEvent) Memory() (string, Metadata) {
	text := fmt.Sprintf("Completed a %d minute %s workout (RPE %s)", e.DurationMins, e.WorkoutType, trimFloat(e.RPE))
	text = withNotes(text, e.Notes)
	return text, e.metadata(types.SourceDeviceSync, TrainingDetails{
		WorkoutType:  e.WorkoutType,
		DurationMins: float64(e.DurationMins),
		RPE:          e.RPE,
	})
}

// DailySummaryEvent is the end-of-day activity rollup
type DailySummaryEvent struct {
	EventMeta
	Date         string  `json:"date"`
	Steps        int     `json:"steps"`
	SleepHours   float64 `json:"sleep_hours"`
	WorkoutCount int     `json:"workout_count"`
}

func (e DailySummaryEvent) Memory() (string, Metadata) {
	text := fmt.Sprintf("Daily summary for %s: %d steps, %s hours of sleep, %d workouts",
		e.Date, e.Steps, trimFloat(e.SleepHours), e.WorkoutCount)
	return text, e.metadata(types.SourceSystemGenerated, DailySummaryDetails{
		Date:         e.Date,
		Steps:        float64(e.Steps),
		SleepHours:   e.SleepHours,
		WorkoutCount: float64(e.WorkoutCount),
	})
}

// MealEvent is a logged meal
type MealEvent struct {
	EventMeta
	MealType    string `json:"meal_type"`
	Calories    int    `json:"calories"`
	Description string `json:"description"`
	Adhered     bool   `json:"adhered"`
}

// Plan adherence markers. Context building counts meals whose text
// contains AdherenceMarker but not NonAdherenceMarker.
const (
	AdherenceMarker    = "adhered"
	NonAdherenceMarker = "not adhered"
)

func (e MealEvent) Memory() (string, Metadata) {
	adherence := AdherenceMarker
	if !e.Adhered {
		adherence = NonAdherenceMarker
	}
	text := fmt.Sprintf("Ate %s (%d kcal)", e.MealType, e.Calories)
	if e.Description != "" {
		text += ": " + e.Description
	}
	text += " - " + adherence + " to meal plan"
	return text, e.metadata(types.SourceUserInput, IntakeDetails{
		MealType:      e.MealType,
		Calories:      float64(e.Calories),
		PlanAdherence: adherence,
	})
}

// SleepEvent is one night of sleep
type SleepEvent struct {
	EventMeta
	Hours        float64 `json:"hours"`
	QualityScore float64 `json:"quality_score"`
}

func (e SleepEvent) Memory() (string, Metadata) {
	text := fmt.Sprintf("Slept %s hours (quality %s/10)", trimFloat(e.Hours), trimFloat(e.QualityScore))
	return text, e.metadata(types.SourceDeviceSync, SleepDetails{
		Hours:        e.Hours,
		QualityScore: e.QualityScore,
	})
}

// StressEvent is a self-reported stress check-in
type StressEvent struct {
	EventMeta
	StressScore float64 `json:"stress_score"`
	Trigger     string  `json:"trigger"`
}

func (e StressEvent) Memory() (string, Metadata) {
	text := fmt.Sprintf("Reported stress level %s/10", trimFloat(e.StressScore))
	if e.Trigger != "" {
		text += ": " + e.Trigger
	}
	return text, e.metadata(types.SourceUserInput, StressDetails{StressScore: e.StressScore})
}

// BloodTestEvent is an imported lab panel
type BloodTestEvent struct {
	EventMeta
	TestDate string             `json:"test_date"`
	Summary  string             `json:"summary"`
	Markers  map[string]float64 `json:"markers"`
}

func (e BloodTestEvent) Memory() (string, Metadata) {
	text := fmt.Sprintf("Blood test on %s", e.TestDate)
	if e.Summary != "" {
		text += ": " + e.Summary
	}
	return text, e.metadata(types.SourceLabImport, BloodDetails{TestDate: e.TestDate, Markers: e.Markers})
}

// BodyScanEvent is a body composition analysis
type BodyScanEvent struct {
	EventMeta
	ScanDate       string  `json:"scan_date"`
	WeightKg       float64 `json:"weight_kg"`
	BodyFatPercent float64 `json:"body_fat_percent"`
}

func (e BodyScanEvent) Memory() (string, Metadata) {
	text := fmt.Sprintf("Body composition scan on %s: %s kg, %s%% body fat",
		e.ScanDate, trimFloat(e.WeightKg), trimFloat(e.BodyFatPercent))
	return text, e.metadata(types.SourceLabImport, BCADetails{
		ScanDate:       e.ScanDate,
		WeightKg:       e.WeightKg,
		BodyFatPercent: e.BodyFatPercent,
	})
}

// CGMEvent summarises a glucose monitoring period
type CGMEvent struct {
	EventMeta
	Period     string  `json:"period"`
	AvgGlucose float64 `json:"avg_glucose"`
	Summary    string  `json:"summary"`
}

func (e CGMEvent) Memory() (string, Metadata) {
	text := fmt.Sprintf("Glucose monitoring for %s", e.Period)
	if e.AvgGlucose > 0 {
		text += fmt.Sprintf(": average glucose %s mg/dL", trimFloat(e.AvgGlucose))
	}
	text = withNotes(text, e.Summary)
	return text, e.metadata(types.SourceDeviceSync, CGMDetails{Period: e.Period, AvgGlucose: e.AvgGlucose})
}

// InterventionPlanEvent records a coaching intervention being put in place
type InterventionPlanEvent struct {
	EventMeta
	InterventionType string `json:"intervention_type"`
	Recommendation   string `json:"recommendation"`
	StartDate        string `json:"start_date"`
	Status           string `json:"status"`
}

func (e InterventionPlanEvent) Memory() (string, Metadata) {
	status := e.Status
	if status == "" {
		status = "active"
	}
	text := fmt.Sprintf("Started %s intervention on %s: %s (status: %s)",
		e.InterventionType, e.StartDate, e.Recommendation, status)
	return text, e.metadata(types.SourceCoachInput, PlanDetails{
		InterventionType: e.InterventionType,
		Recommendation:   e.Recommendation,
		StartDate:        e.StartDate,
		Status:           status,
	})
}

// InterventionOutcomeEvent records how an intervention ended
type InterventionOutcomeEvent struct {
	EventMeta
	InterventionID   string `json:"intervention_id"`
	InterventionType string `json:"intervention_type"`
	Outcome          string `json:"outcome"`
	CompletionDate   string `json:"completion_date"`
}

func (e InterventionOutcomeEvent) Memory() (string, Metadata) {
	text := fmt.Sprintf("Completed %s intervention on %s: %s", e.InterventionType, e.CompletionDate, e.Outcome)
	return text, e.metadata(types.SourceCoachInput, OutcomeDetails{
		InterventionID:   e.InterventionID,
		InterventionType: e.InterventionType,
		Outcome:          e.Outcome,
		CompletionDate:   e.CompletionDate,
	})
}

func withNotes(text, notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return text
	}
	return text + ". " + notes
}

// trimFloat formats v without trailing zeros
func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
