package model

import (
	"github.com/pulsekit/healthmem/pkg/domain/types"
)

// Trend keys produced by the context builder
const (
	TrendAvgSleepHours        = "avg_sleep_hours"
	TrendAvgWorkoutIntensity  = "avg_workout_intensity"
	TrendRecoveryStatus       = "recovery_status"
	TrendPlanAdherencePercent = "plan_adherence_percent"
)

// Recovery status values of the recovery_status trend
const (
	RecoveryPoor     = "poor"
	RecoveryModerate = "moderate"
	RecoveryGood     = "good"
)

// ContextPack is the intent-scoped view of a user's memory handed to
// generation and insight callers. It is built per request and never stored.
// Slices and the trends map are never nil.
type ContextPack struct {
	Intent              types.Intent   `json:"intent"`
	Error               bool           `json:"error,omitempty"`
	KeyFacts            []string       `json:"keyFacts"`
	RecentEvents        []string       `json:"recentEvents"`
	InterventionHistory []string       `json:"interventionHistory"`
	Trends              map[string]any `json:"trends"`
}

// NewContextPack returns an empty pack for intent
func NewContextPack(intent types.Intent) *ContextPack {
	return &ContextPack{
		Intent:              intent,
		KeyFacts:            []string{},
		RecentEvents:        []string{},
		InterventionHistory: []string{},
		Trends:              map[string]any{},
	}
}

// NewErrorContextPack returns the empty pack flagged as a failed build
func NewErrorContextPack(intent types.Intent) *ContextPack {
	p := NewContextPack(intent)
	p.Error = true
	return p
}

// NumberTrend returns a numeric trend value
func (p *ContextPack) NumberTrend(key string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.Trends[key]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// StringTrend returns a string trend value
func (p *ContextPack) StringTrend(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p.Trends[key].(string)
	return s, ok
}
