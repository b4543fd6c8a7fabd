package types

import "fmt"

// InsightType is the severity tag of an insight
type InsightType string

const (
	InsightTypeCritical   InsightType = "critical"
	InsightTypeWarning    InsightType = "warning"
	InsightTypeAction     InsightType = "action"
	InsightTypeSuggestion InsightType = "suggestion"
	InsightTypePositive   InsightType = "positive"
)

// AllInsightTypes returns all insight types ordered from most to least severe
func AllInsightTypes() []InsightType {
	return []InsightType{
		InsightTypeCritical,
		InsightTypeWarning,
		InsightTypeAction,
		InsightTypeSuggestion,
		InsightTypePositive,
	}
}

// IsValid checks if the insight type is valid
func (t InsightType) IsValid() bool {
	switch t {
	case InsightTypeCritical,
		InsightTypeWarning,
		InsightTypeAction,
		InsightTypeSuggestion,
		InsightTypePositive:
		return true
	default:
		return false
	}
}

// Rank returns the severity rank used for ordering. Higher is more severe.
// Unknown types rank below positive.
func (t InsightType) Rank() int {
	switch t {
	case InsightTypeCritical:
		return 4
	case InsightTypeWarning:
		return 3
	case InsightTypeAction:
		return 2
	case InsightTypeSuggestion:
		return 1
	case InsightTypePositive:
		return 0
	default:
		return -1
	}
}

// String returns the string representation of the insight type
func (t InsightType) String() string {
	return string(t)
}

// ParseInsightType parses a string into an InsightType
func ParseInsightType(s string) (InsightType, error) {
	t := InsightType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid insight type: %s", s)
	}
	return t, nil
}
