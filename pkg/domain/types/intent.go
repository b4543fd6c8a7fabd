package types

import "fmt"

// Intent selects which memory context is assembled for a caller
type Intent string

const (
	IntentFitnessPlan   Intent = "fitness_plan"
	IntentNutritionPlan Intent = "nutrition_plan"
	IntentInsights      Intent = "insights"
)

// AllIntents returns all valid intents
func AllIntents() []Intent {
	return []Intent{
		IntentFitnessPlan,
		IntentNutritionPlan,
		IntentInsights,
	}
}

// IsValid checks if the intent is valid
func (i Intent) IsValid() bool {
	switch i {
	case IntentFitnessPlan,
		IntentNutritionPlan,
		IntentInsights:
		return true
	default:
		return false
	}
}

// String returns the string representation of the intent
func (i Intent) String() string {
	return string(i)
}

// ParseIntent parses a string into an Intent
func ParseIntent(s string) (Intent, error) {
	intent := Intent(s)
	if !intent.IsValid() {
		return "", fmt.Errorf("invalid intent: %s", s)
	}
	return intent, nil
}
