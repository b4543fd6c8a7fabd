package types

import "fmt"

// Category is the taxonomy slot of a memory record. The category decides
// which module-specific keys a record must carry.
type Category string

const (
	CategoryFitnessTraining     Category = "fitness.training"
	CategoryFitnessDailySummary Category = "fitness.daily_summary"
	CategoryNutritionIntake     Category = "nutrition.intake"
	CategoryRecoverySleep       Category = "recovery.sleep"
	CategoryRecoveryStress      Category = "recovery.stress"
	CategoryDiagnosticsBlood    Category = "diagnostics.blood"
	CategoryDiagnosticsBCA      Category = "diagnostics.bca"
	CategoryDiagnosticsCGM      Category = "diagnostics.cgm"
	CategoryInterventionPlan    Category = "intervention.plan"
	CategoryInterventionOutcome Category = "intervention.outcome"
	CategoryUserDefined         Category = "user.defined"
)

// AllCategories returns every category of the taxonomy
func AllCategories() []Category {
	return []Category{
		CategoryFitnessTraining,
		CategoryFitnessDailySummary,
		CategoryNutritionIntake,
		CategoryRecoverySleep,
		CategoryRecoveryStress,
		CategoryDiagnosticsBlood,
		CategoryDiagnosticsBCA,
		CategoryDiagnosticsCGM,
		CategoryInterventionPlan,
		CategoryInterventionOutcome,
		CategoryUserDefined,
	}
}

// IsValid checks if the category belongs to the taxonomy
func (c Category) IsValid() bool {
	switch c {
	case CategoryFitnessTraining,
		CategoryFitnessDailySummary,
		CategoryNutritionIntake,
		CategoryRecoverySleep,
		CategoryRecoveryStress,
		CategoryDiagnosticsBlood,
		CategoryDiagnosticsBCA,
		CategoryDiagnosticsCGM,
		CategoryInterventionPlan,
		CategoryInterventionOutcome,
		CategoryUserDefined:
		return true
	default:
		return false
	}
}

// RequiredKeys returns the module-specific keys a record of this category
// must carry. Unknown categories have no required keys.
func (c Category) RequiredKeys() []string {
	switch c {
	case CategoryFitnessTraining:
		return []string{"workout_type", "duration_mins", "rpe"}
	case CategoryFitnessDailySummary:
		return []string{"date", "steps", "sleep_hours", "workout_count"}
	case CategoryNutritionIntake:
		return []string{"meal_type", "calories", "plan_adherence"}
	case CategoryRecoverySleep:
		return []string{"hours", "quality_score"}
	case CategoryRecoveryStress:
		return []string{"stress_score"}
	case CategoryDiagnosticsBlood:
		return []string{"test_date"}
	case CategoryDiagnosticsBCA:
		return []string{"scan_date", "weight_kg", "body_fat_percent"}
	case CategoryDiagnosticsCGM:
		return []string{"period"}
	case CategoryInterventionPlan:
		return []string{"intervention_type", "recommendation", "start_date", "status"}
	case CategoryInterventionOutcome:
		return []string{"intervention_id", "intervention_type", "outcome", "completion_date"}
	case CategoryUserDefined:
		return []string{}
	default:
		return nil
	}
}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a string into a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid category: %s", s)
	}
	return c, nil
}
