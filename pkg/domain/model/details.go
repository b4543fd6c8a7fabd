package model

import (
	"fmt"
	"maps"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/types"
)

// Details is the typed view of module specific data. Every category has
// exactly one variant; DetailsOf is the single place mapping between the
// wire map and the variants.
type Details interface {
	Category() types.Category
	// Fields renders the variant as module specific data
	Fields() ModuleSpecific
}

type TrainingDetails struct {
	WorkoutType  string
	DurationMins float64
	RPE          float64
}

func (d TrainingDetails) Category() types.Category { return types.CategoryFitnessTraining }
func (d TrainingDetails) Fields() ModuleSpecific {
	return ModuleSpecific{"workout_type": d.WorkoutType, "duration_mins": d.DurationMins, "rpe": d.RPE}
}

type DailySummaryDetails struct {
	Date         string
	Steps        float64
	SleepHours   float64
	WorkoutCount float64
}

func (d DailySummaryDetails) Category() types.Category { return types.CategoryFitnessDailySummary }
func (d DailySummaryDetails) Fields() ModuleSpecific {
	return ModuleSpecific{"date": d.Date, "steps": d.Steps, "sleep_hours": d.SleepHours, "workout_count": d.WorkoutCount}
}

type IntakeDetails struct {
	MealType      string
	Calories      float64
	PlanAdherence string
}

func (d IntakeDetails) Category() types.Category { return types.CategoryNutritionIntake }
func (d IntakeDetails) Fields() ModuleSpecific {
	return ModuleSpecific{"meal_type": d.MealType, "calories": d.Calories, "plan_adherence": d.PlanAdherence}
}

type SleepDetails struct {
	Hours        float64
	QualityScore float64
}

func (d SleepDetails) Category() types.Category { return types.CategoryRecoverySleep }
func (d SleepDetails) Fields() ModuleSpecific {
	return ModuleSpecific{"hours": d.Hours, "quality_score": d.QualityScore}
}

type StressDetails struct {
	StressScore float64
}

func (d StressDetails) Category() types.Category { return types.CategoryRecoveryStress }
func (d StressDetails) Fields() ModuleSpecific {
	return ModuleSpecific{"stress_score": d.StressScore}
}

// BloodDetails carries a lab panel. Markers are optional biomarker readings.
type BloodDetails struct {
	TestDate string
	Markers  map[string]float64
}

func (d BloodDetails) Category() types.Category { return types.CategoryDiagnosticsBlood }
func (d BloodDetails) Fields() ModuleSpecific {
	f := ModuleSpecific{"test_date": d.TestDate}
	if len(d.Markers) > 0 {
		markers := make(map[string]any, len(d.Markers))
		for k, v := range d.Markers {
			markers[k] = v
		}
		f["markers"] = markers
	}
	return f
}

type BCADetails struct {
	ScanDate       string
	WeightKg       float64
	BodyFatPercent float64
}

func (d BCADetails) Category() types.Category { return types.CategoryDiagnosticsBCA }
func (d BCADetails) Fields() ModuleSpecific {
	return ModuleSpecific{"scan_date": d.ScanDate, "weight_kg": d.WeightKg, "body_fat_percent": d.BodyFatPercent}
}

// CGMDetails summarises a continuous glucose monitoring period. AvgGlucose
// is optional and omitted when zero.
type CGMDetails struct {
	Period     string
	AvgGlucose float64
}

func (d CGMDetails) Category() types.Category { return types.CategoryDiagnosticsCGM }
func (d CGMDetails) Fields() ModuleSpecific {
	f := ModuleSpecific{"period": d.Period}
	if d.AvgGlucose > 0 {
		f["avg_glucose"] = d.AvgGlucose
	}
	return f
}

type PlanDetails struct {
	InterventionType string
	Recommendation   string
	StartDate        string
	Status           string
}

func (d PlanDetails) Category() types.Category { return types.CategoryInterventionPlan }
func (d PlanDetails) Fields() ModuleSpecific {
	return ModuleSpecific{
		"intervention_type": d.InterventionType,
		"recommendation":    d.Recommendation,
		"start_date":        d.StartDate,
		"status":            d.Status,
	}
}

type OutcomeDetails struct {
	InterventionID   string
	InterventionType string
	Outcome          string
	CompletionDate   string
}

func (d OutcomeDetails) Category() types.Category { return types.CategoryInterventionOutcome }
func (d OutcomeDetails) Fields() ModuleSpecific {
	return ModuleSpecific{
		"intervention_id":   d.InterventionID,
		"intervention_type": d.InterventionType,
		"outcome":           d.Outcome,
		"completion_date":   d.CompletionDate,
	}
}

// UserDefinedDetails has no required fields and passes data through
type UserDefinedDetails struct {
	Data ModuleSpecific
}

func (d UserDefinedDetails) Category() types.Category { return types.CategoryUserDefined }
func (d UserDefinedDetails) Fields() ModuleSpecific {
	if d.Data == nil {
		return ModuleSpecific{}
	}
	return maps.Clone(d.Data)
}

// DetailsOf decodes module specific data into the variant of category.
// Every required key must be present and non-null; numeric fields accept
// numbers or numeric strings. Extra keys are ignored.
func DetailsOf(category types.Category, ms ModuleSpecific) (Details, error) {
	r := &fieldReader{category: category, ms: ms}
	for _, key := range category.RequiredKeys() {
		if v, ok := ms[key]; !ok || v == nil {
			return nil, goerr.Wrap(ErrInvalidMetadata, "required module specific field is missing",
				goerr.V(FieldKey, "moduleSpecific."+key),
				goerr.V(CategoryKey, category))
		}
	}

	var d Details
	switch category {
	case types.CategoryFitnessTraining:
		d = TrainingDetails{
			WorkoutType:  r.str("workout_type"),
			DurationMins: r.num("duration_mins"),
			RPE:          r.num("rpe"),
		}
	case types.CategoryFitnessDailySummary:
		d = DailySummaryDetails{
			Date:         r.str("date"),
			Steps:        r.num("steps"),
			SleepHours:   r.num("sleep_hours"),
			WorkoutCount: r.num("workout_count"),
		}
	case types.CategoryNutritionIntake:
		d = IntakeDetails{
			MealType:      r.str("meal_type"),
			Calories:      r.num("calories"),
			PlanAdherence: r.str("plan_adherence"),
		}
	case types.CategoryRecoverySleep:
		d = SleepDetails{
			Hours:        r.num("hours"),
			QualityScore: r.num("quality_score"),
		}
	case types.CategoryRecoveryStress:
		d = StressDetails{StressScore: r.num("stress_score")}
	case types.CategoryDiagnosticsBlood:
		d = BloodDetails{TestDate: r.str("test_date"), Markers: r.markers("markers")}
	case types.CategoryDiagnosticsBCA:
		d = BCADetails{
			ScanDate:       r.str("scan_date"),
			WeightKg:       r.num("weight_kg"),
			BodyFatPercent: r.num("body_fat_percent"),
		}
	case types.CategoryDiagnosticsCGM:
		d = CGMDetails{Period: r.str("period"), AvgGlucose: r.optNum("avg_glucose")}
	case types.CategoryInterventionPlan:
		d = PlanDetails{
			InterventionType: r.str("intervention_type"),
			Recommendation:   r.str("recommendation"),
			StartDate:        r.str("start_date"),
			Status:           r.str("status"),
		}
	case types.CategoryInterventionOutcome:
		d = OutcomeDetails{
			InterventionID:   r.str("intervention_id"),
			InterventionType: r.str("intervention_type"),
			Outcome:          r.str("outcome"),
			CompletionDate:   r.str("completion_date"),
		}
	case types.CategoryUserDefined:
		d = UserDefinedDetails{Data: maps.Clone(ms)}
	default:
		return nil, goerr.Wrap(ErrInvalidMetadata, "category is not in the taxonomy",
			goerr.V(FieldKey, "category"),
			goerr.V(CategoryKey, category))
	}

	if r.err != nil {
		return nil, r.err
	}
	return d, nil
}

// fieldReader reads typed values and keeps the first conversion failure
type fieldReader struct {
	category types.Category
	ms       ModuleSpecific
	err      error
}

func (r *fieldReader) fail(key, expected string, v any) {
	if r.err != nil {
		return
	}
	r.err = goerr.Wrap(ErrInvalidMetadata, "module specific field has wrong type",
		goerr.V(FieldKey, "moduleSpecific."+key),
		goerr.V(CategoryKey, r.category),
		goerr.V(ExpectedTypeKey, expected),
		goerr.V(ActualTypeKey, fmt.Sprintf("%T", v)))
}

func (r *fieldReader) str(key string) string {
	switch v := r.ms[key].(type) {
	case string:
		return v
	case float64, float32, int, int32, int64, bool:
		return fmt.Sprint(v)
	default:
		r.fail(key, "string", v)
		return ""
	}
}

func (r *fieldReader) num(key string) float64 {
	v := r.ms[key]
	f, ok := ToFloat(v)
	if !ok {
		r.fail(key, "number", v)
		return 0
	}
	if !isFinite(f) {
		if r.err == nil {
			r.err = nonFiniteError("moduleSpecific."+key, f)
		}
		return 0
	}
	return f
}

func (r *fieldReader) optNum(key string) float64 {
	if v, ok := r.ms[key]; !ok || v == nil {
		return 0
	}
	return r.num(key)
}

func (r *fieldReader) markers(key string) map[string]float64 {
	raw, ok := r.ms[key]
	if !ok || raw == nil {
		return nil
	}

	out := map[string]float64{}
	switch m := raw.(type) {
	case map[string]float64:
		maps.Copy(out, m)
	case map[string]any:
		for k, v := range m {
			if f, ok := ToFloat(v); ok && isFinite(f) {
				out[k] = f
			}
		}
	default:
		r.fail(key, "object", raw)
	}
	return out
}
