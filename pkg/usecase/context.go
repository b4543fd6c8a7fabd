package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/types"
	"github.com/pulsekit/healthmem/pkg/utils/errutil"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	scopedSearchLimit = 10
	recentSearchLimit = 20

	// adherenceSample is how many meal memories plan adherence is computed over
	adherenceSample = 10

	poorSleepHours = 6.0
	goodSleepHours = 7.5
)

// Labels prefixed to facts in the insights pack
const (
	labelDiagnostic = "Diagnostic: "
	labelBodyComp   = "Body Comp: "
	labelCGM        = "CGM: "
	labelOutcome    = "Outcome: "
	labelPlan       = "Plan: "
)

// contextQuery is one scoped search issued while building a pack
type contextQuery struct {
	query    string
	category types.Category
	limit    int
}

var (
	fitnessQueries = []contextQuery{
		{query: "recent workouts and training sessions", category: types.CategoryFitnessTraining, limit: scopedSearchLimit},
		{query: "sleep duration and quality", category: types.CategoryRecoverySleep, limit: scopedSearchLimit},
		{query: "stress levels and triggers", category: types.CategoryRecoveryStress, limit: scopedSearchLimit},
		{query: "active intervention plan", category: types.CategoryInterventionPlan, limit: scopedSearchLimit},
	}

	nutritionQueries = []contextQuery{
		{query: "meals eaten and meal plan adherence", category: types.CategoryNutritionIntake, limit: scopedSearchLimit},
		{query: "nutrition intervention plan", category: types.CategoryInterventionPlan, limit: scopedSearchLimit},
	}

	insightQueries = []contextQuery{
		{query: "recent health and fitness activity", limit: recentSearchLimit},
		{query: "blood test results", category: types.CategoryDiagnosticsBlood, limit: scopedSearchLimit},
		{query: "body composition scan", category: types.CategoryDiagnosticsBCA, limit: scopedSearchLimit},
		{query: "intervention outcome", category: types.CategoryInterventionOutcome, limit: scopedSearchLimit},
	}
)

// ContextUseCase assembles intent-scoped context packs from memory
type ContextUseCase struct {
	store interfaces.MemoryStore
}

func NewContextUseCase(store interfaces.MemoryStore) *ContextUseCase {
	return &ContextUseCase{store: store}
}

// BuildMemoryContext never fails. Retrieval errors yield the empty pack
// flagged with Error; unknown intents yield the empty pack.
func (uc *ContextUseCase) BuildMemoryContext(ctx context.Context, ownerID string, intent types.Intent) *model.ContextPack {
	var (
		queries  []contextQuery
		assemble func(*model.ContextPack, [][]model.MemoryRecord)
	)
	switch intent {
	case types.IntentFitnessPlan:
		queries, assemble = fitnessQueries, assembleFitness
	case types.IntentNutritionPlan:
		queries, assemble = nutritionQueries, assembleNutrition
	case types.IntentInsights:
		queries, assemble = insightQueries, assembleInsights
	default:
		logging.From(ctx).Warn("unknown context intent", "intent", intent)
		return model.NewContextPack(intent)
	}

	results, err := uc.fetch(ctx, ownerID, queries)
	if err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to build memory context",
			goerr.V(OwnerIDKey, ownerID),
			goerr.V(IntentKey, intent),
		), "context build degraded to empty pack")
		return model.NewErrorContextPack(intent)
	}

	pack := model.NewContextPack(intent)
	assemble(pack, results)
	return pack
}

// fetch runs the queries concurrently. Results keep query order.
func (uc *ContextUseCase) fetch(ctx context.Context, ownerID string, queries []contextQuery) ([][]model.MemoryRecord, error) {
	results := make([][]model.MemoryRecord, len(queries))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, q := range queries {
		eg.Go(func() error {
			found, err := uc.store.SearchMemory(egCtx, ownerID, q.query, model.SearchFilters{Category: q.category}, q.limit)
			if err != nil {
				return goerr.Wrap(err, "context search failed", goerr.V(CategoryKey, q.category))
			}
			if found != nil {
				results[i] = found.Results
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func assembleFitness(pack *model.ContextPack, results [][]model.MemoryRecord) {
	training, sleep, stress, plans := results[0], results[1], results[2], results[3]

	pack.RecentEvents = appendTexts(pack.RecentEvents, "", training, sleep, stress)
	pack.InterventionHistory = appendTexts(pack.InterventionHistory, labelPlan, plans)

	if avg, ok := average(training, "rpe"); ok {
		pack.Trends[model.TrendAvgWorkoutIntensity] = avg
	}
	if avg, ok := average(sleep, "hours"); ok {
		pack.Trends[model.TrendAvgSleepHours] = avg
		status := recoveryStatus(avg)
		pack.Trends[model.TrendRecoveryStatus] = status
		if status == model.RecoveryPoor {
			pack.KeyFacts = append(pack.KeyFacts,
				fmt.Sprintf("Recovery warning: average sleep of %g hours is below %g hours", avg, poorSleepHours))
		}
	}
}

func assembleNutrition(pack *model.ContextPack, results [][]model.MemoryRecord) {
	meals, plans := results[0], results[1]

	pack.RecentEvents = appendTexts(pack.RecentEvents, "", meals)
	pack.InterventionHistory = appendTexts(pack.InterventionHistory, labelPlan, plans)

	if pct, ok := planAdherence(meals); ok {
		pack.Trends[model.TrendPlanAdherencePercent] = pct
	}
}

func assembleInsights(pack *model.ContextPack, results [][]model.MemoryRecord) {
	recent, blood, bca, outcomes := results[0], results[1], results[2], results[3]

	pack.RecentEvents = appendTexts(pack.RecentEvents, "", recent)
	pack.KeyFacts = appendTexts(pack.KeyFacts, labelDiagnostic, blood)
	pack.KeyFacts = appendTexts(pack.KeyFacts, labelBodyComp, bca)
	pack.KeyFacts = appendTexts(pack.KeyFacts, labelCGM, byCategory(recent, types.CategoryDiagnosticsCGM))
	pack.InterventionHistory = appendTexts(pack.InterventionHistory, labelOutcome, outcomes)

	if avg, ok := average(byCategory(recent, types.CategoryFitnessTraining), "rpe"); ok {
		pack.Trends[model.TrendAvgWorkoutIntensity] = avg
	}
	if avg, ok := average(byCategory(recent, types.CategoryRecoverySleep), "hours"); ok {
		pack.Trends[model.TrendAvgSleepHours] = avg
		pack.Trends[model.TrendRecoveryStatus] = recoveryStatus(avg)
	}
}

func appendTexts(dst []string, label string, groups ...[]model.MemoryRecord) []string {
	for _, g := range groups {
		for _, r := range g {
			if r.Text == "" {
				continue
			}
			dst = append(dst, label+r.Text)
		}
	}
	return dst
}

func byCategory(records []model.MemoryRecord, category types.Category) []model.MemoryRecord {
	var out []model.MemoryRecord
	for _, r := range records {
		if r.Metadata.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// average is the mean of the numeric module specific field key, rounded to
// one decimal
func average(records []model.MemoryRecord, key string) (float64, bool) {
	var sum float64
	var n int
	for _, r := range records {
		v, ok := model.ToFloat(r.Metadata.ModuleSpecific[key])
		if !ok || math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return math.Round(sum/float64(n)*10) / 10, true
}

func recoveryStatus(avgSleep float64) string {
	switch {
	case avgSleep < poorSleepHours:
		return model.RecoveryPoor
	case avgSleep > goodSleepHours:
		return model.RecoveryGood
	default:
		return model.RecoveryModerate
	}
}

// planAdherence is the rounded share of the sampled meals marked as adhered
func planAdherence(meals []model.MemoryRecord) (int, bool) {
	sample := meals[:min(len(meals), adherenceSample)]
	if len(sample) == 0 {
		return 0, false
	}

	var adhered int
	for _, m := range sample {
		text := strings.ToLower(m.Text)
		if strings.Contains(text, model.AdherenceMarker) && !strings.Contains(text, model.NonAdherenceMarker) {
			adhered++
		}
	}
	return int(math.Round(float64(adhered) * 100 / float64(len(sample)))), true
}
