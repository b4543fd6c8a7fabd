package usecase

import (
	"context"
	"fmt"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/rule"
	"github.com/pulsekit/healthmem/pkg/domain/types"
	"github.com/pulsekit/healthmem/pkg/utils/errutil"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
)

// InsightUseCase runs the rule battery over the insights context pack
type InsightUseCase struct {
	contextUC *ContextUseCase
	rules     []rule.Rule
}

func NewInsightUseCase(contextUC *ContextUseCase, rules []rule.Rule) *InsightUseCase {
	return &InsightUseCase{
		contextUC: contextUC,
		rules:     rules,
	}
}

// GenerateInsights returns deduplicated insights ordered by descending
// severity. A failed context build yields an empty list.
func (uc *InsightUseCase) GenerateInsights(ctx context.Context, ownerID string) []model.Insight {
	pack := uc.contextUC.BuildMemoryContext(ctx, ownerID, types.IntentInsights)
	if pack.Error {
		return []model.Insight{}
	}
	return uc.Evaluate(ctx, pack)
}

// Evaluate applies every rule to pack
func (uc *InsightUseCase) Evaluate(ctx context.Context, pack *model.ContextPack) []model.Insight {
	seen := make(map[model.InsightKey]bool)
	insights := []model.Insight{}

	for _, r := range uc.rules {
		for _, in := range evaluateRule(ctx, r, pack) {
			key := in.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			insights = append(insights, in)
		}
	}

	slices.SortStableFunc(insights, func(a, b model.Insight) int {
		return b.Type.Rank() - a.Type.Rank()
	})

	logging.From(ctx).Debug("insights evaluated",
		"rules", len(uc.rules),
		"insights", len(insights),
	)
	return insights
}

// evaluateRule isolates a panicking rule from the rest of the battery
func evaluateRule(ctx context.Context, r rule.Rule, pack *model.ContextPack) (result []model.Insight) {
	defer func() {
		if rec := recover(); rec != nil {
			_ = errutil.Handle(ctx, goerr.New("insight rule panicked",
				goerr.V(RuleKey, r.Name()),
				goerr.V("panic", fmt.Sprint(rec)),
			), "insight rule skipped")
			result = nil
		}
	}()
	return r.Evaluate(pack)
}
