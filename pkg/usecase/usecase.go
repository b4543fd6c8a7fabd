package usecase

import (
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/rule"
)

type UseCases struct {
	store   interfaces.MemoryStore
	rules   []rule.Rule
	Hygiene *HygieneUseCase
	Context *ContextUseCase
	Insight *InsightUseCase
	Ingest  *IngestUseCase
}

type Option func(*UseCases)

// WithRules replaces the built-in rule battery
func WithRules(rules []rule.Rule) Option {
	return func(uc *UseCases) {
		uc.rules = rules
	}
}

func New(store interfaces.MemoryStore, opts ...Option) *UseCases {
	uc := &UseCases{
		store: store,
	}

	for _, opt := range opts {
		opt(uc)
	}
	if uc.rules == nil {
		uc.rules = rule.DefaultBattery()
	}

	uc.Hygiene = NewHygieneUseCase(store)
	uc.Context = NewContextUseCase(store)
	uc.Insight = NewInsightUseCase(uc.Context, uc.rules)
	uc.Ingest = NewIngestUseCase(store, uc.Hygiene)

	return uc
}

// Store returns the memory store shared by every use case
func (uc *UseCases) Store() interfaces.MemoryStore {
	return uc.store
}
