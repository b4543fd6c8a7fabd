package model

import (
	"github.com/pulsekit/healthmem/pkg/domain/types"
)

// Insight is a rule-derived observation surfaced to the end user
type Insight struct {
	Type                  types.InsightType `json:"type"`
	Title                 string            `json:"title"`
	Message               string            `json:"message"`
	Evidence              []string          `json:"evidence"`
	SuggestedIntervention string            `json:"suggestedIntervention,omitempty"`
}

// Key identifies an insight for deduplication
func (i Insight) Key() InsightKey {
	return InsightKey{Type: i.Type, Title: i.Title}
}

// InsightKey is the (type, title) pair insights are deduplicated by
type InsightKey struct {
	Type  types.InsightType
	Title string
}
