package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
)

const (
	// DefaultRetentionDays is how long records are kept by CleanupOldMemories
	DefaultRetentionDays = 730

	// DefaultConfidenceThreshold is the cut-off used by CleanupLowConfidence
	DefaultConfidenceThreshold = 0.7

	// duplicateScore is the similarity a result needs before identical text
	// counts as a duplicate
	duplicateScore = 0.95

	duplicateSearchLimit = 5
)

// CleanupResult counts the outcome of a batch deletion
type CleanupResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

func (r *CleanupResult) add(other *CleanupResult) {
	r.Deleted += other.Deleted
	r.Failed += other.Failed
}

// HygieneUseCase keeps redundant, stale and low-trust records out of memory
type HygieneUseCase struct {
	store interfaces.MemoryStore
	now   func() time.Time
}

func NewHygieneUseCase(store interfaces.MemoryStore) *HygieneUseCase {
	return &HygieneUseCase{
		store: store,
		now:   time.Now,
	}
}

// IsDuplicate reports whether a record equivalent to the candidate already
// exists. Any retrieval error answers false.
func (uc *HygieneUseCase) IsDuplicate(ctx context.Context, ownerID, text string, metadata model.Metadata) bool {
	logger := logging.From(ctx)

	result, err := uc.store.SearchMemory(ctx, ownerID, text, model.SearchFilters{Category: metadata.Category}, duplicateSearchLimit)
	if err != nil {
		logger.Warn("duplicate check failed, assuming unique", "error", err, "owner_id", ownerID)
		return false
	}
	if result == nil || len(result.Results) == 0 {
		return false
	}

	candidate, err := storedFields(metadata)
	if err != nil {
		logger.Warn("failed to encode candidate fields, assuming unique", "error", err)
		return false
	}

	for _, r := range result.Results {
		if r.Score > duplicateScore && r.Text == text {
			return true
		}
		if r.Metadata.Category != metadata.Category {
			continue
		}
		existing, err := storedFields(r.Metadata)
		if err == nil && string(existing) == string(candidate) {
			return true
		}
	}
	return false
}

// storedFields serializes module specific data the way the write path
// stores it: defaults filled and PII removed
func storedFields(metadata model.Metadata) ([]byte, error) {
	return json.Marshal(model.Sanitize(model.Normalize(metadata)).ModuleSpecific)
}

// CleanupOldMemories deletes the owner's records older than retentionDays.
// Records whose timestamp cannot be parsed are kept.
func (uc *HygieneUseCase) CleanupOldMemories(ctx context.Context, ownerID string, retentionDays int) (*CleanupResult, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := uc.now().AddDate(0, 0, -retentionDays)

	return uc.deleteMatching(ctx, ownerID, "age", func(r model.MemoryRecord) bool {
		ts, err := r.Metadata.Time()
		return err == nil && ts.Before(cutoff)
	})
}

// CleanupLowConfidence deletes the owner's records whose confidence is
// below threshold. Records without an explicit confidence are kept.
func (uc *HygieneUseCase) CleanupLowConfidence(ctx context.Context, ownerID string, threshold float64) (*CleanupResult, error) {
	return uc.deleteMatching(ctx, ownerID, "confidence", func(r model.MemoryRecord) bool {
		return r.Metadata.Confidence != nil && *r.Metadata.Confidence < threshold
	})
}

// Cleanup runs the age pass then the confidence pass
func (uc *HygieneUseCase) Cleanup(ctx context.Context, ownerID string, retentionDays int, threshold float64) (*CleanupResult, error) {
	total := &CleanupResult{}

	byAge, err := uc.CleanupOldMemories(ctx, ownerID, retentionDays)
	if err != nil {
		return nil, err
	}
	total.add(byAge)

	byConfidence, err := uc.CleanupLowConfidence(ctx, ownerID, threshold)
	if err != nil {
		return nil, err
	}
	total.add(byConfidence)

	return total, nil
}

func (uc *HygieneUseCase) deleteMatching(ctx context.Context, ownerID, reason string, match func(model.MemoryRecord) bool) (*CleanupResult, error) {
	if ownerID == "" {
		return nil, goerr.Wrap(ErrOwnerRequired, "cleanup needs an owner")
	}

	all, err := uc.store.GetAllMemories(ctx, ownerID, model.SearchFilters{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories for cleanup", goerr.V(OwnerIDKey, ownerID))
	}

	result := &CleanupResult{}
	for _, r := range all.Results {
		if !match(r) {
			continue
		}
		if _, err := uc.store.DeleteMemory(ctx, r.ID); err != nil {
			logging.From(ctx).Warn("failed to delete memory during cleanup",
				"error", err,
				"memory_id", r.ID,
				"reason", reason,
			)
			result.Failed++
			continue
		}
		result.Deleted++
	}

	logging.From(ctx).Info("memory cleanup finished",
		"owner_id", ownerID,
		"reason", reason,
		"deleted", result.Deleted,
		"failed", result.Failed,
	)
	return result, nil
}
