package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/utils/async"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
)

// IngestUseCase turns domain events into memories
type IngestUseCase struct {
	store   interfaces.MemoryStore
	hygiene *HygieneUseCase
}

func NewIngestUseCase(store interfaces.MemoryStore, hygiene *HygieneUseCase) *IngestUseCase {
	return &IngestUseCase{
		store:   store,
		hygiene: hygiene,
	}
}

// Record writes the event unless an equivalent memory exists. A skipped
// duplicate returns a nil result and no error.
func (uc *IngestUseCase) Record(ctx context.Context, ownerID string, event model.Event) (*model.WriteResult, error) {
	if ownerID == "" {
		return nil, goerr.Wrap(ErrOwnerRequired, "cannot record event")
	}

	text, metadata := event.Memory()
	if uc.hygiene != nil && uc.hygiene.IsDuplicate(ctx, ownerID, text, metadata) {
		logging.From(ctx).Info("skipped duplicate memory",
			"owner_id", ownerID,
			"category", metadata.Category,
		)
		return nil, nil
	}

	result, err := uc.store.AddMemory(ctx, ownerID, text, metadata)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to record event",
			goerr.V(OwnerIDKey, ownerID),
			goerr.V(CategoryKey, metadata.Category),
		)
	}
	return result, nil
}

// RecordAsync records the event in the background. Failures are logged and
// never reach the caller.
func (uc *IngestUseCase) RecordAsync(ctx context.Context, ownerID string, event model.Event) {
	async.Dispatch(ctx, func(ctx context.Context) error {
		_, err := uc.Record(ctx, ownerID, event)
		return err
	})
}
