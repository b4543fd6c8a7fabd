package interfaces

import (
	"context"

	"github.com/pulsekit/healthmem/pkg/domain/model"
)

// MemoryBackend is the contract expected from a semantic memory service.
// Failures carrying an HTTP-like status are reported as
// *model.BackendStatusError so the store client can classify them.
type MemoryBackend interface {
	// Create persists a new record and returns the backend assigned ID
	Create(ctx context.Context, req model.CreateRequest) (model.MemoryID, error)

	// Search returns up to limit records ranked by semantic similarity to query
	Search(ctx context.Context, ownerID, agentID, query string, filters model.SearchFilters, limit int) ([]model.MemoryRecord, error)

	// ListAll returns every record of the owner matching filters
	ListAll(ctx context.Context, ownerID, agentID string, filters model.SearchFilters) ([]model.MemoryRecord, error)

	// GetByID retrieves a single record
	GetByID(ctx context.Context, id model.MemoryID) (*model.MemoryRecord, error)

	// Update replaces text and metadata of an existing record
	Update(ctx context.Context, id model.MemoryID, text string, metadata model.Metadata) (model.MemoryID, error)

	// Delete removes a record
	Delete(ctx context.Context, id model.MemoryID) error
}

// MemoryStore is the only path use cases take to long-term memory. An
// unavailable store answers every operation with an empty result and a nil
// error.
type MemoryStore interface {
	AddMemory(ctx context.Context, ownerID, text string, metadata model.Metadata) (*model.WriteResult, error)
	SearchMemory(ctx context.Context, ownerID, query string, filters model.SearchFilters, limit int) (*model.SearchResult, error)
	GetAllMemories(ctx context.Context, ownerID string, filters model.SearchFilters) (*model.SearchResult, error)
	GetMemoryByID(ctx context.Context, id model.MemoryID) (*model.GetResult, error)
	UpdateMemory(ctx context.Context, id model.MemoryID, text string, metadata model.Metadata) (*model.WriteResult, error)
	DeleteMemory(ctx context.Context, id model.MemoryID) (*model.WriteResult, error)

	// CheckHealth reports client state without touching the network
	CheckHealth() model.Health
}
