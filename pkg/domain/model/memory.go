package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pulsekit/healthmem/pkg/domain/types"
)

// MemoryID is the identifier assigned by the memory backend on creation
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID. Only backends that assign
// their own identifiers call this.
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// String returns the string representation of MemoryID
func (id MemoryID) String() string {
	return string(id)
}

// NewRunID returns a fresh idempotency token for a single write
func NewRunID() string {
	return uuid.New().String()
}

// MemoryRecord is one long-term memory entry as held by the backend.
// Text drives semantic retrieval; Metadata carries the taxonomy.
type MemoryRecord struct {
	ID        MemoryID  `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Text      string    `json:"memory"`
	Metadata  Metadata  `json:"metadata"`
	Score     float64   `json:"score,omitempty"` // similarity score, search results only
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// SearchFilters narrows a search or listing. Zero value means unscoped.
type SearchFilters struct {
	Category types.Category `json:"category,omitempty"`
}

// CreateRequest is the payload of a backend create call
type CreateRequest struct {
	OwnerID  string
	AgentID  string
	RunID    string
	Text     string
	Metadata Metadata
}

// WriteResult is returned by add, update and delete operations
type WriteResult struct {
	Success  bool     `json:"success"`
	MemoryID MemoryID `json:"memoryId,omitempty"`
}

// SearchResult is returned by search and list operations
type SearchResult struct {
	Success bool           `json:"success"`
	Results []MemoryRecord `json:"results"`
	Count   int            `json:"count"`
}

// NewSearchResult wraps records into a successful result. A nil slice is
// replaced by an empty one.
func NewSearchResult(records []MemoryRecord) *SearchResult {
	if records == nil {
		records = []MemoryRecord{}
	}
	return &SearchResult{
		Success: true,
		Results: records,
		Count:   len(records),
	}
}

// EmptySearchResult is the result of a read against an unavailable store
func EmptySearchResult() *SearchResult {
	return &SearchResult{Results: []MemoryRecord{}}
}

// GetResult is returned by a lookup by ID
type GetResult struct {
	Success bool          `json:"success"`
	Data    *MemoryRecord `json:"data"`
}

// Health reports the state of the memory store client
type Health struct {
	Available  bool `json:"available"`
	Configured bool `json:"configured"`
}
