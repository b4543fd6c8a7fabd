package usecase_test

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/types"
)

type searchCall struct {
	ownerID string
	query   string
	filters model.SearchFilters
	limit   int
}

// mockStore is a hand-written MemoryStore. Search answers come from
// byCategory keyed by the filter category; "" is the unscoped answer.
type mockStore struct {
	mu sync.Mutex

	byCategory map[types.Category][]model.MemoryRecord
	searchErr  map[types.Category]error
	all        []model.MemoryRecord
	allErr     error
	deleteErr  map[model.MemoryID]error

	searches []searchCall
	added    []model.Metadata
	addedTxt []string
	deleted  []model.MemoryID
}

var _ interfaces.MemoryStore = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		byCategory: map[types.Category][]model.MemoryRecord{},
		searchErr:  map[types.Category]error{},
		deleteErr:  map[model.MemoryID]error{},
	}
}

func (m *mockStore) AddMemory(ctx context.Context, ownerID, text string, metadata model.Metadata) (*model.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, metadata)
	m.addedTxt = append(m.addedTxt, text)
	return &model.WriteResult{Success: true, MemoryID: model.NewMemoryID()}, nil
}

func (m *mockStore) SearchMemory(ctx context.Context, ownerID, query string, filters model.SearchFilters, limit int) (*model.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, searchCall{ownerID: ownerID, query: query, filters: filters, limit: limit})
	if err := m.searchErr[filters.Category]; err != nil {
		return nil, err
	}
	return model.NewSearchResult(m.byCategory[filters.Category]), nil
}

func (m *mockStore) GetAllMemories(ctx context.Context, ownerID string, filters model.SearchFilters) (*model.SearchResult, error) {
	if m.allErr != nil {
		return nil, m.allErr
	}
	return model.NewSearchResult(m.all), nil
}

func (m *mockStore) GetMemoryByID(ctx context.Context, id model.MemoryID) (*model.GetResult, error) {
	return nil, goerr.New("not implemented")
}

func (m *mockStore) UpdateMemory(ctx context.Context, id model.MemoryID, text string, metadata model.Metadata) (*model.WriteResult, error) {
	return nil, goerr.New("not implemented")
}

func (m *mockStore) DeleteMemory(ctx context.Context, id model.MemoryID) (*model.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[id]; err != nil {
		return nil, err
	}
	m.deleted = append(m.deleted, id)
	return &model.WriteResult{Success: true, MemoryID: id}, nil
}

func (m *mockStore) CheckHealth() model.Health {
	return model.Health{Available: true, Configured: true}
}

func (m *mockStore) addedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.added)
}

func (m *mockStore) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searches)
}

// record builds a stored record the way the store client would return it
func record(id, text string, category types.Category, fields model.ModuleSpecific) model.MemoryRecord {
	return model.MemoryRecord{
		ID:   model.MemoryID(id),
		Text: text,
		Metadata: model.Metadata{
			Category:       category,
			Source:         types.SourceUserInput,
			Confidence:     model.Confidence(0.95),
			Timestamp:      "2025-01-10T08:00:00.000Z",
			Timezone:       "UTC",
			Tags:           []string{},
			ModuleSpecific: fields,
		},
	}
}

func sleepRecord(id string, hours float64) model.MemoryRecord {
	return record(id, "Slept some hours", types.CategoryRecoverySleep, model.ModuleSpecific{"hours": hours, "quality_score": 6.0})
}

func trainingRecord(id string, rpe float64) model.MemoryRecord {
	return record(id, "Strength workout", types.CategoryFitnessTraining, model.ModuleSpecific{"workout_type": "strength", "duration_mins": 60.0, "rpe": rpe})
}
