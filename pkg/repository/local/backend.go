package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
)

const collectionPrefix = "memories_"

// Document metadata keys. The whole record lives on the chromem document.
const (
	metaOwnerID   = "owner_id"
	metaAgentID   = "agent_id"
	metaCategory  = "category"
	metaRunID     = "run_id"
	metaCreatedAt = "created_at"
	metaMetadata  = "metadata"
)

// listQuery ranks documents when every document of a collection is wanted.
// chromem has no listing call, so ListAll queries with nResults equal to
// the collection size.
const listQuery = "health memory"

// Backend is an embedded semantic memory for development, backed by
// chromem-go. With a path it persists to disk and survives restarts.
type Backend struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc
	now   func() time.Time
}

var _ interfaces.MemoryBackend = (*Backend)(nil)

type options struct {
	path     string
	compress bool
}

// Option configures a Backend
type Option func(*options)

// WithPath persists the database under path. An empty path keeps it in
// memory.
func WithPath(path string, compress bool) Option {
	return func(o *options) {
		o.path = path
		o.compress = compress
	}
}

// New opens a backend computing embeddings with embed
func New(embed chromem.EmbeddingFunc, opts ...Option) (*Backend, error) {
	if embed == nil {
		return nil, goerr.New("embedding function is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db := chromem.NewDB()
	if o.path != "" {
		persistent, err := chromem.NewPersistentDB(o.path, o.compress)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open local memory database", goerr.V("path", o.path))
		}
		db = persistent
	}

	return &Backend{
		db:    db,
		embed: embed,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// OllamaEmbedding embeds with a local Ollama server
func OllamaEmbedding(modelName, baseURL string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOllama(modelName, baseURL)
}

// OpenAIEmbedding embeds with OpenAI text-embedding-3-small
func OpenAIEmbedding(apiKey string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small)
}

func notFound(id model.MemoryID) error {
	return model.NewBackendStatusError(http.StatusNotFound, fmt.Sprintf("memory %s not found", id))
}

func collectionName(ownerID, agentID string) string {
	return collectionPrefix + agentID + "_" + ownerID
}

func (b *Backend) collection(ownerID, agentID string) (*chromem.Collection, error) {
	name := collectionName(ownerID, agentID)
	col, err := b.db.GetOrCreateCollection(name, nil, b.embed)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open collection", goerr.V("collection", name))
	}
	return col, nil
}

func newDocument(id model.MemoryID, ownerID, agentID, runID, text string, metadata model.Metadata, createdAt time.Time) (chromem.Document, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return chromem.Document{}, goerr.Wrap(err, "failed to encode metadata", goerr.V("memory_id", id))
	}
	return chromem.Document{
		ID:      id.String(),
		Content: text,
		Metadata: map[string]string{
			metaOwnerID:   ownerID,
			metaAgentID:   agentID,
			metaCategory:  metadata.Category.String(),
			metaRunID:     runID,
			metaCreatedAt: createdAt.Format(time.RFC3339Nano),
			metaMetadata:  string(raw),
		},
	}, nil
}

// toRecord rebuilds a memory from a stored document
func toRecord(id, content string, meta map[string]string) (model.MemoryRecord, error) {
	rec := model.MemoryRecord{
		ID:      model.MemoryID(id),
		OwnerID: meta[metaOwnerID],
		Text:    content,
	}
	if raw := meta[metaMetadata]; raw != "" {
		md, err := model.ParseMetadata([]byte(raw))
		if err != nil {
			return rec, err
		}
		rec.Metadata = *md
	}
	if ts, err := time.Parse(time.RFC3339Nano, meta[metaCreatedAt]); err == nil {
		rec.CreatedAt = ts
	}
	return rec, nil
}

func categoryWhere(filters model.SearchFilters) map[string]string {
	if filters.Category == "" {
		return nil
	}
	return map[string]string{metaCategory: filters.Category.String()}
}

// query runs a ranked query and converts the results. Documents that no
// longer decode are skipped.
func (b *Backend) query(ctx context.Context, col *chromem.Collection, text string, limit int, where map[string]string) ([]model.MemoryRecord, error) {
	n := min(limit, col.Count())
	if n <= 0 {
		return []model.MemoryRecord{}, nil
	}

	results, err := col.Query(ctx, text, n, where, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query collection", goerr.V("collection", col.Name))
	}

	out := make([]model.MemoryRecord, 0, len(results))
	for _, res := range results {
		rec, err := toRecord(res.ID, res.Content, res.Metadata)
		if err != nil {
			logging.From(ctx).Warn("Skipping undecodable local memory", "memory_id", res.ID, "error", err)
			continue
		}
		rec.Score = float64(res.Similarity)
		out = append(out, rec)
	}
	return out, nil
}

func (b *Backend) Create(ctx context.Context, req model.CreateRequest) (model.MemoryID, error) {
	col, err := b.collection(req.OwnerID, req.AgentID)
	if err != nil {
		return "", err
	}

	id := model.NewMemoryID()
	doc, err := newDocument(id, req.OwnerID, req.AgentID, req.RunID, req.Text, req.Metadata, b.now())
	if err != nil {
		return "", err
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return "", goerr.Wrap(err, "failed to index memory", goerr.V("memory_id", id))
	}
	return id, nil
}

// Search ranks the owner's documents within the category filter. An empty
// query degrades to a listing.
func (b *Backend) Search(ctx context.Context, ownerID, agentID, query string, filters model.SearchFilters, limit int) ([]model.MemoryRecord, error) {
	if strings.TrimSpace(query) == "" {
		all, err := b.ListAll(ctx, ownerID, agentID, filters)
		if err != nil {
			return nil, err
		}
		return all[:min(limit, len(all))], nil
	}

	col, err := b.collection(ownerID, agentID)
	if err != nil {
		return nil, err
	}
	return b.query(ctx, col, query, limit, categoryWhere(filters))
}

// ListAll returns records oldest first
func (b *Backend) ListAll(ctx context.Context, ownerID, agentID string, filters model.SearchFilters) ([]model.MemoryRecord, error) {
	col, err := b.collection(ownerID, agentID)
	if err != nil {
		return nil, err
	}

	out, err := b.query(ctx, col, listQuery, col.Count(), categoryWhere(filters))
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Score = 0
	}

	slices.SortFunc(out, func(a, b model.MemoryRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// find locates the document of id across every memory collection
func (b *Backend) find(ctx context.Context, id model.MemoryID) (*chromem.Collection, chromem.Document, bool) {
	for name, col := range b.db.ListCollections() {
		if !strings.HasPrefix(name, collectionPrefix) {
			continue
		}
		doc, err := col.GetByID(ctx, id.String())
		if err == nil {
			return col, doc, true
		}
	}
	return nil, chromem.Document{}, false
}

func (b *Backend) GetByID(ctx context.Context, id model.MemoryID) (*model.MemoryRecord, error) {
	_, doc, ok := b.find(ctx, id)
	if !ok {
		return nil, notFound(id)
	}
	rec, err := toRecord(doc.ID, doc.Content, doc.Metadata)
	if err != nil {
		return nil, goerr.Wrap(err, "stored memory is undecodable", goerr.V("memory_id", id))
	}
	return &rec, nil
}

// Update re-indexes the document under the same ID. AddDocument replaces
// the stored document, so the old version stays until the new one is in.
func (b *Backend) Update(ctx context.Context, id model.MemoryID, text string, metadata model.Metadata) (model.MemoryID, error) {
	_, cur, ok := b.find(ctx, id)
	if !ok {
		return "", notFound(id)
	}

	ownerID, agentID := cur.Metadata[metaOwnerID], cur.Metadata[metaAgentID]
	createdAt, err := time.Parse(time.RFC3339Nano, cur.Metadata[metaCreatedAt])
	if err != nil {
		createdAt = b.now()
	}

	col, err := b.collection(ownerID, agentID)
	if err != nil {
		return "", err
	}
	doc, err := newDocument(id, ownerID, agentID, cur.Metadata[metaRunID], text, metadata, createdAt)
	if err != nil {
		return "", err
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return "", goerr.Wrap(err, "failed to index memory", goerr.V("memory_id", id))
	}
	return id, nil
}

func (b *Backend) Delete(ctx context.Context, id model.MemoryID) error {
	col, _, ok := b.find(ctx, id)
	if !ok {
		return notFound(id)
	}
	if err := col.Delete(ctx, nil, nil, id.String()); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("memory_id", id))
	}
	return nil
}
