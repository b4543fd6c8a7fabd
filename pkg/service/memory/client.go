package memory

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/domain/types"
	"github.com/pulsekit/healthmem/pkg/utils/errutil"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
	DefaultTimeout     = 30 * time.Second
	DefaultSearchLimit = 10
)

// State is the lifecycle state of a Client
type State int

const (
	StateUninitialized State = iota
	StateAvailable
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAvailable:
		return "available"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Settings are the credentials and identity required to reach a backend
type Settings struct {
	Backend types.BackendKind
	APIKey  string `masq:"secret"`
	AgentID string
	BaseURL string
}

// Validate reports missing settings as ErrInitialization
func (s Settings) Validate() error {
	if !s.Backend.IsValid() {
		return goerr.Wrap(ErrInitialization, "unknown memory backend", goerr.V(BackendKey, s.Backend))
	}

	var missing []string
	if s.AgentID == "" {
		missing = append(missing, "agent_id")
	}
	if s.Backend == types.BackendRemote {
		if s.APIKey == "" {
			missing = append(missing, "api_key")
		}
		if s.BaseURL == "" {
			missing = append(missing, "base_url")
		}
	}
	if len(missing) > 0 {
		return goerr.Wrap(ErrInitialization, "memory backend is not configured",
			goerr.V(BackendKey, s.Backend),
			goerr.V(MissingKey, missing),
		)
	}
	return nil
}

// BackendFactory builds the backend once settings have been validated
type BackendFactory func(Settings) (interfaces.MemoryBackend, error)

// Client is the store client shared by every use case of the process. It
// never blocks its callers on an unusable backend: once Unavailable, every
// operation returns an empty result and a nil error.
type Client struct {
	settings    Settings
	backend     interfaces.MemoryBackend
	state       State
	configured  bool
	initErr     error
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	metrics     *Metrics
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ interfaces.MemoryStore = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithRetry sets the total attempt budget and the first backoff delay. The
// delay doubles after every failed attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = max(maxAttempts, 1)
		c.baseDelay = max(baseDelay, 0)
	}
}

// WithTimeout bounds every single backend call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates the store client and initializes it. Initialization failures
// are logged and leave the client Unavailable for its lifetime.
func New(settings Settings, factory BackendFactory, opts ...Option) *Client {
	c := &Client{
		settings:    settings,
		state:       StateUninitialized,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultRetryDelay,
		timeout:     DefaultTimeout,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}

	c.initialize(factory)
	return c
}

func (c *Client) initialize(factory BackendFactory) {
	if err := c.settings.Validate(); err != nil {
		c.disable(err)
		return
	}
	c.configured = true

	if factory == nil {
		c.disable(goerr.Wrap(ErrInitialization, "no backend factory"))
		return
	}

	backend, err := factory(c.settings)
	if err != nil {
		c.disable(goerr.Wrap(ErrInitialization, "failed to create memory backend",
			goerr.V(BackendKey, c.settings.Backend),
			goerr.V("cause", err.Error()),
		))
		return
	}

	c.backend = backend
	c.state = StateAvailable
	logging.Default().Info("Memory store initialized", "settings", c.settings)
}

func (c *Client) disable(err error) {
	c.state = StateUnavailable
	c.initErr = err
	logging.Default().Warn("Memory store unavailable, memory features are disabled",
		"error", err,
		"settings", c.settings,
	)
}

// State returns the current lifecycle state
func (c *Client) State() State {
	return c.state
}

// Err returns nil while the store is Available, otherwise an error matching
// ErrUnavailable that carries the initialization failure.
func (c *Client) Err() error {
	if c.state == StateAvailable {
		return nil
	}
	reason := "not initialized"
	if c.initErr != nil {
		reason = c.initErr.Error()
	}
	return goerr.Wrap(ErrUnavailable, reason)
}

// CheckHealth reports client state without touching the network
func (c *Client) CheckHealth() model.Health {
	return model.Health{
		Available:  c.state == StateAvailable,
		Configured: c.configured,
	}
}

// usable decides whether an operation may reach the backend
func (c *Client) usable(ctx context.Context, op string) bool {
	switch c.state {
	case StateAvailable:
		return true
	case StateUninitialized, StateUnavailable:
		logging.From(ctx).Debug("Memory store unavailable, skipping operation",
			"operation", op,
			"state", c.state.String(),
		)
		c.metrics.observe(op, outcomeUnavailable, 0, time.Time{})
		return false
	default:
		return false
	}
}

// AddMemory validates, sanitizes and persists a memory
func (c *Client) AddMemory(ctx context.Context, ownerID, text string, metadata model.Metadata) (*model.WriteResult, error) {
	const op = "add_memory"
	if !c.usable(ctx, op) {
		return &model.WriteResult{}, nil
	}
	if ownerID == "" {
		return nil, c.reject(op, goerr.Wrap(ErrInvalidArgument, "owner ID is required", goerr.V(ArgumentKey, "ownerId")))
	}

	prepared, err := model.Prepare(metadata)
	if err != nil {
		return nil, c.reject(op, err)
	}

	req := model.CreateRequest{
		OwnerID:  ownerID,
		AgentID:  c.settings.AgentID,
		RunID:    model.NewRunID(),
		Text:     text,
		Metadata: prepared,
	}

	var id model.MemoryID
	err = c.run(ctx, op, func(ctx context.Context) error {
		var err error
		id, err = c.backend.Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &model.WriteResult{Success: true, MemoryID: id}, nil
}

// SearchMemory returns the records most similar to query. A non-positive
// limit uses DefaultSearchLimit.
func (c *Client) SearchMemory(ctx context.Context, ownerID, query string, filters model.SearchFilters, limit int) (*model.SearchResult, error) {
	const op = "search_memory"
	if !c.usable(ctx, op) {
		return model.EmptySearchResult(), nil
	}
	if ownerID == "" {
		return nil, c.reject(op, goerr.Wrap(ErrInvalidArgument, "owner ID is required", goerr.V(ArgumentKey, "ownerId")))
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var records []model.MemoryRecord
	err := c.run(ctx, op, func(ctx context.Context) error {
		var err error
		records, err = c.backend.Search(ctx, ownerID, c.settings.AgentID, query, filters, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	return model.NewSearchResult(records), nil
}

// GetAllMemories lists every record of the owner matching filters
func (c *Client) GetAllMemories(ctx context.Context, ownerID string, filters model.SearchFilters) (*model.SearchResult, error) {
	const op = "get_all_memories"
	if !c.usable(ctx, op) {
		return model.EmptySearchResult(), nil
	}
	if ownerID == "" {
		return nil, c.reject(op, goerr.Wrap(ErrInvalidArgument, "owner ID is required", goerr.V(ArgumentKey, "ownerId")))
	}

	var records []model.MemoryRecord
	err := c.run(ctx, op, func(ctx context.Context) error {
		var err error
		records, err = c.backend.ListAll(ctx, ownerID, c.settings.AgentID, filters)
		return err
	})
	if err != nil {
		return nil, err
	}

	return model.NewSearchResult(records), nil
}

// GetMemoryByID retrieves one record
func (c *Client) GetMemoryByID(ctx context.Context, id model.MemoryID) (*model.GetResult, error) {
	const op = "get_memory"
	if !c.usable(ctx, op) {
		return &model.GetResult{}, nil
	}
	if id == "" {
		return nil, c.reject(op, goerr.Wrap(ErrInvalidArgument, "memory ID is required", goerr.V(ArgumentKey, "id")))
	}

	var record *model.MemoryRecord
	err := c.run(ctx, op, func(ctx context.Context) error {
		var err error
		record, err = c.backend.GetByID(ctx, id)
		if err == nil && record == nil {
			return model.NewBackendStatusError(http.StatusNotFound, "no record returned")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return &model.GetResult{Success: true, Data: record}, nil
}

// UpdateMemory re-validates metadata exactly like AddMemory before replacing
// the record
func (c *Client) UpdateMemory(ctx context.Context, id model.MemoryID, text string, metadata model.Metadata) (*model.WriteResult, error) {
	const op = "update_memory"
	if !c.usable(ctx, op) {
		return &model.WriteResult{}, nil
	}
	if id == "" {
		return nil, c.reject(op, goerr.Wrap(ErrInvalidArgument, "memory ID is required", goerr.V(ArgumentKey, "id")))
	}

	prepared, err := model.Prepare(metadata)
	if err != nil {
		return nil, c.reject(op, err)
	}

	var updated model.MemoryID
	err = c.run(ctx, op, func(ctx context.Context) error {
		var err error
		updated, err = c.backend.Update(ctx, id, text, prepared)
		return err
	})
	if err != nil {
		return nil, err
	}
	if updated == "" {
		updated = id
	}

	return &model.WriteResult{Success: true, MemoryID: updated}, nil
}

// DeleteMemory removes one record
func (c *Client) DeleteMemory(ctx context.Context, id model.MemoryID) (*model.WriteResult, error) {
	const op = "delete_memory"
	if !c.usable(ctx, op) {
		return &model.WriteResult{}, nil
	}
	if id == "" {
		return nil, c.reject(op, goerr.Wrap(ErrInvalidArgument, "memory ID is required", goerr.V(ArgumentKey, "id")))
	}

	err := c.run(ctx, op, func(ctx context.Context) error {
		return c.backend.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	return &model.WriteResult{Success: true, MemoryID: id}, nil
}

// reject records a caller error that never reached the backend
func (c *Client) reject(op string, err error) error {
	c.metrics.observe(op, outcomeOf(err), 0, time.Time{})
	return err
}

// run executes call under the retry policy and records the outcome
func (c *Client) run(ctx context.Context, op string, call func(ctx context.Context) error) error {
	start := time.Now()
	attempts, err := c.retry(ctx, op, call)
	outcome := outcomeOf(err)
	c.metrics.observe(op, outcome, attempts, start)

	logger := logging.From(ctx).With(
		slog.String("operation", op),
		slog.Duration("duration", time.Since(start)),
		slog.Int("attempts", attempts),
		slog.String("outcome", outcome),
	)

	if err != nil {
		err = goerr.Wrap(err, "memory operation failed",
			goerr.V(OperationKey, op),
			goerr.V(AttemptsKey, attempts),
		)
		switch KindOf(err) {
		case KindNotFound, KindValidation:
			logger.Info("Memory operation rejected", "error", err)
		default:
			_ = errutil.Handle(logging.With(ctx, logger), err, "Memory operation failed")
		}
		return err
	}

	logger.Info("Memory operation completed")
	return nil
}

// retry issues call until it succeeds, fails permanently or the attempt
// budget is spent. It returns the number of calls made.
func (c *Client) retry(ctx context.Context, op string, call func(ctx context.Context) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt - 1)
			logging.From(ctx).Debug("Retrying memory operation",
				"operation", op,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			if err := c.sleep(ctx, delay); err != nil {
				return attempt - 1, goerr.Wrap(err, "memory operation canceled during backoff")
			}
		}

		err := c.attempt(ctx, call)
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, goerr.Wrap(ctx.Err(), "memory operation canceled", goerr.V("cause", err.Error()))
		}

		classified, transient := classify(err)
		if !transient {
			return attempt, classified
		}
		lastErr = classified
	}

	return c.maxAttempts, &RetryError{Attempts: c.maxAttempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	if c.timeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return call(ctx)
}

// backoff returns the delay before retry n (1-based): baseDelay * 2^(n-1)
func (c *Client) backoff(n int) time.Duration {
	return c.baseDelay << (n - 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
