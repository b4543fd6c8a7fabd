package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/philippgille/chromem-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/types"
	"github.com/pulsekit/healthmem/pkg/repository/local"
	"github.com/pulsekit/healthmem/pkg/repository/remote"
	"github.com/pulsekit/healthmem/pkg/service/memory"
	"github.com/urfave/cli/v3"
)

// Embedding providers of the local backend
const (
	EmbeddingOllama = "ollama"
	EmbeddingOpenAI = "openai"
)

// DefaultLocalPath is where the local backend keeps its database
const DefaultLocalPath = ".healthmem/memory"

// Memory holds CLI flags for the memory store
type Memory struct {
	backend     string
	apiKey      string
	agentID     string
	baseURL     string
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration

	localPath    string
	embedding    string
	ollamaURL    string
	ollamaModel  string
	openAIAPIKey string
}

func (x *Memory) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "memory-backend",
			Usage:       "Memory backend type (remote or local)",
			Category:    "Memory",
			Value:       types.BackendRemote.String(),
			Sources:     cli.EnvVars("HEALTHMEM_MEMORY_BACKEND"),
			Destination: &x.backend,
		},
		&cli.StringFlag{
			Name:        "memory-api-key",
			Usage:       "API key of the remote memory service",
			Category:    "Memory",
			Sources:     cli.EnvVars("HEALTHMEM_MEMORY_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.StringFlag{
			Name:        "memory-agent-id",
			Usage:       "Agent namespace memories are stored under",
			Category:    "Memory",
			Value:       "healthmem",
			Sources:     cli.EnvVars("HEALTHMEM_MEMORY_AGENT_ID"),
			Destination: &x.agentID,
		},
		&cli.StringFlag{
			Name:        "memory-base-url",
			Usage:       "Base URL of the remote memory service",
			Category:    "Memory",
			Value:       "https://api.mem0.ai",
			Sources:     cli.EnvVars("HEALTHMEM_MEMORY_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.DurationFlag{
			Name:        "memory-timeout",
			Usage:       "Deadline of a single backend call",
			Category:    "Memory",
			Value:       memory.DefaultTimeout,
			Sources:     cli.EnvVars("HEALTHMEM_MEMORY_TIMEOUT"),
			Destination: &x.timeout,
		},
		&cli.IntFlag{
			Name:        "memory-max-attempts",
			Usage:       "Total attempts per backend operation",
			Category:    "Memory",
			Value:       memory.DefaultMaxAttempts,
			Sources:     cli.EnvVars("HEALTHMEM_MEMORY_MAX_ATTEMPTS"),
			Destination: &x.maxAttempts,
		},
		&cli.DurationFlag{
			Name:        "memory-retry-delay",
			Usage:       "First retry delay, doubled after every failed attempt",
			Category:    "Memory",
			Value:       memory.DefaultRetryDelay,
			Sources:     cli.EnvVars("HEALTHMEM_MEMORY_RETRY_DELAY"),
			Destination: &x.retryDelay,
		},
		&cli.StringFlag{
			Name:        "local-path",
			Usage:       "Directory the local backend persists memories in (in memory when empty)",
			Category:    "Memory",
			Value:       DefaultLocalPath,
			Sources:     cli.EnvVars("HEALTHMEM_LOCAL_PATH"),
			Destination: &x.localPath,
		},
		&cli.StringFlag{
			Name:        "local-embedding",
			Usage:       "Embedding provider of the local backend (ollama or openai)",
			Category:    "Memory",
			Value:       EmbeddingOllama,
			Sources:     cli.EnvVars("HEALTHMEM_LOCAL_EMBEDDING"),
			Destination: &x.embedding,
		},
		&cli.StringFlag{
			Name:        "ollama-url",
			Usage:       "Ollama API base URL",
			Category:    "Memory",
			Value:       "http://localhost:11434/api",
			Sources:     cli.EnvVars("HEALTHMEM_OLLAMA_URL"),
			Destination: &x.ollamaURL,
		},
		&cli.StringFlag{
			Name:        "ollama-model",
			Usage:       "Ollama embedding model",
			Category:    "Memory",
			Value:       "nomic-embed-text",
			Sources:     cli.EnvVars("HEALTHMEM_OLLAMA_MODEL"),
			Destination: &x.ollamaModel,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key for local backend embeddings",
			Category:    "Memory",
			Sources:     cli.EnvVars("HEALTHMEM_OPENAI_API_KEY"),
			Destination: &x.openAIAPIKey,
		},
	}
}

func (x Memory) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", x.backend),
		slog.String("agent-id", x.agentID),
		slog.String("base-url", x.baseURL),
		slog.Int("api-key.len", len(x.apiKey)),
		slog.Duration("timeout", x.timeout),
		slog.Int("max-attempts", x.maxAttempts),
		slog.String("local-path", x.localPath),
		slog.String("local-embedding", x.embedding),
	)
}

// Settings returns the store client settings
func (x *Memory) Settings() memory.Settings {
	return memory.Settings{
		Backend: types.BackendKind(x.backend),
		APIKey:  x.apiKey,
		AgentID: x.agentID,
		BaseURL: x.baseURL,
	}
}

// Configure creates the process wide store client. It never fails: a
// misconfigured backend yields an Unavailable client.
func (x *Memory) Configure(reg prometheus.Registerer) *memory.Client {
	opts := []memory.Option{
		memory.WithMetrics(memory.NewMetrics(reg)),
		memory.WithTimeout(x.timeout),
	}
	if x.maxAttempts > 0 {
		opts = append(opts, memory.WithRetry(x.maxAttempts, x.retryDelay))
	}
	return memory.New(x.Settings(), x.newBackend, opts...)
}

func (x *Memory) newBackend(s memory.Settings) (interfaces.MemoryBackend, error) {
	switch s.Backend {
	case types.BackendRemote:
		return remote.New(s.BaseURL, s.APIKey)

	case types.BackendLocal:
		embed, err := x.embeddingFunc()
		if err != nil {
			return nil, err
		}
		return local.New(embed, local.WithPath(x.localPath, false))

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown memory backend", goerr.V(FlagKey, "memory-backend"), goerr.V("value", s.Backend))
	}
}

func (x *Memory) embeddingFunc() (chromem.EmbeddingFunc, error) {
	switch x.embedding {
	case EmbeddingOllama, "":
		return local.OllamaEmbedding(x.ollamaModel, x.ollamaURL), nil
	case EmbeddingOpenAI:
		if x.openAIAPIKey == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "openai-api-key is required for openai embeddings", goerr.V(FlagKey, "openai-api-key"))
		}
		return local.OpenAIEmbedding(x.openAIAPIKey), nil
	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown embedding provider", goerr.V(FlagKey, "local-embedding"), goerr.V("value", x.embedding))
	}
}
