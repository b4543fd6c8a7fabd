package config

import "time"

// NewMemoryForTest creates a Memory config for testing purposes
func NewMemoryForTest(backend, apiKey, agentID, baseURL string) *Memory {
	return &Memory{
		backend:     backend,
		apiKey:      apiKey,
		agentID:     agentID,
		baseURL:     baseURL,
		timeout:     time.Second,
		maxAttempts: 1,
		embedding:   EmbeddingOllama,
		ollamaURL:   "http://localhost:11434/api",
		ollamaModel: "nomic-embed-text",
	}
}

// SetEmbedding overrides the local embedding provider
func (x *Memory) SetEmbedding(provider, openAIAPIKey string) {
	x.embedding = provider
	x.openAIAPIKey = openAIAPIKey
}

// SetLocalPath sets the local backend database directory
func (x *Memory) SetLocalPath(path string) {
	x.localPath = path
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewRulesForTest creates a Rules config for testing purposes
func NewRulesForTest(path string) *Rules {
	return &Rules{path: path}
}

// NewMetricsForTest creates a Metrics config for testing purposes
func NewMetricsForTest(textfile string) *Metrics {
	return &Metrics{textfile: textfile}
}
