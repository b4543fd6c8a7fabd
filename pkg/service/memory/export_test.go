package memory

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WithSleep replaces the backoff sleeper
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = f
	}
}

func OperationsCounter(m *Metrics) *prometheus.CounterVec {
	return m.operations
}

func AttemptsCounter(m *Metrics) *prometheus.CounterVec {
	return m.attempts
}

func Backoff(c *Client, n int) time.Duration {
	return c.backoff(n)
}
