package async

import (
	"context"
	"sync"

	"github.com/pulsekit/healthmem/pkg/utils/errutil"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
)

var inflight sync.WaitGroup

// Dispatch runs handler in a new goroutine detached from the caller's
// cancellation. The logger attached to ctx is carried over. Errors and
// panics are logged and never reach the caller.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := context.WithoutCancel(ctx)
	bgCtx = logging.With(bgCtx, logging.From(ctx))

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, err, "async handler failed")
		}
	}()
}

// Wait blocks until every dispatched handler has returned. Commands call it
// before exiting so background writes are not lost.
func Wait() {
	inflight.Wait()
}
