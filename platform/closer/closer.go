package closer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Logger interface {
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
}

type CloseFunc func(ctx context.Context) error

type namedCloser struct {
	name string
	fn   CloseFunc
}

type closer struct {
	mu      sync.Mutex
	closers []namedCloser
	logger  Logger
	closed  bool
}

var global = &closer{}

func SetLogger(l Logger) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.logger = l
}

// AddNamed registers a shutdown hook. Hooks run in reverse registration
// order, so dependencies registered first close last.
func AddNamed(name string, fn CloseFunc) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.closers = append(global.closers, namedCloser{name: name, fn: fn})
}

func CloseAll(ctx context.Context) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.closed {
		return nil
	}
	global.closed = true

	var firstErr error
	for i := len(global.closers) - 1; i >= 0; i-- {
		c := global.closers[i]

		if err := c.fn(ctx); err != nil {
			if global.logger != nil {
				global.logger.Error(ctx, "failed to close resource",
					zap.String("name", c.name),
					zap.Error(err),
				)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if global.logger != nil {
			global.logger.Info(ctx, "resource closed", zap.String("name", c.name))
		}
	}

	return firstErr
}
