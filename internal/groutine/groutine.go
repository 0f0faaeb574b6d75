package groutine

import (
	"context"
	"runtime/debug"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts a goroutine labelled with name for profiles and stack dumps.
// Example usage:
//
//	groutine.Go(ctx, logger, "radio-scan", func(ctx context.Context) {
//	    // work
//	})
//
// A panic inside fn is logged with its stack and swallowed: a failing radio callback
// must not take the session down. If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, logger *logrus.Logger, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.WithFields(logrus.Fields{
					"goroutine": name,
					"panic":     r,
					"stack":     string(debug.Stack()),
				}).Error("Goroutine panicked")
			}
		}()
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
