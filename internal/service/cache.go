package service

import (
	"context"
	"log/slog"
	"time"
)

// CacheInvalidator drops cached public reads (provider search, dropdowns)
// that depend on the user directory.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// invalidate runs after a committed directory change.  Failures only leave
// stale entries until their TTL, so they are logged and swallowed.
func invalidate(ctx context.Context, c CacheInvalidator, log *slog.Logger, reason string) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := c.Invalidate(ctx); err != nil {
		log.Warn("response cache invalidation failed", "reason", reason, "error", err)
	}
}
