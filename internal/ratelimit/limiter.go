// Package ratelimit admits or rejects requests per caller key using a fixed window.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request from key fits in the current window.
// A window starts with the first admitted request and lasts for window.
type Limiter interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration) bool
}
