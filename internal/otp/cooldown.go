package otp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCooldown is the minimum gap between OTP sends per (kind, email).
const DefaultCooldown = 60 * time.Second

// Cooldown throttles OTP resends using Redis SET NX. It fails open: if Redis
// is unreachable the resend is allowed rather than blocking legitimate users
// on a cache outage.
type Cooldown struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCooldown creates a resend throttle. A nil client disables throttling.
func NewCooldown(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cooldown {
	if ttl <= 0 {
		ttl = DefaultCooldown
	}
	return &Cooldown{client: client, ttl: ttl, logger: logger}
}

// Allow reports whether a send is permitted for the given challenge kind and
// email. The first call in a window claims the slot; subsequent calls within
// the TTL are denied.
func (c *Cooldown) Allow(ctx context.Context, kind, email string) bool {
	if c == nil || c.client == nil {
		return true
	}

	key := fmt.Sprintf("otp:cooldown:%s:%s", kind, strings.ToLower(email))
	ok, err := c.client.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "otp cooldown check failed, allowing send",
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
		return true
	}
	return ok
}
