package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultAlertWindow = 10 * time.Minute

// AlertThrottle rate-limits login-notification emails per recipient,
// backed by Redis. Key format: login_alert:<email>
type AlertThrottle struct {
	client *redis.Client
	window time.Duration
}

// NewAlertThrottle creates an AlertThrottle wrapping the given Redis
// client. If window <= 0, defaultAlertWindow is used.
func NewAlertThrottle(client *redis.Client, window time.Duration) *AlertThrottle {
	if window <= 0 {
		window = defaultAlertWindow
	}
	return &AlertThrottle{client: client, window: window}
}

// Allow reports whether an alert may be sent to email now, and if so
// claims the window so the next call within it returns false.
func (t *AlertThrottle) Allow(ctx context.Context, email string) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.key(email), "1", t.window).Result()
	if err != nil {
		return false, fmt.Errorf("alert throttle: %w", err)
	}
	return ok, nil
}

func (t *AlertThrottle) key(email string) string {
	return "login_alert:" + email
}
