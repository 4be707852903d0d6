package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/revlens/internal/config"
)

const keyWebhookCompany = "revlens:webhook:company:%s"

// WebhookLimiter bounds how often one company's webhooks may trigger captures.
type WebhookLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewWebhookLimiter returns nil when webhook limiting is disabled.
func NewWebhookLimiter(cfg config.Config, client *redis.Client) *WebhookLimiter {
	if cfg.Webhook.Rate <= 0 || cfg.Webhook.Burst <= 0 || client == nil {
		return nil
	}
	return &WebhookLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.Webhook.Rate,
		burst:  cfg.Webhook.Burst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WebhookLimiter) Allow(ctx context.Context, companyID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookCompany, strings.TrimSpace(companyID)), l.rate, l.burst)
}
