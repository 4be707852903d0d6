package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/revlens/internal/observability/logger"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"go.uber.org/zap"
)

const (
	HeaderWebhookSignature = "X-Revlens-Signature"

	maxWebhookBody = 1 << 20
)

type webhookEvent struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// HandleWebhook verifies a signed upstream event and schedules a capture for
// the company when the event touches memberships or payments.
func (s *Server) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	companyID := strings.TrimSpace(c.Param("id"))

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	company, err := s.companySvc.Load(ctx, companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !validSignature(company.WebhookSecret, payload, c.GetHeader(HeaderWebhookSignature)) {
		s.obsMetrics.RecordWebhookEvent(ctx, "unknown", "invalid_signature")
		AbortWithError(c, ErrInvalidSignature)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil || strings.TrimSpace(event.Action) == "" {
		s.obsMetrics.RecordWebhookEvent(ctx, "unknown", "invalid_payload")
		AbortWithError(c, invalidRequestError())
		return
	}

	eventType := webhookEventType(event.Action)
	if eventType == "" || !company.Active {
		s.obsMetrics.RecordWebhookEvent(ctx, eventTypeLabel(eventType), "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if s.webhookLimiter.Enabled() {
		result, err := s.webhookLimiter.Allow(ctx, companyID)
		if err != nil {
			logger.FromContext(ctx).Warn("webhook rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			s.obsMetrics.RecordWebhookEvent(ctx, eventType, "rate_limited")
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	s.obsMetrics.RecordWebhookEvent(ctx, eventType, "accepted")
	s.dispatch(func() { s.captureFromWebhook(ctx, companyID, event.Action) })

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) captureFromWebhook(parent context.Context, companyID, action string) {
	ctx := context.WithoutCancel(parent)
	if s.captureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.captureTimeout)
		defer cancel()
	}

	log := logger.FromContext(ctx).With(zap.String("action", action))
	_, err := s.snapshotSvc.Capture(ctx, snapshotdomain.CaptureRequest{
		CompanyID: companyID,
		Trigger:   snapshotdomain.TriggerWebhook,
	})
	switch {
	case err == nil:
		log.Info("webhook capture completed")
	case errors.Is(err, snapshotdomain.ErrCaptureInProgress):
		log.Info("webhook capture skipped, capture already in progress")
	default:
		log.Warn("webhook capture failed", zap.Error(err))
	}
}

func validSignature(secret string, payload []byte, signature string) bool {
	secret = strings.TrimSpace(secret)
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

// webhookEventType maps an upstream action to the resource it changes.
func webhookEventType(action string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	switch {
	case strings.HasPrefix(action, "membership."):
		return "membership"
	case strings.HasPrefix(action, "payment."):
		return "payment"
	default:
		return ""
	}
}

func eventTypeLabel(eventType string) string {
	if eventType == "" {
		return "other"
	}
	return eventType
}
