package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// Notifier delivers a message about eventType to recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, eventType string, payload any) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, recipient, eventType string, payload any) error {
	n.logger.Info("notification",
		zap.String("recipient", recipient),
		zap.String("event_type", eventType),
		zap.Any("payload", payload))
	return nil
}

// WebhookNotifier posts notifications as JSON to a fixed URL.
type WebhookNotifier struct {
	url     string
	timeout time.Duration
}

type webhookBody struct {
	Recipient string    `json:"recipient"`
	EventType string    `json:"event_type"`
	SentAt    time.Time `json:"sent_at"`
	Payload   any       `json:"payload"`
}

// NewWebhookNotifier creates a notifier that posts to url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{url: url, timeout: timeout}
}

func (n *WebhookNotifier) Send(ctx context.Context, recipient, eventType string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrNotificationFailure, err)
	}
	agent := fiber.Post(n.url).
		Timeout(n.timeout).
		JSON(webhookBody{
			Recipient: recipient,
			EventType: eventType,
			SentAt:    time.Now().UTC(),
			Payload:   payload,
		})
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", apperrors.ErrNotificationFailure, errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("%w: webhook responded %d", apperrors.ErrNotificationFailure, code)
	}
	return nil
}

// MultiNotifier fans out to every notifier and joins their failures.
type MultiNotifier []Notifier

func (m MultiNotifier) Send(ctx context.Context, recipient, eventType string, payload any) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, recipient, eventType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
