package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seamline/api/internal/payments"
)

// ErrWebhookSignature indicates the delivery failed signature verification.
var ErrWebhookSignature = errors.New("webhook: invalid signature")

// WebhookParser is the slice of the payments manager the webhook service needs.
type WebhookParser interface {
	ParseWebhookEvent(preferred string, payload []byte, signature string) (payments.WebhookEvent, error)
}

// WebhookServiceDeps aggregates dependencies for NewPaymentWebhookService.
type WebhookServiceDeps struct {
	Parser WebhookParser
	Orders OrderService
	Logger Logger
	// Provider selects which payments provider verifies deliveries. Empty
	// falls through to the manager default.
	Provider string
}

type webhookService struct {
	parser   WebhookParser
	orders   OrderService
	logger   Logger
	provider string
}

// NewPaymentWebhookService wires the provider webhook entrypoint.
func NewPaymentWebhookService(deps WebhookServiceDeps) (PaymentWebhookService, error) {
	if deps.Parser == nil {
		return nil, errors.New("webhook service requires event parser")
	}
	if deps.Orders == nil {
		return nil, errors.New("webhook service requires order service")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &webhookService{
		parser:   deps.Parser,
		orders:   deps.Orders,
		logger:   logger,
		provider: strings.TrimSpace(deps.Provider),
	}, nil
}

// HandleWebhook verifies the delivery and applies completed checkouts to the
// order lifecycle. Unrecognised event types are acknowledged untouched so the
// provider stops retrying them.
func (s *webhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	event, err := s.parser.ParseWebhookEvent(s.provider, payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return WebhookResult{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
		}
		return WebhookResult{}, fmt.Errorf("webhook: parse event: %w", err)
	}

	result := WebhookResult{EventType: event.Type, OrderID: event.OrderID}

	switch event.Type {
	case payments.EventCheckoutCompleted:
		if event.OrderID == "" || event.SessionID == "" {
			s.logger(ctx, "webhook.missing_references", map[string]any{
				"eventType": event.Type,
				"sessionId": event.SessionID,
			})
			result.Ignored = true
			return result, nil
		}
		_, err := s.orders.ConfirmPayment(ctx, ConfirmPaymentCommand{
			OrderID:    event.OrderID,
			SessionID:  event.SessionID,
			AmountPaid: event.Amount,
			Currency:   event.Currency,
			Raw:        event.Raw,
		})
		if err != nil {
			return result, fmt.Errorf("webhook: confirm payment: %w", err)
		}
		s.logger(ctx, "webhook.payment_confirmed", map[string]any{
			"orderId":   event.OrderID,
			"sessionId": event.SessionID,
		})
		return result, nil
	default:
		result.Ignored = true
		s.logger(ctx, "webhook.ignored", map[string]any{"eventType": event.Type})
		return result, nil
	}
}

var _ PaymentWebhookService = (*webhookService)(nil)
