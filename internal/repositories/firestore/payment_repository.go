package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/seamline/api/internal/domain"
	pfirestore "github.com/seamline/api/internal/platform/firestore"
	"github.com/seamline/api/internal/repositories"
)

const paymentsCollection = "payments"

// PaymentRepository stores payment records keyed by gateway session ID, which
// turns duplicate webhook deliveries into create conflicts.
type PaymentRepository struct {
	base *pfirestore.BaseRepository[paymentDocument]
}

// NewPaymentRepository constructs a Firestore-backed payment repository.
func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &PaymentRepository{
		base: pfirestore.NewBaseRepository[paymentDocument](provider, paymentsCollection, nil),
	}, nil
}

// Create inserts the payment record under its session ID. A second create for
// the same session surfaces as a conflict.
func (r *PaymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	if r == nil || r.base == nil {
		return errors.New("payment repository not initialised")
	}
	sessionID := strings.TrimSpace(payment.SessionID)
	if sessionID == "" {
		return errors.New("payment repository: session id is required")
	}
	_, err := r.base.Create(ctx, sessionID, encodePayment(payment))
	return err
}

// Update replaces the payment record, used when refunds are recorded.
func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	if r == nil || r.base == nil {
		return errors.New("payment repository not initialised")
	}
	sessionID := strings.TrimSpace(payment.SessionID)
	if sessionID == "" {
		return errors.New("payment repository: session id is required")
	}
	_, err := r.base.Set(ctx, sessionID, encodePayment(payment))
	return err
}

// FindBySession loads the payment record for a gateway session.
func (r *PaymentRepository) FindBySession(ctx context.Context, sessionID string) (domain.Payment, error) {
	if r == nil || r.base == nil {
		return domain.Payment{}, errors.New("payment repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return domain.Payment{}, err
	}
	return decodePayment(doc.ID, doc.Data), nil
}

// ListByOrder returns all payment records against an order, oldest first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("payment repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("orderId", "==", strings.TrimSpace(orderID)).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, 0, len(docs))
	for _, doc := range docs {
		payments = append(payments, decodePayment(doc.ID, doc.Data))
	}
	return payments, nil
}

type paymentDocument struct {
	OrderID    string         `firestore:"orderId"`
	Provider   string         `firestore:"provider"`
	IntentID   string         `firestore:"intentId,omitempty"`
	Status     string         `firestore:"status"`
	Amount     int64          `firestore:"amount"`
	Currency   string         `firestore:"currency"`
	RefundID   string         `firestore:"refundId,omitempty"`
	RefundedAt *time.Time     `firestore:"refundedAt,omitempty"`
	Raw        map[string]any `firestore:"raw,omitempty"`
	CreatedAt  time.Time      `firestore:"createdAt"`
	UpdatedAt  time.Time      `firestore:"updatedAt"`
}

func encodePayment(payment domain.Payment) paymentDocument {
	doc := paymentDocument{
		OrderID:    strings.TrimSpace(payment.OrderID),
		Provider:   strings.TrimSpace(payment.Provider),
		IntentID:   strings.TrimSpace(payment.IntentID),
		Status:     strings.TrimSpace(payment.Status),
		Amount:     payment.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(payment.Currency)),
		RefundedAt: utcPtr(payment.RefundedAt),
		Raw:        payment.Raw,
		CreatedAt:  payment.CreatedAt.UTC(),
		UpdatedAt:  payment.UpdatedAt.UTC(),
	}
	if payment.RefundID != nil {
		doc.RefundID = strings.TrimSpace(*payment.RefundID)
	}
	return doc
}

func decodePayment(id string, doc paymentDocument) domain.Payment {
	payment := domain.Payment{
		ID:         id,
		OrderID:    doc.OrderID,
		Provider:   doc.Provider,
		SessionID:  id,
		IntentID:   doc.IntentID,
		Status:     doc.Status,
		Amount:     doc.Amount,
		Currency:   doc.Currency,
		RefundedAt: doc.RefundedAt,
		Raw:        doc.Raw,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if doc.RefundID != "" {
		payment.RefundID = &doc.RefundID
	}
	return payment
}

var _ repositories.OrderPaymentRepository = (*PaymentRepository)(nil)
