package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/repositories"
)

// Sentinel errors surfaced by the recovery resolver. Handlers map them to
// 404 and 410 respectively.
var (
	ErrRecoveryNotFound = errors.New("recovery: token not found")
	ErrRecoveryExpired  = errors.New("recovery: token expired")
)

// RecoveryServiceDeps aggregates dependencies for NewRecoveryService.
type RecoveryServiceDeps struct {
	Reminders repositories.ReminderRepository
	Orders    repositories.OrderRepository
	Carts     repositories.CartRepository
	Clock     Clock
	Logger    Logger
	// TokenTTL is how long a reminder token stays redeemable (default 7 days).
	TokenTTL time.Duration
}

type recoveryService struct {
	reminders repositories.ReminderRepository
	orders    repositories.OrderRepository
	carts     repositories.CartRepository
	clock     Clock
	logger    Logger
	tokenTTL  time.Duration
}

// NewRecoveryService wires the reminder-link resolver with its dependencies.
func NewRecoveryService(deps RecoveryServiceDeps) (RecoveryService, error) {
	if deps.Reminders == nil {
		return nil, errors.New("recovery service requires reminder repository")
	}
	if deps.Orders == nil {
		return nil, errors.New("recovery service requires order repository")
	}
	if deps.Carts == nil {
		return nil, errors.New("recovery service requires cart repository")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	tokenTTL := deps.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}

	return &recoveryService{
		reminders: deps.Reminders,
		orders:    deps.Orders,
		carts:     deps.Carts,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:   logger,
		tokenTTL: tokenTTL,
	}, nil
}

// Resolve turns a reminder token into a redirect decision. The click stamp is
// first-click-only; a failure to stamp never blocks the customer.
func (s *recoveryService) Resolve(ctx context.Context, token string) (Resolution, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Resolution{}, ErrRecoveryNotFound
	}

	reminder, err := s.reminders.FindByToken(ctx, token)
	if err != nil {
		if isRepoNotFound(err) {
			return Resolution{}, ErrRecoveryNotFound
		}
		return Resolution{}, fmt.Errorf("recovery: find token: %w", err)
	}

	now := s.clock()
	if now.Sub(reminder.SentAt) > s.tokenTTL {
		return Resolution{}, ErrRecoveryExpired
	}

	if reminder.ClickedAt == nil {
		if _, err := s.reminders.MarkClicked(ctx, reminder.ID, now); err != nil && !isRepoConflict(err) {
			s.logger(ctx, "recovery.click_stamp_failed", map[string]any{
				"reminderId": reminder.ID,
				"error":      err.Error(),
			})
		}
	}

	switch reminder.Family {
	case domain.ReminderFamilyPayment:
		return s.resolvePayment(ctx, reminder, now)
	case domain.ReminderFamilyCart:
		return s.resolveCart(ctx, reminder)
	default:
		return Resolution{}, ErrRecoveryNotFound
	}
}

func (s *recoveryService) resolvePayment(ctx context.Context, reminder domain.Reminder, now time.Time) (Resolution, error) {
	order, err := s.orders.FindByID(ctx, reminder.SubjectID)
	if err != nil {
		if isRepoNotFound(err) {
			return Resolution{
				Outcome: domain.RecoveryOutcomeAlreadyProcessed,
				Family:  domain.ReminderFamilyPayment,
				OrderID: reminder.SubjectID,
			}, nil
		}
		return Resolution{}, fmt.Errorf("recovery: load order: %w", err)
	}

	if order.Status != domain.OrderStatusPendingPayment {
		return Resolution{
			Outcome: domain.RecoveryOutcomeAlreadyProcessed,
			Family:  domain.ReminderFamilyPayment,
			OrderID: order.ID,
		}, nil
	}

	res := Resolution{
		Outcome: domain.RecoveryOutcomeResumeCheckout,
		Family:  domain.ReminderFamilyPayment,
		OrderID: order.ID,
	}
	if ref := order.Checkout; ref != nil {
		live := ref.ExpiresAt == nil || ref.ExpiresAt.After(now)
		if live {
			res.CheckoutURL = ref.RedirectURL
		}
	}
	return res, nil
}

func (s *recoveryService) resolveCart(ctx context.Context, reminder domain.Reminder) (Resolution, error) {
	cart, err := s.carts.Get(ctx, reminder.CustomerID)
	if err != nil {
		if isRepoNotFound(err) {
			return Resolution{
				Outcome: domain.RecoveryOutcomeCartUnavailable,
				Family:  domain.ReminderFamilyCart,
			}, nil
		}
		return Resolution{}, fmt.Errorf("recovery: load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return Resolution{
			Outcome: domain.RecoveryOutcomeCartUnavailable,
			Family:  domain.ReminderFamilyCart,
		}, nil
	}

	return Resolution{
		Outcome:     domain.RecoveryOutcomeRestoreCart,
		Family:      domain.ReminderFamilyCart,
		Cart:        &cart,
		BookingStep: cart.BookingStep,
	}, nil
}

var _ RecoveryService = (*recoveryService)(nil)
