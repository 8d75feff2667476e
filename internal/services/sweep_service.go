package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/repositories"
)

// ErrSweepInvalidInput signals a malformed sweep trigger.
var ErrSweepInvalidInput = errors.New("sweep: invalid input")

// cancelReasonPaymentExpired is recorded on orders the sweep expires.
const cancelReasonPaymentExpired = "payment_window_expired"

// reminderThresholds maps subject age to the target reminder sequence:
// crossing threshold N makes sequence N+1 due, and every unsent sequence up
// to the target is caught up in order within one run.
var reminderThresholds = []time.Duration{
	time.Hour,
	24 * time.Hour,
	72 * time.Hour,
}

func reminderSequence(age time.Duration) int {
	seq := 0
	for i, threshold := range reminderThresholds {
		if age >= threshold {
			seq = i + 1
		}
	}
	return seq
}

// SweepServiceDeps aggregates dependencies for NewSweepService.
type SweepServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Reminders   repositories.ReminderRepository
	Users       repositories.UserRepository
	Mailer      ReminderMailer
	Clock       Clock
	IDGenerator IDGenerator
	Logger      Logger
	// BatchCap limits reminder sends per run (default 200).
	BatchCap int
	// PaymentExpiry is how long an order may sit in pending_payment before
	// the sweep cancels it (default 7 days).
	PaymentExpiry time.Duration
	// CartRetention is how long an idle cart is kept before deletion
	// (default 30 days).
	CartRetention time.Duration
	// PageSize controls how many candidates are pulled per repository page.
	PageSize int
	// RecoveryBaseURL prefixes reminder tokens, e.g. https://seamline.example/recover.
	RecoveryBaseURL string
}

type sweepService struct {
	orders          repositories.OrderRepository
	carts           repositories.CartRepository
	reminders       repositories.ReminderRepository
	users           repositories.UserRepository
	mailer          ReminderMailer
	clock           Clock
	idGenerator     IDGenerator
	logger          Logger
	batchCap        int
	paymentExpiry   time.Duration
	cartRetention   time.Duration
	pageSize        int
	recoveryBaseURL string
}

// NewSweepService wires the abandonment sweep with its dependencies.
func NewSweepService(deps SweepServiceDeps) (SweepService, error) {
	if deps.Orders == nil {
		return nil, errors.New("sweep service requires order repository")
	}
	if deps.Carts == nil {
		return nil, errors.New("sweep service requires cart repository")
	}
	if deps.Reminders == nil {
		return nil, errors.New("sweep service requires reminder repository")
	}
	if deps.Mailer == nil {
		return nil, errors.New("sweep service requires mailer")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	batchCap := deps.BatchCap
	if batchCap <= 0 {
		batchCap = 200
	}
	paymentExpiry := deps.PaymentExpiry
	if paymentExpiry <= 0 {
		paymentExpiry = 7 * 24 * time.Hour
	}
	cartRetention := deps.CartRetention
	if cartRetention <= 0 {
		cartRetention = 30 * 24 * time.Hour
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &sweepService{
		orders:        deps.Orders,
		carts:         deps.Carts,
		reminders:     deps.Reminders,
		users:         deps.Users,
		mailer:        deps.Mailer,
		clock: func() time.Time {
			return clock().UTC()
		},
		idGenerator:     idGen,
		logger:          logger,
		batchCap:        batchCap,
		paymentExpiry:   paymentExpiry,
		cartRetention:   cartRetention,
		pageSize:        pageSize,
		recoveryBaseURL: strings.TrimRight(deps.RecoveryBaseURL, "/"),
	}, nil
}

// RunSweep walks abandonment candidates for both families, sending staged
// reminders and applying expiry cleanup. Failures are collected into the
// report; a single bad subject never aborts the batch.
func (s *sweepService) RunSweep(ctx context.Context, cmd SweepCommand) (SweepReport, error) {
	now := cmd.Now
	if now.IsZero() {
		now = s.clock()
	}
	now = now.UTC()

	sendCap := cmd.BatchCap
	if sendCap <= 0 {
		sendCap = s.batchCap
	}

	report := SweepReport{StartedAt: now}
	sent := 0

	// The cap bounds outbound reminders only: both families keep walking
	// their candidates after it is hit so expiry and retention cleanup
	// never starve behind a reminder backlog.
	s.sweepPaymentFamily(ctx, now, sendCap, cmd.DryRun, &sent, &report)
	s.sweepCartFamily(ctx, now, sendCap, cmd.DryRun, &sent, &report)

	report.FinishedAt = s.clock()
	s.logger(ctx, "sweep.completed", map[string]any{
		"paymentReminders": report.PaymentReminders,
		"cartReminders":    report.CartReminders,
		"ordersCancelled":  report.OrdersCancelled,
		"cartsDeleted":     report.CartsDeleted,
		"skipped":          report.Skipped,
		"failures":         len(report.Failures),
	})
	return report, nil
}

func (s *sweepService) sweepPaymentFamily(ctx context.Context, now time.Time, sendCap int, dryRun bool, sent *int, report *SweepReport) {
	cutoff := now.Add(-reminderThresholds[0])
	pageToken := ""
	for {
		page, err := s.orders.List(ctx, repositories.OrderListFilter{
			Status:        []domain.OrderStatus{domain.OrderStatusPendingPayment},
			CreatedBefore: &cutoff,
			Pagination:    domain.Pagination{PageSize: s.pageSize, PageToken: pageToken},
		})
		if err != nil {
			report.Failures = append(report.Failures, SweepFailure{Stage: "payment.list", Reason: err.Error()})
			return
		}
		for _, order := range page.Items {
			s.sweepOrder(ctx, order, now, sendCap, dryRun, sent, report)
		}
		if page.NextPageToken == "" {
			return
		}
		pageToken = page.NextPageToken
	}
}

func (s *sweepService) sweepOrder(ctx context.Context, order domain.Order, now time.Time, sendCap int, dryRun bool, sent *int, report *SweepReport) {
	age := now.Sub(order.CreatedAt)

	if age >= s.paymentExpiry {
		if dryRun {
			report.OrdersCancelled++
			return
		}
		_, err := s.orders.TransitionStatus(ctx, order.ID, domain.OrderStatusPendingPayment, domain.OrderStatusCancelled, repositories.OrderStatusUpdate{
			UpdatedAt:    now,
			CancelledAt:  valuePtr(now),
			CancelReason: valuePtr(cancelReasonPaymentExpired),
		})
		if err != nil {
			if isRepoConflict(err) || isRepoNotFound(err) {
				report.Skipped++
				return
			}
			report.Failures = append(report.Failures, SweepFailure{SubjectID: order.ID, Stage: "payment.expire", Reason: err.Error()})
			return
		}
		report.OrdersCancelled++
		return
	}

	target := reminderSequence(age)
	if target == 0 {
		report.Skipped++
		return
	}

	last, err := s.lastSequence(ctx, order.ID, domain.ReminderFamilyPayment)
	if err != nil {
		report.Failures = append(report.Failures, SweepFailure{SubjectID: order.ID, Stage: "payment.ledger", Reason: err.Error()})
		return
	}
	if last >= target {
		report.Skipped++
		return
	}

	if s.optedOut(ctx, order.CustomerID) {
		report.Skipped++
		return
	}

	// Every unsent sequence up to the target goes out, oldest first: a
	// subject first seen at 25h gets sequences 1 and 2 in the same run.
	for seq := last + 1; seq <= target; seq++ {
		if *sent >= sendCap {
			report.ReachedCap = true
			return
		}

		// Re-read right before each send: the customer may have paid or
		// cancelled since the candidate page (or the previous send).
		current, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			if isRepoNotFound(err) {
				report.Skipped++
				return
			}
			report.Failures = append(report.Failures, SweepFailure{SubjectID: order.ID, Stage: "payment.reread", Reason: err.Error()})
			return
		}
		if current.Status != domain.OrderStatusPendingPayment {
			report.Skipped++
			return
		}

		if dryRun {
			report.PaymentReminders++
			*sent++
			continue
		}

		token := s.idGenerator()
		msg := ReminderMessage{
			To:          current.Contact.Email,
			CustomerID:  current.CustomerID,
			Family:      domain.ReminderFamilyPayment,
			Sequence:    seq,
			OrderNumber: current.OrderNumber,
			Amount:      current.Totals.Total,
			Currency:    current.Currency,
			RecoveryURL: s.recoveryURL(token),
		}
		if err := s.mailer.SendReminder(ctx, msg); err != nil {
			report.Failures = append(report.Failures, SweepFailure{SubjectID: order.ID, Stage: "payment.send", Reason: err.Error()})
			return
		}

		// Record after the send: a crash in between deduplicates on the
		// deterministic ledger key at the next run.
		reminder := domain.Reminder{
			SubjectID:  current.ID,
			CustomerID: current.CustomerID,
			Family:     domain.ReminderFamilyPayment,
			Sequence:   seq,
			Token:      token,
			Email:      msg.To,
			SentAt:     now,
		}
		if err := s.reminders.Create(ctx, reminder); err != nil {
			if isRepoConflict(err) {
				// A concurrent run already recorded this sequence.
				report.Skipped++
				continue
			}
			report.Failures = append(report.Failures, SweepFailure{SubjectID: order.ID, Stage: "payment.record", Reason: err.Error()})
			return
		}
		report.PaymentReminders++
		*sent++
	}
}

func (s *sweepService) sweepCartFamily(ctx context.Context, now time.Time, sendCap int, dryRun bool, sent *int, report *SweepReport) {
	cutoff := now.Add(-reminderThresholds[0])
	pageToken := ""
	for {
		page, err := s.carts.ListIdle(ctx, repositories.CartIdleFilter{
			LastActiveBefore: cutoff,
			Pagination:       domain.Pagination{PageSize: s.pageSize, PageToken: pageToken},
		})
		if err != nil {
			report.Failures = append(report.Failures, SweepFailure{Stage: "cart.list", Reason: err.Error()})
			return
		}
		for _, cart := range page.Items {
			s.sweepCart(ctx, cart, now, sendCap, dryRun, sent, report)
		}
		if page.NextPageToken == "" {
			return
		}
		pageToken = page.NextPageToken
	}
}

func (s *sweepService) sweepCart(ctx context.Context, cart domain.SavedCart, now time.Time, sendCap int, dryRun bool, sent *int, report *SweepReport) {
	idle := now.Sub(cart.LastActiveAt)

	if idle >= s.cartRetention {
		if dryRun {
			report.CartsDeleted++
			return
		}
		if err := s.carts.Delete(ctx, cart.CustomerID); err != nil && !isRepoNotFound(err) {
			report.Failures = append(report.Failures, SweepFailure{SubjectID: cart.CustomerID, Stage: "cart.delete", Reason: err.Error()})
			return
		}
		report.CartsDeleted++
		return
	}

	if len(cart.Items) == 0 {
		report.Skipped++
		return
	}

	target := reminderSequence(idle)
	if target == 0 {
		report.Skipped++
		return
	}

	last, err := s.lastSequence(ctx, cart.CustomerID, domain.ReminderFamilyCart)
	if err != nil {
		report.Failures = append(report.Failures, SweepFailure{SubjectID: cart.CustomerID, Stage: "cart.ledger", Reason: err.Error()})
		return
	}
	if last >= target {
		report.Skipped++
		return
	}

	// A customer mid-checkout gets the payment nudge, not a cart one.
	inFlight, err := s.orders.HasWithStatus(ctx, cart.CustomerID, domain.OrderStatusPendingPayment)
	if err != nil {
		report.Failures = append(report.Failures, SweepFailure{SubjectID: cart.CustomerID, Stage: "cart.suppress", Reason: err.Error()})
		return
	}
	if inFlight {
		report.Skipped++
		return
	}

	if s.optedOut(ctx, cart.CustomerID) {
		report.Skipped++
		return
	}

	email := s.customerEmail(ctx, cart.CustomerID)
	if email == "" {
		report.Skipped++
		return
	}

	for seq := last + 1; seq <= target; seq++ {
		if *sent >= sendCap {
			report.ReachedCap = true
			return
		}

		// Re-read before each send: the cart may have been emptied, checked
		// out, or deleted since the idle scan.
		current, err := s.carts.Get(ctx, cart.CustomerID)
		if err != nil {
			if isRepoNotFound(err) {
				report.Skipped++
				return
			}
			report.Failures = append(report.Failures, SweepFailure{SubjectID: cart.CustomerID, Stage: "cart.reread", Reason: err.Error()})
			return
		}
		if len(current.Items) == 0 {
			report.Skipped++
			return
		}

		if dryRun {
			report.CartReminders++
			*sent++
			continue
		}

		var total int64
		for _, item := range current.Items {
			total += item.UnitPrice * int64(item.Quantity)
		}

		token := s.idGenerator()
		msg := ReminderMessage{
			To:          email,
			CustomerID:  current.CustomerID,
			Family:      domain.ReminderFamilyCart,
			Sequence:    seq,
			Amount:      total,
			Currency:    domain.DefaultCurrency,
			ItemCount:   len(current.Items),
			RecoveryURL: s.recoveryURL(token),
		}
		if err := s.mailer.SendReminder(ctx, msg); err != nil {
			report.Failures = append(report.Failures, SweepFailure{SubjectID: cart.CustomerID, Stage: "cart.send", Reason: err.Error()})
			return
		}

		reminder := domain.Reminder{
			SubjectID:  current.CustomerID,
			CustomerID: current.CustomerID,
			Family:     domain.ReminderFamilyCart,
			Sequence:   seq,
			Token:      token,
			Email:      email,
			SentAt:     now,
		}
		if err := s.reminders.Create(ctx, reminder); err != nil {
			if isRepoConflict(err) {
				report.Skipped++
				continue
			}
			report.Failures = append(report.Failures, SweepFailure{SubjectID: cart.CustomerID, Stage: "cart.record", Reason: err.Error()})
			return
		}
		report.CartReminders++
		*sent++
	}
}

func (s *sweepService) lastSequence(ctx context.Context, subjectID string, family domain.ReminderFamily) (int, error) {
	rows, err := s.reminders.ListBySubject(ctx, subjectID, family)
	if err != nil {
		if isRepoNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	last := 0
	for _, row := range rows {
		if row.Sequence > last {
			last = row.Sequence
		}
	}
	return last, nil
}

func (s *sweepService) optedOut(ctx context.Context, customerID string) bool {
	if s.users == nil {
		return false
	}
	profile, err := s.users.FindByID(ctx, customerID)
	if err != nil {
		return false
	}
	return profile.ReminderOptOut
}

func (s *sweepService) customerEmail(ctx context.Context, customerID string) string {
	if s.users == nil {
		return ""
	}
	profile, err := s.users.FindByID(ctx, customerID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(profile.Email)
}

func (s *sweepService) recoveryURL(token string) string {
	if s.recoveryBaseURL == "" {
		return fmt.Sprintf("/recover/%s", token)
	}
	return fmt.Sprintf("%s/%s", s.recoveryBaseURL, token)
}

var _ SweepService = (*sweepService)(nil)
