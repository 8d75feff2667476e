package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/repositories"
)

type stubMailer struct {
	sendFn func(context.Context, ReminderMessage) error
	sent   []ReminderMessage
}

func (s *stubMailer) SendReminder(ctx context.Context, msg ReminderMessage) error {
	if s.sendFn != nil {
		if err := s.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubUserRepo struct {
	findFn   func(context.Context, string) (domain.UserProfile, error)
	updateFn func(context.Context, domain.UserProfile) (domain.UserProfile, error)
	optOutFn func(context.Context, string, bool, time.Time) (domain.UserProfile, error)
}

func (s *stubUserRepo) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if s.findFn != nil {
		return s.findFn(ctx, userID)
	}
	return domain.UserProfile{ID: userID, Email: userID + "@example.com"}, nil
}

func (s *stubUserRepo) UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, profile)
	}
	return profile, nil
}

func (s *stubUserRepo) SetReminderOptOut(ctx context.Context, userID string, optOut bool, updatedAt time.Time) (domain.UserProfile, error) {
	if s.optOutFn != nil {
		return s.optOutFn(ctx, userID, optOut, updatedAt)
	}
	return domain.UserProfile{ID: userID, ReminderOptOut: optOut}, nil
}

func newTestSweepService(t *testing.T, deps SweepServiceDeps) SweepService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepo{}
	}
	if deps.Carts == nil {
		deps.Carts = &stubCartRepo{}
	}
	if deps.Reminders == nil {
		deps.Reminders = &stubReminderRepo{}
	}
	if deps.Mailer == nil {
		deps.Mailer = &stubMailer{}
	}
	svc, err := NewSweepService(deps)
	if err != nil {
		t.Fatalf("new sweep service: %v", err)
	}
	return svc
}

func pendingOrder(id string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:          id,
		OrderNumber: "SL-2026-000007",
		CustomerID:  "cust-" + id,
		Status:      domain.OrderStatusPendingPayment,
		Currency:    "GBP",
		Totals:      domain.OrderTotals{Subtotal: 1200, DeliveryFee: 700, Total: 1900},
		Contact:     domain.OrderContact{Email: "buyer@example.com"},
		CreatedAt:   createdAt,
	}
}

func TestSweepSendsFirstPaymentReminder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := pendingOrder("order-1", now.Add(-2*time.Hour))

	mailSent := false
	var recorded domain.Reminder

	orders := &stubOrderRepo{
		listFn: func(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			if filter.CreatedBefore == nil || !filter.CreatedBefore.Equal(now.Add(-time.Hour)) {
				t.Fatalf("expected cutoff one hour back, got %v", filter.CreatedBefore)
			}
			return domain.CursorPage[domain.Order]{Items: []domain.Order{order}}, nil
		},
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return order, nil
		},
	}
	reminders := &stubReminderRepo{
		createFn: func(_ context.Context, reminder domain.Reminder) error {
			if !mailSent {
				t.Fatalf("ledger row must be written after the send")
			}
			recorded = reminder
			return nil
		},
	}
	mailer := &stubMailer{
		sendFn: func(_ context.Context, msg ReminderMessage) error {
			mailSent = true
			return nil
		},
	}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders:          orders,
		Reminders:       reminders,
		Mailer:          mailer,
		Clock:           func() time.Time { return now },
		IDGenerator:     func() string { return "TOKEN1" },
		RecoveryBaseURL: "https://seamline.example/recover",
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if report.PaymentReminders != 1 {
		t.Fatalf("expected 1 payment reminder, got %+v", report)
	}
	if recorded.Sequence != 1 || recorded.Family != domain.ReminderFamilyPayment {
		t.Fatalf("unexpected ledger row %+v", recorded)
	}
	if recorded.Token != "TOKEN1" {
		t.Fatalf("expected fresh token on ledger row, got %q", recorded.Token)
	}
	if recorded.SubjectID != "order-1" {
		t.Fatalf("expected subject order-1, got %q", recorded.SubjectID)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(mailer.sent))
	}
	if mailer.sent[0].RecoveryURL != "https://seamline.example/recover/TOKEN1" {
		t.Fatalf("unexpected recovery url %q", mailer.sent[0].RecoveryURL)
	}
	if mailer.sent[0].Amount != 1900 {
		t.Fatalf("expected amount 1900, got %d", mailer.sent[0].Amount)
	}
}

func TestSweepSequenceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := pendingOrder("order-1", now.Add(-25*time.Hour))

	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: []domain.Order{order}}, nil
		},
		findFn: func(context.Context, string) (domain.Order, error) { return order, nil },
	}
	mailer := &stubMailer{}

	// The age crosses the 24h threshold, so sequence 2 is due; a recorded
	// sequence 2 means this run must stay quiet.
	reminders := &stubReminderRepo{
		listSubjectFn: func(context.Context, string, domain.ReminderFamily) ([]domain.Reminder, error) {
			return []domain.Reminder{{Sequence: 1}, {Sequence: 2}}, nil
		},
	}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders:    orders,
		Reminders: reminders,
		Mailer:    mailer,
		Clock:     func() time.Time { return now },
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if report.PaymentReminders != 0 || len(mailer.sent) != 0 {
		t.Fatalf("expected no resend at or below recorded sequence, got %+v", report)
	}
	if report.Skipped == 0 {
		t.Fatalf("expected skip to be counted")
	}

	// With only sequence 1 on file the 24h stage goes out.
	reminders.listSubjectFn = func(context.Context, string, domain.ReminderFamily) ([]domain.Reminder, error) {
		return []domain.Reminder{{Sequence: 1}}, nil
	}
	var recorded domain.Reminder
	reminders.createFn = func(_ context.Context, reminder domain.Reminder) error {
		recorded = reminder
		return nil
	}

	report, err = svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if report.PaymentReminders != 1 || recorded.Sequence != 2 {
		t.Fatalf("expected sequence 2 reminder, got report %+v row %+v", report, recorded)
	}
}

func TestSweepCatchesUpMissedSequences(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := pendingOrder("order-1", now.Add(-25*time.Hour))

	rereads := 0
	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: []domain.Order{order}}, nil
		},
		findFn: func(context.Context, string) (domain.Order, error) {
			rereads++
			return order, nil
		},
	}
	var recorded []domain.Reminder
	reminders := &stubReminderRepo{
		createFn: func(_ context.Context, reminder domain.Reminder) error {
			recorded = append(recorded, reminder)
			return nil
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders:    orders,
		Reminders: reminders,
		Mailer:    mailer,
		Clock:     func() time.Time { return now },
	})

	// First contact with a 25h-old order: both the 1h and 24h stages are
	// due, so the run sends sequences 1 and 2 back to back.
	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if report.PaymentReminders != 2 {
		t.Fatalf("expected sequences 1 and 2 to be sent, got %+v", report)
	}
	if len(recorded) != 2 || recorded[0].Sequence != 1 || recorded[1].Sequence != 2 {
		t.Fatalf("expected ledger rows for sequences 1 then 2, got %+v", recorded)
	}
	if len(mailer.sent) != 2 || mailer.sent[0].Sequence != 1 || mailer.sent[1].Sequence != 2 {
		t.Fatalf("expected mails for sequences 1 then 2, got %+v", mailer.sent)
	}
	if rereads != 2 {
		t.Fatalf("expected a status re-read before each send, got %d", rereads)
	}
}

func TestSweepCatchUpAbortsWhenOrderMovesOn(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := pendingOrder("order-1", now.Add(-25*time.Hour))

	rereads := 0
	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: []domain.Order{order}}, nil
		},
		findFn: func(context.Context, string) (domain.Order, error) {
			rereads++
			if rereads > 1 {
				paid := order
				paid.Status = domain.OrderStatusBooked
				return paid, nil
			}
			return order, nil
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders: orders,
		Mailer: mailer,
		Clock:  func() time.Time { return now },
	})

	// The payment lands between sequence 1 and sequence 2; the remaining
	// sequences for this order are abandoned.
	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if report.PaymentReminders != 1 || len(mailer.sent) != 1 {
		t.Fatalf("expected only sequence 1 before the abort, got %+v", report)
	}
	if mailer.sent[0].Sequence != 1 {
		t.Fatalf("expected sequence 1 mail, got %+v", mailer.sent[0])
	}
}

func TestSweepExpiresStalePendingOrders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := pendingOrder("order-1", now.Add(-8*24*time.Hour))

	var cancelled string
	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: []domain.Order{order}}, nil
		},
		transitionFn: func(_ context.Context, orderID string, expected, target domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
			if expected != domain.OrderStatusPendingPayment || target != domain.OrderStatusCancelled {
				t.Fatalf("unexpected transition %s -> %s", expected, target)
			}
			if update.CancelReason == nil || *update.CancelReason != "payment_window_expired" {
				t.Fatalf("expected payment_window_expired reason, got %v", update.CancelReason)
			}
			cancelled = orderID
			return domain.Order{ID: orderID, Status: target}, nil
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders: orders,
		Mailer: mailer,
		Clock:  func() time.Time { return now },
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if cancelled != "order-1" {
		t.Fatalf("expected order-1 cancelled, got %q", cancelled)
	}
	if report.OrdersCancelled != 1 {
		t.Fatalf("expected 1 cancellation, got %+v", report)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expired orders must not get reminders")
	}
}

func TestSweepRereadSkipsOrderThatMovedOn(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := pendingOrder("order-1", now.Add(-2*time.Hour))

	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: []domain.Order{order}}, nil
		},
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			paid := order
			paid.Status = domain.OrderStatusBooked
			return paid, nil
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders: orders,
		Mailer: mailer,
		Clock:  func() time.Time { return now },
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if len(mailer.sent) != 0 || report.PaymentReminders != 0 {
		t.Fatalf("expected no send after re-read, got %+v", report)
	}
}

func TestSweepHonoursReminderOptOut(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := pendingOrder("order-1", now.Add(-2*time.Hour))

	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: []domain.Order{order}}, nil
		},
		findFn: func(context.Context, string) (domain.Order, error) { return order, nil },
	}
	users := &stubUserRepo{
		findFn: func(_ context.Context, userID string) (domain.UserProfile, error) {
			return domain.UserProfile{ID: userID, Email: "buyer@example.com", ReminderOptOut: true}, nil
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders: orders,
		Users:  users,
		Mailer: mailer,
		Clock:  func() time.Time { return now },
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if len(mailer.sent) != 0 || report.Skipped == 0 {
		t.Fatalf("expected opted-out customer to be skipped, got %+v", report)
	}
}

func TestSweepRespectsBatchCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	candidates := []domain.Order{
		pendingOrder("order-1", now.Add(-2*time.Hour)),
		pendingOrder("order-2", now.Add(-3*time.Hour)),
	}

	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: candidates}, nil
		},
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			for _, o := range candidates {
				if o.ID == id {
					return o, nil
				}
			}
			return domain.Order{}, errRepoNotFound
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders: orders,
		Mailer: mailer,
		Clock:  func() time.Time { return now },
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now, BatchCap: 1})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if report.PaymentReminders != 1 {
		t.Fatalf("expected exactly 1 send under cap, got %+v", report)
	}
	if !report.ReachedCap {
		t.Fatalf("expected cap to be reported")
	}
}

func TestSweepCleanupRunsAfterCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	fresh := pendingOrder("order-1", now.Add(-2*time.Hour))
	expired := pendingOrder("order-2", now.Add(-8*24*time.Hour))
	overflow := pendingOrder("order-3", now.Add(-3*time.Hour))
	stale := domain.SavedCart{
		ID:           "cust-9",
		CustomerID:   "cust-9",
		Items:        []domain.CartItem{{ServiceRef: "svc-zip", Name: "Zip", Quantity: 1, UnitPrice: 1500}},
		LastActiveAt: now.Add(-31 * 24 * time.Hour),
	}

	cancelled := ""
	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: []domain.Order{fresh, expired, overflow}}, nil
		},
		findFn: func(context.Context, string) (domain.Order, error) { return fresh, nil },
		transitionFn: func(_ context.Context, orderID string, _, target domain.OrderStatus, _ repositories.OrderStatusUpdate) (domain.Order, error) {
			cancelled = orderID
			return domain.Order{ID: orderID, Status: target}, nil
		},
	}
	deleted := ""
	carts := &stubCartRepo{
		listIdleFn: func(context.Context, repositories.CartIdleFilter) (domain.CursorPage[domain.SavedCart], error) {
			return domain.CursorPage[domain.SavedCart]{Items: []domain.SavedCart{stale}}, nil
		},
		deleteFn: func(_ context.Context, customerID string) error {
			deleted = customerID
			return nil
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders: orders,
		Carts:  carts,
		Users:  &stubUserRepo{},
		Mailer: mailer,
		Clock:  func() time.Time { return now },
	})

	// The single reminder slot goes to the fresh order; expiry and
	// retention cleanup still run with the cap exhausted.
	report, err := svc.RunSweep(ctx, SweepCommand{Now: now, BatchCap: 1})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if report.PaymentReminders != 1 || !report.ReachedCap {
		t.Fatalf("expected capped reminder run, got %+v", report)
	}
	if report.OrdersCancelled != 1 || cancelled != "order-2" {
		t.Fatalf("expected expired order cancelled despite cap, got %+v cancelled=%q", report, cancelled)
	}
	if report.CartsDeleted != 1 || deleted != "cust-9" {
		t.Fatalf("expected stale cart deleted despite cap, got %+v deleted=%q", report, deleted)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected exactly one mail under cap, got %d", len(mailer.sent))
	}
}

func TestSweepSendFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	candidates := []domain.Order{
		pendingOrder("order-1", now.Add(-2*time.Hour)),
		pendingOrder("order-2", now.Add(-3*time.Hour)),
	}

	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{Items: candidates}, nil
		},
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			for _, o := range candidates {
				if o.ID == id {
					return o, nil
				}
			}
			return domain.Order{}, errRepoNotFound
		},
	}
	failing := &stubMailer{}
	calls := 0
	failing.sendFn = func(context.Context, ReminderMessage) error {
		calls++
		if calls == 1 {
			return errors.New("smtp unavailable")
		}
		return nil
	}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders: orders,
		Mailer: failing,
		Clock:  func() time.Time { return now },
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected one recorded failure, got %+v", report.Failures)
	}
	if report.PaymentReminders != 1 {
		t.Fatalf("expected second candidate to still send, got %+v", report)
	}
}

func TestSweepCartReminderSuppressedByPendingCheckout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	cart := domain.SavedCart{
		ID:           "cust-1",
		CustomerID:   "cust-1",
		Items:        []domain.CartItem{{ServiceRef: "svc-hem", Name: "Hem", Quantity: 1, UnitPrice: 1200}},
		LastActiveAt: now.Add(-2 * time.Hour),
	}

	orders := &stubOrderRepo{
		hasStatusFn: func(_ context.Context, customerID string, status domain.OrderStatus) (bool, error) {
			if status != domain.OrderStatusPendingPayment {
				t.Fatalf("unexpected suppression status %s", status)
			}
			return true, nil
		},
	}
	carts := &stubCartRepo{
		listIdleFn: func(context.Context, repositories.CartIdleFilter) (domain.CursorPage[domain.SavedCart], error) {
			return domain.CursorPage[domain.SavedCart]{Items: []domain.SavedCart{cart}}, nil
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Orders: orders,
		Carts:  carts,
		Users:  &stubUserRepo{},
		Mailer: mailer,
		Clock:  func() time.Time { return now },
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if len(mailer.sent) != 0 || report.CartReminders != 0 {
		t.Fatalf("expected cart reminder to be suppressed, got %+v", report)
	}
}

func TestSweepCartReminderAndRetention(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	idle := domain.SavedCart{
		ID:           "cust-1",
		CustomerID:   "cust-1",
		Items:        []domain.CartItem{{ServiceRef: "svc-hem", Name: "Hem", Quantity: 2, UnitPrice: 1200}},
		LastActiveAt: now.Add(-26 * time.Hour),
	}
	stale := domain.SavedCart{
		ID:           "cust-2",
		CustomerID:   "cust-2",
		Items:        []domain.CartItem{{ServiceRef: "svc-zip", Name: "Zip", Quantity: 1, UnitPrice: 1500}},
		LastActiveAt: now.Add(-31 * 24 * time.Hour),
	}

	deleted := ""
	carts := &stubCartRepo{
		listIdleFn: func(context.Context, repositories.CartIdleFilter) (domain.CursorPage[domain.SavedCart], error) {
			return domain.CursorPage[domain.SavedCart]{Items: []domain.SavedCart{idle, stale}}, nil
		},
		getFn: func(_ context.Context, customerID string) (domain.SavedCart, error) {
			if customerID == "cust-1" {
				return idle, nil
			}
			return domain.SavedCart{}, errRepoNotFound
		},
		deleteFn: func(_ context.Context, customerID string) error {
			deleted = customerID
			return nil
		},
	}
	var recorded []domain.Reminder
	reminders := &stubReminderRepo{
		createFn: func(_ context.Context, reminder domain.Reminder) error {
			recorded = append(recorded, reminder)
			return nil
		},
	}
	mailer := &stubMailer{}

	svc := newTestSweepService(t, SweepServiceDeps{
		Carts:       carts,
		Reminders:   reminders,
		Users:       &stubUserRepo{},
		Mailer:      mailer,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "TOKEN9" },
	})

	report, err := svc.RunSweep(ctx, SweepCommand{Now: now})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	// 26h idle with an empty ledger means sequences 1 and 2 both go out.
	if report.CartReminders != 2 {
		t.Fatalf("expected two cart reminders, got %+v", report)
	}
	if len(recorded) != 2 || recorded[0].Sequence != 1 || recorded[1].Sequence != 2 {
		t.Fatalf("expected cart sequences 1 then 2 on the ledger, got %+v", recorded)
	}
	if recorded[0].Family != domain.ReminderFamilyCart {
		t.Fatalf("expected cart family ledger rows, got %+v", recorded)
	}
	if report.CartsDeleted != 1 || deleted != "cust-2" {
		t.Fatalf("expected stale cart deleted, got %+v deleted=%q", report, deleted)
	}
	if len(mailer.sent) != 2 || mailer.sent[0].ItemCount != 1 {
		t.Fatalf("unexpected mail payload %+v", mailer.sent)
	}
	if mailer.sent[0].Amount != 2400 || mailer.sent[1].Amount != 2400 {
		t.Fatalf("expected cart value 2400 on each reminder, got %+v", mailer.sent)
	}
}
