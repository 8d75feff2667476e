package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/seamline/api/internal/domain"
	pfirestore "github.com/seamline/api/internal/platform/firestore"
	"github.com/seamline/api/internal/repositories"
)

const remindersCollection = "reminders"

// ReminderID builds the deterministic ledger key for a reminder row. Using
// the triple as the document ID means a crashed run that already sent the
// email fails its re-send with a conflict instead of writing a second row.
func ReminderID(subjectID string, family domain.ReminderFamily, sequence int) string {
	return fmt.Sprintf("%s_%s_%d", strings.TrimSpace(subjectID), family, sequence)
}

// ReminderRepository is the Firestore-backed abandonment send ledger.
type ReminderRepository struct {
	base     *pfirestore.BaseRepository[reminderDocument]
	provider *pfirestore.Provider
}

// NewReminderRepository constructs a Firestore-backed reminder repository.
func NewReminderRepository(provider *pfirestore.Provider) (*ReminderRepository, error) {
	if provider == nil {
		return nil, errors.New("reminder repository requires firestore provider")
	}
	return &ReminderRepository{
		base:     pfirestore.NewBaseRepository[reminderDocument](provider, remindersCollection, nil),
		provider: provider,
	}, nil
}

// Create inserts a ledger row under its deterministic ID, conflicting on duplicates.
func (r *ReminderRepository) Create(ctx context.Context, reminder domain.Reminder) error {
	if r == nil || r.base == nil {
		return errors.New("reminder repository not initialised")
	}
	id := strings.TrimSpace(reminder.ID)
	if id == "" {
		id = ReminderID(reminder.SubjectID, reminder.Family, reminder.Sequence)
	}
	_, err := r.base.Create(ctx, id, encodeReminder(reminder))
	return err
}

// FindByToken resolves a recovery token back to its ledger row.
func (r *ReminderRepository) FindByToken(ctx context.Context, token string) (domain.Reminder, error) {
	if r == nil || r.base == nil {
		return domain.Reminder{}, errors.New("reminder repository not initialised")
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return domain.Reminder{}, pfirestore.WrapError("reminders.findByToken", errTokenNotFound)
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("token", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.Reminder{}, err
	}
	if len(docs) == 0 {
		return domain.Reminder{}, &tokenNotFoundError{token: trimmed}
	}
	return decodeReminder(docs[0].ID, docs[0].Data), nil
}

// ListBySubject returns the ledger rows for a subject and family, newest sequence first.
func (r *ReminderRepository) ListBySubject(ctx context.Context, subjectID string, family domain.ReminderFamily) ([]domain.Reminder, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("reminder repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("subjectId", "==", strings.TrimSpace(subjectID)).
			Where("family", "==", string(family)).
			OrderBy("sequence", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	reminders := make([]domain.Reminder, 0, len(docs))
	for _, doc := range docs {
		reminders = append(reminders, decodeReminder(doc.ID, doc.Data))
	}
	return reminders, nil
}

// MarkClicked stamps ClickedAt exactly once inside a transaction. Later
// clicks read the existing stamp and return without writing.
func (r *ReminderRepository) MarkClicked(ctx context.Context, reminderID string, clickedAt time.Time) (domain.Reminder, error) {
	if r == nil || r.provider == nil {
		return domain.Reminder{}, errors.New("reminder repository not initialised")
	}
	id := strings.TrimSpace(reminderID)
	if id == "" {
		return domain.Reminder{}, errors.New("reminder repository: reminder id is required")
	}

	var result domain.Reminder
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc reminderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore reminders decode %s: %w", id, err)
		}
		if doc.ClickedAt != nil {
			result = decodeReminder(id, doc)
			return nil
		}
		utc := clickedAt.UTC()
		doc.ClickedAt = &utc
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = decodeReminder(id, doc)
		return nil
	})
	if err != nil {
		return domain.Reminder{}, err
	}
	return result, nil
}

// MarkRecovered stamps RecoveredAt on every outstanding ledger row for the customer.
func (r *ReminderRepository) MarkRecovered(ctx context.Context, customerID string, recoveredAt time.Time) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("reminder repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", strings.TrimSpace(customerID))
	})
	if err != nil {
		return 0, err
	}

	updated := 0
	utc := recoveredAt.UTC()
	for _, doc := range docs {
		if doc.Data.RecoveredAt != nil {
			continue
		}
		if _, err := r.base.Update(ctx, doc.ID, []firestore.Update{
			{Path: "recoveredAt", Value: utc},
		}); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

var errTokenNotFound = errors.New("reminder token not found")

type tokenNotFoundError struct {
	token string
}

func (e *tokenNotFoundError) Error() string {
	return fmt.Sprintf("reminder token %q not found", e.token)
}

func (e *tokenNotFoundError) IsNotFound() bool    { return true }
func (e *tokenNotFoundError) IsConflict() bool    { return false }
func (e *tokenNotFoundError) IsUnavailable() bool { return false }

type reminderDocument struct {
	SubjectID   string     `firestore:"subjectId"`
	CustomerID  string     `firestore:"customerId"`
	Family      string     `firestore:"family"`
	Sequence    int        `firestore:"sequence"`
	Token       string     `firestore:"token"`
	Email       string     `firestore:"email"`
	SentAt      time.Time  `firestore:"sentAt"`
	ClickedAt   *time.Time `firestore:"clickedAt,omitempty"`
	RecoveredAt *time.Time `firestore:"recoveredAt,omitempty"`
}

func encodeReminder(reminder domain.Reminder) reminderDocument {
	return reminderDocument{
		SubjectID:   strings.TrimSpace(reminder.SubjectID),
		CustomerID:  strings.TrimSpace(reminder.CustomerID),
		Family:      string(reminder.Family),
		Sequence:    reminder.Sequence,
		Token:       strings.TrimSpace(reminder.Token),
		Email:       strings.TrimSpace(reminder.Email),
		SentAt:      reminder.SentAt.UTC(),
		ClickedAt:   utcPtr(reminder.ClickedAt),
		RecoveredAt: utcPtr(reminder.RecoveredAt),
	}
}

func decodeReminder(id string, doc reminderDocument) domain.Reminder {
	return domain.Reminder{
		ID:          id,
		SubjectID:   doc.SubjectID,
		CustomerID:  doc.CustomerID,
		Family:      domain.ReminderFamily(doc.Family),
		Sequence:    doc.Sequence,
		Token:       doc.Token,
		Email:       doc.Email,
		SentAt:      doc.SentAt,
		ClickedAt:   doc.ClickedAt,
		RecoveredAt: doc.RecoveredAt,
	}
}

var _ repositories.ReminderRepository = (*ReminderRepository)(nil)
