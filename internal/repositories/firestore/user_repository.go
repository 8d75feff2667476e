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

const usersCollection = "users"

// UserRepository stores marketplace user profiles.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil),
	}, nil
}

// FindByID loads a user profile.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.UserProfile{}, err
	}
	return decodeUser(doc.ID, doc.Data), nil
}

// UpdateProfile replaces the stored profile document.
func (r *UserRepository) UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	id := strings.TrimSpace(profile.ID)
	if id == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}
	doc := encodeUser(profile)
	if _, err := r.base.Set(ctx, id, doc); err != nil {
		return domain.UserProfile{}, err
	}
	return decodeUser(id, doc), nil
}

// SetReminderOptOut flips the reminder preference without rewriting the profile.
func (r *UserRepository) SetReminderOptOut(ctx context.Context, userID string, optOut bool, updatedAt time.Time) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}
	if _, err := r.base.Update(ctx, id, []firestore.Update{
		{Path: "reminderOptOut", Value: optOut},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	}); err != nil {
		return domain.UserProfile{}, err
	}
	return r.FindByID(ctx, id)
}

type userDocument struct {
	DisplayName    string    `firestore:"displayName,omitempty"`
	Email          string    `firestore:"email"`
	PhoneNumber    string    `firestore:"phoneNumber,omitempty"`
	Roles          []string  `firestore:"roles,omitempty"`
	IsActive       bool      `firestore:"isActive"`
	ReminderOptOut bool      `firestore:"reminderOptOut"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func encodeUser(profile domain.UserProfile) userDocument {
	roles := make([]string, 0, len(profile.Roles))
	for _, role := range profile.Roles {
		roles = append(roles, string(role))
	}
	return userDocument{
		DisplayName:    strings.TrimSpace(profile.DisplayName),
		Email:          strings.TrimSpace(profile.Email),
		PhoneNumber:    strings.TrimSpace(profile.PhoneNumber),
		Roles:          roles,
		IsActive:       profile.IsActive,
		ReminderOptOut: profile.ReminderOptOut,
		CreatedAt:      profile.CreatedAt.UTC(),
		UpdatedAt:      profile.UpdatedAt.UTC(),
	}
}

func decodeUser(id string, doc userDocument) domain.UserProfile {
	roles := make([]domain.ActorRole, 0, len(doc.Roles))
	for _, role := range doc.Roles {
		roles = append(roles, domain.ActorRole(role))
	}
	return domain.UserProfile{
		ID:             id,
		DisplayName:    doc.DisplayName,
		Email:          doc.Email,
		PhoneNumber:    doc.PhoneNumber,
		Roles:          roles,
		IsActive:       doc.IsActive,
		ReminderOptOut: doc.ReminderOptOut,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
