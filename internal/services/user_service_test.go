package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/seamline/api/internal/domain"
)

func newTestUserService(t *testing.T, deps UserServiceDeps) UserService {
	t.Helper()
	if deps.Users == nil {
		deps.Users = &stubUserRepo{}
	}
	svc, err := NewUserService(deps)
	if err != nil {
		t.Fatalf("new user service: %v", err)
	}
	return svc
}

func TestGetProfileMapsNotFound(t *testing.T) {
	svc := newTestUserService(t, UserServiceDeps{
		Users: &stubUserRepo{
			findFn: func(context.Context, string) (domain.UserProfile, error) {
				return domain.UserProfile{}, errRepoNotFound
			},
		},
	})

	if _, err := svc.GetProfile(context.Background(), "cust-1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateProfileAppliesProvidedFieldsOnly(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	var updated domain.UserProfile
	users := &stubUserRepo{
		findFn: func(_ context.Context, userID string) (domain.UserProfile, error) {
			return domain.UserProfile{
				ID:          userID,
				DisplayName: "Alex",
				Email:       "alex@example.com",
				PhoneNumber: "+44 7700 900000",
			}, nil
		},
		updateFn: func(_ context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
			updated = profile
			return profile, nil
		},
	}

	svc := newTestUserService(t, UserServiceDeps{
		Users: users,
		Clock: func() time.Time { return now },
	})

	name := "Alex B <i>tailor</i>"
	if _, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{
		UserID:      "cust-1",
		DisplayName: &name,
	}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName != "Alex B tailor" {
		t.Fatalf("markup must be stripped, got %q", updated.DisplayName)
	}
	if updated.Email != "alex@example.com" || updated.PhoneNumber != "+44 7700 900000" {
		t.Fatalf("untouched fields must survive, got %+v", updated)
	}
	if !updated.UpdatedAt.Equal(now) {
		t.Fatalf("expected update stamp %v, got %v", now, updated.UpdatedAt)
	}
}

func TestUpdateProfileRejectsBadEmail(t *testing.T) {
	svc := newTestUserService(t, UserServiceDeps{})

	email := "not-an-address"
	if _, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{
		UserID: "cust-1",
		Email:  &email,
	}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestSetReminderOptOut(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	var gotOptOut bool
	var gotStamp time.Time
	users := &stubUserRepo{
		optOutFn: func(_ context.Context, userID string, optOut bool, updatedAt time.Time) (domain.UserProfile, error) {
			gotOptOut = optOut
			gotStamp = updatedAt
			return domain.UserProfile{ID: userID, ReminderOptOut: optOut}, nil
		},
	}

	svc := newTestUserService(t, UserServiceDeps{
		Users: users,
		Clock: func() time.Time { return now },
	})

	profile, err := svc.SetReminderOptOut(context.Background(), ReminderOptOutCommand{UserID: "cust-1", OptOut: true})
	if err != nil {
		t.Fatalf("set opt out: %v", err)
	}
	if !profile.ReminderOptOut || !gotOptOut {
		t.Fatalf("opt-out flag not applied")
	}
	if !gotStamp.Equal(now) {
		t.Fatalf("expected stamp %v, got %v", now, gotStamp)
	}
}
