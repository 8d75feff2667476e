package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/seamline/api/internal/repositories"
)

// Sentinel errors returned by the user service.
var (
	ErrUserInvalidInput = errors.New("user: invalid input")
	ErrUserNotFound     = errors.New("user: not found")
)

// UserServiceDeps aggregates dependencies for NewUserService.
type UserServiceDeps struct {
	Users     repositories.UserRepository
	Sanitizer *bluemonday.Policy
	Clock     Clock
	Logger    Logger
}

type userService struct {
	users     repositories.UserRepository
	sanitizer *bluemonday.Policy
	clock     Clock
	logger    Logger
}

// NewUserService wires profile and reminder-preference management.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service requires user repository")
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users:     deps.Users,
		sanitizer: sanitizer,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return UserProfile{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return UserProfile{}, err
	}
	return profile, nil
}

// UpdateProfile applies the provided fields, leaving nil pointers untouched.
func (s *userService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return UserProfile{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return UserProfile{}, err
	}

	if cmd.DisplayName != nil {
		name := s.sanitizer.Sanitize(strings.TrimSpace(*cmd.DisplayName))
		if name == "" {
			return UserProfile{}, fmt.Errorf("%w: display name must not be empty", ErrUserInvalidInput)
		}
		profile.DisplayName = name
	}
	if cmd.Email != nil {
		email := strings.TrimSpace(*cmd.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return UserProfile{}, fmt.Errorf("%w: invalid email address", ErrUserInvalidInput)
		}
		profile.Email = email
	}
	if cmd.PhoneNumber != nil {
		profile.PhoneNumber = strings.TrimSpace(*cmd.PhoneNumber)
	}
	profile.UpdatedAt = s.clock()

	updated, err := s.users.UpdateProfile(ctx, profile)
	if err != nil {
		return UserProfile{}, err
	}
	s.logger(ctx, "user.profile_updated", map[string]any{"userId": userID})
	return updated, nil
}

// SetReminderOptOut flips the abandonment-reminder preference. Users are
// opted in by default; the sweep consults this flag before every send.
func (s *userService) SetReminderOptOut(ctx context.Context, cmd ReminderOptOutCommand) (UserProfile, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	profile, err := s.users.SetReminderOptOut(ctx, userID, cmd.OptOut, s.clock())
	if err != nil {
		if isRepoNotFound(err) {
			return UserProfile{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return UserProfile{}, err
	}
	s.logger(ctx, "user.reminder_opt_out", map[string]any{
		"userId": userID,
		"optOut": cmd.OptOut,
	})
	return profile, nil
}

var _ UserService = (*userService)(nil)
