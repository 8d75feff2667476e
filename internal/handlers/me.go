package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seamline/api/internal/platform/auth"
	"github.com/seamline/api/internal/platform/httpx"
	"github.com/seamline/api/internal/services"
)

const maxProfileBodySize = 16 * 1024

// MeHandlers exposes profile and reminder-preference endpoints for the caller.
type MeHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewMeHandlers constructs a new MeHandlers instance.
func NewMeHandlers(authn *auth.Authenticator, users services.UserService) *MeHandlers {
	return &MeHandlers{
		authn: authn,
		users: users,
	}
}

// Routes registers the /me endpoints.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity())
	}
	r.Get("/", h.getProfile)
	r.Patch("/", h.updateProfile)
	r.Post("/reminder-opt-out", h.setReminderOptOut)
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
}

type reminderOptOutRequest struct {
	OptOut bool `json:"opt_out"`
}

type profileResponse struct {
	Profile profilePayload `json:"profile"`
}

type profilePayload struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"display_name,omitempty"`
	Email          string   `json:"email,omitempty"`
	PhoneNumber    string   `json:"phone_number,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	IsActive       bool     `json:"is_active"`
	ReminderOptOut bool     `json:"reminder_opt_out"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	profile, err := h.users.GetProfile(ctx, strings.TrimSpace(identity.Subject))
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateProfileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if req.DisplayName == nil && req.Email == nil && req.PhoneNumber == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "no editable fields supplied", http.StatusBadRequest))
		return
	}

	profile, err := h.users.UpdateProfile(ctx, services.UpdateProfileCommand{
		UserID:      strings.TrimSpace(identity.Subject),
		DisplayName: req.DisplayName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) setReminderOptOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req reminderOptOutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	profile, err := h.users.SetReminderOptOut(ctx, services.ReminderOptOutCommand{
		UserID: strings.TrimSpace(identity.Subject),
		OptOut: req.OptOut,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(profile)})
}

func (h *MeHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.Subject) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func buildProfilePayload(profile services.UserProfile) profilePayload {
	roles := make([]string, 0, len(profile.Roles))
	for _, role := range profile.Roles {
		roles = append(roles, string(role))
	}
	return profilePayload{
		ID:             strings.TrimSpace(profile.ID),
		DisplayName:    strings.TrimSpace(profile.DisplayName),
		Email:          strings.TrimSpace(profile.Email),
		PhoneNumber:    strings.TrimSpace(profile.PhoneNumber),
		Roles:          roles,
		IsActive:       profile.IsActive,
		ReminderOptOut: profile.ReminderOptOut,
		CreatedAt:      formatTime(profile.CreatedAt),
		UpdatedAt:      formatTime(profile.UpdatedAt),
	}
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to process profile request", http.StatusInternalServerError))
	}
}
