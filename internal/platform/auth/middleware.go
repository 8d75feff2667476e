package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Headers populated by the edge proxy after it has authenticated the caller.
// The API trusts these values; the proxy strips them from external requests.
const (
	SubjectHeader = "X-User-Id"
	EmailHeader   = "X-User-Email"
	RolesHeader   = "X-User-Roles"
)

const defaultFallbackRole = RoleCustomer

// Authenticator turns forwarded identity headers into request-scoped identities.
type Authenticator struct {
	subjectHeader string
	emailHeader   string
	rolesHeader   string
	fallbackRole  string
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithSubjectHeader overrides the header carrying the principal identifier.
func WithSubjectHeader(name string) Option {
	return func(a *Authenticator) {
		name = strings.TrimSpace(name)
		if name != "" {
			a.subjectHeader = name
		}
	}
}

// WithEmailHeader overrides the header carrying the principal email.
func WithEmailHeader(name string) Option {
	return func(a *Authenticator) {
		name = strings.TrimSpace(name)
		if name != "" {
			a.emailHeader = name
		}
	}
}

// WithRolesHeader overrides the header carrying the comma-separated role list.
func WithRolesHeader(name string) Option {
	return func(a *Authenticator) {
		name = strings.TrimSpace(name)
		if name != "" {
			a.rolesHeader = name
		}
	}
}

// WithFallbackRole sets the role assumed when the proxy forwards none.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = normaliseRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(opts ...Option) *Authenticator {
	a := &Authenticator{
		subjectHeader: SubjectHeader,
		emailHeader:   EmailHeader,
		rolesHeader:   RolesHeader,
		fallbackRole:  defaultFallbackRole,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RequireIdentity rejects requests without forwarded identity headers and,
// when allowedRoles is non-empty, without at least one matching role.
func (a *Authenticator) RequireIdentity(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authentication service unavailable")
				return
			}

			subject := strings.TrimSpace(r.Header.Get(a.subjectHeader))
			if subject == "" {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "identity headers missing")
				return
			}

			identity := &Identity{
				Subject: subject,
				Email:   strings.TrimSpace(r.Header.Get(a.emailHeader)),
				Roles:   parseRoles(r.Header.Get(a.rolesHeader)),
			}

			if len(identity.Roles) == 0 && a.fallbackRole != "" {
				identity.Roles = []string{a.fallbackRole}
			}

			if len(identity.Roles) == 0 {
				respondAuthError(w, http.StatusUnauthorized, "missing_role", "no roles associated with identity")
				return
			}

			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func parseRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		role := normaliseRole(part)
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
