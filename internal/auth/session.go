// Package auth - session.go defines the Session claims snapshot and the
// HasRole/HasPermission predicates evaluated by the guards.
package auth

import (
	"slices"
	"time"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
)

// Session is the authenticated user's identity, roles, permissions and upstream
// bearer token. Roles and Permissions are a snapshot taken at login or refresh;
// server-side changes are not observed until the next refresh.
type Session struct {
	ID          string       `json:"id"`
	SubjectID   string       `json:"subject_id"`
	DisplayName string       `json:"display_name"`
	Email       string       `json:"email"`
	Roles       []Role       `json:"roles"`
	Permissions []Permission `json:"permissions"`
	// Token is the upstream bearer. Stores never persist it in the clear.
	Token       string         `json:"-"`
	Expiry      time.Time      `json:"expiry"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	RefreshedAt time.Time      `json:"refreshed_at"`
	Toasts      []notify.Toast `json:"toasts,omitempty"`
}

// Claims is what the upstream API returns about a user on login, refresh or /auth/me.
type Claims struct {
	SubjectID   string
	DisplayName string
	Email       string
	Roles       []Role
	Permissions []Permission
	Token       string
	Expiry      time.Time
}

// Apply replaces the session's identity snapshot with c.
func (s *Session) Apply(c Claims) {
	s.SubjectID = c.SubjectID
	s.DisplayName = c.DisplayName
	s.Email = c.Email
	s.Roles = dedupe(c.Roles)
	s.Permissions = dedupe(c.Permissions)
	if c.Token != "" {
		s.Token = c.Token
	}
	s.Expiry = c.Expiry
	s.Error = ""
}

// Expired reports whether the session's token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

// Authenticated reports whether s is a usable session.
func (s *Session) Authenticated() bool {
	return s != nil && s.ID != "" && s.Token != "" && s.Error == ""
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Roles = slices.Clone(s.Roles)
	c.Permissions = slices.Clone(s.Permissions)
	c.Toasts = slices.Clone(s.Toasts)
	return &c
}

// HasRole reports whether s holds at least one of roles. A nil session never
// has a role; an empty request is false.
func HasRole(s *Session, roles ...Role) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(s.Roles, r) {
			return true
		}
	}
	return false
}

// HasPermission reports whether s holds at least one of perms, with the same
// rules as HasRole.
func HasPermission(s *Session, perms ...Permission) bool {
	if s == nil {
		return false
	}
	for _, p := range perms {
		if slices.Contains(s.Permissions, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether s holds every one of perms.
func HasAllPermissions(s *Session, perms ...Permission) bool {
	if s == nil || len(perms) == 0 {
		return false
	}
	for _, p := range perms {
		if !slices.Contains(s.Permissions, p) {
			return false
		}
	}
	return true
}

func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	seen := make(map[T]bool, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
