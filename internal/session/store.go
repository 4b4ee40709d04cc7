// Package session holds authenticated dashboard sessions server-side. The
// browser only carries a signed cookie naming the session; identity, roles,
// permissions and the upstream bearer token stay in a Store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
)

var (
	// ErrNotFound is returned when no live session exists for an id.
	ErrNotFound = errors.New("session not found")
	// ErrInvalid is returned for a malformed session or id.
	ErrInvalid = errors.New("invalid session")
)

// Record is the persisted form of a session. The session's Token is never
// serialized; SealedToken carries it encrypted and bound to ID.
type Record struct {
	ID          string        `json:"id"`
	Session     *auth.Session `json:"session"`
	SealedToken string        `json:"sealed_token"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// Expired reports whether the record's lifetime has ended at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r *Record) validate() error {
	if r == nil || r.Session == nil {
		return ErrInvalid
	}
	if r.ID == "" || r.ID != r.Session.ID {
		return ErrInvalid
	}
	return nil
}

// Store persists session records. Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts or replaces a record.
	Save(ctx context.Context, rec *Record) error
	// Get returns the record for id, or ErrNotFound when absent or expired.
	Get(ctx context.Context, id string) (*Record, error)
	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
	// Cleanup removes expired records and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
}
