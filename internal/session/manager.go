package session

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/crypto"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
)

// EventType identifies a session lifecycle transition.
type EventType string

const (
	EventCreated   EventType = "created"
	EventRefreshed EventType = "refreshed"
	EventDestroyed EventType = "destroyed"
)

// Destroy reasons.
const (
	ReasonLogout  = "logout"
	ReasonExpired = "expired"
)

// Event is published to subscribers after a transition is persisted.
type Event struct {
	Type      EventType
	SessionID string
	SubjectID string
	Email     string
	Reason    string
	At        time.Time
}

// Manager owns session lifecycle: it is the only writer of the Store.
type Manager struct {
	store  Store
	sealer *crypto.TokenSealer
	ttl    time.Duration
	now    func() time.Time

	destroying singleflight.Group
	refreshing singleflight.Group
	// records serializes read-modify-write cycles on one session id.
	records [32]sync.Mutex

	mu      sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

// NewManager returns a manager persisting to store. ttl bounds the lifetime of
// a session regardless of upstream token refreshes.
func NewManager(store Store, sealer *crypto.TokenSealer, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		sealer: sealer,
		ttl:    ttl,
		now:    time.Now,
		subs:   make(map[int]func(Event)),
	}
}

// TTL returns the absolute session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Subscribe registers fn for lifecycle events and returns a function that
// removes it. fn runs synchronously on the goroutine that caused the event.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}

// Create starts a session from the claims returned by a credential exchange.
func (m *Manager) Create(ctx context.Context, c auth.Claims) (*auth.Session, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrInvalid)
	}
	now := m.now()
	s := &auth.Session{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		RefreshedAt: now,
	}
	s.Apply(c)
	if s.Expiry.IsZero() {
		s.Expiry = now.Add(m.ttl)
	}
	if err := m.save(ctx, s, now.Add(m.ttl)); err != nil {
		return nil, err
	}
	m.publish(Event{Type: EventCreated, SessionID: s.ID, SubjectID: s.SubjectID, Email: s.Email, At: now})
	return s, nil
}

// Get loads the session id with its token unsealed.
func (m *Manager) Get(ctx context.Context, id string) (*auth.Session, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Session.ID != id {
		return nil, ErrInvalid
	}
	token, err := m.sealer.Open(id, rec.SealedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal session token: %w", err)
	}
	s := rec.Session
	s.Token = token
	return s, nil
}

// Bookkeeping is what a request changed on its session besides identity.
type Bookkeeping struct {
	// Consumed are stored toasts the request rendered.
	Consumed []notify.Toast
	// Added are toasts queued by the request and not yet rendered.
	Added []notify.Toast
}

// Empty reports whether b carries no change.
func (b Bookkeeping) Empty() bool { return len(b.Consumed) == 0 && len(b.Added) == 0 }

// Update merges b into the stored session. Token, roles and lifetime stay as
// stored, so a refresh saved by a concurrent request survives. A destroyed
// session is never written back; Update returns ErrNotFound instead.
func (m *Manager) Update(ctx context.Context, id string, b Bookkeeping) error {
	if b.Empty() {
		return nil
	}
	unlock := m.lock(id)
	defer unlock()

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	stored := rec.Session.Clone()
	stored.Toasts = mergeToasts(stored.Toasts, b)
	return m.store.Save(ctx, &Record{
		ID:          id,
		Session:     stored,
		SealedToken: rec.SealedToken,
		ExpiresAt:   rec.ExpiresAt,
	})
}

func mergeToasts(stored []notify.Toast, b Bookkeeping) []notify.Toast {
	out := append([]notify.Toast(nil), stored...)
	for _, c := range b.Consumed {
		for i, t := range out {
			if t == c {
				out = append(out[:i], out[i+1:]...)
				break
			}
		}
	}
	out = append(out, b.Added...)
	if len(out) == 0 {
		return nil
	}
	return out
}

// RefreshToken renews session id after the backend rejected stale. Concurrent
// callers for one session share a single upstream exchange. When the stored
// token already differs from stale, another request refreshed first and the
// stored session is returned without calling r.
func (m *Manager) RefreshToken(ctx context.Context, id, stale string, r Refresher) (*auth.Session, error) {
	v, err, _ := m.refreshing.Do(id, func() (any, error) {
		// The exchange is shared, so one caller going away must not cancel it.
		ctx := context.WithoutCancel(ctx)
		current, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if stale != "" && current.Token != stale {
			return current, nil
		}
		claims, err := r.Refresh(ctx, current.Token)
		if err != nil {
			return nil, err
		}
		return m.Refresh(ctx, id, claims)
	})
	if err != nil {
		return nil, err
	}
	return v.(*auth.Session).Clone(), nil
}

// Refresh replaces the identity snapshot of session id with fresh claims.
func (m *Manager) Refresh(ctx context.Context, id string, c auth.Claims) (*auth.Session, error) {
	unlock := m.lock(id)
	defer unlock()

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	token, err := m.sealer.Open(id, rec.SealedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal session token: %w", err)
	}
	s := rec.Session
	s.Token = token
	s.Apply(c)
	now := m.now()
	s.RefreshedAt = now
	if s.Expiry.IsZero() {
		s.Expiry = rec.ExpiresAt
	}
	if err := m.save(ctx, s, rec.ExpiresAt); err != nil {
		return nil, err
	}
	m.publish(Event{Type: EventRefreshed, SessionID: id, SubjectID: s.SubjectID, Email: s.Email, At: now})
	return s, nil
}

// Destroy deletes session id. Concurrent calls for the same id collapse into
// one, and the Destroyed event fires only when a live session was removed.
func (m *Manager) Destroy(ctx context.Context, id, reason string) error {
	_, err, _ := m.destroying.Do(id, func() (any, error) {
		unlock := m.lock(id)
		defer unlock()

		rec, err := m.store.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, err
		}
		m.publish(Event{
			Type:      EventDestroyed,
			SessionID: id,
			SubjectID: rec.Session.SubjectID,
			Email:     rec.Session.Email,
			Reason:    reason,
			At:        m.now(),
		})
		return nil, nil
	})
	return err
}

// RunJanitor removes expired records every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.store.Cleanup(ctx)
			if err != nil {
				slog.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (m *Manager) lock(id string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &m.records[h.Sum32()%uint32(len(m.records))]
	mu.Lock()
	return mu.Unlock
}

func (m *Manager) save(ctx context.Context, s *auth.Session, expiresAt time.Time) error {
	sealed, err := m.sealer.Seal(s.ID, s.Token)
	if err != nil {
		return fmt.Errorf("failed to seal session token: %w", err)
	}
	stored := s.Clone()
	stored.Token = ""
	return m.store.Save(ctx, &Record{
		ID:          s.ID,
		Session:     stored,
		SealedToken: sealed,
		ExpiresAt:   expiresAt,
	})
}
