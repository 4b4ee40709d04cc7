package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
)

// ErrLoggedOut is returned by a Holder whose session was force-logged-out.
var ErrLoggedOut = errors.New("session logged out")

// errorSessionExpired is the Session.Error marker set by ForceLogout.
const errorSessionExpired = "SessionExpired"

// Refresher exchanges a still-held access token for fresh claims.
type Refresher interface {
	Refresh(ctx context.Context, accessToken string) (auth.Claims, error)
}

// Holder is the per-request handle on one session. It is the Authenticator
// handed to the backend client and the Notifier for toasts raised while
// serving the request.
type Holder struct {
	mgr       *Manager
	refresher Refresher

	mu      sync.Mutex
	sess    *auth.Session
	expired bool
	// pending are the stored toasts not yet rendered by this request.
	pending []notify.Toast
	changes Bookkeeping

	logout sync.Once
}

// NewHolder binds s to the request. s must come from mgr.
func NewHolder(mgr *Manager, refresher Refresher, s *auth.Session) *Holder {
	return &Holder{
		mgr:       mgr,
		refresher: refresher,
		sess:      s,
		pending:   append([]notify.Toast(nil), s.Toasts...),
	}
}

// Session returns a snapshot of the current session, or nil after ForceLogout.
func (h *Holder) Session() *auth.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.expired {
		return nil
	}
	return h.sess.Clone()
}

// ID returns the session id.
func (h *Holder) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.ID
}

// Expired reports whether ForceLogout ran.
func (h *Holder) Expired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.expired
}

// Token implements oauth2.TokenSource with the latest access token.
func (h *Holder) Token() (*oauth2.Token, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.expired {
		return nil, ErrLoggedOut
	}
	return &oauth2.Token{
		AccessToken: h.sess.Token,
		TokenType:   "Bearer",
		Expiry:      h.sess.Expiry,
	}, nil
}

// Refresh obtains fresh claims for the session. stale is the token the caller
// was rejected with; if the session already moved past it, Refresh returns at
// once. Concurrent callers on the same session, from any request, share one
// upstream refresh.
func (h *Holder) Refresh(ctx context.Context, stale string) error {
	h.mu.Lock()
	if h.expired {
		h.mu.Unlock()
		return ErrLoggedOut
	}
	current, id := h.sess.Token, h.sess.ID
	h.mu.Unlock()
	if stale != "" && stale != current {
		return nil
	}

	fresh, err := h.mgr.RefreshToken(ctx, id, current, h.refresher)
	if err != nil {
		return err
	}
	h.mu.Lock()
	fresh.Toasts = h.sess.Toasts
	h.sess = fresh
	h.mu.Unlock()
	return nil
}

// ForceLogout destroys the session after an unrecoverable 401. Only the first
// call has an effect.
func (h *Holder) ForceLogout(ctx context.Context) {
	h.logout.Do(func() {
		h.mu.Lock()
		h.expired = true
		h.sess.Error = errorSessionExpired
		id := h.sess.ID
		h.mu.Unlock()

		if err := h.mgr.Destroy(ctx, id, ReasonExpired); err != nil {
			slog.Warn("failed to destroy expired session", "session_id", id, "error", err)
		}
	})
}

// Notify queues a toast for the next rendered page.
func (h *Holder) Notify(t notify.Toast) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess.Toasts = append(h.sess.Toasts, t)
	h.changes.Added = append(h.changes.Added, t)
}

// TakeToasts returns and clears the queued toasts.
func (h *Holder) TakeToasts() []notify.Toast {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.sess.Toasts
	h.sess.Toasts = nil
	h.changes.Consumed = append(h.changes.Consumed, h.pending...)
	h.pending = nil
	h.changes.Added = nil
	return out
}

// Flush persists the toasts queued and rendered during the request. Only that
// bookkeeping is written; identity and token are owned by Refresh.
func (h *Holder) Flush(ctx context.Context) error {
	h.mu.Lock()
	if h.changes.Empty() || h.expired {
		h.mu.Unlock()
		return nil
	}
	changes := h.changes
	h.changes = Bookkeeping{}
	id := h.sess.ID
	h.mu.Unlock()

	err := h.mgr.Update(ctx, id, changes)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
