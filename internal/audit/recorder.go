package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/config"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/safego"
)

// BackendShipper records entries through POST /auditoria, authenticated with
// the entry's token. Entries without a token are skipped.
type BackendShipper struct {
	api backend.AuditAPI
}

// NewBackendShipper returns a shipper posting through c.
func NewBackendShipper(c *backend.Client) *BackendShipper {
	return &BackendShipper{api: backend.NewAPI(c).Audit}
}

// Ship implements Shipper.
func (b *BackendShipper) Ship(ctx context.Context, entry *LogEntry) error {
	if entry.Token == "" {
		return nil
	}
	return b.api.RecordAs(ctx, entry.Token, backend.AuditRecord{
		Accion:    entry.Action,
		Modulo:    entry.Module,
		Detalles:  entry.Details,
		IP:        entry.IPAddress,
		Resultado: entry.Result,
	})
}

// Close implements Shipper.
func (b *BackendShipper) Close() error { return nil }

// FromConfig builds the shippers enabled in cfg. The backend shipper is added
// when cfg.ShipToBackend is set and c is not nil.
func FromConfig(cfg config.AuditConfig, c *backend.Client) (*MultiShipper, error) {
	if !cfg.Enabled {
		return NewMultiShipper(nil)
	}

	configs := make([]ShipperConfig, 0, len(cfg.Shippers))
	for _, s := range cfg.Shippers {
		sc := ShipperConfig{Enabled: s.Enabled, Type: s.Type}
		if s.Webhook != nil {
			sc.Webhook = &WebhookConfig{
				URL:           s.Webhook.URL,
				Headers:       s.Webhook.Headers,
				Timeout:       time.Duration(s.Webhook.TimeoutSecs) * time.Second,
				BatchSize:     s.Webhook.BatchSize,
				FlushInterval: time.Duration(s.Webhook.FlushInterval) * time.Second,
			}
		}
		if s.File != nil {
			sc.File = &FileConfig{Path: s.File.Path, MaxSizeMB: s.File.MaxSizeMB, MaxBackups: s.File.MaxBackups}
		}
		configs = append(configs, sc)
	}

	var extra []Shipper
	if cfg.ShipToBackend && c != nil {
		extra = append(extra, NewBackendShipper(c))
	}
	return NewMultiShipper(configs, extra...)
}

// Recorder ships entries in the background. A nil *Recorder discards entries.
type Recorder struct {
	shipper Shipper
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewRecorder returns a recorder shipping to s.
func NewRecorder(s Shipper) *Recorder {
	return &Recorder{shipper: s, timeout: 5 * time.Second, now: time.Now}
}

// Record ships entry without blocking the caller. Failures are logged.
func (r *Recorder) Record(entry *LogEntry) {
	if r == nil || r.shipper == nil {
		return
	}
	r.wg.Add(1)
	safego.Go("audit."+entry.Action, func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.Ship(ctx, entry)
	})
}

// Ship delivers entry on the calling goroutine, for callers whose next step
// must wait for it. Failures are logged.
func (r *Recorder) Ship(ctx context.Context, entry *LogEntry) {
	if r == nil || r.shipper == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	if entry.Result == "" {
		entry.Result = ResultSuccess
	}
	if err := r.shipper.Ship(ctx, entry); err != nil {
		slog.Warn("audit entry not shipped", "action", entry.Action, "user_id", entry.UserID, "error", err)
	}
}

// Wait blocks until every recorded entry has been shipped or has failed.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
