// Package audit ships dashboard audit events (logins, logouts, admin writes)
// to one or more destinations. The backend keeps the authoritative audit log;
// everything shipped from here is a best-effort copy and a failure to ship
// never fails the operation being audited.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Result values of an entry.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// LogEntry is one audit event.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	Module     string         `json:"module,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Email      string         `json:"email,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Result     string         `json:"result"`
	Details    string         `json:"details,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	// Token authenticates the entry against the backend. Never serialized.
	Token string `json:"-"`
}

// Shipper delivers entries to one destination.
type Shipper interface {
	Ship(ctx context.Context, entry *LogEntry) error
	Close() error
}

// ShipperConfig selects and configures one shipper.
type ShipperConfig struct {
	Enabled bool
	// Type is webhook or file.
	Type    string
	Webhook *WebhookConfig
	File    *FileConfig
}

// WebhookConfig configures a WebhookShipper.
type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	// BatchSize > 0 queues entries and posts them as a JSON array.
	BatchSize     int
	FlushInterval time.Duration
}

// FileConfig configures a FileShipper.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// MultiShipper fans entries out to several shippers.
type MultiShipper struct {
	mu       sync.RWMutex
	shippers []Shipper
}

// NewMultiShipper builds the enabled shippers of configs.
func NewMultiShipper(configs []ShipperConfig, extra ...Shipper) (*MultiShipper, error) {
	ms := &MultiShipper{shippers: make([]Shipper, 0, len(configs)+len(extra))}
	ms.shippers = append(ms.shippers, extra...)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var (
			shipper Shipper
			err     error
		)
		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}
		if err != nil {
			_ = ms.Close()
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}
		ms.shippers = append(ms.shippers, shipper)
	}

	return ms, nil
}

// Len returns the number of active shippers.
func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship sends entry to every shipper, returning the last error.
func (ms *MultiShipper) Ship(ctx context.Context, entry *LogEntry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, entry); err != nil {
			lastErr = err
			slog.Warn("audit shipper failed", "shipper", fmt.Sprintf("%T", s), "action", entry.Action, "error", err)
		}
	}
	return lastErr
}

// Close closes every shipper.
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// WebhookShipper posts entries to an HTTP endpoint.
type WebhookShipper struct {
	cfg    *WebhookConfig
	client *http.Client

	batchCh chan *LogEntry
	batch   []*LogEntry

	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebhookShipper returns a webhook shipper. With batching enabled it starts
// a background flusher that Close stops.
func NewWebhookShipper(cfg *WebhookConfig) (*WebhookShipper, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ws := &WebhookShipper{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.BatchSize > 0 {
		ws.batchCh = make(chan *LogEntry, 1000)
		go ws.processBatches()
	} else {
		close(ws.done)
	}
	return ws, nil
}

func (ws *WebhookShipper) processBatches() {
	defer close(ws.done)

	interval := ws.cfg.FlushInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-ws.batchCh:
			ws.batch = append(ws.batch, entry)
			if len(ws.batch) >= ws.cfg.BatchSize {
				ws.flushBatch()
			}
		case <-ticker.C:
			ws.flushBatch()
		case <-ws.closeCh:
			for {
				select {
				case entry := <-ws.batchCh:
					ws.batch = append(ws.batch, entry)
				default:
					ws.flushBatch()
					return
				}
			}
		}
	}
}

// flushBatch runs only on the processBatches goroutine.
func (ws *WebhookShipper) flushBatch() {
	if len(ws.batch) == 0 {
		return
	}
	defer func() { ws.batch = ws.batch[:0] }()

	data, err := json.Marshal(ws.batch)
	if err != nil {
		slog.Warn("failed to marshal audit batch", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ws.client.Timeout)
	defer cancel()
	if err := ws.send(ctx, data); err != nil {
		slog.Warn("failed to send audit batch", "entries", len(ws.batch), "error", err)
	}
}

// Ship queues entry when batching, else posts it at once. A full queue falls
// back to a direct post.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *LogEntry) error {
	if ws.batchCh != nil {
		select {
		case <-ws.closeCh:
		case ws.batchCh <- entry:
			return nil
		default:
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	return ws.send(ctx, data)
}

func (ws *WebhookShipper) send(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close flushes queued entries and stops the flusher.
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() { close(ws.closeCh) })
	<-ws.done
	return nil
}

// FileShipper appends entries as JSON lines to a file, rotating by size.
type FileShipper struct {
	cfg  *FileConfig
	mu   sync.Mutex
	file *os.File
}

// NewFileShipper opens (or creates) cfg.Path for appending.
func NewFileShipper(cfg *FileConfig) (*FileShipper, error) {
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileShipper{cfg: cfg, file: f}, nil
}

// Ship writes entry as one line.
func (fs *FileShipper) Ship(_ context.Context, entry *LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		if info, err := fs.file.Stat(); err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				return fmt.Errorf("failed to rotate audit log: %w", err)
			}
		}
	}

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// rotate shifts path.N to path.N+1, moves the live file to path.1 and reopens.
// Caller holds fs.mu.
func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}
	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", fs.cfg.Path, i), fmt.Sprintf("%s.%d", fs.cfg.Path, i+1))
	}
	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")
	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	f, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	fs.file = f
	return nil
}

// Close closes the file.
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
