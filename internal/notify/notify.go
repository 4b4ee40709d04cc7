// Package notify carries toast notifications from server-side operations to the
// next rendered page.
package notify

import "sync"

// Level is the visual severity of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Toast is a transient message shown once to the user.
type Toast struct {
	Level   Level  `json:"level"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// Notifier receives toasts.
type Notifier interface {
	Notify(Toast)
}

// Discard drops every toast.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Toast) {}

// Collector buffers toasts in memory. The zero value is ready to use.
type Collector struct {
	mu     sync.Mutex
	toasts []Toast
}

// Notify appends t.
func (c *Collector) Notify(t Toast) {
	c.mu.Lock()
	c.toasts = append(c.toasts, t)
	c.mu.Unlock()
}

// Drain returns and clears the buffered toasts.
func (c *Collector) Drain() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.toasts
	c.toasts = nil
	return out
}

// Success is shorthand for a success toast.
func Success(msg string) Toast { return Toast{Level: LevelSuccess, Message: msg} }

// Error is shorthand for an error toast with a title.
func Error(title, msg string) Toast { return Toast{Level: LevelError, Title: title, Message: msg} }
