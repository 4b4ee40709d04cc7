// Package safego provides a panic-recovering goroutine launcher for best-effort background work.
package safego

import "log/slog"

// Go launches fn in a new goroutine. A panic inside fn is recovered and logged
// under the given task name instead of crashing the gateway. Used for
// fire-and-forget work such as audit shipping and upstream logout calls.
func Go(task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "task", task, "panic", r)
			}
		}()
		fn()
	}()
}
