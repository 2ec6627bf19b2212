// Package notify delivers person alerts to the configured audio targets. A
// dispatcher fans one message out to every enabled backend and suppresses
// repeats of the same message inside the dedup window.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"sentrycam-go/internal/platform/logging"
)

// Backend plays one alert message on a specific output.
type Backend interface {
	Name() string
	Send(ctx context.Context, message string) error
	Healthy(ctx context.Context) bool
}

// Dispatcher routes alert messages to registered backends.
type Dispatcher struct {
	backends map[string]Backend
	targets  []string
	logger   *logging.Logger

	minInterval time.Duration
	clock       func() time.Time

	mu          sync.Mutex
	lastMessage string
	lastSent    time.Time
}

// NewDispatcher creates a dispatcher for the given target names. Targets
// without a registered backend are skipped with a warning at dispatch time.
func NewDispatcher(targets []string, minInterval time.Duration, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		backends:    make(map[string]Backend),
		targets:     targets,
		logger:      logger,
		minInterval: minInterval,
		clock:       time.Now,
	}
}

// Register adds a backend under its name.
func (d *Dispatcher) Register(backend Backend) {
	d.backends[backend.Name()] = backend
}

// RenderMessage substitutes the description into the template. An empty
// description falls back to the unknown wording.
func RenderMessage(template, description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return "Person detection unknown"
	}
	return strings.ReplaceAll(template, "{desc}", description)
}

// Dispatch sends the message to every configured backend. It returns true
// only when at least one backend was invoked and all invoked backends
// succeeded. A message identical to the previous one inside the dedup
// window is suppressed and reported as success. When every invoked backend
// fails the window is disarmed again so a retry of the same message can get
// through; a partial failure keeps it armed because at least one target
// played the alert.
func (d *Dispatcher) Dispatch(ctx context.Context, message string) bool {
	if strings.TrimSpace(message) == "" {
		return false
	}

	if d.suppress(message) {
		d.logger.InfoTag("NOTIFY", "duplicate message inside dedup window, skipping")
		return true
	}

	invoked := 0
	failed := 0

	for _, target := range d.targets {
		backend, ok := d.backends[target]
		if !ok {
			d.logger.WarnTag("NOTIFY", "target %q has no backend configured, skipping", target)
			continue
		}

		invoked++
		if err := backend.Send(ctx, message); err != nil {
			failed++
			d.logger.ErrorTag("NOTIFY", "%s delivery failed: %v", backend.Name(), err)
		} else {
			d.logger.InfoTag("NOTIFY", "%s delivered: %s", backend.Name(), message)
		}
	}

	if invoked > 0 && failed == invoked {
		// Nobody heard the alert, so the window must not swallow a retry of
		// the same message.
		d.disarm(message)
	}

	return invoked > 0 && failed == 0
}

// suppress atomically checks the dedup window and records this message as
// the most recent one. Recording happens at check time so two concurrent
// dispatches of the same message cannot both pass.
func (d *Dispatcher) suppress(message string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock()
	if message == d.lastMessage && now.Sub(d.lastSent) < d.minInterval {
		return true
	}

	d.lastMessage = message
	d.lastSent = now
	return false
}

// disarm clears the dedup window for a message whose delivery failed on
// every backend. A concurrent dispatch may have re-armed the window for a
// different message in the meantime, in which case it stays as is.
func (d *Dispatcher) disarm(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastMessage == message {
		d.lastSent = time.Time{}
	}
}

// Healthy reports whether every configured backend is ready.
func (d *Dispatcher) Healthy(ctx context.Context) bool {
	for _, target := range d.targets {
		backend, ok := d.backends[target]
		if !ok || !backend.Healthy(ctx) {
			return false
		}
	}
	return true
}
