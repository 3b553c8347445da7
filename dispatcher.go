package voltgo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hashicorp/go-metrics"
)

// dispatcher routes decoded events and raw envelopes to registered handlers.
// Each registry holds at most one handler per event name; re-registration
// replaces the prior handler. Handler invocation is decoupled from the read
// loop: every invocation runs in its own goroutine, so a slow or stalled
// handler never blocks ingestion of subsequent envelopes. Invocations are
// launched in the order their envelopes arrived; no ordering is guaranteed
// between running handlers.
type dispatcher struct {
	logger *slog.Logger

	mu    sync.RWMutex
	typed map[string]Handler
	raw   map[string]RawHandler

	inflight sync.WaitGroup
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &dispatcher{
		logger: logger,
		typed:  make(map[string]Handler),
		raw:    make(map[string]RawHandler),
	}
}

// listen registers a typed handler, replacing any prior handler for the name.
func (d *dispatcher) listen(event string, handler Handler) {
	if handler == nil {
		return
	}

	d.mu.Lock()
	d.typed[strings.ToLower(event)] = handler
	d.mu.Unlock()
}

// listenRaw registers a raw handler keyed by wire envelope type.
func (d *dispatcher) listenRaw(event string, handler RawHandler) {
	if handler == nil {
		return
	}

	d.mu.Lock()
	d.raw[strings.ToLower(event)] = handler
	d.mu.Unlock()
}

// dispatch invokes the typed handler for the event's kind, if registered.
// Absence is silently ignored; most events have no registered interest.
func (d *dispatcher) dispatch(ctx context.Context, event Event) {
	if event == nil {
		return
	}
	name := strings.ToLower(string(event.EventKind()))

	d.mu.RLock()
	handler := d.typed[name]
	d.mu.RUnlock()
	if handler == nil {
		return
	}

	d.invoke(fmt.Sprintf("handle %s event", name), func() error {
		return handler(ctx, event)
	})
}

// dispatchRaw invokes the raw handler for the envelope's wire type, if
// registered.
func (d *dispatcher) dispatchRaw(ctx context.Context, envelopeType string, payload []byte) {
	d.mu.RLock()
	handler := d.raw[strings.ToLower(envelopeType)]
	d.mu.RUnlock()
	if handler == nil {
		return
	}

	d.invoke(fmt.Sprintf("handle raw %s envelope", envelopeType), func() error {
		return handler(ctx, payload)
	})
}

// invoke schedules one handler call as an independent task. Errors and panics
// are logged and swallowed here; they never reach the read loop.
func (d *dispatcher) invoke(scope string, fn func() error) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if err := runSafely(scope, fn); err != nil {
			metrics.IncrCounter(MetricDispatchHandlerErrCount, 1)
			d.logger.Error("event handler failed", "error", err)
		}
	}()
}

// drain waits for in-flight handlers to finish, or gives up when ctx expires.
func (d *dispatcher) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain handlers: %w", ctx.Err())
	}
}
