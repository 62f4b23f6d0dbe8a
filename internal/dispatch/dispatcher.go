// Package dispatch delivers named events to ordered lists of handlers.
package dispatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Lifecycle event names. Any other event name is a channel name.
const (
	EventConnected       = "connected"
	EventDisconnected    = "disconnected"
	EventError           = "error"
	EventReconnectFailed = "reconnect_failed"
)

// Handler receives the payload of an emitted event.
type Handler func(payload json.RawMessage)

// ListenerID identifies one registration returned by On.
type ListenerID uint64

// PanicObserver is notified when a handler panics. Used for metrics.
type PanicObserver func(event string)

type listener struct {
	id ListenerID
	fn Handler
}

// Dispatcher maps event names to handlers in registration order.
type Dispatcher struct {
	logger  *slog.Logger
	onPanic PanicObserver

	mu        sync.Mutex
	listeners map[string][]listener
	nextID    ListenerID
}

// New creates an empty Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:    logger,
		listeners: make(map[string][]listener),
	}
}

// SetPanicObserver installs fn to be called after a handler panic is recovered.
func (d *Dispatcher) SetPanicObserver(fn PanicObserver) {
	d.mu.Lock()
	d.onPanic = fn
	d.mu.Unlock()
}

// On registers fn under event. Registering the same func twice yields two
// registrations and two invocations per emission.
func (d *Dispatcher) On(event string, fn Handler) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners[event] = append(d.listeners[event], listener{id: id, fn: fn})
	return id
}

// Off removes the registration id from event. Unknown ids are ignored.
func (d *Dispatcher) Off(event string, id ListenerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ls := d.listeners[event]
	for i, l := range ls {
		if l.id != id {
			continue
		}
		// Copy instead of shifting in place; Emit may hold the old slice.
		next := make([]listener, 0, len(ls)-1)
		next = append(next, ls[:i]...)
		next = append(next, ls[i+1:]...)
		if len(next) == 0 {
			delete(d.listeners, event)
		} else {
			d.listeners[event] = next
		}
		return
	}
}

// Emit invokes every handler registered for event, in registration order.
// A panicking handler is logged and skipped; the remaining handlers still run.
func (d *Dispatcher) Emit(event string, payload json.RawMessage) {
	d.mu.Lock()
	ls := d.listeners[event]
	onPanic := d.onPanic
	d.mu.Unlock()

	for _, l := range ls {
		d.invoke(event, l, payload, onPanic)
	}
}

// Count returns the number of registrations for event.
func (d *Dispatcher) Count(event string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[event])
}

// Total returns the number of registrations across all events.
func (d *Dispatcher) Total() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, ls := range d.listeners {
		n += len(ls)
	}
	return n
}

// Clear drops every registration.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.listeners = make(map[string][]listener)
	d.mu.Unlock()
}

func (d *Dispatcher) invoke(event string, l listener, payload json.RawMessage, onPanic PanicObserver) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"event", event,
				"listener", l.id,
				"panic", fmt.Sprint(r),
			)
			if onPanic != nil {
				onPanic(event)
			}
		}
	}()
	l.fn(payload)
}
