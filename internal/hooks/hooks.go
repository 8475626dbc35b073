// Package hooks dispatches conversation lifecycle events to in-process
// handlers such as the gateway event forwarder.
package hooks

import (
	"context"
	"slices"
	"sync"

	"github.com/sarega/promptprim/internal/logging"
)

// Event names.
const (
	EventTurnStart       = "turn_start"
	EventTurnComplete    = "turn_complete"
	EventTurnCancelled   = "turn_cancelled"
	EventTurnError       = "turn_error"
	EventFlowState       = "flow_state"
	EventFlowStopped     = "flow_stopped"
	EventSummaryCreated  = "summary_created"
	EventSummaryUnloaded = "summary_unloaded"
	EventGatewayStart    = "gateway_start"
	EventGatewayStop     = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventTurnStart,
	EventTurnComplete,
	EventTurnCancelled,
	EventTurnError,
	EventFlowState,
	EventFlowStopped,
	EventSummaryCreated,
	EventSummaryUnloaded,
	EventGatewayStart,
	EventGatewayStop,
}

// Known reports whether event is one of AllEvents.
func Known(event string) bool {
	return slices.Contains(AllEvents, event)
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles a hook event. A returned error is logged and does not
// stop other handlers.
type Handler func(ctx context.Context, p Payload) error

// Emitter is the publishing side of a Manager.
type Emitter interface {
	Emit(ctx context.Context, event string, data map[string]any)
}

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for event under name.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// OnEach registers handler for every event in events under one name.
func (m *Manager) OnEach(events []string, name string, handler Handler) {
	for _, e := range events {
		m.On(e, name, handler)
	}
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

// OffAll removes the named handler from every event.
func (m *Manager) OffAll(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for event, hs := range m.handlers {
		m.handlers[event] = slices.DeleteFunc(hs, func(h namedHandler) bool {
			return h.name == name
		})
	}
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.handlers[event])
}

// Emit dispatches an event to all registered handlers synchronously, in
// registration order.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, Data: data}
	for _, h := range handlers {
		if err := h.handler(ctx, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler, sorted.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}

// Nop is an Emitter that drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, string, map[string]any) {}
