package events

import (
	"fmt"
	"sync"

	console "cmms/internal/utils/logger"
)

var log = console.New("EVENTS")

// Domain events emitted by the core.
const (
	WorkOrderCreated      = "work_orders.created"
	WorkOrderTransitioned = "work_orders.transitioned"
	WorkOrderSlaBreached  = "work_orders.sla_breached"
	TicketCreated         = "tickets.created"
	TicketSlaBreached     = "tickets.sla_breached"
	BreakGlassGranted     = "rbac.break_glass"
	TenantCreated         = "tenants.created"
	TenantReadOnlyChanged = "tenants.read_only_changed"
)

type EventHandler func(interface{})

type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	inflight sync.WaitGroup
}

var defaultBus = NewEventBus()

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
	}
}

// On registers a handler for an event
func (bus *EventBus) On(event string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers[event] = append(bus.handlers[event], handler)
	log.Debug("Registered handler for event: %s", event)
}

// Emit runs every handler for event on its own goroutine. Panics in
// handlers are logged and swallowed.
func (bus *EventBus) Emit(event string, data interface{}) {
	bus.mu.RLock()
	handlers := append([]EventHandler(nil), bus.handlers[event]...)
	bus.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	log.Debug("Emitting event: %s", event)

	for _, handler := range handlers {
		bus.inflight.Add(1)
		go func(h EventHandler) {
			defer bus.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					_ = log.Error("Panic in event handler for %s", fmt.Errorf("panic: %v", r), event)
				}
			}()
			h(data)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (bus *EventBus) Wait() {
	bus.inflight.Wait()
}

// Reset drops all handlers.
func (bus *EventBus) Reset() {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers = make(map[string][]EventHandler)
}

// On Global event functions that use the default event bus
func On(event string, handler EventHandler) {
	defaultBus.On(event, handler)
}

func Emit(event string, data interface{}) {
	defaultBus.Emit(event, data)
}

func Wait() {
	defaultBus.Wait()
}

func Reset() {
	defaultBus.Reset()
}
