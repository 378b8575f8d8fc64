package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	RunStarted       EventType = "RUN_STARTED"
	PricesFetched    EventType = "PRICES_FETCHED"
	EstimatesReady   EventType = "ESTIMATES_READY"
	FrontierProgress EventType = "FRONTIER_PROGRESS"
	CloudProgress    EventType = "CLOUD_PROGRESS"
	RunCompleted     EventType = "RUN_COMPLETED"
	RunFailed        EventType = "RUN_FAILED"
)

// AllTypes lists every event type the bus carries, used by the SSE
// stream when no type filter is given.
var AllTypes = []EventType{
	RunStarted,
	PricesFetched,
	EstimatesReady,
	FrontierProgress,
	CloudProgress,
	RunCompleted,
	RunFailed,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler receives published events. Handlers must not block; consumers
// that fan out to slow sinks buffer on their own channel.
type Handler func(event *Event)

// Bus is an in-process publish/subscribe event bus. Publishing never
// blocks on subscribers and a bus with no subscribers only logs.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers an event to every subscriber of its type and logs it
func (b *Bus) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eventJSON, _ := json.Marshal(event)
	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", event.Module).
		RawJSON("event", eventJSON).
		Msg("Event published")

	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// Emit builds and publishes an event
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	b.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	})
}

// EmitError publishes a RUN_FAILED event carrying the error text
func (b *Bus) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error": err.Error(),
	}
	for k, v := range context {
		data[k] = v
	}
	b.Emit(RunFailed, module, data)
}
