package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// SlotsGenerated is published after a generation run has been merged.
	SlotsGenerated = "slots.generated"
	// SettingsMissing is published when a clinic has no booking settings.
	SettingsMissing = "settings.missing"
	// CatalogReloaded is published after clinics.yaml has been applied.
	CatalogReloaded = "catalog.reloaded"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// GeneratedPayload describes a finished generation run.
type GeneratedPayload struct {
	ClinicID        string    `json:"clinic_id"`
	SpecialistID    string    `json:"specialist_id"`
	ServiceOptionID string    `json:"service_option_id"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	Generated       int       `json:"generated"`
	Inserted        int       `json:"inserted"`
	Skipped         int       `json:"skipped"`
}

// SettingsMissingPayload names the clinic without booking settings.
type SettingsMissingPayload struct {
	ClinicID     string `json:"clinic_id"`
	SpecialistID string `json:"specialist_id"`
}

// CatalogPayload summarises a reloaded catalog.
type CatalogPayload struct {
	Clinics     int `json:"clinics"`
	Specialists int `json:"specialists"`
	Directory   int `json:"directory"`
}

// NewEvent encodes payload as JSON.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: data, CreatedAt: time.Now()}, nil
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	return json.Unmarshal(e.Payload, out)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged when logger is set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Error().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishPayload encodes payload and publishes it. Encoding failures are logged and dropped.
func (b *EventBus) PublishPayload(eventType string, payload any) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		if b.logger != nil {
			b.logger.Error().Err(err).Str("event", eventType).Msg("encode event payload")
		}
		return
	}
	b.Publish(event)
}
