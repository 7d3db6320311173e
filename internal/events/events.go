package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	NotificationCreated  = "notification.created"
	NotificationRead     = "notification.read"
	NotificationsRead    = "notifications.read_all"
	NotificationDeleted  = "notification.deleted"
	NotificationsCleared = "notifications.cleared"
	SoundUploaded        = "sound.uploaded"
	SoundDeleted         = "sound.deleted"
	PreferencesUpdated   = "preferences.updated"
)

// Event represents a lightweight domain event scoped to one user.
type Event struct {
	Type      string
	UserID    int64
	Payload   []byte
	CreatedAt time.Time
}

// NewEvent builds an event with a JSON payload. A payload that fails to
// encode is dropped; subscribers only rely on Type and UserID.
func NewEvent(eventType string, userID int64, payload any) Event {
	ev := Event{Type: eventType, UserID: userID, CreatedAt: time.Now()}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// ErrorHandler receives handler failures.
type ErrorHandler func(event Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	wildcard    []EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets the callback for failing handlers.
func (b *EventBus) OnError(fn ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// SubscribeAll registers a handler that sees every event.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish notifies subscribers of the event type. A nil bus is a no-op.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.wildcard...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}
