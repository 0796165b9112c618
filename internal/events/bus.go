// Package events provides the session-scoped pub/sub bus that decouples the
// debate engine from the outbound UI gateway. Publishing never blocks the
// debate flow; slow subscribers drop events.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType names an outbound UI event.
type EventType string

// UI-facing event types.
const (
	EventSpeakerChanged  EventType = "speaker_changed"
	EventPersonasCreated EventType = "personas_created"
	EventHotTakesUpdated EventType = "hot_takes_updated"
	EventEmojiReaction   EventType = "emoji_reaction"
	EventResearchStatus  EventType = "research_status"
	EventAgentReturned   EventType = "agent_returned"
	EventAvatarTool      EventType = "avatar-tool"
	EventSay             EventType = "say"
)

// Event is one bus event.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(eventType EventType, payload interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Subscriber receives bus events over a buffered channel.
type Subscriber struct {
	ID      string
	Channel chan *Event

	closed bool
	mu     sync.Mutex
}

// Close closes the subscriber channel. Safe to call more than once.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.Channel)
	}
}

// trySend delivers without blocking; a full or closed subscriber drops the
// event.
func (s *Subscriber) trySend(event *Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.Channel <- event:
		return true
	default:
		return false
	}
}

// Metrics tracks bus statistics.
type Metrics struct {
	Published int64
	Delivered int64
	Dropped   int64
}

// Bus is the session event bus.
type Bus struct {
	subscribers []*Subscriber
	mu          sync.RWMutex
	bufferSize  int
	metrics     Metrics
	closed      bool
}

// DefaultBufferSize is the per-subscriber channel buffer.
const DefaultBufferSize = 64

// NewBus creates a bus. bufferSize <= 0 uses DefaultBufferSize.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers a subscriber for all events.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:      uuid.New().String(),
		Channel: make(chan *Event, b.bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.Close()
		return sub
	}
	b.subscribers = append(b.subscribers, sub)
	return sub
}

// Unsubscribe removes and closes a subscriber.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	for i, s := range b.subscribers {
		if s == sub {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	sub.Close()
}

// Publish sends an event to all subscribers without blocking.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]*Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	atomic.AddInt64(&b.metrics.Published, 1)
	for _, sub := range subs {
		if sub.trySend(event) {
			atomic.AddInt64(&b.metrics.Delivered, 1)
		} else {
			atomic.AddInt64(&b.metrics.Dropped, 1)
		}
	}
}

// Emit is shorthand for publishing a typed payload.
func (b *Bus) Emit(eventType EventType, payload interface{}) {
	b.Publish(NewEvent(eventType, payload))
}

// Metrics returns a snapshot of bus statistics.
func (b *Bus) Metrics() Metrics {
	return Metrics{
		Published: atomic.LoadInt64(&b.metrics.Published),
		Delivered: atomic.LoadInt64(&b.metrics.Delivered),
		Dropped:   atomic.LoadInt64(&b.metrics.Dropped),
	}
}

// Close shuts the bus down and closes all subscribers.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subscribers
	b.subscribers = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
