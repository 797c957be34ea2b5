// Package events provides an in-process pub/sub bus for build lifecycle
// notifications, used by the server to log and expose build activity.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// EventType represents the type of build event.
type EventType int

const (
	BuildValidated EventType = iota
	BuildFailed
	SnapshotSaved
)

// Event represents one build lifecycle notification.
type Event struct {
	Type        EventType
	PlanID      string
	PlanName    string
	Environment string
	Detail      string
	Timestamp   int64
}

// Notifier is an in-process pub/sub bus for build events.
type Notifier struct {
	subscribers sync.Map
	bufferSize  int
}

// NewNotifier creates a notifier whose subscriber channels buffer
// bufferSize events.
func NewNotifier(bufferSize int) *Notifier {
	return &Notifier{bufferSize: bufferSize}
}

// Publish sends an event to all matching subscribers. Non-blocking: a
// subscriber with a full channel misses the event rather than stalling
// the publisher.
func (n *Notifier) Publish(ev Event) {
	n.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber)
		if n.matchesFilter(sub, ev.Environment) {
			select {
			case sub.Ch <- ev:
			default:
			}
		}
		return true
	})
}

// Subscribe adds a subscriber with a caller-chosen ID. Filters are
// environment-name prefixes; no filters means receive everything.
func (n *Notifier) Subscribe(id string, filters []string) *Subscriber {
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      make(chan Event, n.bufferSize),
	}
	n.subscribers.Store(sub.ID, sub)
	return sub
}

// SubscribeAutoID adds a subscriber with a generated ID and returns its
// channel.
func (n *Notifier) SubscribeAutoID(filters ...string) chan Event {
	return n.Subscribe("sub_"+uuid.NewString(), filters).Ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	if value, ok := n.subscribers.LoadAndDelete(subID); ok {
		close(value.(*Subscriber).Ch)
	}
}

func (n *Notifier) matchesFilter(sub *Subscriber, environment string) bool {
	if len(sub.Filters) == 0 {
		return true
	}
	for _, filter := range sub.Filters {
		if len(filter) == 0 {
			return true
		}
		if len(environment) >= len(filter) && environment[:len(filter)] == filter {
			return true
		}
	}
	return false
}

// Subscriber represents one event subscriber.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Event
}
