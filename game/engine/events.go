package engine

import (
	"reflect"

	log "github.com/sirupsen/logrus"
)

// EventKind identifies an event for subscription filtering
type EventKind string

const (
	KindRobotDestroyed EventKind = "robot-destroyed"
	KindRobotCrushed   EventKind = "robot-crushed"
	KindGameOver       EventKind = "game-over"

	// AllEvents subscribes a listener to every kind
	AllEvents EventKind = "*"
)

// Event is something that happened during a match
type Event interface {
	Kind() EventKind
}

// RobotDestroyed fires once when a robot runs out of power
type RobotDestroyed struct {
	Robot *Object
}

// Kind implements Event
func (RobotDestroyed) Kind() EventKind { return KindRobotDestroyed }

// RobotCrushed fires when a robot ends up in the crusher
type RobotCrushed struct {
	Robot *Object
}

// Kind implements Event
func (RobotCrushed) Kind() EventKind { return KindRobotCrushed }

// GameOver fires when the player robot is destroyed
type GameOver struct{}

// Kind implements Event
func (GameOver) Kind() EventKind { return KindGameOver }

// Listener receives dispatched events
type Listener interface {
	HandleEvent(event Event)
}

type subscription struct {
	listener Listener
	filter   EventKind
}

// Bus delivers events synchronously to subscribers in registration order
type Bus struct {
	subscriptions []subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers listener for events matching filter.
// Registering the same listener with the same filter twice has no effect.
func (b *Bus) Subscribe(listener Listener, filter EventKind) {
	if listener == nil {
		return
	}
	for _, sub := range b.subscriptions {
		if sub.filter == filter && sameListener(sub.listener, listener) {
			return
		}
	}
	b.subscriptions = append(b.subscriptions, subscription{listener: listener, filter: filter})
}

// Dispatch delivers event to every matching listener before returning
func (b *Bus) Dispatch(event Event) {
	log.WithField("event", event.Kind()).Debug("dispatching event")

	for i := 0; i < len(b.subscriptions); i++ {
		sub := b.subscriptions[i]
		if sub.filter == AllEvents || sub.filter == event.Kind() {
			sub.listener.HandleEvent(event)
		}
	}
}

// Len returns the number of registered subscriptions
func (b *Bus) Len() int {
	return len(b.subscriptions)
}

func sameListener(a, b Listener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
