package ecs

type EventType string

const (
	EventDestinationReached EventType = "destination_reached"
	EventPathFailed         EventType = "path_failed"
	EventPathAssigned       EventType = "path_assigned"
)

// Event is addressed to a single entity.
type Event struct {
	Entity Entity
	Type   EventType
	Data   any
}

// EventQueue is a simple FIFO queue.
type EventQueue struct {
	items []Event
}

// Push adds an event.
func (q *EventQueue) Push(evt Event) {
	if q == nil {
		return
	}
	q.items = append(q.items, evt)
}

func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Peek returns a copy of the queued events without consuming them.
func (q *EventQueue) Peek() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	return append([]Event(nil), q.items...)
}

// Drain returns all events and clears the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (q *EventQueue) flush() {
	if q == nil {
		return
	}
	q.items = nil
}
