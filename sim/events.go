package sim

import (
	"github.com/charmbracelet/log"
	"github.com/milk9111/pathsteer/ecs"
)

const defaultEventLogSize = 64

// LoggedEvent is an ecs event stamped with the tick it was raised on.
type LoggedEvent struct {
	Tick   int           `yaml:"tick"`
	Entity ecs.Entity    `yaml:"entity"`
	Type   ecs.EventType `yaml:"type"`
}

// EventLog runs last in the tick and keeps the most recent events.
type EventLog struct {
	logger *log.Logger
	size   int
	recent []LoggedEvent
	counts map[ecs.EventType]int
	tick   int
}

func NewEventLog(logger *log.Logger, size int) *EventLog {
	if logger == nil {
		logger = log.Default()
	}
	if size <= 0 {
		size = defaultEventLogSize
	}
	return &EventLog{
		logger: logger.WithPrefix("events"),
		size:   size,
		counts: map[ecs.EventType]int{},
	}
}

func (l *EventLog) Update(w *ecs.World) {
	if l == nil || w == nil {
		return
	}
	for _, ev := range w.Events().Drain() {
		l.counts[ev.Type]++
		l.recent = append(l.recent, LoggedEvent{Tick: l.tick, Entity: ev.Entity, Type: ev.Type})
		l.logger.Debug(string(ev.Type), "tick", l.tick, "entity", ev.Entity)
	}
	if over := len(l.recent) - l.size; over > 0 {
		l.recent = append(l.recent[:0], l.recent[over:]...)
	}
}

// Recent returns the retained events, oldest first.
func (l *EventLog) Recent() []LoggedEvent {
	return append([]LoggedEvent(nil), l.recent...)
}

// Count is the total number of events of typ seen so far.
func (l *EventLog) Count(typ ecs.EventType) int {
	return l.counts[typ]
}
