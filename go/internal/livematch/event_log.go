package livematch

import (
	"github.com/mcdev12/matchday/go/internal/models"
)

// AppendResult describes what Append did with an event
type AppendResult struct {
	Accepted  bool
	Duplicate bool
	Malformed bool
	// MinuteRegressed is set on an accepted event that is earlier on the
	// match clock than the previous one
	MinuteRegressed bool
}

// EventLog is the ordered, de-duplicated list of events of one match.
// Events are kept in arrival order and never re-sorted.
//
// With a retention cap the oldest events are dropped from the list, but
// they stay in the id set and in per-type tallies so every count still
// covers the full history. EventLog is not safe for concurrent use.
type EventLog struct {
	maxRetained int
	// events[head:] are retained; the evicted prefix is compacted away
	// once it is as long as the retained part
	events      []models.MatchEvent
	head        int
	seen        map[models.ID]struct{}
	evicted     map[models.EventType]int
	evictedN    int

	last    models.MatchEvent
	hasLast bool

	onAppend func(models.MatchEvent)
}

// NewEventLog creates an empty log. maxRetained <= 0 keeps every event.
func NewEventLog(maxRetained int) *EventLog {
	if maxRetained < 0 {
		maxRetained = 0
	}
	return &EventLog{
		maxRetained: maxRetained,
		seen:        make(map[models.ID]struct{}),
		evicted:     make(map[models.EventType]int),
	}
}

// OnAppend sets a hook called synchronously for every event accepted by Append
func (l *EventLog) OnAppend(fn func(models.MatchEvent)) {
	l.onAppend = fn
}

// Seed loads the snapshot's events without firing the append hook.
// It returns how many were accepted.
func (l *EventLog) Seed(events []models.MatchEvent) int {
	accepted := 0
	for _, ev := range events {
		if l.add(ev).Accepted {
			accepted++
		}
	}
	return accepted
}

// Append adds ev at the end unless its id is missing or already known
func (l *EventLog) Append(ev models.MatchEvent) AppendResult {
	res := l.add(ev)
	if res.Accepted && l.onAppend != nil {
		l.onAppend(ev)
	}
	return res
}

func (l *EventLog) add(ev models.MatchEvent) AppendResult {
	if ev.ID.IsZero() {
		return AppendResult{Malformed: true}
	}
	if _, dup := l.seen[ev.ID]; dup {
		return AppendResult{Duplicate: true}
	}

	res := AppendResult{Accepted: true}
	if l.hasLast && ev.Before(l.last) {
		res.MinuteRegressed = true
	}

	l.seen[ev.ID] = struct{}{}
	l.events = append(l.events, ev)
	l.last, l.hasLast = ev, true

	if l.maxRetained > 0 && len(l.events)-l.head > l.maxRetained {
		l.evicted[l.events[l.head].EventType]++
		l.evictedN++
		l.head++
		if l.head >= l.maxRetained {
			n := copy(l.events, l.events[l.head:])
			clear(l.events[n:])
			l.events = l.events[:n]
			l.head = 0
		}
	}
	return res
}

func (l *EventLog) retained() []models.MatchEvent {
	return l.events[l.head:]
}

// Contains reports whether an event with id has been accepted
func (l *EventLog) Contains(id models.ID) bool {
	_, ok := l.seen[id]
	return ok
}

// Events returns a copy of the retained events in arrival order
func (l *EventLog) Events() []models.MatchEvent {
	out := make([]models.MatchEvent, len(l.retained()))
	copy(out, l.retained())
	return out
}

// Len returns the number of retained events
func (l *EventLog) Len() int {
	return len(l.retained())
}

// Total returns the number of accepted events, including evicted ones
func (l *EventLog) Total() int {
	return l.evictedN + l.Len()
}

// Count returns how many accepted events have one of the given types
func (l *EventLog) Count(types ...models.EventType) int {
	n := 0
	for _, t := range types {
		n += l.evicted[t]
	}
	for _, ev := range l.retained() {
		for _, t := range types {
			if ev.EventType == t {
				n++
				break
			}
		}
	}
	return n
}

func (l *EventLog) Goals() int {
	return l.Count(models.EventGoal)
}

// Cards counts yellow and red cards together
func (l *EventLog) Cards() int {
	return l.Count(models.EventYellowCard, models.EventRedCard)
}

func (l *EventLog) Substitutions() int {
	return l.Count(models.EventSubstitution)
}
