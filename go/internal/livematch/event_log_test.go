package livematch

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchday/go/internal/models"
)

func event(id models.ID, typ models.EventType, minute int) models.MatchEvent {
	return models.MatchEvent{ID: id, MatchID: "42", EventType: typ, Minute: minute, Description: string(typ)}
}

func TestEventLogIgnoresDuplicates(t *testing.T) {
	l := NewEventLog(0)

	first := event("1", models.EventGoal, 11)
	first.Description = "first"
	require.True(t, l.Append(first).Accepted)

	dup := event("1", models.EventGoal, 11)
	dup.Description = "second"
	res := l.Append(dup)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Accepted)

	require.Equal(t, 1, l.Len())
	assert.Equal(t, "first", l.Events()[0].Description)
	assert.Equal(t, 1, l.Goals())
}

func TestEventLogRejectsEventsWithoutID(t *testing.T) {
	l := NewEventLog(0)
	res := l.Append(models.MatchEvent{EventType: models.EventGoal, Minute: 3})
	assert.True(t, res.Malformed)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.Goals())
}

func TestEventLogKeepsArrivalOrder(t *testing.T) {
	l := NewEventLog(0)
	l.Append(event("1", models.EventCorner, 20))
	res := l.Append(event("2", models.EventFoul, 18))
	l.Append(event("3", models.EventSave, 21))

	assert.True(t, res.Accepted)
	assert.True(t, res.MinuteRegressed)

	var ids []models.ID
	for _, ev := range l.Events() {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []models.ID{"1", "2", "3"}, ids)
}

func TestEventLogStoppageTimeIsNotARegression(t *testing.T) {
	l := NewEventLog(0)
	a := event("1", models.EventCorner, 45)
	a.AdditionalTime = 2
	b := event("2", models.EventHalfTime, 45)
	b.AdditionalTime = 3

	l.Append(a)
	assert.False(t, l.Append(b).MinuteRegressed)
}

func TestEventLogCounters(t *testing.T) {
	l := NewEventLog(0)
	types := []models.EventType{
		models.EventGoal, models.EventYellowCard, models.EventGoal, models.EventRedCard,
		models.EventSubstitution, models.EventCorner, models.EventYellowCard, models.EventSubstitution,
	}
	for i, typ := range types {
		l.Append(event(models.ID(string(rune('a'+i))), typ, i))
	}

	filter := func(match ...models.EventType) int {
		n := 0
		for _, ev := range l.Events() {
			for _, m := range match {
				if ev.EventType == m {
					n++
				}
			}
		}
		return n
	}

	assert.Equal(t, filter(models.EventGoal), l.Goals())
	assert.Equal(t, filter(models.EventYellowCard, models.EventRedCard), l.Cards())
	assert.Equal(t, filter(models.EventSubstitution), l.Substitutions())
	assert.Equal(t, 2, l.Goals())
	assert.Equal(t, 3, l.Cards())
	assert.Equal(t, 2, l.Substitutions())
}

func TestEventLogRetentionKeepsExactCounts(t *testing.T) {
	l := NewEventLog(2)
	l.Append(event("1", models.EventGoal, 5))
	l.Append(event("2", models.EventYellowCard, 9))
	l.Append(event("3", models.EventGoal, 30))
	l.Append(event("4", models.EventCorner, 31))
	l.Append(event("5", models.EventCorner, 32))

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 5, l.Total())
	assert.Equal(t, 2, l.Goals())
	assert.Equal(t, 1, l.Cards())
	assert.Equal(t, []models.ID{"4", "5"}, []models.ID{l.Events()[0].ID, l.Events()[1].ID})

	// evicted ids are still known
	assert.True(t, l.Contains("1"))
	assert.True(t, l.Append(event("1", models.EventGoal, 5)).Duplicate)
	assert.Equal(t, 2, l.Goals())
}

func TestEventLogRetentionOverLongMatch(t *testing.T) {
	l := NewEventLog(10)
	for i := 1; i <= 1000; i++ {
		typ := models.EventCorner
		if i%10 == 0 {
			typ = models.EventGoal
		}
		require.True(t, l.Append(event(models.ID(strconv.Itoa(i)), typ, i%90)).Accepted)
		assert.LessOrEqual(t, l.Len(), 10)
	}

	assert.Equal(t, 10, l.Len())
	assert.Equal(t, 1000, l.Total())
	assert.Equal(t, 100, l.Goals())
	assert.Equal(t, 900, l.Count(models.EventCorner))

	events := l.Events()
	require.Len(t, events, 10)
	for i, ev := range events {
		assert.Equal(t, models.ID(strconv.Itoa(991+i)), ev.ID)
	}

	// storage stays bounded by the cap
	assert.LessOrEqual(t, cap(l.events), 40)
}

func TestEventLogHook(t *testing.T) {
	l := NewEventLog(0)
	var seen []models.ID
	l.OnAppend(func(ev models.MatchEvent) { seen = append(seen, ev.ID) })

	assert.Equal(t, 2, l.Seed([]models.MatchEvent{event("1", models.EventKickOff, 0), event("1", models.EventKickOff, 0), event("2", models.EventCorner, 4)}))
	assert.Empty(t, seen)

	l.Append(event("2", models.EventCorner, 4))
	l.Append(event("3", models.EventGoal, 7))
	l.Append(models.MatchEvent{EventType: models.EventGoal})
	assert.Equal(t, []models.ID{"3"}, seen)
}
