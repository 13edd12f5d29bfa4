package livematch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mcdev12/matchday/go/internal/models"
)

// ErrForeignUpdate is returned for a state update addressed to another match
var ErrForeignUpdate = errors.New("state update for a different match")

// keys that never take part in a merge
var ignoredKeys = map[string]bool{
	"events": true,
}

// Reconcile merges a partial state update into current. Every key present
// in the update overwrites the corresponding field; absent keys and keys
// whose value is null leave the field untouched. Nested objects replace the
// whole field. It returns the merged session and the applied keys in sorted
// order. current is never modified.
func Reconcile(current models.MatchSession, partial []byte) (models.MatchSession, []string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(partial, &fields); err != nil {
		return current, nil, fmt.Errorf("decode state update: %w", err)
	}

	applied := make(map[string]json.RawMessage, len(fields))
	for key, raw := range fields {
		if ignoredKeys[key] || isNull(raw) {
			continue
		}
		applied[key] = raw
	}

	if raw, ok := applied["matchId"]; ok {
		var id models.ID
		if err := json.Unmarshal(raw, &id); err != nil {
			return current, nil, fmt.Errorf("decode state update matchId: %w", err)
		}
		if !current.MatchID.IsZero() && id != current.MatchID {
			return current, nil, fmt.Errorf("update for %s applied to %s: %w", id, current.MatchID, ErrForeignUpdate)
		}
	}

	if len(applied) == 0 {
		return current, nil, nil
	}

	next := current
	if _, ok := applied["home"]; ok {
		next.Home = models.TeamRef{}
	}
	if _, ok := applied["away"]; ok {
		next.Away = models.TeamRef{}
	}

	merged, err := json.Marshal(applied)
	if err != nil {
		return current, nil, fmt.Errorf("encode state update: %w", err)
	}
	if err := json.Unmarshal(merged, &next); err != nil {
		return current, nil, fmt.Errorf("apply state update: %w", err)
	}

	keys := make([]string, 0, len(applied))
	for key := range applied {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return next, keys, nil
}

// Regressions lists the monotonicity rules broken by moving from prev to next.
// They are server faults; callers log them and keep next.
func Regressions(prev, next models.MatchSession) []string {
	var broken []string
	if prev.CurrentPhase != models.PhaseFinished && next.CurrentPhase != models.PhaseFinished {
		if next.HomeScore < prev.HomeScore {
			broken = append(broken, "homeScore")
		}
		if next.AwayScore < prev.AwayScore {
			broken = append(broken, "awayScore")
		}
	}
	if prev.CurrentPhase == next.CurrentPhase && next.CurrentMinute < prev.CurrentMinute {
		broken = append(broken, "currentMinute")
	}
	return broken
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
