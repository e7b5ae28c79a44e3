// Package tracker holds the goal-detection state: canonical goal values,
// the in-memory table of announced goals, and the resolver that decides
// whether an observed goal is new, a duplicate, or a correction candidate.
package tracker

import (
	"fmt"
	"strings"
)

// Score is the raw (away, home) goal count. It is the authoritative score
// used for identity and duplicate comparison; display formatting is derived.
type Score struct {
	Away int
	Home int
}

// Goal is one observation of a scoring play, immutable once built.
type Goal struct {
	EventID     int
	GameID      int
	Scorer      string
	Assists     string
	Team        string // scoring team abbreviation
	AwayTeam    string
	HomeTeam    string
	PeriodLabel string
	Clock       string // elapsed time in period, "MM:SS"
	Score       Score
}

// DisplayScore renders the score for messages, away side first.
func (g Goal) DisplayScore() string {
	return fmt.Sprintf("%d - %d", g.Score.Away, g.Score.Home)
}

// ClockMinute is the minute component of the period clock. Seconds are
// excluded from identity on purpose: the provider sometimes shifts a play's
// clock by a few seconds between observations.
func (g Goal) ClockMinute() string {
	if i := strings.IndexByte(g.Clock, ':'); i >= 0 {
		return g.Clock[:i]
	}
	return g.Clock
}

// Key is the identity key a goal's tracked record is filed under.
func (g Goal) Key() string {
	return fmt.Sprintf("%d|%d|%s|%s|%s|%d|%d",
		g.GameID, g.EventID, g.Scorer, g.PeriodLabel, g.ClockMinute(),
		g.Score.Away, g.Score.Home)
}

// SameScoringEvent reports whether two goals look like the same physical
// goal: same game, period, clock minute, scorer and raw score. This is the
// soft comparison behind duplicate detection; the exact Key() can differ
// when only the clock seconds moved.
func (g Goal) SameScoringEvent(o Goal) bool {
	return g.GameID == o.GameID &&
		g.PeriodLabel == o.PeriodLabel &&
		g.ClockMinute() == o.ClockMinute() &&
		g.Scorer == o.Scorer &&
		g.Score == o.Score
}

// Diff lists the announced fields that changed between a tracked goal and a
// new observation. Clock/time is deliberately excluded so seconds ticking
// can't produce a spurious correction.
func (g Goal) Diff(o Goal) []string {
	var changed []string
	if g.Scorer != o.Scorer {
		changed = append(changed, "scorer")
	}
	if g.Assists != o.Assists {
		changed = append(changed, "assists")
	}
	if g.PeriodLabel != o.PeriodLabel {
		changed = append(changed, "period")
	}
	if g.DisplayScore() != o.DisplayScore() {
		changed = append(changed, "score")
	}
	return changed
}
