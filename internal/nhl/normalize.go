package nhl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"goalbot/internal/tracker"
)

var (
	// ErrMalformedPlay marks a scoring play missing its detail block or
	// scoring-player reference. The play is dropped; the game continues.
	ErrMalformedPlay = errors.New("nhl: malformed scoring play")
)

const (
	UnknownPlayer = "Unknown Player"
	UnknownTeam   = "Unknown Team"

	regulationPeriod = "REG"
)

// GoalFromPlay turns a scoring play plus its game feed into a canonical
// goal value. Roster lookup failures degrade to "Unknown Player" rather
// than failing the play; only a missing detail block is fatal.
func GoalFromPlay(p Play, feed *GameFeed) (tracker.Goal, error) {
	if !p.IsGoal() || p.Details == nil || p.Details.ScoringPlayerID == 0 {
		return tracker.Goal{}, fmt.Errorf("%w: event %d in game %d", ErrMalformedPlay, p.EventID, feed.ID)
	}
	d := p.Details

	var assists []string
	for _, id := range []int{d.Assist1PlayerID, d.Assist2PlayerID} {
		if id != 0 {
			assists = append(assists, playerLabel(feed, id))
		}
	}

	return tracker.Goal{
		EventID:     p.EventID,
		GameID:      feed.ID,
		Scorer:      playerLabel(feed, d.ScoringPlayerID),
		Assists:     strings.Join(assists, ", "),
		Team:        teamAbbrev(feed, d.EventOwnerTeamID),
		AwayTeam:    feed.AwayTeam.Abbrev,
		HomeTeam:    feed.HomeTeam.Abbrev,
		PeriodLabel: periodLabel(p.PeriodDescriptor),
		Clock:       p.TimeInPeriod,
		Score:       tracker.Score{Away: d.AwayScore, Home: d.HomeScore},
	}, nil
}

// playerLabel renders "First Last (#N)" from the roster listing.
func playerLabel(feed *GameFeed, playerID int) string {
	for _, rs := range feed.RosterSpots {
		if rs.PlayerID == playerID {
			return fmt.Sprintf("%s %s (#%d)", rs.FirstName.Default, rs.LastName.Default, rs.SweaterNumber)
		}
	}
	return UnknownPlayer
}

func teamAbbrev(feed *GameFeed, teamID int) string {
	switch teamID {
	case feed.HomeTeam.ID:
		return feed.HomeTeam.Abbrev
	case feed.AwayTeam.ID:
		return feed.AwayTeam.Abbrev
	default:
		return UnknownTeam
	}
}

// periodLabel is the period number in regulation, otherwise the provider's
// period-type string (OT, SO).
func periodLabel(pd PeriodDescriptor) string {
	if pd.PeriodType == regulationPeriod || pd.PeriodType == "" {
		return strconv.Itoa(pd.Number)
	}
	return pd.PeriodType
}
