// Package nhl is the client for the league's public schedule and
// play-by-play API (api-web shape).
package nhl

// GameState values the scoreboard reports. LIVE and CRIT (late, close game)
// both count as in progress.
const (
	StateLive     = "LIVE"
	StateCritical = "CRIT"
)

// typeDescKey of a scoring play.
const playTypeGoal = "goal"

type scoreboardResponse struct {
	Games []ScoreboardGame `json:"games"`
}

// ScoreboardGame is one schedule entry from the scores feed.
type ScoreboardGame struct {
	ID        int    `json:"id"`
	GameState string `json:"gameState"`
}

func (g ScoreboardGame) Live() bool {
	return g.GameState == StateLive || g.GameState == StateCritical
}

// GameFeed is a game's play-by-play document: plays, rosters, teams.
type GameFeed struct {
	ID          int          `json:"id"`
	AwayTeam    Team         `json:"awayTeam"`
	HomeTeam    Team         `json:"homeTeam"`
	RosterSpots []RosterSpot `json:"rosterSpots"`
	Plays       []Play       `json:"plays"`
}

type Team struct {
	ID     int    `json:"id"`
	Abbrev string `json:"abbrev"`
}

type RosterSpot struct {
	TeamID        int  `json:"teamId"`
	PlayerID      int  `json:"playerId"`
	FirstName     Name `json:"firstName"`
	LastName      Name `json:"lastName"`
	SweaterNumber int  `json:"sweaterNumber"`
}

// Name is the provider's localized-name wrapper.
type Name struct {
	Default string `json:"default"`
}

type Play struct {
	EventID          int              `json:"eventId"`
	TypeDescKey      string           `json:"typeDescKey"`
	PeriodDescriptor PeriodDescriptor `json:"periodDescriptor"`
	TimeInPeriod     string           `json:"timeInPeriod"`
	Details          *PlayDetails     `json:"details,omitempty"`
}

func (p Play) IsGoal() bool { return p.TypeDescKey == playTypeGoal }

type PeriodDescriptor struct {
	Number     int    `json:"number"`
	PeriodType string `json:"periodType"` // REG, OT, SO
}

type PlayDetails struct {
	ScoringPlayerID  int `json:"scoringPlayerId"`
	Assist1PlayerID  int `json:"assist1PlayerId"`
	Assist2PlayerID  int `json:"assist2PlayerId"`
	EventOwnerTeamID int `json:"eventOwnerTeamId"`
	AwayScore        int `json:"awayScore"`
	HomeScore        int `json:"homeScore"`
}

// GoalEvent finds the scoring play with the given event id, if still present.
func (f *GameFeed) GoalEvent(eventID int) (Play, bool) {
	for _, p := range f.Plays {
		if p.EventID == eventID && p.IsGoal() {
			return p, true
		}
	}
	return Play{}, false
}
