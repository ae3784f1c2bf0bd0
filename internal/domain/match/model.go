package match

import (
	"strings"
	"time"
)

// Outcome is one team's result in a single match.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomeDraw Outcome = "DRAW"
)

// Venue marks which side of a fixture a result was derived from.
type Venue string

const (
	VenueHome Venue = "H"
	VenueAway Venue = "A"
)

// League is one entry of the scrape registry: a display name plus the
// upstream competition id used to build the schedule URL.
type League struct {
	ID     string
	Name   string
	CompID int64
}

// Fixture is one played row of a scraped schedule table. Scores are final;
// rows without a score never become fixtures. xG columns are optional on the
// source table, hence pointers.
type Fixture struct {
	LeagueID  string
	Date      time.Time
	HomeTeam  string
	AwayTeam  string
	HomeGoals int
	AwayGoals int
	HomeXG    *float64
	AwayXG    *float64
}

// Result is the team-perspective view of a fixture. Immutable once derived.
type Result struct {
	LeagueID     string
	Team         string
	Opponent     string
	Date         time.Time
	Venue        Venue
	Outcome      Outcome
	GoalsFor     int
	GoalsAgainst int
	XGFor        *float64
	XGAgainst    *float64
}

// TeamStreak is an active run of identical WIN or LOSS outcomes ending at the
// team's most recent match. Recomputed per query, never stored.
type TeamStreak struct {
	Team     string
	LeagueID string
	Type     Outcome
	Length   int
	// Matches holds the streak's matches, most recent first.
	Matches []Result
}

// DeriveResults expands a fixture into its two per-team results.
func DeriveResults(f Fixture) (home Result, away Result) {
	home = Result{
		LeagueID:     f.LeagueID,
		Team:         f.HomeTeam,
		Opponent:     f.AwayTeam,
		Date:         f.Date,
		Venue:        VenueHome,
		Outcome:      classify(f.HomeGoals, f.AwayGoals),
		GoalsFor:     f.HomeGoals,
		GoalsAgainst: f.AwayGoals,
		XGFor:        f.HomeXG,
		XGAgainst:    f.AwayXG,
	}
	away = Result{
		LeagueID:     f.LeagueID,
		Team:         f.AwayTeam,
		Opponent:     f.HomeTeam,
		Date:         f.Date,
		Venue:        VenueAway,
		Outcome:      classify(f.AwayGoals, f.HomeGoals),
		GoalsFor:     f.AwayGoals,
		GoalsAgainst: f.HomeGoals,
		XGFor:        f.AwayXG,
		XGAgainst:    f.HomeXG,
	}
	return home, away
}

func classify(goalsFor, goalsAgainst int) Outcome {
	switch {
	case goalsFor > goalsAgainst:
		return OutcomeWin
	case goalsFor < goalsAgainst:
		return OutcomeLoss
	default:
		return OutcomeDraw
	}
}

// ParseOutcome maps a user-supplied streak type filter to an outcome.
// Only WIN and LOSS are valid streak types.
func ParseOutcome(raw string) (Outcome, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "WIN", "W":
		return OutcomeWin, true
	case "LOSS", "L":
		return OutcomeLoss, true
	default:
		return "", false
	}
}
