package streak

import (
	"sort"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
)

const (
	// MinLengthFloor and MinLengthCeil bound the user-supplied streak
	// threshold. Values outside the range are clamped, not rejected.
	MinLengthFloor = 1
	MinLengthCeil  = 10

	// DefaultMinLength is used when the caller does not supply a threshold.
	DefaultMinLength = 3
)

// ClampMinLength normalizes a requested threshold into [MinLengthFloor, MinLengthCeil].
// Zero or negative values fall back to DefaultMinLength.
func ClampMinLength(v int) int {
	if v <= 0 {
		return DefaultMinLength
	}
	if v < MinLengthFloor {
		return MinLengthFloor
	}
	if v > MinLengthCeil {
		return MinLengthCeil
	}
	return v
}

// Compute derives the active streak for every team present in results and
// returns those whose length meets the clamped minLength threshold.
//
// Per team, results are ordered by date descending; the sort is stable, so
// results sharing a date keep their input order (schedule rows carry a date
// but no kickoff time). The streak is the leading run of identical WIN or
// LOSS outcomes: a draw or an outcome change ends the scan immediately, so a
// team whose latest match was a draw has no active streak.
//
// Output is ordered by length descending, ties broken by team name ascending.
// Compute is pure: it never mutates its input and calling it twice on the
// same input yields identical output.
func Compute(results []match.Result, minLength int) []match.TeamStreak {
	minLength = ClampMinLength(minLength)

	byTeam := make(map[string][]match.Result)
	for _, r := range results {
		if r.Team == "" {
			continue
		}
		byTeam[r.Team] = append(byTeam[r.Team], r)
	}

	out := make([]match.TeamStreak, 0, len(byTeam))
	for team, rows := range byTeam {
		ordered := make([]match.Result, len(rows))
		copy(ordered, rows)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Date.After(ordered[j].Date)
		})

		s, ok := scan(team, ordered)
		if !ok || s.Length < minLength {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Length != out[j].Length {
			return out[i].Length > out[j].Length
		}
		return out[i].Team < out[j].Team
	})

	return out
}

// scan walks ordered results (most recent first) and accumulates the leading
// run of identical WIN/LOSS outcomes.
func scan(team string, ordered []match.Result) (match.TeamStreak, bool) {
	if len(ordered) == 0 {
		return match.TeamStreak{}, false
	}

	head := ordered[0].Outcome
	if head != match.OutcomeWin && head != match.OutcomeLoss {
		return match.TeamStreak{}, false
	}

	run := make([]match.Result, 0, len(ordered))
	for _, r := range ordered {
		if r.Outcome != head {
			break
		}
		run = append(run, r)
	}

	return match.TeamStreak{
		Team:     team,
		LeagueID: ordered[0].LeagueID,
		Type:     head,
		Length:   len(run),
		Matches:  run,
	}, true
}

// Filter returns only the streaks of the given type, preserving order.
func Filter(streaks []match.TeamStreak, streakType match.Outcome) []match.TeamStreak {
	out := make([]match.TeamStreak, 0, len(streaks))
	for _, s := range streaks {
		if s.Type == streakType {
			out = append(out, s)
		}
	}
	return out
}
