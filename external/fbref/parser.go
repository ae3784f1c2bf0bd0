package fbref

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
)

// Score separators seen on fbref: en dash on rendered pages, plain hyphen in
// some mirrors.
var scoreSeparators = []string{"–", "-"}

// parseSchedule extracts completed fixtures from an fbref
// scores-and-fixtures page. Fixtures without a final score (upcoming,
// postponed) are skipped; a page without a schedule table is a parse failure.
func parseSchedule(leagueID string, body []byte) ([]match.Fixture, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, crerr.WithDetail(ErrParse, err.Error())
	}

	table := doc.Find("div[id^=div_sched] table").First()
	if table.Length() == 0 {
		table = doc.Find("table[id^=sched]").First()
	}
	if table.Length() == 0 {
		return nil, crerr.WithDetail(ErrParse, "no schedule table in document")
	}

	columns := mapColumns(table)
	if columns.date < 0 || columns.home < 0 || columns.score < 0 || columns.away < 0 {
		return nil, crerr.WithDetail(ErrParse, "schedule table is missing required columns")
	}

	fixtures := make([]match.Fixture, 0, 64)
	var rowErr error
	table.Find("tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if class, _ := row.Attr("class"); strings.Contains(class, "spacer") || strings.Contains(class, "thead") {
			return true
		}

		cells := row.Find("th, td")
		cellText := func(idx int) string {
			if idx < 0 || idx >= cells.Length() {
				return ""
			}
			return strings.TrimSpace(cells.Eq(idx).Text())
		}

		score := cellText(columns.score)
		if score == "" {
			return true
		}

		homeGoals, awayGoals, ok := splitScore(score)
		if !ok {
			rowErr = crerr.WithDetailf(ErrParse, "malformed score %q", score)
			return false
		}

		date, err := time.Parse("2006-01-02", cellText(columns.date))
		if err != nil {
			rowErr = crerr.WithDetailf(ErrParse, "malformed date %q", cellText(columns.date))
			return false
		}

		home := cellText(columns.home)
		away := cellText(columns.away)
		if home == "" || away == "" {
			rowErr = crerr.WithDetail(ErrParse, "fixture row is missing a team name")
			return false
		}

		fixtures = append(fixtures, match.Fixture{
			LeagueID:  leagueID,
			Date:      date,
			HomeTeam:  home,
			AwayTeam:  away,
			HomeGoals: homeGoals,
			AwayGoals: awayGoals,
			HomeXG:    parseXG(cellText(columns.homeXG)),
			AwayXG:    parseXG(cellText(columns.awayXG)),
		})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return fixtures, nil
}

type scheduleColumns struct {
	date   int
	home   int
	score  int
	away   int
	homeXG int
	awayXG int
}

// mapColumns resolves header text to cell positions. Layouts vary by season;
// the first occurrence of a header wins, so the optional xG pair maps to home
// then away.
func mapColumns(table *goquery.Selection) scheduleColumns {
	columns := scheduleColumns{date: -1, home: -1, score: -1, away: -1, homeXG: -1, awayXG: -1}

	table.Find("thead tr").Last().Find("th").Each(func(idx int, cell *goquery.Selection) {
		switch strings.ToLower(strings.TrimSpace(cell.Text())) {
		case "date":
			if columns.date < 0 {
				columns.date = idx
			}
		case "home":
			if columns.home < 0 {
				columns.home = idx
			}
		case "score":
			if columns.score < 0 {
				columns.score = idx
			}
		case "away":
			if columns.away < 0 {
				columns.away = idx
			}
		case "xg":
			if columns.homeXG < 0 {
				columns.homeXG = idx
			} else if columns.awayXG < 0 {
				columns.awayXG = idx
			}
		}
	})

	return columns
}

func splitScore(raw string) (int, int, bool) {
	for _, sep := range scoreSeparators {
		left, right, found := strings.Cut(raw, sep)
		if !found {
			continue
		}
		home, err := strconv.Atoi(strings.TrimSpace(left))
		if err != nil {
			return 0, 0, false
		}
		away, err := strconv.Atoi(strings.TrimSpace(right))
		if err != nil {
			return 0, 0, false
		}
		if home < 0 || away < 0 {
			return 0, 0, false
		}
		return home, away, true
	}
	return 0, 0, false
}

func parseXG(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}
