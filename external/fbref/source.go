package fbref

import (
	"context"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
)

// Source adapts the schedule client to the per-team result view the streak
// services consume. Each fixture expands into two results, one per side,
// appended in home-away order.
type Source struct {
	client *Client
}

func NewSource(client *Client) *Source {
	return &Source{client: client}
}

func (s *Source) FetchResults(ctx context.Context, league match.League) ([]match.Result, error) {
	fixtures, err := s.client.FetchSchedule(ctx, league)
	if err != nil {
		return nil, err
	}

	results := make([]match.Result, 0, len(fixtures)*2)
	for _, fixture := range fixtures {
		home, away := match.DeriveResults(fixture)
		results = append(results, home, away)
	}
	return results, nil
}

func (s *Source) ScheduleURL(league match.League) string {
	return s.client.ScheduleURL(league.CompID)
}
