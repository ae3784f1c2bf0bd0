package fbref

import (
	"sort"
	"strings"

	"github.com/riskibarqy/streakwatch/internal/domain/match"
)

// Competition identifiers as used in fbref schedule URLs.
const (
	CompIDPremierLeague = 9
	CompIDSerieA        = 11
	CompIDLaLiga        = 12
	CompIDLigue1        = 13
	CompIDBundesliga    = 20
)

// DefaultLeagues covers the big five European leagues. The registry is
// overridable via configuration so new competitions need no code change.
func DefaultLeagues() []match.League {
	return []match.League{
		{ID: "premier-league", Name: "Premier League", CompID: CompIDPremierLeague},
		{ID: "la-liga", Name: "La Liga", CompID: CompIDLaLiga},
		{ID: "serie-a", Name: "Serie A", CompID: CompIDSerieA},
		{ID: "bundesliga", Name: "Bundesliga", CompID: CompIDBundesliga},
		{ID: "ligue-1", Name: "Ligue 1", CompID: CompIDLigue1},
	}
}

// Registry maps league slugs to competitions. Lookup is case-insensitive on
// the slug; listing is sorted by display name for stable output.
type Registry struct {
	byID map[string]match.League
}

func NewRegistry(leagues []match.League) *Registry {
	if len(leagues) == 0 {
		leagues = DefaultLeagues()
	}
	byID := make(map[string]match.League, len(leagues))
	for _, league := range leagues {
		id := strings.ToLower(strings.TrimSpace(league.ID))
		if id == "" || league.CompID <= 0 {
			continue
		}
		league.ID = id
		if strings.TrimSpace(league.Name) == "" {
			league.Name = id
		}
		byID[id] = league
	}
	return &Registry{byID: byID}
}

func (r *Registry) Lookup(leagueID string) (match.League, bool) {
	league, ok := r.byID[strings.ToLower(strings.TrimSpace(leagueID))]
	return league, ok
}

func (r *Registry) List() []match.League {
	out := make([]match.League, 0, len(r.byID))
	for _, league := range r.byID {
		out = append(out, league)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
