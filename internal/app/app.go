package app

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/streakwatch/external/fbref"
	"github.com/riskibarqy/streakwatch/internal/config"
	"github.com/riskibarqy/streakwatch/internal/domain/match"
	"github.com/riskibarqy/streakwatch/internal/interfaces/httpapi"
	"github.com/riskibarqy/streakwatch/internal/platform/cache"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
	"github.com/riskibarqy/streakwatch/internal/platform/resilience"
	"github.com/riskibarqy/streakwatch/internal/usecase"
)

func NewHTTPServer(cfg config.Config, logger *logging.Logger) (*http.Server, error) {
	registry := fbref.NewRegistry(buildLeagues(cfg))
	store := cache.NewStore(cfg.CacheTTL)

	client := fbref.NewClient(fbref.ClientConfig{
		BaseURL:    cfg.FBrefBaseURL,
		Timeout:    cfg.FBrefTimeout,
		MaxRetries: cfg.FBrefMaxRetries,
		UserAgent:  cfg.FBrefUserAgent,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FBrefCircuitEnabled,
			FailureThreshold: cfg.FBrefCircuitFailureCount,
			OpenTimeout:      cfg.FBrefCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FBrefCircuitHalfOpenMaxReq,
		},
	})
	source := fbref.NewSource(client)

	streakSvc := usecase.NewStreakService(usecase.StreakServiceConfig{
		Registry: registry,
		Source:   source,
		Cache:    store,
		Logger:   logger,
	})
	refreshSvc := usecase.NewRefreshService(usecase.RefreshServiceConfig{
		Registry:   registry,
		Source:     source,
		Cache:      store,
		Logger:     logger,
		MaxWorkers: cfg.RefreshMaxWorkers,
		FetchDelay: cfg.RefreshFetchDelay,
	})

	handler := httpapi.NewHandler(streakSvc, refreshSvc, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return server, nil
}

// buildLeagues merges configured competition ids over the built-in table.
// Entries with a known slug override the default; new slugs add leagues.
func buildLeagues(cfg config.Config) []match.League {
	leagues := fbref.DefaultLeagues()
	if len(cfg.FBrefCompIDByLeague) == 0 {
		return leagues
	}

	index := make(map[string]int, len(leagues))
	for i, league := range leagues {
		index[league.ID] = i
	}

	for slug, compID := range cfg.FBrefCompIDByLeague {
		if i, ok := index[slug]; ok {
			leagues[i].CompID = compID
			continue
		}
		leagues = append(leagues, match.League{ID: slug, CompID: compID})
	}
	return leagues
}
