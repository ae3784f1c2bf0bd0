package app

import (
	"testing"
	"time"

	"github.com/riskibarqy/streakwatch/internal/config"
	"github.com/riskibarqy/streakwatch/internal/platform/logging"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := config.Config{
		HTTPAddr:           ":0",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		CacheTTL:           time.Hour,
	}

	srv, err := NewHTTPServer(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("build server: %v", err)
	}
	if srv.Handler == nil {
		t.Fatalf("expected handler to be wired")
	}
	if srv.ReadTimeout != 5*time.Second {
		t.Fatalf("unexpected read timeout: %s", srv.ReadTimeout)
	}
}

func TestNewHTTPServer_EmptyAddr(t *testing.T) {
	cfg := config.Config{CacheTTL: time.Hour}
	if _, err := NewHTTPServer(cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for empty http addr")
	}
}

func TestBuildLeagues_Overrides(t *testing.T) {
	cfg := config.Config{FBrefCompIDByLeague: map[string]int64{
		"premier-league": 99,
		"eredivisie":     23,
	}}

	leagues := buildLeagues(cfg)

	var sawOverride, sawNew bool
	for _, league := range leagues {
		if league.ID == "premier-league" && league.CompID == 99 {
			sawOverride = true
		}
		if league.ID == "eredivisie" && league.CompID == 23 {
			sawNew = true
		}
	}
	if !sawOverride {
		t.Fatalf("expected premier-league comp id override")
	}
	if !sawNew {
		t.Fatalf("expected eredivisie to be added")
	}
}
