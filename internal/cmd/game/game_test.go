package game

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("game", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:8080" {
		t.Fatalf("expected default addr localhost:8080, got %q", cfg.Addr)
	}
	if cfg.HealthAddr != "localhost:8081" {
		t.Fatalf("expected default health addr localhost:8081, got %q", cfg.HealthAddr)
	}
	if cfg.DBPath != "data/match.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Seats != 8 {
		t.Fatalf("expected 8 seats, got %d", cfg.Seats)
	}
	if cfg.DiscussionDuration != 4*time.Minute {
		t.Fatalf("expected 4m discussion, got %v", cfg.DiscussionDuration)
	}
	if cfg.ReadyForfeit {
		t.Fatalf("expected ready forfeit off by default")
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("game", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-addr", "127.0.0.1:9999",
		"-db-path", "test.db",
		"-night-duration", "30s",
		"-ready-forfeit",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.DBPath != "test.db" {
		t.Fatalf("expected db path override, got %q", cfg.DBPath)
	}
	if cfg.NightDuration != 30*time.Second {
		t.Fatalf("expected 30s night, got %v", cfg.NightDuration)
	}
	if !cfg.ReadyForfeit {
		t.Fatalf("expected ready forfeit on")
	}
}

func TestEngineSettingsMapping(t *testing.T) {
	cfg := Config{
		Seats:         8,
		ReadyTimeout:  time.Minute,
		NightDuration: 45 * time.Second,
		ReadyForfeit:  true,
	}
	settings := EngineSettings(cfg)
	if settings.Seats != 8 {
		t.Fatalf("expected 8 seats, got %d", settings.Seats)
	}
	if settings.ReadyTimeout != time.Minute {
		t.Fatalf("expected 1m ready timeout, got %v", settings.ReadyTimeout)
	}
	if settings.NightDuration != 45*time.Second {
		t.Fatalf("expected 45s night, got %v", settings.NightDuration)
	}
	if !settings.ReadyForfeit {
		t.Fatalf("expected ready forfeit carried over")
	}
}
