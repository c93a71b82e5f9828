package worker

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	t.Setenv("MOONFALL_TOWN_WORKER_HEALTH_ADDR", "worker:9099")
	t.Setenv("MOONFALL_TOWN_MATCH_VOTING_DURATION", "90s")

	cfg, err := ParseConfig(fs, []string{"-poll-interval", "5s", "-db-path", "sweep.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HealthAddr != "worker:9099" {
		t.Fatalf("health addr = %q, want worker:9099", cfg.HealthAddr)
	}
	if cfg.VotingDuration != 90*time.Second {
		t.Fatalf("voting duration = %v, want 90s", cfg.VotingDuration)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.DBPath != "sweep.db" {
		t.Fatalf("db path = %q, want sweep.db", cfg.DBPath)
	}
}

func TestParseConfig_FlagOverridesEnv(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	t.Setenv("MOONFALL_TOWN_WORKER_POLL_INTERVAL", "30s")

	cfg, err := ParseConfig(fs, []string{"-poll-interval", "1s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("poll interval = %v, want 1s", cfg.PollInterval)
	}
}
