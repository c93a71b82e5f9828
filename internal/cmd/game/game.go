// Package game parses game command flags and launches the match runtime.
package game

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/moonfall.town/internal/platform/cmd"
	"github.com/louisbranch/moonfall.town/internal/services/match/api/mcp/service"
	"github.com/louisbranch/moonfall.town/internal/services/match/runtime"
)

// Config holds game command configuration.
type Config struct {
	Addr         string   `env:"MOONFALL_TOWN_GAME_ADDR" envDefault:"localhost:8080"`
	HealthAddr   string   `env:"MOONFALL_TOWN_GAME_HEALTH_ADDR" envDefault:"localhost:8081"`
	DBPath       string   `env:"MOONFALL_TOWN_GAME_DB_PATH" envDefault:"data/match.db"`
	AllowedHosts []string `env:"MOONFALL_TOWN_GAME_ALLOWED_HOSTS" envSeparator:","`
	KeySecret    string   `env:"MOONFALL_TOWN_GAME_KEY_SECRET"`

	Seats              int           `env:"MOONFALL_TOWN_MATCH_SEATS" envDefault:"8"`
	RulesPath          string        `env:"MOONFALL_TOWN_MATCH_RULES_PATH"`
	ReadyTimeout       time.Duration `env:"MOONFALL_TOWN_MATCH_READY_TIMEOUT" envDefault:"2m"`
	NightDuration      time.Duration `env:"MOONFALL_TOWN_MATCH_NIGHT_DURATION" envDefault:"2m"`
	DiscussionDuration time.Duration `env:"MOONFALL_TOWN_MATCH_DISCUSSION_DURATION" envDefault:"4m"`
	VotingDuration     time.Duration `env:"MOONFALL_TOWN_MATCH_VOTING_DURATION" envDefault:"2m"`
	ResolutionDuration time.Duration `env:"MOONFALL_TOWN_MATCH_RESOLUTION_DURATION" envDefault:"15s"`
	PhaseBuffer        time.Duration `env:"MOONFALL_TOWN_MATCH_PHASE_BUFFER" envDefault:"2s"`
	ReadyForfeit       bool          `env:"MOONFALL_TOWN_MATCH_READY_FORFEIT"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The MCP HTTP listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "The gRPC health listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The match SQLite database path")
	fs.StringVar(&cfg.KeySecret, "key-secret", cfg.KeySecret, "The table key signing secret")
	fs.IntVar(&cfg.Seats, "seats", cfg.Seats, "Players per match")
	fs.StringVar(&cfg.RulesPath, "rules-path", cfg.RulesPath, "Optional YAML role composition file")
	fs.DurationVar(&cfg.ReadyTimeout, "ready-timeout", cfg.ReadyTimeout, "Ready check timeout")
	fs.DurationVar(&cfg.NightDuration, "night-duration", cfg.NightDuration, "Night phase duration")
	fs.DurationVar(&cfg.DiscussionDuration, "discussion-duration", cfg.DiscussionDuration, "Day discussion duration")
	fs.DurationVar(&cfg.VotingDuration, "voting-duration", cfg.VotingDuration, "Voting phase duration")
	fs.DurationVar(&cfg.ResolutionDuration, "resolution-duration", cfg.ResolutionDuration, "Resolution phase duration")
	fs.DurationVar(&cfg.PhaseBuffer, "phase-buffer", cfg.PhaseBuffer, "Deadline slack for the external poller")
	fs.BoolVar(&cfg.ReadyForfeit, "ready-forfeit", cfg.ReadyForfeit, "Abandon matches whose ready check times out")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game MCP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGame, func(ctx context.Context) error {
		return service.Run(ctx, service.RuntimeConfig{
			Addr:         cfg.Addr,
			HealthAddr:   cfg.HealthAddr,
			DBPath:       cfg.DBPath,
			AllowedHosts: cfg.AllowedHosts,
			KeySecret:    cfg.KeySecret,
			Engine:       EngineSettings(cfg),
		})
	})
}

// EngineSettings maps command configuration to engine settings.
func EngineSettings(cfg Config) runtime.EngineSettings {
	return runtime.EngineSettings{
		Seats:              cfg.Seats,
		RulesPath:          cfg.RulesPath,
		ReadyTimeout:       cfg.ReadyTimeout,
		NightDuration:      cfg.NightDuration,
		DiscussionDuration: cfg.DiscussionDuration,
		VotingDuration:     cfg.VotingDuration,
		ResolutionDuration: cfg.ResolutionDuration,
		PhaseBuffer:        cfg.PhaseBuffer,
		ReadyForfeit:       cfg.ReadyForfeit,
	}
}
