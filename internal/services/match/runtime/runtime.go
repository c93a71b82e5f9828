// Package runtime builds the pieces the game and worker processes share: the
// SQLite store and an engine configured with the phase schedule. Both
// processes poll the same database, so they must agree on deadlines.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/louisbranch/moonfall.town/internal/services/match/app"
	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage/sqlite"
)

// EngineSettings is the externally tunable engine configuration. Zero values
// fall back to the standing defaults.
type EngineSettings struct {
	Seats              int
	RulesPath          string
	ReadyTimeout       time.Duration
	NightDuration      time.Duration
	DiscussionDuration time.Duration
	VotingDuration     time.Duration
	ResolutionDuration time.Duration
	PhaseBuffer        time.Duration
	ReadyForfeit       bool
}

// OpenStore opens the match SQLite store, creating the data directory when
// missing.
func OpenStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open match store at %s: %w", path, err)
	}
	return store, nil
}

// BuildEngine constructs a match engine from the settings.
func BuildEngine(store *sqlite.Store, settings EngineSettings) (*app.Engine, error) {
	phase := app.DefaultConfig()
	if settings.ReadyTimeout > 0 {
		phase.ReadyTimeout = settings.ReadyTimeout
	}
	if settings.NightDuration > 0 {
		phase.NightDuration = settings.NightDuration
	}
	if settings.DiscussionDuration > 0 {
		phase.DiscussionDuration = settings.DiscussionDuration
	}
	if settings.VotingDuration > 0 {
		phase.VotingDuration = settings.VotingDuration
	}
	if settings.ResolutionDuration > 0 {
		phase.ResolutionDuration = settings.ResolutionDuration
	}
	if settings.PhaseBuffer > 0 {
		phase.PhaseBuffer = settings.PhaseBuffer
	}
	if settings.ReadyForfeit {
		phase.ReadyPolicy = domain.ReadyPolicyForfeit
	}

	opts := []app.Option{app.WithConfig(phase)}
	if settings.Seats > 0 {
		opts = append(opts, app.WithSeats(settings.Seats))
	}
	if settings.RulesPath != "" {
		rules, err := domain.LoadRules(settings.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules from %s: %w", settings.RulesPath, err)
		}
		opts = append(opts, app.WithRules(rules))
	}
	return app.NewEngine(store, opts...)
}
