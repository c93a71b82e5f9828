package domain

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
)

// Composition is the role breakdown for one seat count. Seats not covered by
// a special role are dealt as villagers.
type Composition struct {
	Seats      int `yaml:"seats"`
	Werewolves int `yaml:"werewolves"`
	Seers      int `yaml:"seers"`
	Doctors    int `yaml:"doctors"`
}

// Villagers returns the number of plain villager seats.
func (c Composition) Villagers() int {
	return c.Seats - c.Werewolves - c.Seers - c.Doctors
}

// Validate rejects compositions that could not produce a playable match.
func (c Composition) Validate() error {
	if c.Seats < 3 {
		return apperrors.New(apperrors.CodeRulesInvalidComposition,
			fmt.Sprintf("composition for %d seats: at least 3 seats required", c.Seats))
	}
	if c.Werewolves < 1 {
		return apperrors.New(apperrors.CodeRulesInvalidComposition,
			fmt.Sprintf("composition for %d seats: at least one werewolf required", c.Seats))
	}
	if c.Villagers() < 0 {
		return apperrors.New(apperrors.CodeRulesInvalidComposition,
			fmt.Sprintf("composition for %d seats: role counts exceed seats", c.Seats))
	}
	if c.Werewolves >= c.Seats-c.Werewolves {
		return apperrors.New(apperrors.CodeRulesInvalidComposition,
			fmt.Sprintf("composition for %d seats: werewolves would win at deal time", c.Seats))
	}
	return nil
}

// Rules is the data-driven role composition table, keyed by seat count.
type Rules struct {
	Compositions []Composition `yaml:"compositions"`
}

// DefaultRules is the built-in composition table used when no ruleset file
// is configured: the classic 8-seat village.
func DefaultRules() Rules {
	return Rules{Compositions: []Composition{
		{Seats: 8, Werewolves: 2, Seers: 1, Doctors: 1},
	}}
}

// LoadRules reads and validates a YAML ruleset file.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate checks every composition and rejects duplicate seat counts.
func (r Rules) Validate() error {
	if len(r.Compositions) == 0 {
		return apperrors.New(apperrors.CodeRulesInvalidComposition, "ruleset has no compositions")
	}
	seen := make(map[int]bool)
	for _, c := range r.Compositions {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Seats] {
			return apperrors.New(apperrors.CodeRulesInvalidComposition,
				fmt.Sprintf("duplicate composition for %d seats", c.Seats))
		}
		seen[c.Seats] = true
	}
	return nil
}

// CompositionFor returns the composition for a seat count.
func (r Rules) CompositionFor(seats int) (Composition, error) {
	for _, c := range r.Compositions {
		if c.Seats == seats {
			return c, nil
		}
	}
	return Composition{}, apperrors.WithMetadata(apperrors.CodeRulesUnknownSeatCount,
		fmt.Sprintf("no composition for %d seats", seats),
		map[string]string{"seats": strconv.Itoa(seats)})
}

// AssignRoles deals roles to players using the given randomness source. The
// assignment is fixed for the lifetime of the match.
func AssignRoles(players []string, comp Composition, rng *rand.Rand) (map[string]Role, error) {
	if len(players) != comp.Seats {
		return nil, apperrors.New(apperrors.CodeRulesInvalidComposition,
			fmt.Sprintf("composition expects %d seats, got %d players", comp.Seats, len(players)))
	}

	deck := make([]Role, 0, comp.Seats)
	for i := 0; i < comp.Werewolves; i++ {
		deck = append(deck, RoleWerewolf)
	}
	for i := 0; i < comp.Seers; i++ {
		deck = append(deck, RoleSeer)
	}
	for i := 0; i < comp.Doctors; i++ {
		deck = append(deck, RoleDoctor)
	}
	for i := 0; i < comp.Villagers(); i++ {
		deck = append(deck, RoleVillager)
	}

	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	roles := make(map[string]Role, len(players))
	for i, p := range players {
		roles[p] = deck[i]
	}
	return roles, nil
}
