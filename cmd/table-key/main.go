// Package main provides a one-shot utility for minting table keys.
//
// A player key lets an agent act as one player; a spectator key grants
// read-only access. The secret must match the game server's.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/louisbranch/moonfall.town/internal/platform/config"
	"github.com/louisbranch/moonfall.town/internal/services/match/api/mcp/service"
)

func main() {
	secret := flag.String("secret", os.Getenv("MOONFALL_TOWN_GAME_KEY_SECRET"), "The table key signing secret")
	playerID := flag.String("player", "", "Player ID to mint a key for; empty mints a spectator key")
	ttl := flag.Duration("ttl", 24*time.Hour, "Key lifetime")
	flag.Parse()

	if *secret == "" {
		config.Exitf("a signing secret is required (flag -secret or MOONFALL_TOWN_GAME_KEY_SECRET)")
	}

	now := time.Now().UTC()
	var token string
	var err error
	if *playerID != "" {
		token, err = service.MintPlayerKey([]byte(*secret), *playerID, *ttl, now)
	} else {
		token, err = service.MintSpectatorKey([]byte(*secret), *ttl, now)
	}
	if err != nil {
		config.Exitf("mint table key: %v", err)
	}
	fmt.Println(token)
}
