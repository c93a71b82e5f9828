package service

import (
	"context"
	"log"

	"github.com/louisbranch/moonfall.town/internal/services/match/runtime"
)

// RuntimeConfig holds everything needed to run the game service: transport
// addresses, storage location, and the engine settings.
type RuntimeConfig struct {
	Addr         string
	HealthAddr   string
	DBPath       string
	AllowedHosts []string
	KeySecret    string
	Engine       runtime.EngineSettings
}

// Run opens storage, builds the engine, and serves the MCP API until
// context cancellation.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	store, err := runtime.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close match store: %v", err)
		}
	}()

	engine, err := runtime.BuildEngine(store, cfg.Engine)
	if err != nil {
		return err
	}

	server, err := New(engine, Config{
		Addr:         cfg.Addr,
		HealthAddr:   cfg.HealthAddr,
		AllowedHosts: cfg.AllowedHosts,
		Secret:       []byte(cfg.KeySecret),
	})
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}
