package main

import (
	"github.com/jonboulle/clockwork"

	"github.com/pointroom/pointroom/internal/api"
	"github.com/pointroom/pointroom/internal/gateway"
	"github.com/pointroom/pointroom/internal/room"
)

type Services struct {
	Registry *room.Registry
	Gateway  *gateway.WebSocketHandler
	API      *api.Service
	Sweeper  *room.Sweeper
}

// setupServices wires the dependency chain explicitly:
// registry → connection manager → api service, plus the sweeper.
// Everything shares one registry instance created here; there are no
// package-level singletons.
func setupServices(cfg *Config) *Services {
	clock := clockwork.NewRealClock()

	registry := room.NewRegistry(clock)

	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), registry)
	wsHandler := gateway.NewWebSocketHandler(connections)

	apiService := api.NewService(registry, connections, cfg.ClientURL)

	sweeper := room.NewSweeper(registry, clock, cfg.SweepInterval, cfg.SweepMaxAge)

	return &Services{
		Registry: registry,
		Gateway:  wsHandler,
		API:      apiService,
		Sweeper:  sweeper,
	}
}
