package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mward29/triviapanel/internal/config"
	"github.com/mward29/triviapanel/internal/hass"
	"github.com/mward29/triviapanel/internal/panel"
	"github.com/mward29/triviapanel/internal/prefs"
	"github.com/mward29/triviapanel/internal/reconcile"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", "triviapanel.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Str("host", cfg.Host.URL).
		Str("listen", cfg.Listen).
		Bool("tablet_mode", cfg.Tablet).
		Msg("starting trivia panel")

	store, err := prefs.Open(filepath.Join(cfg.DataDir, "triviapanel.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open preference store")
	}
	defer store.Close()

	clock := clockwork.NewRealClock()

	hostCfg := hass.DefaultConfig()
	hostCfg.URL = cfg.Host.URL
	hostCfg.Token = cfg.Host.Token
	hostCfg.ReconnectWait = cfg.Host.ReconnectWait
	hostCfg.MaxReconnectWait = cfg.Host.MaxReconnectWait
	client := hass.NewClient(hostCfg, clock)

	delays := reconcile.Delays{
		Select:     cfg.Debounce.Select,
		Dropdown:   cfg.Debounce.Dropdown,
		Text:       cfg.Debounce.Text,
		StartGrace: cfg.Debounce.StartGrace,
		Frame:      reconcile.DefaultDelays().Frame,
	}
	controller := reconcile.NewController(clock, client, delays, cfg.Guard.DropdownWindow, cfg.Tablet)
	defer controller.Stop()

	hub := panel.NewHub(controller, store, panel.DefaultConnectionConfig(), cfg.Tablet)
	controller.Bind(hub)
	client.OnSnapshot(controller.OnSnapshot)

	server := panel.NewServer(cfg.Listen, hub)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- client.Run(ctx) }()
	go func() { errCh <- server.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("component failed")
		}
		cancel()
	}
	// Let the remaining component finish its shutdown.
	<-errCh
}
