package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Aidan3445/castaway/internal/cache"
	"github.com/Aidan3445/castaway/internal/freshness"
	"github.com/Aidan3445/castaway/internal/leagueapp"
	"github.com/Aidan3445/castaway/internal/remote"
	"github.com/Aidan3445/castaway/internal/session"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	table, err := config.Freshness.Table()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid freshness config")
	}

	token := getEnv("AUTH_TOKEN", "user-1")
	league := getEnv("LEAGUE_HASH", "")
	if league == "" {
		log.Fatal().Msg("LEAGUE_HASH must be set")
	}

	log.Info().
		Str("remote", config.Remote.BaseURL).
		Str("league", league).
		Msg("starting league companion")

	clock := clockwork.NewRealClock()
	store := cache.NewStore(clock)
	if err := store.Load(config.Cache.SnapshotPath); err != nil {
		log.Warn().Err(err).Msg("could not load cache snapshot, starting cold")
	}

	rc := remote.NewClient(config.Remote.BaseURL, func(context.Context) (string, error) {
		return token, nil
	})
	sessions := session.Static{Session: session.Session{UserID: token, Authenticated: true}}

	coord := freshness.NewCoordinator(store, table, nil)
	app := leagueapp.NewApp(rc, store, coord, sessions, clock)
	coord.SetFetcher(app)

	poller := freshness.NewPoller(coord, store, app, app, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := poller.Run(ctx); err != nil {
			log.Error().Err(err).Msg("poller stopped")
		}
	}()

	// The demo binary sits on the hub screen; a real frontend drives
	// OnFocus/OnBlur from its navigation stack.
	poller.OnFocus(ctx, league, freshness.ScreenHub)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	cancel()

	if err := store.Save(config.Cache.SnapshotPath); err != nil {
		log.Error().Err(err).Msg("failed to save cache snapshot")
	}
	log.Info().Msg("league companion shutdown complete")
}
