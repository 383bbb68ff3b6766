package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tado-bridge/db"
	"github.com/thatsimonsguy/tado-bridge/internal/api"
	"github.com/thatsimonsguy/tado-bridge/internal/config"
	"github.com/thatsimonsguy/tado-bridge/internal/coordinator"
	"github.com/thatsimonsguy/tado-bridge/internal/logging"
	"github.com/thatsimonsguy/tado-bridge/internal/metrics"
	"github.com/thatsimonsguy/tado-bridge/internal/mqtt"
	"github.com/thatsimonsguy/tado-bridge/internal/poller"
	"github.com/thatsimonsguy/tado-bridge/internal/sched"
	"github.com/thatsimonsguy/tado-bridge/internal/tado"
	"github.com/thatsimonsguy/tado-bridge/system/shutdown"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db_file", cfg.DBFile).
		Msg("Starting tado bridge")

	conn, err := db.Open(cfg.DBFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings database")
	}
	shutdown.Register(func() { conn.Close() })

	settings := db.NewSettings(conn)

	// A token rotated on a previous run supersedes the configured one.
	refreshToken, err := settings.RefreshToken(cfg.RefreshToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read persisted refresh token")
	}

	client := tado.NewClient(refreshToken,
		tado.WithTokenRotationCallback(func(token string) {
			if err := settings.SaveRefreshToken(token); err != nil {
				log.Error().Err(err).Msg("Failed to persist rotated refresh token")
			}
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.Init(ctx); err != nil {
		cancel()
		shutdown.ShutdownWithError(err, "Failed to initialize Tado API client")
	}
	cancel()

	stats := metrics.New(&cfg)
	shutdown.Register(stats.Close)

	fetcher := poller.New(client, time.Duration(cfg.SlowPollIntervalHours)*time.Hour)

	coord := coordinator.New(client, fetcher, stats, settings, coordinator.Config{
		ScanInterval:      time.Duration(cfg.ScanIntervalSeconds) * time.Second,
		ReducedInterval:   time.Duration(cfg.ReducedPollingIntervalSeconds) * time.Second,
		SlowPollInterval:  time.Duration(cfg.SlowPollIntervalHours) * time.Hour,
		Debounce:          time.Duration(cfg.DebounceSeconds) * time.Second,
		GracePeriod:       time.Duration(cfg.OptimisticGraceSeconds) * time.Second,
		ThrottleThreshold: cfg.ThrottleThreshold,
		BoostTemperature:  cfg.BoostTemperature,
	})

	pollingActive, err := settings.PollingActive()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to restore polling toggle, defaulting to active")
		pollingActive = true
	}
	reducedLogic, err := settings.ReducedPollingLogic()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to restore reduced polling toggle, defaulting to off")
		reducedLogic = false
	}
	coord.RestoreToggles(pollingActive, reducedLogic)

	// First run: block on a full refresh so MQTT discovery announces the
	// complete entity set instead of an empty snapshot. Later runs let the
	// refresh loop handle it.
	if done, err := settings.InitialPollDone(); err != nil {
		log.Warn().Err(err).Msg("Failed to read initial poll flag")
	} else if !done {
		coord.Refresh()
		if err := settings.MarkInitialPollDone(); err != nil {
			log.Warn().Err(err).Msg("Failed to mark initial poll")
		}
	}

	scheduler, err := sched.New(coord, cfg.ReducedPollingStart, cfg.ReducedPollingEnd)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to build reduced polling scheduler")
	}
	scheduler.Start()
	shutdown.Register(scheduler.Stop)

	bridge := mqtt.New(cfg.MQTT, coord)
	if err := bridge.Start(); err != nil {
		shutdown.ShutdownWithError(err, "Failed to connect to MQTT broker")
	}
	shutdown.Register(bridge.Stop)
	coord.AddListener(bridge.OnSnapshot)

	server := api.NewServer(coord, &cfg)
	server.Start()
	shutdown.Register(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("REST API shutdown error")
		}
	})

	coord.Run()
	shutdown.Register(coord.Shutdown)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Signal received, shutting down")
	shutdown.Shutdown()
}
