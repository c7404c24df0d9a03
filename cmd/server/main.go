// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/courtkeep/courtkeep/internal/api/bookings"
	"github.com/courtkeep/courtkeep/internal/booking"
	"github.com/courtkeep/courtkeep/internal/config"
	"github.com/courtkeep/courtkeep/internal/db"
	"github.com/courtkeep/courtkeep/internal/locks"
	"github.com/courtkeep/courtkeep/internal/notify"
	"github.com/courtkeep/courtkeep/internal/scheduler"
	"github.com/courtkeep/courtkeep/internal/waitlist"
)

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// facilityNotifier is satisfied by both built-in notifier implementations.
type facilityNotifier interface {
	notify.Notifier
	notify.BookingNotifier
}

func newNotifier(cfg *config.Config) facilityNotifier {
	if cfg.Notifications.SESRegion == "" {
		log.Info().Msg("SES not configured, slot notifications go to the log")
		return notify.LogNotifier{}
	}

	client, err := notify.NewSESClient(
		cfg.Notifications.SESAccessKeyID,
		cfg.Notifications.SESSecretAccessKey,
		cfg.Notifications.SESRegion,
		cfg.Notifications.SESSender,
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create SES client, falling back to log notifier")
		return notify.LogNotifier{}
	}
	return notify.NewEmailNotifier(client)
}

func main() {
	configPath := flag.String("config", "config/app.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	notifier := newNotifier(cfg)
	wl := waitlist.NewManager(database, notifier)
	engine := booking.NewManager(database, locks.NewManager(), wl, cfg.LockWait()).
		WithNotifier(notifier)
	bookings.InitHandlers(engine)

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if err := scheduler.RegisterCascadeRepairJob(database, wl, cfg.Booking.CascadeSweepCron, cfg.CascadeLookback()); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cascade repair job")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	server := newServer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
