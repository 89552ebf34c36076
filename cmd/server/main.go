package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/signalroom/internal/adapters/authz"
	"github.com/dkeye/signalroom/internal/adapters/events"
	router "github.com/dkeye/signalroom/internal/adapters/http"
	"github.com/dkeye/signalroom/internal/adapters/rtc"
	wssignal "github.com/dkeye/signalroom/internal/adapters/signal"
	"github.com/dkeye/signalroom/internal/app"
	"github.com/dkeye/signalroom/internal/app/connstate"
	"github.com/dkeye/signalroom/internal/app/orch"
	"github.com/dkeye/signalroom/internal/app/quality"
	"github.com/dkeye/signalroom/internal/app/rooms"
	"github.com/dkeye/signalroom/internal/config"
	"github.com/dkeye/signalroom/internal/core"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "signalroom",
		Short:         "Signaling session coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd, configPath)
			if err != nil {
				log.Error().Err(err).Str("module", "main").Msg("signalroom stopped")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	cmd.Flags().Int("port", 8080, "listen port")
	cmd.Flags().String("log-level", "info", "log level")
	return cmd
}

func setupLogging(w io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: w != io.Writer(os.Stderr)})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func run(cmd *cobra.Command, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	setupLogging(cmd.ErrOrStderr())

	cfg, v, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	config.ApplyLogLevel(cfg.LogLevel)
	config.WatchLogLevel(v)

	policy, err := app.PolicyByName(cfg.Backpressure)
	if err != nil {
		return err
	}

	var authorizer core.SessionAuthorizer = core.AllowAll{}
	if cfg.Database.DSN != "" {
		db, err := authz.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer func(db *sql.DB) { _ = db.Close() }(db)
		authorizer = authz.NewPostgresAuthorizer(db)
		log.Info().Str("module", "main").Msg("session authorization: postgres")
	} else {
		log.Warn().Str("module", "main").Msg("session authorization disabled, every join is allowed")
	}

	coordinator := rooms.NewCoordinator(cfg.RoomSettings())
	tracker := connstate.NewTracker(connstate.WithReconnectDelay(cfg.Reconnect.Delay))
	o := orch.New(orch.Deps{
		Registry:   app.NewRegistry(),
		Rooms:      coordinator,
		Conns:      tracker,
		Quality:    quality.NewClassifier(cfg.Media),
		Authorizer: authorizer,
		Policy:     policy,
		Client:     rtc.ClientConfig(cfg),
	})

	var publisher *events.Publisher
	if cfg.Redis.Addr != "" {
		client := events.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		publisher = events.NewPublisher(client, cfg.Redis.Channel, events.DefaultBuffer)
		coordinator.Subscribe(publisher.OnRoomEvent)
		tracker.Subscribe(publisher.OnConnEvent)
		log.Info().Str("module", "main").Str("channel", cfg.Redis.Channel).Msg("event fan-out: redis")
	}

	var limiter *wssignal.RoomRateLimiter
	if cfg.JoinRate.Limit > 0 {
		limiter = wssignal.NewRoomRateLimiter(cfg.JoinRate.Limit, cfg.JoinRate.Interval)
		go limiter.Run(ctx, cfg.JoinRate.Interval)
	}
	ctl := wssignal.NewSignalWSController(o, wssignal.Options{
		ReadLimit:   cfg.ReadLimit,
		PingPeriod:  cfg.PingPeriod,
		JoinLimiter: limiter,
	})

	go coordinator.Run(ctx, cfg.Rooms.CleanupInterval)

	r := router.SetupRouter(ctx, cfg, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("module", "main").Str("addr", addr).Msg("signalroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Str("module", "main").Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Str("module", "main").Msg("Server forced to shutdown")
	}
	coordinator.Shutdown(shutdownCtx)
	tracker.Close()
	if publisher != nil {
		publisher.Close()
	}
	log.Info().Str("module", "main").Msg("Server exited gracefully")
	return nil
}
