package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calnotify/internal/api"
	"calnotify/internal/cache"
	"calnotify/internal/config"
	"calnotify/internal/database"
	"calnotify/internal/events"
	"calnotify/internal/metrics"
	"calnotify/internal/reminders"
	"calnotify/internal/service"
	"calnotify/internal/upload"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Getenv("NOTIFY_CONFIG_PATH"))
	if err != nil {
		bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg)

	if cfg.HTTP.APIKey == "" {
		logger.Warn().Msg("http.api_key is empty, internal endpoints will reject every request")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	gateway, err := upload.NewGateway(cfg.Uploads.Dir, cfg.Uploads.PublicPrefix, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init upload storage error")
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	bus := events.NewEventBus()
	bus.OnError(func(event events.Event, err error) {
		logger.Error().Err(err).Str("event", event.Type).Int64("user_id", event.UserID).Msg("event handler failed")
	})
	bus.SubscribeAll(func(event events.Event) error {
		metrics.IncEvent(event.Type)
		return nil
	})

	unread := cache.NewUnreadCounts(rdb, cfg.CacheTTL(), &logger)
	unread.Subscribe(bus)

	notifications := service.NewNotificationService(db, unread, bus, &logger)
	sounds := service.NewSoundService(db, gateway, bus, &logger)
	prefs := service.NewPreferenceService(db, sounds, bus, &logger)
	processor := reminders.NewProcessor(db, notifications, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Reminders.Enabled {
		reminderLoop := reminders.NewService(processor, cfg.ReminderInterval(), &logger)
		reminderLoop.Start()
		defer reminderLoop.Stop()
	}

	go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	uploadRate, uploadBurst := cfg.UploadRate()
	httpServer := api.NewHTTPServer(api.Deps{
		Notifications: notifications,
		Preferences:   prefs,
		Sounds:        sounds,
		Gateway:       gateway,
		Reminders:     processor,
	}, api.Options{
		APIKey:       cfg.HTTP.APIKey,
		MaxFileSize:  cfg.Uploads.MaxFileSize,
		PublicPrefix: cfg.Uploads.PublicPrefix,
		UploadRate:   uploadRate,
		UploadBurst:  uploadBurst,
	}, &logger)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpServer.Handler(),
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("http shutdown error")
		}
	}()

	logger.Info().Str("addr", cfg.HTTP.Addr).Msg("Notification service started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("http server error")
		return
	}
	logger.Info().Msg("Notification service stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Log.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
