// Package main is the entry point for the Gatehouse server. It loads
// configuration, connects the credential store and Redis, wires the plugins
// and serves HTTP until signalled.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/keyxmakerx/gatehouse/internal/app"
	"github.com/keyxmakerx/gatehouse/internal/config"
	"github.com/keyxmakerx/gatehouse/internal/database"
	"github.com/keyxmakerx/gatehouse/internal/metrics"
	"github.com/keyxmakerx/gatehouse/internal/plugins/auth"
	"github.com/keyxmakerx/gatehouse/internal/plugins/smtp"
)

// shutdownTimeout bounds the HTTP drain and the outbox flush.
const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("reading .env", slog.Any("error", err))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting Gatehouse",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.StoreDriver),
	)

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// run connects dependencies, serves until SIGINT/SIGTERM and then shuts
// down in order: HTTP, outbox, Redis, credential store.
func run(cfg *config.Config) error {
	users, storePing, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	reg := prometheus.NewRegistry()
	metrics.RegisterMetrics(reg)

	mailer := smtp.NewSMTPService(smtp.SettingsFromConfig(cfg.Mail))
	if !mailer.IsConfigured(context.Background()) {
		slog.Warn("MAIL_HOST or MAIL_FROM not set, welcome emails are disabled")
	}
	outbox := smtp.NewOutbox(mailer, cfg.Mail.SendTimeout)

	application, err := app.New(cfg, app.Dependencies{
		Users:     users,
		StorePing: storePing,
		Redis:     rdb,
		Mail:      outbox,
		Registry:  reg,
	})
	if err != nil {
		return err
	}
	application.RegisterRoutes()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- application.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-quit:
		slog.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		slog.Error("server forced shutdown", slog.Any("error", err))
	}
	if err := outbox.Close(ctx); err != nil {
		slog.Warn("outbox did not drain", slog.Any("error", err))
	}
	return nil
}

// openStore connects the credential store chosen by STORE_DRIVER and returns
// its repository, a health ping and a close function.
func openStore(cfg *config.Config) (auth.UserRepository, func(context.Context) error, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMariaDB:
		db, err := database.NewMariaDB(cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to MariaDB: %w", err)
		}
		slog.Info("connected to MariaDB")

		if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}

		closeDB := func() {
			if err := db.Close(); err != nil {
				slog.Warn("closing MariaDB", slog.Any("error", err))
			}
		}
		return auth.NewSQLUserRepository(db), db.PingContext, closeDB, nil

	default:
		client, db, err := database.NewMongo(cfg.Mongo)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		slog.Info("connected to MongoDB", slog.String("database", db.Name()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := auth.EnsureUserIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}

		ping := func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}
		closeMongo := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				slog.Warn("disconnecting MongoDB", slog.Any("error", err))
			}
		}
		return auth.NewMongoUserRepository(db), ping, closeMongo, nil
	}
}

// setupLogging configures the global slog logger. Development uses the text
// handler; everything else logs JSON. LOG_LEVEL overrides the level.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
