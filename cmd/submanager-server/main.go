// Package main provides the subscription manager server executable.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coregx/submanager"
	"github.com/coregx/submanager/adapters/relica"
	"github.com/coregx/submanager/broker"
	"github.com/coregx/submanager/cmd/submanager-server/internal/api"
	"github.com/coregx/submanager/cmd/submanager-server/internal/config"
	"github.com/coregx/submanager/retry"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zl, err := newZap(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger := submanager.NewZapLogger(zl)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Errorf("Server stopped: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *submanager.ZapLogger) error {
	logger.Info("Starting subscription manager")
	logger.Infof("Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Database: %s (%s:%d)", cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port)
	logger.Infof("Broker exchange: %s, compensation: %t, breaker: %t",
		cfg.Broker.Exchange, cfg.Broker.Compensation, cfg.Broker.BreakerEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backoff := retry.DefaultStrategy()
	logRetry := func(what string) func(int, time.Duration, error) {
		return func(attempt int, delay time.Duration, err error) {
			logger.Warnf("%s attempt %d failed, retrying in %v: %v", what, attempt, delay, err)
		}
	}

	// Database
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warnf("Failed to close database: %v", closeErr)
		}
	}()

	if err := backoff.Do(ctx, db.PingContext, logRetry("Database connection")); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.Migrate {
		if err := submanager.ApplyMigrations(ctx, db, cfg.Database.Driver); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("Database schema is up to date")
	}

	repos := relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)

	// Broker
	var gateway *broker.Gateway
	err = backoff.Do(ctx, func(context.Context) error {
		g, dialErr := broker.Dial(cfg.Broker.URL,
			broker.WithExchange(cfg.Broker.Exchange),
			broker.WithLogger(logger),
		)
		if dialErr != nil {
			return dialErr
		}
		gateway = g
		return nil
	}, logRetry("Broker connection"))
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() {
		if closeErr := gateway.Close(); closeErr != nil {
			logger.Warnf("Failed to close broker connection: %v", closeErr)
		}
	}()
	logger.Infof("Broker connection established (exchange %s)", gateway.Exchange())

	var queueBroker submanager.Broker = gateway
	if cfg.Broker.BreakerEnabled {
		queueBroker = broker.NewCircuitBreaker(gateway, broker.BreakerSettings{
			FailureThreshold: cfg.Broker.BreakerFailures,
			ResetTimeout:     cfg.Broker.BreakerResetTime,
		}, logger)
	}

	// Services
	lifecycleOpts := []submanager.LifecycleOption{
		submanager.WithLifecycleRepositories(repos.Topic, repos.Subscription),
		submanager.WithLifecycleBroker(queueBroker),
		submanager.WithLifecycleLogger(logger),
	}
	if cfg.Broker.Compensation {
		lifecycleOpts = append(lifecycleOpts, submanager.WithCompensation())
	}
	lifecycle, err := submanager.NewLifecycle(lifecycleOpts...)
	if err != nil {
		return fmt.Errorf("failed to create lifecycle: %w", err)
	}

	subscriptions, err := submanager.NewSubscriptionManager(
		submanager.WithSubscriptionManagerRepositories(repos.Topic, repos.Subscription),
		submanager.WithSubscriptionManagerLifecycle(lifecycle),
		submanager.WithSubscriptionManagerLogger(logger),
		submanager.WithSubscriptionManagerNotifications(submanager.NewLoggingNotificationService(logger)),
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription manager: %w", err)
	}

	users, err := submanager.NewUserManager(
		submanager.WithUserRepository(repos.User),
		submanager.WithUserManagerLogger(logger),
		submanager.WithPasswordIterations(cfg.Auth.PasswordIterations),
	)
	if err != nil {
		return fmt.Errorf("failed to create user manager: %w", err)
	}

	authenticator, err := submanager.NewAuthenticator(repos.User, logger)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	if cfg.Auth.AdminUsername != "" {
		if err := ensureAdmin(ctx, repos.User, users, cfg.Auth); err != nil {
			return err
		}
	}

	// HTTP
	handler := api.NewHandler(subscriptions, users, authenticator, logger, api.NewMetrics())
	handler.AddHealthCheck("database", db.PingContext)
	handler.AddHealthCheck("broker", gateway.Ping)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// ensureAdmin creates the configured admin account unless the username exists.
func ensureAdmin(ctx context.Context, repo submanager.UserRepository, users *submanager.UserManager, cfg config.AuthConfig) error {
	_, err := repo.FindByUsername(ctx, cfg.AdminUsername)
	switch {
	case err == nil:
		return nil
	case !submanager.IsNotFound(err):
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	bootstrap := submanager.Caller{Username: "bootstrap", IsAdmin: true}
	_, err = users.CreateUser(ctx, bootstrap, submanager.UserRequest{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		IsAdmin:  true,
	})
	if err != nil && !submanager.IsDuplicate(err) {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

func newZap(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
