// Command testboss runs the test-management API server.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/testboss/testboss/pkg/accounts"
	"github.com/testboss/testboss/pkg/api"
	"github.com/testboss/testboss/pkg/auth"
	"github.com/testboss/testboss/pkg/config"
	"github.com/testboss/testboss/pkg/identity"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
	"github.com/testboss/testboss/pkg/projects"
	"github.com/testboss/testboss/pkg/sessions"
	"github.com/testboss/testboss/pkg/storage"
	"github.com/testboss/testboss/pkg/testchecks"
	"github.com/testboss/testboss/pkg/testlists"
	"github.com/testboss/testboss/pkg/testreports"
	"github.com/testboss/testboss/pkg/testresults"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenPostgres(ctx, cfg.Storage.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(db); err != nil {
		return err
	}
	logger.Info("database ready")

	redisClient, err := storage.NewRedisClient(ctx, cfg.Storage.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn("redis not configured, login rate limiting disabled")
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTDuration)

	userSvc := identity.NewPostgresService(db)
	sessionSvc := sessions.NewPostgresService(db, cfg.Auth.SessionDuration)
	accountSvc := accounts.NewPostgresService(db)
	projectSvc := projects.NewPostgresService(db)
	testlistSvc := testlists.NewPostgresService(db)
	checkSvc := testchecks.NewPostgresService(db)
	reportSvc := testreports.NewPostgresService(db)
	resultSvc := testresults.NewPostgresService(db)

	sweeper, err := sessions.NewSweeper(sessionSvc, logger, cfg.Auth.SessionSweepSchedule)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	authMW := middleware.NewAuthMiddleware(tokens, sessionSvc, userSvc, logger)
	loginLimiter := middleware.NewLoginRateLimiter(redisClient, logger, cfg.RateLimit.LoginAttempts, cfg.RateLimit.LoginWindow)

	server := api.NewServer(api.Deps{
		Logger:  logger,
		Metrics: metrics,

		AuthMiddleware: authMW,
		LoginLimiter:   loginLimiter,
		CORSOrigins:    cfg.Server.CORSOrigins,

		DB: db,

		Sessions:    api.NewSessionHandlers(userSvc, sessionSvc, tokens, logger),
		Accounts:    api.NewAccountHandlers(accountSvc, projectSvc, logger),
		Users:       api.NewUserHandlers(userSvc, logger),
		Projects:    api.NewProjectHandlers(projectSvc, testlistSvc, reportSvc, logger),
		Testlists:   api.NewTestlistHandlers(testlistSvc, checkSvc, reportSvc, resultSvc, logger),
		Testchecks:  api.NewTestcheckHandlers(checkSvc, logger),
		Testreports: api.NewTestreportHandlers(reportSvc, resultSvc, logger),
		Testresults: api.NewTestresultHandlers(resultSvc, logger),
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
