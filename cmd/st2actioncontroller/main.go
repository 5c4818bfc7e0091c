package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/st2actioncontroller/internal/application"
	"github.com/eugenenazirov/st2actioncontroller/internal/config"
	"github.com/eugenenazirov/st2actioncontroller/internal/logging"
	"github.com/eugenenazirov/st2actioncontroller/internal/registry"
)

var signalNotify = signal.Notify

func main() {
	reg, err := config.NewRegistry()
	if err != nil {
		panic(fmt.Sprintf("failed to register configuration options: %v", err))
	}

	cfg, err := config.Load(reg, os.Args[1:])
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(logging.WithDebug(cfg.Pecan.Debug))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := setup(cfg, reg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.API.ShutdownGracePeriod, logger)
}

// setup logs the resolved configuration and builds the application.
func setup(cfg config.Config, reg *registry.Registry, logger *zap.Logger) (*application.App, error) {
	configFile, err := reg.ConfigFile()
	if err != nil {
		return nil, err
	}
	logger.Info("configuration loaded",
		zap.String("config_file", configFile),
		zap.Bool("use_debugger", cfg.UseDebugger),
		zap.String("logging_config", cfg.Logging.ConfigFile),
		zap.String("database", cfg.Database.Address()),
		zap.String("modules_path", cfg.Actions.ModulesPath),
		zap.String("liveactions_base_url", cfg.LiveActions.BaseURL),
	)
	reg.LogValues(logger)

	return application.New(cfg, reg, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("shutting down server", zap.Stringer("signal", sig))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
