// Package main implements jobboardd, the job board API server. It
// reads configuration from the environment (plus an optional settings
// file), opens the configured storage backend and serves the REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jobboardhq/jobboard/internal/app/runtime"
	"github.com/jobboardhq/jobboard/internal/config"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to optional YAML settings file")
	port := flag.Int("port", 0, "Listen port (overrides PORT)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// A .env file is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobboardd: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Port = *port
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		WithField("service", "jobboard")

	app, err := runtime.NewApplication(cfg, version, log)
	if err != nil {
		log.WithError(err).Error("startup failed")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := app.Run(ctx)
	stop()

	if err := app.Shutdown(context.Background()); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
	if runErr != nil {
		log.WithError(runErr).Error("server failed")
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
