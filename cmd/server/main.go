// Package main runs the warden onboarding service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"warden/internal/platform/config"
	"warden/internal/platform/logger"
)

// main loads configuration and hands the process lifecycle to run. Business
// logic lives in the internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger.New(cfg.Log.Level, cfg.Log.Format)); err != nil {
		log.Fatalf("warden: %v", err)
	}
}
