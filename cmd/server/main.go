package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"coreops/internal/app/server"
	"coreops/internal/platform/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
