package main

import (
	"context"
	"flag"
	"fleet-dispatch-service/internal/app"
	"fleet-dispatch-service/internal/config"
	"fleet-dispatch-service/internal/platform/logger"
	"os"
	"os/signal"
	"syscall"
)

// main is the application composition root.
// It loads configuration, wires adapters behind ports and serves HTTP until
// SIGINT or SIGTERM.
func main() {
	configPath := flag.String("config", os.Getenv("DISPATCH_CONFIG"), "path to a YAML or JSON config file")
	flag.Parse()

	log := logger.New("server")

	if err := config.LoadDotEnv(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg)
	if err != nil {
		log.Errorf("start: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warnf("close: %v", err)
		}
	}()

	if err := svc.Run(ctx); err != nil {
		log.Errorf("%v", err)
		return
	}
	log.Infof("server stopped")
}
