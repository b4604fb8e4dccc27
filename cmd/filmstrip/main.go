package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"filmstrip/internal/app"
	"filmstrip/internal/config"
	"filmstrip/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	log := logger.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error("Main", "main", fmt.Sprintf("Failed to load config: %v", err))
		os.Exit(1)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("Main", "main", fmt.Sprintf("Failed to start: %v", err))
		os.Exit(1)
	}
	defer application.Close()

	application.Runner.Start()
	log.Info("Main", "main", "Crawler started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Main", "main", "Shutting down, waiting for the running job")
	application.Runner.Stop()
}
