package main

import (
	"flag"
	"fmt"
	"os"

	"filmstrip/internal/app"
	"filmstrip/internal/config"
	"filmstrip/internal/logger"
)

// runjob executes one named job immediately and exits. Useful for
// bootstrapping an empty library and for poking at a job without waiting for
// its schedule.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: runjob [-config file] <job-name>")
		os.Exit(2)
	}

	log := logger.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error("RunJob", "main", fmt.Sprintf("Failed to load config: %v", err))
		os.Exit(1)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("RunJob", "main", fmt.Sprintf("Failed to start: %v", err))
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Runner.RunNow(flag.Arg(0)); err != nil {
		log.Error("RunJob", "main", fmt.Sprintf("Job failed: %v", err))
		os.Exit(1)
	}
}
