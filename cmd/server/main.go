// Package main is the entry point for the hsm2midi web server
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hsm2midi/hsm2midi/pkg/api"
	"github.com/hsm2midi/hsm2midi/pkg/config"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	fmt.Printf("Starting hsm2midi server on port %d...\n", cfg.Server.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)

	if err := api.StartServer(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
