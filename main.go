package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"psync/cmd"
	"psync/internal/config"
	"psync/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting psync")

	code := cmd.Execute(cfg, err)

	log.Debug().Int("exit_code", code).Msg("psync shutdown")
	os.Exit(code)
}
