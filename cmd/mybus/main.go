package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/mybus-data/internal/common/config"
	"github.com/mybus-data/internal/common/logger"
	"github.com/urfave/cli/v2"
)

const version = "1.0.0"

func main() {
	// A missing .env is fine, everything has a default or comes from the
	// environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("Failed to load .env file: " + err.Error())
	}

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.InitLogger(logger.LoggerConfig{
		Level:           logger.ParseLogLevel(cfg.Logging.Level),
		Console:         true,
		File:            cfg.Logging.FilePath != "",
		FilePath:        cfg.Logging.FilePath,
		MaxSizeMB:       10,
		MaxBackups:      5,
		MaxAgeDays:      30,
		Compress:        true,
		TimeFieldFormat: "2006-01-02T15:04:05Z07:00",
		WebhookURL:      cfg.Logging.WebhookURL,
	})

	app := &cli.App{
		Name:    "mybus",
		Usage:   "Bus stop database, settings and live departures",
		Version: version,

		Commands: []*cli.Command{
			serveCommand(cfg, log),
			checkUpdateCommand(cfg, log),
			dbInfoCommand(cfg, log),
			departuresCommand(cfg, log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal("Command failed", "error", err)
	}
}
