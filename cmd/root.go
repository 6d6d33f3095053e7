package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "neofeed",
		Usage: "Import and watch the NASA near earth object feed",
		Description: `Retrieves near earth object feed data from the NASA NeoWs API
		in windows of at most seven days and stores the raw responses in an SQLite
		database.

		Credentials and the database location are read from a TOML file,
		create one with the init command.

		Flags can generally be set via environment variables, e.g.:

		--config => NEOFEED_CONFIG=config/private.toml
		--log-level => NEOFEED_LOG_LEVEL=debug
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/private.toml",
				Usage:   "Path to the TOML configuration file",
				EnvVars: []string{"NEOFEED_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level: trace, debug, info, warn, error",
				EnvVars: []string{"NEOFEED_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Emit logs as JSON",
				EnvVars: []string{"NEOFEED_LOG_JSON"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return cli.Exit(err, 2)
			}
			log.SetLevel(level)
			log.SetOutput(os.Stderr)
			if ctx.Bool("log-json") {
				log.SetFormatter(&log.JSONFormatter{})
			}
			return nil
		},
		Commands: []*cli.Command{
			importCmd(),
			queryCmd(),
			watchCmd(),
			streamCmd(),
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
			initCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// Execute runs the app and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootApp().RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Error("neofeed failed")
		stop()
		os.Exit(1)
	}
}
