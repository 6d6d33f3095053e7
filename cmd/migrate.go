package cmd

import (
	"fmt"

	"neofeed/db"

	"github.com/urfave/cli/v2"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Runs database migrations on the configured database. Will create the database if it does not exist.`,
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database configured: %s\n", cfg.Secrets.DatabaseURL)
			return db.Migrate(cfg.Secrets.DatabaseURL)
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback database migration",
		Description: `Rolls back the last database migration`,
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database configured: %s\n", cfg.Secrets.DatabaseURL)
			return db.Rollback(cfg.Secrets.DatabaseURL)
		},
	}
}
