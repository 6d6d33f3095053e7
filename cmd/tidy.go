package cmd

import (
	"fmt"

	"neofeed/db"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Checkpoints the write ahead log and compacts the database file.

Stored responses are never removed. Ranges that were imported more than
once are counted and reported.`,
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Database configured: ", cfg.Secrets.DatabaseURL)

			report, err := db.Tidy(ctx.Context, cfg.Secrets.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Printf("%d rows, %d distinct ranges, %d duplicates\n", report.Rows, report.Ranges, report.Duplicates)
			return nil
		},
	}
}
