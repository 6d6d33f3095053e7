package cmd

import (
	"fmt"
	"time"

	"neofeed/db"
	"neofeed/importer"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func importCmd() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import feed windows into the database",
		Description: `Fetches the feed for consecutive seven day windows starting at
--start-date and stores every raw response in the database.

Windows are fetched one at a time. The first failed fetch or write stops
the import; windows stored before the failure are kept. Give either
--windows or --end-date.`,
		Flags: []cli.Flag{
			startDateFlag(true),
			windowsFlag(),
			&cli.StringFlag{
				Name:    "end-date",
				Aliases: []string{"e"},
				Usage:   "Last date to fetch, YYYY-MM-DD. Overrides --windows",
				EnvVars: []string{"NEOFEED_END_DATE"},
			},
		},
		Action: func(ctx *cli.Context) error {
			start, err := dateFlag(ctx, "start-date")
			if err != nil {
				return err
			}

			var end *time.Time
			if ctx.IsSet("end-date") {
				if ctx.IsSet("windows") {
					return cli.Exit("--windows and --end-date are mutually exclusive", 2)
				}
				e, err := dateFlag(ctx, "end-date")
				if err != nil {
					return err
				}
				end = &e
			}

			windows, err := importer.Plan(start, end, ctx.Int("windows"))
			if err != nil {
				return cli.Exit(err, 2)
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			store, err := db.Open(cfg.Secrets.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()
			log.WithField("database", cfg.Secrets.DatabaseURL).Info("Connected to database")

			report, err := importer.NewBatcher(newClient(cfg), store).Run(ctx.Context, windows)
			if err != nil {
				return fmt.Errorf("import %s stopped after %d of %d windows: %w", report.RunID, len(report.Completed), len(windows), err)
			}

			fmt.Printf("Imported %d windows, %d objects\n", len(report.Completed), report.Elements)
			return nil
		},
	}
}
