package cmd

import (
	"fmt"

	"neofeed/db"
	"neofeed/models"
	"neofeed/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func queryCmd() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Print stored responses",
		Description: `Prints stored responses as one JSON object per line, in the order
they were stored. Use a tool like jq to process the output.

With --decode every response is decoded and printed as a list of objects
with their closest approach. Rows that can no longer be decoded carry an
error field instead.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			startDateFlag(false),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of rows, 0 for all",
			},
			&cli.BoolFlag{
				Name:    "decode",
				Aliases: []string{"d"},
				Usage:   "Decode stored responses",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			reader, err := db.NewReader(cfg.Secrets.DatabaseURL)
			if err != nil {
				return err
			}
			defer reader.Close()

			limit := ctx.Int("limit")
			var rows []models.StoredResponse
			if ctx.IsSet("start-date") {
				start, err := dateFlag(ctx, "start-date")
				if err != nil {
					return err
				}
				rows, err = reader.QueryByStartDate(ctx.Context, start.Format(models.DateLayout), limit)
				if err != nil {
					return err
				}
			} else {
				rows, err = reader.All(ctx.Context, limit)
				if err != nil {
					return err
				}
			}

			for _, row := range rows {
				line, err := server.MarshalRow(row, ctx.Bool("decode"))
				if err != nil {
					log.WithFields(log.Fields{
						"id":    row.ID,
						"error": err,
					}).Error("Could not render row")
					continue
				}
				fmt.Println(string(line))
			}
			log.WithField("rows", len(rows)).Info("Finished")
			return nil
		},
	}
}
