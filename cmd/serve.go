package cmd

import (
	"fmt"
	"time"

	"neofeed/db"
	"neofeed/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve stored responses over HTTP",
		Description: `Starts a read only HTTP API over the configured database.

Endpoints:

/api/stats             number of stored responses
/api/responses         stored rows, ?start_date=YYYY-MM-DD&limit=N
/api/responses/feed    decoded objects for a start date
/metrics               Prometheus metrics

Stops gracefully on interrupt.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "hostname",
				Value:   "",
				Usage:   "Address to listen on",
				EnvVars: []string{"NEOFEED_HOSTNAME"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"NEOFEED_PORT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			// The reader refuses writes, so make sure the schema exists first
			if err := db.Migrate(cfg.Secrets.DatabaseURL); err != nil {
				return err
			}

			reader, err := db.NewReader(cfg.Secrets.DatabaseURL)
			if err != nil {
				return err
			}
			defer reader.Close()

			app := server.Server(&server.ServerConfig{Reader: reader})

			go func() {
				<-ctx.Done()
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.WithError(err).Error("Shutdown failed")
				}
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("hostname"), ctx.Int("port"))
			log.WithField("address", addr).Info("Starting server")
			if err := app.Listen(addr); err != nil {
				return err
			}
			log.Info("Done")
			return nil
		},
	}
}
