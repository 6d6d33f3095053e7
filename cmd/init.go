package cmd

import (
	"errors"
	"fmt"
	"os"

	"neofeed/config"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	"github.com/urfave/cli/v2"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the configuration file",
		Description: `Asks for a NASA API key and a database path and writes them to the
file given by --config. Get a key at https://api.nasa.gov, DEMO_KEY works
for a handful of requests.

An existing file is only replaced with --force.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite an existing configuration file",
			},
		},
		Action: func(ctx *cli.Context) error {
			path := ctx.String("config")
			if _, err := os.Stat(path); err == nil && !ctx.Bool("force") {
				return cli.Exit(fmt.Sprintf("%s already exists, use --force to replace it", path), 2)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			apiKey, err := prompt.New().Ask("NASA API key:").Input("DEMO_KEY", input.WithEchoMode(input.EchoNone))
			if err != nil {
				return err
			}

			database, err := prompt.New().Ask("Database path:").Input("neo.db")
			if err != nil {
				return err
			}

			cfg := &config.TomlConfig{
				Secrets: config.TomlSecrets{
					NasaAPIKey:  apiKey,
					DatabaseURL: database,
				},
			}
			if err := cfg.Validate(); err != nil {
				return cli.Exit(err, 2)
			}

			if err := config.Write(path, cfg); err != nil {
				return err
			}
			fmt.Println("Wrote configuration to", path)
			return nil
		},
	}
}
