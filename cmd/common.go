package cmd

import (
	"fmt"
	"time"

	"neofeed/config"
	"neofeed/models"
	"neofeed/nasa"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the config file named by the root --config flag. Any
// failure is fatal for the command.
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	path := ctx.String("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, cli.Exit(err, 2)
	}
	log.WithField("config", path).Debug("Loaded configuration")
	return cfg, nil
}

func newClient(cfg *config.TomlConfig) *nasa.Client {
	return nasa.NewClient(cfg.Secrets.NasaAPIKey, nasa.WithFeedURL(cfg.Feed.URL))
}

func dateFlag(ctx *cli.Context, name string) (time.Time, error) {
	d, err := models.ParseDate(ctx.String(name))
	if err != nil {
		return time.Time{}, cli.Exit(fmt.Sprintf("--%s: %v", name, err), 2)
	}
	return d, nil
}

func startDateFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "start-date",
		Aliases:  []string{"s"},
		Usage:    "First date to fetch, YYYY-MM-DD",
		Required: required,
		EnvVars:  []string{"NEOFEED_START_DATE"},
	}
}

func windowsFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:    "windows",
		Aliases: []string{"n"},
		Value:   1,
		Usage:   "Number of consecutive seven day windows",
		EnvVars: []string{"NEOFEED_WINDOWS"},
	}
}
