package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const DefaultPath = "config/private.toml"

var ErrMissingKey = errors.New("missing required key")

// Error is a fatal startup configuration failure
type Error struct {
	Path string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config %s: %s: %v", e.Path, e.Key, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TomlSecrets holds the credentials and datastore location
type TomlSecrets struct {
	NasaAPIKey  string `toml:"nasa_api_key"`
	DatabaseURL string `toml:"database_url"`
}

// TomlFeed holds optional feed endpoint settings
type TomlFeed struct {
	URL string `toml:"url,omitempty"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Secrets TomlSecrets `toml:"topsecrets"`
	Feed    TomlFeed    `toml:"feed"`
}

// LoadConfig reads the config file once. A missing file or required key is
// an *Error.
func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("error reading config file: %w", err)}
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("error parsing config file: %w", err)}
	}

	if err := config.Validate(); err != nil {
		var cfgErr *Error
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
		}
		return nil, err
	}

	return &config, nil
}

// Validate checks that every required key is present
func (c *TomlConfig) Validate() error {
	if c.Secrets.NasaAPIKey == "" {
		return &Error{Key: "topsecrets.nasa_api_key", Err: ErrMissingKey}
	}
	if c.Secrets.DatabaseURL == "" {
		return &Error{Key: "topsecrets.database_url", Err: ErrMissingKey}
	}
	return nil
}

// Write stores the config as TOML, creating parent directories
func Write(path string, config *TomlConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// The file holds an API key, keep it private
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
