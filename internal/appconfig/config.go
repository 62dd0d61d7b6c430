package appconfig

import (
	"path/filepath"

	"pkt.systems/fileclassifier/internal/persist"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	HTTP          HTTPConfig     `mapstructure:"http" yaml:"http"`
	Defaults      DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`
	Events        EventsConfig   `mapstructure:"events" yaml:"events"`
	Export        ExportConfig   `mapstructure:"export" yaml:"export"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// DefaultCategories are used when neither flags nor config name any.
var DefaultCategories = []string{"good", "bad", "review"}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	OpenBrowser   bool   `mapstructure:"open_browser" yaml:"open_browser"`
	AllowOrigin   string `mapstructure:"allow_origin" yaml:"allow_origin"`
	StreamHistory int    `mapstructure:"stream_history" yaml:"stream_history"`
}

// DefaultsConfig holds run defaults that flags may override.
type DefaultsConfig struct {
	Categories []string `mapstructure:"categories" yaml:"categories"`
}

// EventsConfig configures ledger event publishing.
type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url" yaml:"nats_url"`
}

// ExportConfig configures where export documents are written.
type ExportConfig struct {
	Dir string   `mapstructure:"dir" yaml:"dir"`
	S3  S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config configures the S3 export destination. Bucket empty disables it.
type S3Config struct {
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Key      string `mapstructure:"key" yaml:"key"`
	Region   string `mapstructure:"region" yaml:"region"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	dir, err := persist.DefaultDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      dir,
		HTTP: HTTPConfig{
			Addr:          "127.0.0.1:0",
			OpenBrowser:   true,
			AllowOrigin:   "*",
			StreamHistory: 256,
		},
		Defaults: DefaultsConfig{
			Categories: append([]string(nil), DefaultCategories...),
		},
		Export: ExportConfig{
			S3: S3Config{Key: "exports/"},
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	dir, err := persist.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
