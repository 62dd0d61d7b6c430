package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.open_browser", cfg.HTTP.OpenBrowser)
	v.SetDefault("http.allow_origin", cfg.HTTP.AllowOrigin)
	v.SetDefault("http.stream_history", cfg.HTTP.StreamHistory)
	v.SetDefault("defaults.categories", cfg.Defaults.Categories)
	v.SetDefault("events.nats_url", cfg.Events.NATSURL)
	v.SetDefault("export.dir", cfg.Export.Dir)
	v.SetDefault("export.s3.bucket", cfg.Export.S3.Bucket)
	v.SetDefault("export.s3.key", cfg.Export.S3.Key)
	v.SetDefault("export.s3.region", cfg.Export.S3.Region)
	v.SetDefault("export.s3.endpoint", cfg.Export.S3.Endpoint)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.StateDir) == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	if addr := strings.TrimSpace(cfg.HTTP.Addr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("http.addr must be host:port: %w", err)
		}
	}
	if n := len(cfg.Defaults.Categories); n > 9 {
		return fmt.Errorf("defaults.categories allows at most 9 entries, got %d", n)
	}
	if raw := strings.TrimSpace(cfg.Events.NATSURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("events.nats_url must include scheme and host (e.g. nats://127.0.0.1:4222)")
		}
	}
	if raw := strings.TrimSpace(cfg.Export.S3.Endpoint); raw != "" {
		if strings.TrimSpace(cfg.Export.S3.Bucket) == "" {
			return fmt.Errorf("export.s3.endpoint requires export.s3.bucket")
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("export.s3.endpoint must include scheme and host")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Export.Dir = expandEnv(cfg.Export.Dir)
	cfg.Events.NATSURL = expandEnv(cfg.Events.NATSURL)
	cfg.Export.S3.Endpoint = expandEnv(cfg.Export.S3.Endpoint)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
