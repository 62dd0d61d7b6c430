package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/fileclassifier"
	"pkt.systems/fileclassifier/httpapi"
	"pkt.systems/fileclassifier/internal/appconfig"
	"pkt.systems/fileclassifier/schema"
)

// sessionFlags are shared by every command that opens a session.
type sessionFlags struct {
	cfgPath    string
	csv        bool
	categories string
	columns    string
}

func (f *sessionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cfgPath, "config", "", "path to config file")
	cmd.Flags().BoolVarP(&f.csv, "csv", "c", false, "CSV mode: one item per row (otherwise one item per file)")
	cmd.Flags().StringVar(&f.categories, "categories", "", `comma separated categories, 1-9 (default from config, "good,bad,review")`)
	cmd.Flags().StringVar(&f.columns, "columns", "", "comma separated CSV column subset (default: all columns)")
}

// sessionConfig builds the run configuration from flags, args and config
// defaults.
func (f *sessionFlags) sessionConfig(cfg appconfig.Config, sources []string) (schema.SessionConfig, error) {
	mode := schema.ModeFile
	if f.csv {
		mode = schema.ModeTabular
	}
	categories := cfg.Defaults.Categories
	if strings.TrimSpace(f.categories) != "" {
		categories = schema.SplitList(f.categories)
		if len(categories) == 0 {
			return schema.SessionConfig{}, fmt.Errorf("%w: at least one category is required", schema.ErrInvalidConfig)
		}
	}
	if len(categories) == 0 {
		categories = appconfig.DefaultCategories
	}
	var columns []string
	if f.columns != "" {
		columns = schema.SplitList(f.columns)
		if len(columns) == 0 {
			return schema.SessionConfig{}, fmt.Errorf("%w: at least one column is required", schema.ErrInvalidConfig)
		}
	}
	return schema.NormalizeSessionConfig(schema.SessionConfig{
		Mode:       mode,
		Categories: categories,
		Sources:    sources,
		Columns:    columns,
	})
}

// load reads the config file and resolves the server configuration.
func (f *sessionFlags) load(sources []string) (appconfig.Config, fileclassifier.ServerConfig, error) {
	cfg, err := appconfig.Load(f.cfgPath)
	if err != nil {
		return appconfig.Config{}, fileclassifier.ServerConfig{}, err
	}
	session, err := f.sessionConfig(cfg, sources)
	if err != nil {
		return appconfig.Config{}, fileclassifier.ServerConfig{}, err
	}
	return cfg, fileclassifier.ServerConfig{
		Session:  session,
		StateDir: cfg.StateDir,
		HTTP: httpapi.Config{
			Addr:        cfg.HTTP.Addr,
			HubHistory:  cfg.HTTP.StreamHistory,
			AllowOrigin: cfg.HTTP.AllowOrigin,
		},
		NATSURL: cfg.Events.NATSURL,
		Export: fileclassifier.ExportConfig{
			Dir:      cfg.Export.Dir,
			Bucket:   cfg.Export.S3.Bucket,
			Key:      cfg.Export.S3.Key,
			Region:   cfg.Export.S3.Region,
			Endpoint: cfg.Export.S3.Endpoint,
		},
	}, nil
}

// listenAddr applies --addr and --port on top of the configured address.
func listenAddr(configured, addr string, port int) (string, error) {
	if strings.TrimSpace(addr) != "" {
		configured = strings.TrimSpace(addr)
	}
	if configured == "" {
		configured = "127.0.0.1:0"
	}
	if port == 0 {
		return configured, nil
	}
	if port < 1 || port > 65535 {
		return "", fmt.Errorf("invalid port number %d", port)
	}
	host, _, err := net.SplitHostPort(configured)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", configured, err)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
