package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. SITECRAWL_CRAWL_MAX_PAGES.
const EnvPrefix = "SITECRAWL"

// NewViper returns a viper instance populated with defaults and environment bindings.
// Callers bind command-line flags on it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("crawl.max_pages", d.Crawl.MaxPages)
	v.SetDefault("crawl.inter_request_delay", d.Crawl.InterRequestDelay)
	v.SetDefault("crawl.same_domain_only", d.Crawl.SameDomainOnly)
	v.SetDefault("crawl.max_retries_per_url", d.Crawl.MaxRetriesPerURL)
	v.SetDefault("crawl.retry_interval", d.Crawl.RetryInterval)
	v.SetDefault("crawl.max_depth", d.Crawl.MaxDepth)
	v.SetDefault("crawl.requests_per_second", d.Crawl.RequestsPerSecond)

	v.SetDefault("render.engine", string(d.Render.Engine))
	v.SetDefault("render.navigation_timeout", d.Render.NavigationTimeout)
	v.SetDefault("render.content_ready_timeout", d.Render.ContentReadyTimeout)
	v.SetDefault("render.user_agent", d.Render.UserAgent)
	v.SetDefault("render.exec_path", d.Render.ExecPath)
	v.SetDefault("render.headless", d.Render.Headless)
	v.SetDefault("render.max_body_size", d.Render.MaxBodySize)

	v.SetDefault("robots.respect", d.Robots.Respect)
	v.SetDefault("robots.user_agent", d.Robots.UserAgent)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.default_target", d.Server.DefaultTarget)
	v.SetDefault("server.max_concurrent_runs", d.Server.MaxConcurrentRuns)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("export.format", string(d.Export.Format))
	v.SetDefault("export.path", d.Export.Path)
	v.SetDefault("export.sort_by", d.Export.SortBy)
	v.SetDefault("export.sort_desc", d.Export.SortDescending)
	v.SetDefault("export.filter", d.Export.Filter)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Browser path overrides commonly set in container images
	_ = v.BindEnv("render.exec_path", EnvPrefix+"_RENDER_EXEC_PATH", "PUPPETEER_EXECUTABLE_PATH", "CHROME_PATH")

	return v
}

// Load reads the optional config file at path into v and decodes the result.
// An empty path skips the file and uses defaults, environment and flags only.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
