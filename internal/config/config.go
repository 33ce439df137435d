// Package config defines crawl, renderer and service configuration options.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spider-crawler/sitecrawl/internal/model"
)

// Engine selects the page renderer implementation.
type Engine string

const (
	EngineChromedp Engine = "chromedp" // Headless Chrome over the DevTools protocol
	EngineRod      Engine = "rod"      // Headless Chrome driven by go-rod
	EngineHTTP     Engine = "http"     // Plain HTTP fetch, no JavaScript
)

// ExportFormat defines the export file format for crawl results.
type ExportFormat string

const (
	FormatJSON   ExportFormat = "json"
	FormatCSV    ExportFormat = "csv"
	FormatXLSX   ExportFormat = "xlsx"
	FormatSQLite ExportFormat = "sqlite"
)

// Defaults.
const (
	DefaultMaxPages            = 10
	DefaultInterRequestDelay   = 2 * time.Second
	DefaultSameDomainOnly      = true
	DefaultMaxRetriesPerURL    = 3
	DefaultRetryInterval       = 2 * time.Second
	DefaultNavigationTimeout   = 60 * time.Second
	DefaultContentReadyTimeout = 10 * time.Second
	DefaultUserAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAddr                = ":8080"
	DefaultMaxConcurrentRuns   = 2
	DefaultMaxBodySize         = 10 * 1024 * 1024
)

// Config holds all configuration for the crawler and its service.
type Config struct {
	Crawl  CrawlConfig  `mapstructure:"crawl"`
	Render RenderConfig `mapstructure:"render"`
	Robots RobotsConfig `mapstructure:"robots"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Export ExportConfig `mapstructure:"export"`
}

// CrawlConfig holds the per-run crawl settings.
type CrawlConfig struct {
	// Maximum number of pages to scrape
	MaxPages int `mapstructure:"max_pages" validate:"gt=0"`

	// Pause after a successful fetch before the next one (politeness)
	InterRequestDelay time.Duration `mapstructure:"inter_request_delay" validate:"gte=0"`

	// Only follow links on the seed URL's host
	SameDomainOnly bool `mapstructure:"same_domain_only"`

	// Render attempts per URL before it is recorded as failed
	MaxRetriesPerURL int `mapstructure:"max_retries_per_url" validate:"gte=0"`

	// Fixed wait between attempts on the same URL
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gte=0"`

	// Maximum link depth from the seed (0 = unlimited)
	MaxDepth int `mapstructure:"max_depth" validate:"gte=0"`

	// Global cap on render attempts per second (0 = unlimited)
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
}

// RenderConfig configures the page renderer.
type RenderConfig struct {
	Engine Engine `mapstructure:"engine" validate:"oneof=chromedp rod http"`

	// Navigation timeout per page
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" validate:"gt=0"`

	// How long to wait for the body element after navigation
	ContentReadyTimeout time.Duration `mapstructure:"content_ready_timeout" validate:"gt=0"`

	UserAgent string `mapstructure:"user_agent"`

	// Browser executable path (empty = engine default)
	ExecPath string `mapstructure:"exec_path"`

	Headless bool `mapstructure:"headless"`

	// Maximum response size read by the http engine
	MaxBodySize int64 `mapstructure:"max_body_size" validate:"gt=0"`
}

// RobotsConfig controls robots.txt handling for discovered links.
type RobotsConfig struct {
	Respect   bool   `mapstructure:"respect"`
	UserAgent string `mapstructure:"user_agent"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`

	// Target used when a request omits the url parameter
	DefaultTarget string `mapstructure:"default_target" validate:"omitempty,url"`

	// Maximum crawl runs executing at the same time
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs" validate:"gt=0"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// ExportConfig configures result export from the CLI.
type ExportConfig struct {
	Format ExportFormat `mapstructure:"format" validate:"oneof=json csv xlsx sqlite"`
	Path   string       `mapstructure:"path"`

	// Report column to order rows by, and whether to reverse it
	SortBy         string `mapstructure:"sort_by"`
	SortDescending bool   `mapstructure:"sort_desc"`

	// Keep only rows matching "Column=value" (case-insensitive substring)
	Filter string `mapstructure:"filter"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			MaxPages:          DefaultMaxPages,
			InterRequestDelay: DefaultInterRequestDelay,
			SameDomainOnly:    DefaultSameDomainOnly,
			MaxRetriesPerURL:  DefaultMaxRetriesPerURL,
			RetryInterval:     DefaultRetryInterval,
		},
		Render: RenderConfig{
			Engine:              EngineChromedp,
			NavigationTimeout:   DefaultNavigationTimeout,
			ContentReadyTimeout: DefaultContentReadyTimeout,
			UserAgent:           DefaultUserAgent,
			Headless:            true,
			MaxBodySize:         DefaultMaxBodySize,
		},
		Robots: RobotsConfig{
			UserAgent: "sitecrawl",
		},
		Server: ServerConfig{
			Addr:              DefaultAddr,
			MaxConcurrentRuns: DefaultMaxConcurrentRuns,
			ShutdownTimeout:   15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Export: ExportConfig{
			Format: FormatJSON,
		},
	}
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// CrawlRequest builds a crawl request for seedURL from the crawl settings.
func (c *Config) CrawlRequest(seedURL string) model.CrawlRequest {
	return model.CrawlRequest{
		SeedURL:           seedURL,
		MaxPages:          c.Crawl.MaxPages,
		InterRequestDelay: c.Crawl.InterRequestDelay,
		SameDomainOnly:    c.Crawl.SameDomainOnly,
		MaxRetriesPerURL:  c.Crawl.MaxRetriesPerURL,
		RetryInterval:     c.Crawl.RetryInterval,
		MaxDepth:          c.Crawl.MaxDepth,
	}
}
