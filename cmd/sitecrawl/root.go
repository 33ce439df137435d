package main

import (
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/logging"
	"github.com/spider-crawler/sitecrawl/internal/renderer"
	"github.com/spider-crawler/sitecrawl/internal/robots"
	"github.com/spider-crawler/sitecrawl/internal/scheduler"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"log-format":     "log.format",
	"engine":         "render.engine",
	"exec-path":      "render.exec_path",
	"nav-timeout":    "render.navigation_timeout",
	"respect-robots": "robots.respect",
	"max-pages":      "crawl.max_pages",
	"delay":          "crawl.inter_request_delay",
	"same-domain":    "crawl.same_domain_only",
	"max-retries":    "crawl.max_retries_per_url",
	"max-depth":      "crawl.max_depth",
	"rps":            "crawl.requests_per_second",
	"out":            "export.path",
	"format":         "export.format",
	"sort":           "export.sort_by",
	"sort-desc":      "export.sort_desc",
	"filter":         "export.filter",
	"addr":           "server.addr",
	"default-target": "server.default_target",
	"max-concurrent": "server.max_concurrent_runs",
}

// NewRootCmd creates the root command for sitecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawl",
		Short: "Browser-rendered same-domain site crawler",
		Long: `sitecrawl renders pages in a headless browser and extracts their title,
headings, paragraphs, links, meta description and images.

It can scrape a single page, crawl a site breadth-first up to a page budget,
or serve both operations over HTTP.

Settings are read from an optional config file, SITECRAWL_* environment
variables and command-line flags, in increasing order of precedence.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path (yaml, json or toml)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addRenderFlags registers the renderer flags shared by every command that opens pages.
func addRenderFlags(flags *pflag.FlagSet) {
	flags.StringP("engine", "e", string(config.EngineChromedp), "Renderer engine (chromedp, rod, http)")
	flags.String("exec-path", "", "Browser executable path")
	flags.Duration("nav-timeout", config.DefaultNavigationTimeout, "Navigation timeout per page")
}

// addCrawlFlags registers the per-run crawl flags.
func addCrawlFlags(flags *pflag.FlagSet) {
	flags.IntP("max-pages", "p", config.DefaultMaxPages, "Maximum number of pages to scrape")
	flags.DurationP("delay", "d", config.DefaultInterRequestDelay, "Pause after each scraped page")
	flags.Bool("same-domain", config.DefaultSameDomainOnly, "Only follow links on the seed host")
	flags.IntP("max-retries", "r", config.DefaultMaxRetriesPerURL, "Render attempts per URL")
	flags.Int("max-depth", 0, "Maximum link depth from the seed (0 = unlimited)")
	flags.Float64("rps", 0, "Global cap on page renders per second (0 = unlimited)")
	flags.Bool("respect-robots", false, "Skip discovered links disallowed by robots.txt")
}

// loadConfig resolves the configuration for cmd from file, environment and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewViper()

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	path, _ := cmd.Flags().GetString("config")
	return config.Load(v, path)
}

// newScheduler builds the renderer and scheduler described by cfg.
func newScheduler(cfg *config.Config, logger *log.Logger) (*scheduler.Scheduler, error) {
	opener, err := renderer.New(cfg.Render, logger)
	if err != nil {
		return nil, err
	}

	opts := scheduler.Options{
		Logger:            logger,
		RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
	}
	if cfg.Robots.Respect {
		checker := robots.NewChecker(cfg.Robots, nil, logger)
		opts.LinkFilter = checker
		opts.DelayAdvisor = checker
	}

	return scheduler.New(opener, opts), nil
}

func newLogger(cfg *config.Config) *log.Logger {
	return logging.New(cfg.Log)
}
