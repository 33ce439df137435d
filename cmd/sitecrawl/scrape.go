package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spider-crawler/sitecrawl/internal/report"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Render one page and print its extracted content as JSON",
		Long: `Scrape renders a single page, with one attempt and no link following,
and writes the extracted page record to stdout as JSON.

Examples:
  sitecrawl scrape https://example.com
  sitecrawl scrape --engine http https://example.com/about`,
		Args: cobra.ExactArgs(1),
		RunE: runScrapeCmd,
	}

	addRenderFlags(cmd.Flags())

	return cmd
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := newScheduler(cfg, logger)
	if err != nil {
		return err
	}

	record, err := sched.ScrapePage(ctx, args[0])
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	return report.WriteJSON(cmd.OutOrStdout(), record)
}
