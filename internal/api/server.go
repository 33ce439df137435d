// Package api exposes the crawler over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/semaphore"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/logging"
	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/urlutil"
)

// ErrBusy is returned when the maximum number of concurrent runs is in progress.
var ErrBusy = errors.New("too many crawls in progress")

// Crawler runs single-page scrapes and site crawls.
type Crawler interface {
	ScrapePage(ctx context.Context, url string) (*model.PageRecord, error)
	Run(ctx context.Context, req model.CrawlRequest) (*model.CrawlResult, error)
}

// Server serves the scrape routes.
type Server struct {
	crawler Crawler
	cfg     *config.Config
	runs    *semaphore.Weighted
	logger  *log.Logger
	mux     *http.ServeMux
}

// NewServer wires handlers onto an HTTP mux.
func NewServer(crawler Crawler, cfg *config.Config, logger *log.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		crawler: crawler,
		cfg:     cfg,
		runs:    semaphore.NewWeighted(int64(cfg.Server.MaxConcurrentRuns)),
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	s.logger.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("duration", time.Since(start)).
		Msg("request")
}

func (s *Server) routes() {
	s.mux.HandleFunc("/test", s.handleTest)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/scrap", s.handleScrape)
	s.mux.HandleFunc("/scrap/detailed", s.handleCrawl)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<h1>sitecrawl is running</h1>"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleScrape renders one page: GET /scrap?url=
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	target, err := s.target(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.runs.TryAcquire(1) {
		writeError(w, http.StatusTooManyRequests, ErrBusy)
		return
	}
	defer s.runs.Release(1)

	record, err := s.crawler.ScrapePage(r.Context(), target)
	if err != nil {
		s.logger.Error().Str("url", target).Err(err).Msg("scrape failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": record})
}

// handleCrawl crawls a site:
// GET /scrap/detailed?url=&maxPages=&delayMs=&sameDomainOnly=&maxRetries=
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	target, err := s.target(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := s.crawlRequest(r, target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.runs.TryAcquire(1) {
		writeError(w, http.StatusTooManyRequests, ErrBusy)
		return
	}
	defer s.runs.Release(1)

	result, err := s.crawler.Run(r.Context(), req)
	if err != nil {
		s.logger.Error().Str("url", target).Err(err).Msg("crawl failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": result})
}

// target returns the canonical url parameter, or the configured default target.
func (s *Server) target(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		raw = s.cfg.Server.DefaultTarget
	}
	if raw == "" {
		return "", errors.New("missing url parameter")
	}
	target, err := urlutil.Canonicalize(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url parameter: %w", err)
	}
	return target, nil
}

func (s *Server) crawlRequest(r *http.Request, target string) (model.CrawlRequest, error) {
	req := s.cfg.CrawlRequest(target)
	q := r.URL.Query()

	if v := q.Get("maxPages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid maxPages: %q", v)
		}
		req.MaxPages = n
	}
	if v := q.Get("delayMs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid delayMs: %q", v)
		}
		req.InterRequestDelay = time.Duration(n) * time.Millisecond
	}
	if v := q.Get("sameDomainOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid sameDomainOnly: %q", v)
		}
		req.SameDomainOnly = b
	}
	if v := q.Get("maxRetries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid maxRetries: %q", v)
		}
		req.MaxRetriesPerURL = n
	}

	return req, req.Validate()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request, methods ...string) {
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
