package renderer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/phuslu/log"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/fetcher"
	"github.com/spider-crawler/sitecrawl/internal/logging"
	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/parser"
)

// HTTPOpener renders pages with a plain HTTP fetch and static HTML parsing.
// Scripts are not executed.
type HTTPOpener struct {
	cfg    config.RenderConfig
	logger *log.Logger
}

// NewHTTPOpener creates an opener for the http engine.
func NewHTTPOpener(cfg config.RenderConfig, logger *log.Logger) *HTTPOpener {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPOpener{cfg: cfg, logger: logger}
}

func (o *HTTPOpener) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpSession{
		cfg:    o.cfg,
		logger: o.logger,
		fetcher: fetcher.New(fetcher.Options{
			UserAgent:   o.cfg.UserAgent,
			MaxBodySize: o.cfg.MaxBodySize,
		}),
	}, nil
}

type httpSession struct {
	cfg     config.RenderConfig
	logger  *log.Logger
	fetcher *fetcher.Fetcher
	closed  atomic.Bool
}

func (s *httpSession) NavigateAndExtract(ctx context.Context, url string) (*model.PageRecord, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	fetchCtx := ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}

	resp := s.fetcher.Fetch(fetchCtx, url)
	if resp.Error != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if resp.Timeout {
			return nil, pageError(ErrNavigationTimeout, url, resp.Error)
		}
		return nil, pageError(ErrNavigationFailed, url, resp.Error)
	}

	if !resp.IsSuccess() {
		return nil, &HTTPError{URL: url, Status: resp.StatusCode, StatusText: resp.StatusText()}
	}
	if !resp.IsHTML() {
		return nil, pageError(ErrExtraction, url, fmt.Errorf("unsupported content type %q", resp.ContentType))
	}

	s.logger.Debug().Str("engine", "http").Str("url", resp.FinalURL).Int("redirects", len(resp.RedirectChain)).Dur("response_time", resp.ResponseTime).Msg("page fetched")

	record, err := parser.ParseHTML(resp.FinalURL, resp.RawContentType, resp.Body)
	if err != nil {
		return nil, pageError(ErrExtraction, url, err)
	}
	return record, nil
}

func (s *httpSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}
	s.fetcher.Close()
	return nil
}
