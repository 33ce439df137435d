// Package renderer drives a page renderer (headless Chrome or plain HTTP) and
// extracts a structured record from each rendered page.
package renderer

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/model"
)

// Errors reported by renderer sessions.
var (
	ErrSessionUnavailable = errors.New("renderer session unavailable")
	ErrSessionClosed      = errors.New("renderer session closed")
	ErrSessionLost        = errors.New("renderer session lost")

	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrNavigationFailed  = errors.New("navigation failed")
	ErrExtraction        = errors.New("extraction failed")
)

// HTTPError is returned when the main document responds with a non-2xx status.
type HTTPError struct {
	URL        string
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.StatusText, e.URL)
}

// IsPageError reports whether err is a per-page failure that may succeed on a
// later attempt. Any other error from a session is fatal for the run.
func IsPageError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) ||
		errors.Is(err, ErrNavigationTimeout) ||
		errors.Is(err, ErrNavigationFailed) ||
		errors.Is(err, ErrExtraction)
}

// Opener starts renderer sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// Session is an exclusively owned renderer instance. A session renders one page
// at a time and must be closed exactly once.
type Session interface {
	// NavigateAndExtract loads url, waits for the body to be ready and
	// returns the extracted page record.
	NavigateAndExtract(ctx context.Context, url string) (*model.PageRecord, error)

	// Close releases the renderer. Closing twice returns ErrSessionClosed.
	Close() error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Session, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}

// New returns an Opener for the configured engine.
func New(cfg config.RenderConfig, logger *log.Logger) (Opener, error) {
	switch cfg.Engine {
	case config.EngineChromedp, "":
		return NewChromeOpener(cfg, logger), nil
	case config.EngineRod:
		return NewRodOpener(cfg, logger), nil
	case config.EngineHTTP:
		return NewHTTPOpener(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown render engine %q", cfg.Engine)
	}
}

func pageError(kind error, url string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, url)
	}
	return fmt.Errorf("%w: %s: %v", kind, url, cause)
}

// browserFlags are the Chrome switches shared by the browser engines.
var browserFlags = []string{
	"no-sandbox",
	"disable-setuid-sandbox",
	"disable-dev-shm-usage",
	"disable-gpu",
	"disable-extensions",
	"disable-background-networking",
	"disable-sync",
	"mute-audio",
}
