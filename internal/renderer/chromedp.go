package renderer

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/phuslu/log"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/logging"
	"github.com/spider-crawler/sitecrawl/internal/model"
)

// ChromeOpener launches headless Chrome through chromedp.
type ChromeOpener struct {
	cfg    config.RenderConfig
	logger *log.Logger
}

// NewChromeOpener creates an opener for the chromedp engine.
func NewChromeOpener(cfg config.RenderConfig, logger *log.Logger) *ChromeOpener {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ChromeOpener{cfg: cfg, logger: logger}
}

// Open starts a browser with one tab. The browser lives until Close, not until ctx ends.
func (o *ChromeOpener) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.cfg.Headless),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.Flag("window-size", "1920,1080"),
	)
	for _, name := range browserFlags {
		opts = append(opts, chromedp.Flag(name, true))
	}
	if o.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.cfg.UserAgent))
	}
	if o.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser; it must use the un-derived browser context.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, pageError(ErrSessionUnavailable, "chromedp", err)
	}

	s := &chromeSession{
		cfg:           o.cfg,
		logger:        o.logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventExceptionThrown); ok && e.ExceptionDetails != nil {
			s.logger.Debug().Str("engine", "chromedp").Str("error", e.ExceptionDetails.Text).Msg("page javascript error")
		}
	})

	return s, nil
}

type chromeSession struct {
	cfg    config.RenderConfig
	logger *log.Logger

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	closed atomic.Bool
}

func (s *chromeSession) NavigateAndExtract(ctx context.Context, url string) (*model.PageRecord, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if err := s.browserCtx.Err(); err != nil {
		return nil, pageError(ErrSessionLost, url, err)
	}

	navCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, s.classify(ctx, url, err, ErrNavigationFailed)
	}
	if resp == nil {
		return nil, pageError(ErrNavigationFailed, url, errors.New("no document response"))
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, &HTTPError{URL: url, Status: int(resp.Status), StatusText: resp.StatusText}
	}

	waitCtx, waitCancel := context.WithTimeout(navCtx, s.cfg.ContentReadyTimeout)
	defer waitCancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return nil, s.classify(ctx, url, err, ErrNavigationFailed)
	}

	var raw rawPage
	if err := chromedp.Run(navCtx, chromedp.Evaluate(extractExpression, &raw)); err != nil {
		return nil, s.classify(ctx, url, err, ErrExtraction)
	}

	return raw.record(), nil
}

// classify maps a chromedp error to the renderer taxonomy. Cancellation of the
// caller's context and loss of the browser are fatal; everything else is a page error.
func (s *chromeSession) classify(ctx context.Context, url string, err, kind error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.browserCtx.Err() != nil {
		return pageError(ErrSessionLost, url, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pageError(ErrNavigationTimeout, url, err)
	}
	return pageError(kind, url, err)
}

func (s *chromeSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}
	err := chromedp.Cancel(s.browserCtx)
	s.browserCancel()
	s.allocCancel()
	return err
}
