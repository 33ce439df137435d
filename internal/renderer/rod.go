package renderer

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/phuslu/log"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/logging"
	"github.com/spider-crawler/sitecrawl/internal/model"
)

// RodOpener launches headless Chrome through go-rod.
type RodOpener struct {
	cfg    config.RenderConfig
	logger *log.Logger
}

// NewRodOpener creates an opener for the rod engine.
func NewRodOpener(cfg config.RenderConfig, logger *log.Logger) *RodOpener {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RodOpener{cfg: cfg, logger: logger}
}

// Open launches a browser process and creates its single page.
func (o *RodOpener) Open(ctx context.Context) (Session, error) {
	l := launcher.New().Context(ctx).Headless(o.cfg.Headless).NoSandbox(true)
	for _, name := range browserFlags {
		l = l.Set(flags.Flag(name))
	}
	if o.cfg.ExecPath != "" {
		l = l.Bin(o.cfg.ExecPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, pageError(ErrSessionUnavailable, "rod", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, pageError(ErrSessionUnavailable, "rod", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err == nil && o.cfg.UserAgent != "" {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: o.cfg.UserAgent})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, pageError(ErrSessionUnavailable, "rod", err)
	}

	s := &rodSession{
		cfg:      o.cfg,
		logger:   o.logger,
		launcher: l,
		browser:  browser,
		page:     page,
	}

	go page.EachEvent(func(e *proto.RuntimeExceptionThrown) {
		if e.ExceptionDetails != nil {
			s.logger.Debug().Str("engine", "rod").Str("error", e.ExceptionDetails.Text).Msg("page javascript error")
		}
	})()

	return s, nil
}

type rodSession struct {
	cfg    config.RenderConfig
	logger *log.Logger

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closed atomic.Bool
}

func (s *rodSession) NavigateAndExtract(ctx context.Context, url string) (*model.PageRecord, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	p := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	defer p.CancelTimeout()

	var doc *proto.NetworkResponse
	wait := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			doc = e.Response
			return true
		}
		return false
	})

	if err := p.Navigate(url); err != nil {
		return nil, s.classify(ctx, url, err, ErrNavigationFailed)
	}
	wait()

	if doc == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pageError(ErrNavigationFailed, url, errors.New("no document response"))
	}
	if doc.Status < 200 || doc.Status >= 300 {
		return nil, &HTTPError{URL: url, Status: doc.Status, StatusText: doc.StatusText}
	}

	ready := p.Timeout(s.cfg.ContentReadyTimeout)
	defer ready.CancelTimeout()
	if _, err := ready.Element("body"); err != nil {
		return nil, s.classify(ctx, url, err, ErrNavigationFailed)
	}

	obj, err := p.Eval(extractFunction)
	if err != nil {
		return nil, s.classify(ctx, url, err, ErrExtraction)
	}

	var raw rawPage
	if err := obj.Value.Unmarshal(&raw); err != nil {
		return nil, pageError(ErrExtraction, url, err)
	}

	return raw.record(), nil
}

func (s *rodSession) classify(ctx context.Context, url string, err, kind error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pageError(ErrNavigationTimeout, url, err)
	}
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return pageError(ErrNavigationFailed, url, err)
	}
	return pageError(kind, url, err)
}

func (s *rodSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}
