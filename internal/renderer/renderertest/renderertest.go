// Package renderertest provides a scripted in-memory renderer for tests.
package renderertest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/renderer"
)

// Response is one scripted result of rendering a URL.
type Response struct {
	Record *model.PageRecord
	Err    error
}

// Opener is a renderer.Opener serving scripted pages. URLs without a script
// render as HTTP 404. When a URL has several responses they are consumed in
// order and the last one repeats.
type Opener struct {
	// OpenErr, if set, is returned by Open.
	OpenErr error

	// OnNavigate, if set, runs at the start of every render call.
	OnNavigate func(ctx context.Context, url string)

	mu     sync.Mutex
	pages  map[string][]Response
	calls  []string
	opens  int
	closes int
}

// NewOpener creates an empty scripted opener.
func NewOpener() *Opener {
	return &Opener{pages: make(map[string][]Response)}
}

// AddPage scripts url to render successfully with one link per href.
func (o *Opener) AddPage(url string, hrefs ...string) {
	rec := Page(url, hrefs...)
	o.AddResponses(url, Response{Record: rec})
}

// AddResponses scripts the results for url.
func (o *Opener) AddResponses(url string, responses ...Response) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pages[url] = append(o.pages[url], responses...)
}

// Fail scripts url to always fail with err.
func (o *Opener) Fail(url string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pages[url] = []Response{{Err: err}}
}

// Open returns a new session.
func (o *Opener) Open(ctx context.Context) (renderer.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.opens++
	return &session{opener: o}, nil
}

// Calls returns the URLs rendered so far, in order.
func (o *Opener) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

// CallCount returns how many times url was rendered.
func (o *Opener) CallCount(url string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, c := range o.calls {
		if c == url {
			n++
		}
	}
	return n
}

// Opens returns the number of sessions opened.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// Closes returns the number of successful session closes.
func (o *Opener) Closes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closes
}

func (o *Opener) next(url string) Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls = append(o.calls, url)
	script, ok := o.pages[url]
	if !ok || len(script) == 0 {
		return Response{Err: &renderer.HTTPError{URL: url, Status: http.StatusNotFound, StatusText: "Not Found"}}
	}
	if len(script) > 1 {
		o.pages[url] = script[1:]
	}
	return script[0]
}

type session struct {
	opener *Opener
	closed bool
}

func (s *session) NavigateAndExtract(ctx context.Context, url string) (*model.PageRecord, error) {
	if s.closed {
		return nil, renderer.ErrSessionClosed
	}
	if hook := s.opener.OnNavigate; hook != nil {
		hook(ctx, url)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := s.opener.next(url)
	if resp.Err != nil {
		return nil, resp.Err
	}
	rec := *resp.Record
	return &rec, nil
}

func (s *session) Close() error {
	if s.closed {
		return renderer.ErrSessionClosed
	}
	s.closed = true

	s.opener.mu.Lock()
	s.opener.closes++
	s.opener.mu.Unlock()
	return nil
}

// Page builds a record for url with a heading, a paragraph and one link per href.
func Page(url string, hrefs ...string) *model.PageRecord {
	rec := &model.PageRecord{
		Title:      "Page " + url,
		URL:        url,
		Headings:   []model.Heading{{Level: 1, Text: url}},
		Paragraphs: []string{"Content of " + url},
		Links:      make([]model.Link, 0, len(hrefs)),
		Images:     []model.Image{},
	}
	for i, href := range hrefs {
		rec.Links = append(rec.Links, model.Link{Text: fmt.Sprintf("link %d", i+1), Href: href})
	}
	return rec
}
