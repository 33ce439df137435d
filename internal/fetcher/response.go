// Package fetcher handles HTTP fetching with redirect tracking for the static renderer.
package fetcher

import (
	"net/http"
	"strings"
	"time"
)

// Response represents the result of fetching a URL.
type Response struct {
	// Original requested URL
	RequestURL string

	// Final URL after redirects
	FinalURL string

	StatusCode int

	// Status line text (e.g. "404 Not Found")
	Status string

	Headers http.Header

	// Media type without parameters
	ContentType string

	// Raw Content-Type header, used for charset detection
	RawContentType string

	Body []byte

	RedirectChain []RedirectHop

	ResponseTime time.Duration

	// Error if the request failed before a final response was read
	Error error

	// Error was caused by a deadline or network timeout
	Timeout bool
}

// RedirectHop represents a single redirect in the chain.
type RedirectHop struct {
	URL        string
	StatusCode int
	Location   string
}

// IsSuccess returns true if the response was successful (2xx).
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// HasRedirects returns true if there were any redirects.
func (r *Response) HasRedirects() bool {
	return len(r.RedirectChain) > 0
}

// StatusText returns the reason phrase of the status line.
func (r *Response) StatusText() string {
	if _, text, ok := strings.Cut(r.Status, " "); ok {
		return text
	}
	return http.StatusText(r.StatusCode)
}

// IsHTML returns true if the content type is HTML or XHTML.
// A missing Content-Type is treated as HTML, as browsers sniff it.
func (r *Response) IsHTML() bool {
	switch r.ContentType {
	case "", "text/html", "application/xhtml+xml":
		return true
	}
	return false
}
