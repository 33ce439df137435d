package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultMaxRedirects = 10
	DefaultMaxBodySize  = 10 * 1024 * 1024
)

// Options configures a Fetcher.
type Options struct {
	UserAgent    string
	MaxRedirects int
	MaxBodySize  int64
}

// Fetcher handles HTTP requests with redirect tracking.
type Fetcher struct {
	client      *http.Client
	transport   *http.Transport
	userAgent   string
	maxRedirect int
	maxBodySize int64
}

// New creates a new HTTP fetcher. Request deadlines come from the caller's context.
func New(opts Options) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// gzip is negotiated and decoded in readBody
		DisableCompression: true,
	}

	f := &Fetcher{
		transport:   transport,
		userAgent:   opts.UserAgent,
		maxRedirect: opts.MaxRedirects,
		maxBodySize: opts.MaxBodySize,
	}
	if f.maxRedirect <= 0 {
		f.maxRedirect = DefaultMaxRedirects
	}
	if f.maxBodySize <= 0 {
		f.maxBodySize = DefaultMaxBodySize
	}

	f.client = &http.Client{
		Transport: transport,
		// Redirects are followed manually to record the chain
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return f
}

// Fetch fetches a URL, following redirects, and returns the final response.
// Failures are reported on Response.Error rather than as a second return value.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *Response {
	startTime := time.Now()
	response := &Response{
		RequestURL:    rawURL,
		RedirectChain: make([]RedirectHop, 0),
	}

	currentURL := rawURL
	for i := 0; i <= f.maxRedirect; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, nil)
		if err != nil {
			response.Error = fmt.Errorf("failed to create request: %w", err)
			return response
		}
		f.setRequestHeaders(req)

		resp, err := f.client.Do(req)
		if err != nil {
			response.Error = categorizeError(err)
			response.Timeout = isTimeout(err)
			response.FinalURL = currentURL
			return response
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()

			if location != "" {
				response.RedirectChain = append(response.RedirectChain, RedirectHop{
					URL:        currentURL,
					StatusCode: resp.StatusCode,
					Location:   location,
				})

				redirectURL, err := resolveRedirectURL(currentURL, location)
				if err != nil {
					response.Error = fmt.Errorf("invalid redirect location: %w", err)
					response.FinalURL = currentURL
					response.StatusCode = resp.StatusCode
					return response
				}
				currentURL = redirectURL
				continue
			}
		}

		response.FinalURL = currentURL
		response.StatusCode = resp.StatusCode
		response.Status = resp.Status
		response.Headers = resp.Header
		response.RawContentType = resp.Header.Get("Content-Type")
		response.ContentType = extractContentType(response.RawContentType)

		body, err := f.readBody(resp)
		resp.Body.Close()
		if err != nil {
			response.Error = fmt.Errorf("failed to read body: %w", err)
			response.Timeout = isTimeout(err)
		} else {
			response.Body = body
		}

		response.ResponseTime = time.Since(startTime)
		return response
	}

	response.Error = fmt.Errorf("max redirects (%d) exceeded", f.maxRedirect)
	response.FinalURL = currentURL
	return response
}

// setRequestHeaders sets common request headers.
func (f *Fetcher) setRequestHeaders(req *http.Request) {
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip")
}

// readBody reads the response body with size limit.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode error: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return io.ReadAll(io.LimitReader(reader, f.maxBodySize))
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

// categorizeError prefixes network errors with their kind.
func categorizeError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("timeout: %w", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("DNS error: %w", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("connection failed: %w", err)
	}

	if strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "certificate") {
		return fmt.Errorf("TLS error: %w", err)
	}

	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func resolveRedirectURL(baseURL, location string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(loc).String(), nil
}

func extractContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
