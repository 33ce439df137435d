// Package urlutil provides URL normalization and scope checks for the crawler.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNotAbsolute is returned for relative or host-less URLs.
	ErrNotAbsolute = errors.New("url is not absolute")

	// ErrUnsupportedScheme is returned for anything other than http and https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// Normalizer classifies discovered links for one crawl run.
type Normalizer struct {
	// StartDomain is the lowercased hostname of the seed URL.
	StartDomain string

	// SameDomainOnly rejects links whose hostname differs from StartDomain.
	SameDomainOnly bool
}

// NewNormalizer creates a normalizer scoped to the seed URL's host.
func NewNormalizer(seedURL string, sameDomainOnly bool) (*Normalizer, error) {
	host, err := ExtractHost(seedURL)
	if err != nil {
		return nil, err
	}
	return &Normalizer{StartDomain: host, SameDomainOnly: sameDomainOnly}, nil
}

// Normalize returns the canonical form of rawHref and whether it is in scope.
func (n *Normalizer) Normalize(rawHref string) (string, bool) {
	return Normalize(rawHref, n.StartDomain, n.SameDomainOnly)
}

// Normalize canonicalizes rawHref and checks it against startDomain.
// Malformed, relative, non-HTTP(S) and (when sameDomainOnly is set) off-host
// links are rejected. Rejection is an expected outcome, not an error.
func Normalize(rawHref, startDomain string, sameDomainOnly bool) (string, bool) {
	u, err := parseAbsolute(rawHref)
	if err != nil {
		return "", false
	}
	if sameDomainOnly && !strings.EqualFold(u.Hostname(), startDomain) {
		return "", false
	}
	return canonical(u), true
}

// Canonicalize returns the canonical form of an absolute http(s) URL:
// scheme://host + path + query, with the fragment removed.
func Canonicalize(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	return canonical(u), nil
}

func parseAbsolute(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotAbsolute, rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	u.Scheme = scheme
	return u, nil
}

func canonical(u *url.URL) string {
	host := strings.ToLower(u.Host)

	// Remove default ports
	if u.Scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else if u.Scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	b.Grow(len(u.Scheme) + len(host) + len(path) + len(u.RawQuery) + 4)
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

// ExtractHost extracts the lowercased hostname (without port) from a URL.
func ExtractHost(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Hostname()), nil
}

// ResolveURL resolves a possibly relative URL against a base URL.
func ResolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}

	return baseURL.ResolveReference(refURL).String(), nil
}
