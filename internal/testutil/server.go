// Package testutil provides a configurable fixture site for renderer, crawler
// and service tests.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// TestServer provides a configurable test HTTP server.
type TestServer struct {
	Server    *httptest.Server
	mu        sync.RWMutex
	pages     map[string]*TestPage
	delays    map[string]time.Duration
	errors    map[string]int // path -> status code
	failFirst map[string]int // path -> remaining 503 responses
	hits      map[string]int
	redirects map[string]string
}

// TestPage represents a test page.
type TestPage struct {
	Content     string
	ContentType string
	StatusCode  int
}

// NewTestServer creates a new test server.
func NewTestServer() *TestServer {
	ts := &TestServer{}
	ts.reset()
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handler))
	return ts
}

func (ts *TestServer) handler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	ts.mu.Lock()
	ts.hits[path]++
	delay := ts.delays[path]
	errorCode := ts.errors[path]
	redirect := ts.redirects[path]
	page := ts.pages[path]
	transient := ts.failFirst[path] > 0
	if transient {
		ts.failFirst[path]--
	}
	ts.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusMovedPermanently)
		return
	}

	if transient {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if errorCode > 0 {
		w.WriteHeader(errorCode)
		return
	}

	if page != nil {
		w.Header().Set("Content-Type", page.ContentType)
		if page.StatusCode > 0 {
			w.WriteHeader(page.StatusCode)
		}
		_, _ = io.WriteString(w, page.Content)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

// AddPage adds an HTML page.
func (ts *TestServer) AddPage(path, content string) {
	ts.AddPageWithType(path, content, "text/html; charset=utf-8")
}

// AddPageWithType adds a page with specific content type.
func (ts *TestServer) AddPageWithType(path, content, contentType string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.pages[path] = &TestPage{
		Content:     content,
		ContentType: contentType,
		StatusCode:  http.StatusOK,
	}
}

// SetDelay sets response delay for a path.
func (ts *TestServer) SetDelay(path string, delay time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.delays[path] = delay
}

// SetError makes path always respond with statusCode.
func (ts *TestServer) SetError(path string, statusCode int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.errors[path] = statusCode
}

// FailFirst makes the next n requests for path respond 503.
func (ts *TestServer) FailFirst(path string, n int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.failFirst[path] = n
}

// SetRedirect sets redirect for a path.
func (ts *TestServer) SetRedirect(from, to string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.redirects[from] = to
}

// GetHits returns hit count for a path.
func (ts *TestServer) GetHits(path string) int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.hits[path]
}

// GetAllHits returns all hit counts.
func (ts *TestServer) GetAllHits() map[string]int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	result := make(map[string]int, len(ts.hits))
	for k, v := range ts.hits {
		result[k] = v
	}
	return result
}

// URL returns the server URL.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// Close closes the test server.
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// Reset clears all state.
func (ts *TestServer) Reset() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.reset()
}

func (ts *TestServer) reset() {
	ts.pages = make(map[string]*TestPage)
	ts.delays = make(map[string]time.Duration)
	ts.errors = make(map[string]int)
	ts.failFirst = make(map[string]int)
	ts.hits = make(map[string]int)
	ts.redirects = make(map[string]string)
}

// BuildTestSite creates a small site. Breadth-first from "/" the pages are
// /, /about, /products, /blog, /contact, /products/1..3, /blog/post-1, /blog/post-2.
func (ts *TestServer) BuildTestSite() {
	ts.AddPage("/", NewHTMLBuilder().
		Title("Test Site Home").
		MetaDescription("This is the test site home page").
		H1("Welcome to Test Site").
		Paragraph("Start here.").
		Link("/about", "About").
		Link("/products", "Products").
		Link("/blog#latest", "Blog").
		Link("/contact", "Contact").
		Link("https://external.example.org/", "Elsewhere").
		Link("mailto:team@example.com", "Mail us").
		Build())

	ts.AddPage("/about", NewHTMLBuilder().
		Title("About Us").
		MetaDescription("About our company").
		H1("About Us").
		Paragraph("We are a test company.").
		Link("/", "Home").
		Build())

	products := NewHTMLBuilder().Title("Our Products").H1("Products")
	for i := 1; i <= 3; i++ {
		products.Link(fmt.Sprintf("/products/%d", i), fmt.Sprintf("Product %d", i))
	}
	ts.AddPage("/products", products.Build())

	for i := 1; i <= 3; i++ {
		ts.AddPage(fmt.Sprintf("/products/%d", i), NewHTMLBuilder().
			Title(fmt.Sprintf("Product %d", i)).
			H1(fmt.Sprintf("Product %d", i)).
			Paragraph(fmt.Sprintf("Description of product %d", i)).
			Img(fmt.Sprintf("/images/product%d.jpg", i), fmt.Sprintf("Product %d image", i)).
			Link("/products", "Back to Products").
			Build())
	}

	ts.AddPage("/blog", NewHTMLBuilder().
		Title("Blog").
		H1("Blog").
		H2("Recent posts").
		Link("/blog/post-1", "First Post").
		Link("/blog/post-2", "Second Post").
		Build())

	for i := 1; i <= 2; i++ {
		ts.AddPage(fmt.Sprintf("/blog/post-%d", i), NewHTMLBuilder().
			Title(fmt.Sprintf("Post %d", i)).
			H1(fmt.Sprintf("Post %d", i)).
			Paragraph("Lorem ipsum.").
			Link("/blog", "Blog").
			Build())
	}

	ts.AddPage("/contact", NewHTMLBuilder().
		Title("Contact Us").
		H1("Contact").
		Paragraph("Email: test@example.com").
		Build())

	ts.AddPageWithType("/robots.txt", "User-agent: *\nDisallow: /private/\n", "text/plain")
}

// HTMLBuilder helps build test HTML content.
type HTMLBuilder struct {
	title      string
	metaDesc   string
	headings   []string
	paragraphs []string
	links      []Link
	images     []Image
}

// Link represents a link for testing.
type Link struct {
	Href string
	Text string
}

// Image represents an image for testing.
type Image struct {
	Src string
	Alt string
}

// NewHTMLBuilder creates a new HTML builder.
func NewHTMLBuilder() *HTMLBuilder {
	return &HTMLBuilder{}
}

// Title sets the page title.
func (b *HTMLBuilder) Title(title string) *HTMLBuilder {
	b.title = title
	return b
}

// MetaDescription sets the meta description.
func (b *HTMLBuilder) MetaDescription(desc string) *HTMLBuilder {
	b.metaDesc = desc
	return b
}

// H1 adds an h1 heading.
func (b *HTMLBuilder) H1(text string) *HTMLBuilder {
	b.headings = append(b.headings, fmt.Sprintf("<h1>%s</h1>", text))
	return b
}

// H2 adds an h2 heading.
func (b *HTMLBuilder) H2(text string) *HTMLBuilder {
	b.headings = append(b.headings, fmt.Sprintf("<h2>%s</h2>", text))
	return b
}

// Paragraph adds a paragraph.
func (b *HTMLBuilder) Paragraph(text string) *HTMLBuilder {
	b.paragraphs = append(b.paragraphs, text)
	return b
}

// Link adds a link.
func (b *HTMLBuilder) Link(href, text string) *HTMLBuilder {
	b.links = append(b.links, Link{Href: href, Text: text})
	return b
}

// Img adds an image.
func (b *HTMLBuilder) Img(src, alt string) *HTMLBuilder {
	b.images = append(b.images, Image{Src: src, Alt: alt})
	return b
}

// Build generates the HTML.
func (b *HTMLBuilder) Build() string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	if b.title != "" {
		fmt.Fprintf(&sb, "  <title>%s</title>\n", b.title)
	}
	if b.metaDesc != "" {
		fmt.Fprintf(&sb, "  <meta name=\"description\" content=\"%s\">\n", b.metaDesc)
	}
	sb.WriteString("</head>\n<body>\n")

	for _, h := range b.headings {
		fmt.Fprintf(&sb, "  %s\n", h)
	}
	for _, p := range b.paragraphs {
		fmt.Fprintf(&sb, "  <p>%s</p>\n", p)
	}
	for _, link := range b.links {
		fmt.Fprintf(&sb, "  <a href=\"%s\">%s</a>\n", link.Href, link.Text)
	}
	for _, img := range b.images {
		fmt.Fprintf(&sb, "  <img src=\"%s\" alt=\"%s\">\n", img.Src, img.Alt)
	}

	sb.WriteString("</body>\n</html>")
	return sb.String()
}
