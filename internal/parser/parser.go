// Package parser extracts page records from static HTML for the http renderer.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/urlutil"
)

// Parser parses HTML content the way a browser exposes it to scripts:
// hrefs and image sources resolve against the document base URL.
type Parser struct {
	pageURL string
	baseURL string
}

// NewParser creates a new HTML parser for the document at pageURL.
func NewParser(pageURL string) (*Parser, error) {
	if _, err := url.Parse(pageURL); err != nil {
		return nil, err
	}
	return &Parser{pageURL: pageURL, baseURL: pageURL}, nil
}

// Parse decodes content using the charset from contentType (or the document's
// meta declaration) and extracts a page record.
func (p *Parser) Parse(content []byte, contentType string) (*model.PageRecord, error) {
	r, err := charset.NewReader(bytes.NewReader(content), contentType)
	if err != nil {
		return nil, fmt.Errorf("charset decode: %w", err)
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("html parse: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if base, err := urlutil.ResolveURL(p.baseURL, href); err == nil {
			p.baseURL = base
		}
	}

	record := &model.PageRecord{
		Title:           collapseSpace(doc.Find("title").First().Text()),
		URL:             p.pageURL,
		Headings:        make([]model.Heading, 0),
		Paragraphs:      make([]string, 0),
		Links:           make([]model.Link, 0),
		MetaDescription: doc.Find(`meta[name="description"]`).First().AttrOr("content", ""),
		Images:          make([]model.Image, 0),
	}

	p.traverse(root, record)
	return record, nil
}

// traverse walks the tree in document order.
func (p *Parser) traverse(n *html.Node, record *model.PageRecord) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3":
			record.Headings = append(record.Headings, model.Heading{
				Level: int(n.Data[1] - '0'),
				Text:  strings.TrimSpace(getTextContent(n)),
			})

		case "p":
			if text := strings.TrimSpace(getTextContent(n)); text != "" {
				record.Paragraphs = append(record.Paragraphs, text)
			}

		case "a":
			href, ok := getAttr(n, "href")
			if !ok {
				break
			}
			link := model.Link{
				Text: strings.TrimSpace(getTextContent(n)),
				Href: p.resolveURL(href),
			}
			if link.Text != "" && link.Href != "" {
				record.Links = append(record.Links, link)
			}

		case "img":
			img := model.Image{}
			if src, ok := getAttr(n, "src"); ok {
				img.Src = p.resolveURL(src)
			}
			img.Alt, _ = getAttr(n, "alt")
			record.Images = append(record.Images, img)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.traverse(c, record)
	}
}

// resolveURL resolves href against the base URL. Unparseable values are
// returned as written.
func (p *Parser) resolveURL(href string) string {
	resolved, err := urlutil.ResolveURL(p.baseURL, href)
	if err != nil {
		return strings.TrimSpace(href)
	}
	return resolved
}

// Helper functions

func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func getTextContent(n *html.Node) string {
	var buf bytes.Buffer
	collectText(n, &buf)
	return buf.String()
}

func collectText(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseHTML is a convenience function to parse HTML from bytes.
func ParseHTML(pageURL, contentType string, content []byte) (*model.PageRecord, error) {
	parser, err := NewParser(pageURL)
	if err != nil {
		return nil, err
	}
	return parser.Parse(content, contentType)
}
