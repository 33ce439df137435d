package renderer

import (
	"strings"

	"github.com/spider-crawler/sitecrawl/internal/model"
)

// extractFunction runs in the page after the body is ready. SVG anchors expose
// href as an object, so only string values are kept.
const extractFunction = `() => {
  const text = (el) => (el.textContent || '').trim();
  const href = (a) => (typeof a.href === 'string' ? a.href : '');
  const meta = document.querySelector('meta[name="description"]');
  return {
    title: document.title || '',
    url: window.location.href,
    headings: Array.from(document.querySelectorAll('h1, h2, h3')).map((h) => ({
      tag: h.tagName,
      text: text(h),
    })),
    paragraphs: Array.from(document.querySelectorAll('p')).map(text).filter((t) => t.length > 0),
    links: Array.from(document.querySelectorAll('a'))
      .map((a) => ({ text: text(a), href: href(a) }))
      .filter((l) => l.text && l.href),
    metaDescription: (meta && meta.getAttribute('content')) || '',
    images: Array.from(document.querySelectorAll('img')).map((img) => ({
      src: img.src || '',
      alt: img.alt || '',
    })),
  };
}`

// extractExpression is extractFunction as a self-invoking expression.
var extractExpression = "(" + extractFunction + ")()"

type rawHeading struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// rawPage mirrors the object returned by extractFunction.
type rawPage struct {
	Title           string        `json:"title"`
	URL             string        `json:"url"`
	Headings        []rawHeading  `json:"headings"`
	Paragraphs      []string      `json:"paragraphs"`
	Links           []model.Link  `json:"links"`
	MetaDescription string        `json:"metaDescription"`
	Images          []model.Image `json:"images"`
}

// record converts the raw script result into a PageRecord, dropping entries
// that violate the extraction rules.
func (r *rawPage) record() *model.PageRecord {
	rec := &model.PageRecord{
		Title:           r.Title,
		URL:             r.URL,
		Headings:        make([]model.Heading, 0, len(r.Headings)),
		Paragraphs:      make([]string, 0, len(r.Paragraphs)),
		Links:           make([]model.Link, 0, len(r.Links)),
		MetaDescription: r.MetaDescription,
		Images:          make([]model.Image, 0, len(r.Images)),
	}

	for _, h := range r.Headings {
		level := headingLevel(h.Tag)
		if level == 0 {
			continue
		}
		rec.Headings = append(rec.Headings, model.Heading{Level: level, Text: h.Text})
	}

	for _, p := range r.Paragraphs {
		if p != "" {
			rec.Paragraphs = append(rec.Paragraphs, p)
		}
	}

	for _, l := range r.Links {
		if l.Text != "" && l.Href != "" {
			rec.Links = append(rec.Links, l)
		}
	}

	rec.Images = append(rec.Images, r.Images...)
	return rec
}

// headingLevel maps a tag name such as "H2" to its level, or 0 if it is not h1-h3.
func headingLevel(tag string) int {
	switch strings.ToLower(tag) {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	}
	return 0
}
