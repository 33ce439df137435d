// Package model defines the data exchanged between the crawler, the renderers
// and the service boundary.
package model

// Heading is an h1-h3 element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is an anchor with non-empty text and a resolved href.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Image is an img element's resolved src and alt text.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// PageRecord holds the content extracted from one rendered page.
// It is produced once per successfully rendered URL and not modified afterwards.
type PageRecord struct {
	Title string `json:"title"`

	// URL is the location reported by the page after navigation,
	// which may differ from the requested URL after redirects.
	URL string `json:"url"`

	Headings        []Heading `json:"headings"`
	Paragraphs      []string  `json:"paragraphs"`
	Links           []Link    `json:"links"`
	MetaDescription string    `json:"metaDescription"`
	Images          []Image   `json:"images"`
}

// Summary returns the heading, link and paragraph counts used in progress logs.
func (p *PageRecord) Summary() (headings, links, paragraphs int) {
	return len(p.Headings), len(p.Links), len(p.Paragraphs)
}
