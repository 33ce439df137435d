// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl renders pages in a headless browser and crawls a site
// breadth-first, extracting titles, headings, paragraphs, links and images.
//
// Usage:
//
//	sitecrawl scrape <url>
//	sitecrawl crawl <url> --max-pages 20
//	sitecrawl serve --addr :8080
//
// See --help for all available options.
package main

func main() {
	Execute()
}
