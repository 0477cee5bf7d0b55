package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup and collapses whitespace.
func PlainText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || !strings.ContainsAny(fragment, "<&") {
		return collapseSpaces(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpaces(fragment)
	}
	return collapseSpaces(doc.Text())
}

// MainContent extracts visible text of a page, skipping scripts and page chrome.
func MainContent(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, header, footer, nav, aside").Remove()

	var parts []string
	collectText(doc.Find("body"), &parts)
	return strings.Join(parts, " "), nil
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			if text := collapseSpaces(child.Text()); text != "" {
				*parts = append(*parts, text)
			}
			return
		}
		collectText(child, parts)
	})
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLExtractor exposes MainContent together with the page headline.
type HTMLExtractor struct{}

// Extract returns the first h1 (or the document title) and the main text.
func (HTMLExtractor) Extract(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}
	title := collapseSpaces(doc.Find("h1").First().Text())
	if title == "" {
		title = collapseSpaces(doc.Find("title").First().Text())
	}
	body, err := MainContent(html)
	if err != nil {
		return "", "", err
	}
	return title, body, nil
}
