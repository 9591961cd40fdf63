package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ElementQuery is the read-only view of a parsed markup node that field
// extraction depends on.
type ElementQuery interface {
	// FindAll returns every descendant matching selector, in document order.
	FindAll(selector string) []ElementQuery
	// First returns the first descendant matching selector.
	First(selector string) (ElementQuery, bool)
	// Text returns the combined text of the node and its descendants.
	Text() string
	// Attr returns the named attribute of the node.
	Attr(name string) (string, bool)
}

// ParseHTML parses raw markup into a queryable document.
func ParseHTML(raw string) (ElementQuery, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return selection{doc.Selection}, nil
}

// selection adapts a goquery selection to ElementQuery.
type selection struct {
	s *goquery.Selection
}

func (e selection) FindAll(selector string) []ElementQuery {
	found := e.s.Find(selector)
	out := make([]ElementQuery, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, selection{s})
	})
	return out
}

func (e selection) First(selector string) (ElementQuery, bool) {
	found := e.s.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return selection{found}, true
}

func (e selection) Text() string {
	return e.s.Text()
}

func (e selection) Attr(name string) (string, bool) {
	return e.s.Attr(name)
}
