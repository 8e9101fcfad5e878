package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML document.
type Document struct {
	doc *goquery.Document
}

// Parse parses an HTML document from r.
// Malformed markup is repaired the way browsers do; Parse only fails on read errors.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Predicate selects elements.
type Predicate func(*Element) bool

// Any matches every element.
func Any(*Element) bool { return true }

// HasAttr matches elements carrying the attribute.
func HasAttr(name string) Predicate {
	return func(e *Element) bool {
		_, ok := e.Attr(name)
		return ok
	}
}

// AttrEquals matches elements whose attribute equals value, ignoring case.
func AttrEquals(name, value string) Predicate {
	return func(e *Element) bool {
		v, ok := e.Attr(name)
		return ok && strings.EqualFold(strings.TrimSpace(v), value)
	}
}

// AttrHasWord matches elements whose space-separated attribute contains
// word, ignoring case. It mirrors the CSS [attr~=word] selector.
func AttrHasWord(name, word string) Predicate {
	return func(e *Element) bool {
		v, ok := e.Attr(name)
		if !ok {
			return false
		}
		for _, f := range strings.Fields(v) {
			if strings.EqualFold(f, word) {
				return true
			}
		}
		return false
	}
}

// Each calls fn for every element named tag that satisfies pred, in document
// order. The tag "*" matches all elements. A nil pred matches everything.
func (d *Document) Each(tag string, pred Predicate, fn func(*Element)) {
	if tag == "" {
		tag = "*"
	}
	if pred == nil {
		pred = Any
	}
	d.doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		e := &Element{sel: s}
		if pred(e) {
			fn(e)
		}
	})
}

// Render serializes the document.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	for _, n := range d.doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("failed to render HTML: %w", err)
		}
	}
	return buf.String(), nil
}

// Element is one element of a Document.
type Element struct {
	sel *goquery.Selection
}

// Tag returns the lower-case element name.
func (e *Element) Tag() string {
	return goquery.NodeName(e.sel)
}

// Attr returns an attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// AttrOr returns an attribute value or "" when absent.
func (e *Element) AttrOr(name string) string {
	return e.sel.AttrOr(name, "")
}

// SetAttr sets an attribute value.
func (e *Element) SetAttr(name, value string) {
	e.sel.SetAttr(name, value)
}

// Text returns the concatenated text of the element.
func (e *Element) Text() string {
	return e.sel.Text()
}

// SetText replaces the element's children with one text node.
// The text is stored verbatim so raw-text elements such as <style> and
// <script> render it unescaped.
func (e *Element) SetText(text string) {
	for _, n := range e.sel.Nodes {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}
