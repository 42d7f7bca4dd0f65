// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package htmlq extracts values from HTML documents with CSS selectors.
package htmlq

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Parse reads an HTML document. The reader must yield UTF-8.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmlq: parse: %w", err)
	}
	return doc, nil
}

// SelectAll returns every descendant of root matching sel, in document order.
func SelectAll(root *html.Node, sel *Selector) []*html.Node {
	if root == nil || sel == nil {
		return nil
	}
	return cascadia.QueryAll(root, sel)
}

// SelectOne returns the first matching descendant or nil.
func SelectOne(root *html.Node, sel *Selector) *html.Node {
	if root == nil || sel == nil {
		return nil
	}
	return cascadia.Query(root, sel)
}

// Text concatenates every stripped, non-empty text node below n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(node.Data))
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Attr returns the attribute value of n and whether it was present.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	return attr(n, strings.ToLower(key))
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// OuterHTML renders n including its own tag.
func OuterHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// CellText returns the space-joined direct text of a table cell, falling back
// to the full stripped text when the cell only holds nested elements.
func CellText(cell *html.Node) string {
	if cell == nil {
		return ""
	}
	var parts []string
	for c := cell.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if t := strings.TrimSpace(c.Data); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return Text(cell)
}

func isCell(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th")
}

// TableRows selects rows with sel and returns the text of their td/th cells.
// It returns nil when nothing matches.
func TableRows(doc *html.Node, sel *Selector) [][]string {
	rows := SelectAll(doc, sel)
	if len(rows) == 0 {
		return nil
	}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		var cells []string
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if isCell(c) {
					cells = append(cells, CellText(c))
				}
				walk(c)
			}
		}
		walk(row)
		out = append(out, cells)
	}
	return out
}
