// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htmlq

import (
	"fmt"

	"golang.org/x/net/html"
)

// Attribute names with special meaning in a Rule.
const (
	AttrText = "text"
	AttrHTML = "html"
)

// Rule describes a declarative extraction. Attribute defaults to AttrText.
// With Children set, each match yields a map of child results instead of a string.
type Rule struct {
	Selector  string          `json:"selector" yaml:"selector"`
	Attribute string          `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Multiple  bool            `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Children  map[string]Rule `json:"children,omitempty" yaml:"children,omitempty"`
}

// Extract applies rule below node. The result is one of:
// nil (no match, or a missing attribute), string, map[string]any,
// []string or []map[string]any (Multiple).
func Extract(node *html.Node, rule Rule) (any, error) {
	if rule.Selector == "" {
		return nil, nil
	}
	sel, err := Compile(rule.Selector)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", rule.Selector, err)
	}

	if rule.Multiple {
		matches := SelectAll(node, sel)
		if len(rule.Children) > 0 {
			out := make([]map[string]any, 0, len(matches))
			for _, m := range matches {
				child, err := extractChildren(m, rule.Children)
				if err != nil {
					return nil, err
				}
				out = append(out, child)
			}
			return out, nil
		}
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			if v, ok := attributeValue(m, rule.Attribute); ok {
				out = append(out, v)
			}
		}
		return out, nil
	}

	m := SelectOne(node, sel)
	if m == nil {
		return nil, nil
	}
	if len(rule.Children) > 0 {
		return extractChildren(m, rule.Children)
	}
	if v, ok := attributeValue(m, rule.Attribute); ok {
		return v, nil
	}
	return nil, nil
}

func extractChildren(n *html.Node, children map[string]Rule) (map[string]any, error) {
	out := make(map[string]any, len(children))
	for key, child := range children {
		v, err := Extract(n, child)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func attributeValue(n *html.Node, attribute string) (string, bool) {
	switch attribute {
	case "", AttrText:
		return Text(n), true
	case AttrHTML:
		return OuterHTML(n), true
	default:
		return Attr(n, attribute)
	}
}
