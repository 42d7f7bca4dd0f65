// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htmlq

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrInvalidSelector is returned for selectors cascadia cannot parse.
var ErrInvalidSelector = errors.New("htmlq: invalid selector")

// Selector is a compiled CSS selector group.
type Selector struct {
	raw   string
	group cascadia.SelectorGroup
}

func (s *Selector) String() string { return s.raw }

// Match reports whether n itself matches.
func (s *Selector) Match(n *html.Node) bool { return s.group.Match(n) }

// Compile parses a CSS selector group.
func Compile(sel string) (*Selector, error) {
	raw := strings.TrimSpace(sel)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSelector)
	}
	group, err := cascadia.ParseGroup(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, sel, err)
	}
	return &Selector{raw: raw, group: group}, nil
}

// MustCompile is Compile that panics on error. Intended for package-level selectors.
func MustCompile(sel string) *Selector {
	s, err := Compile(sel)
	if err != nil {
		panic(err)
	}
	return s
}
