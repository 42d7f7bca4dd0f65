// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ManuGH/zkhbridge/internal/portal/htmlq"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// parseHTML decodes body to UTF-8 and parses it. A forced charset label takes
// precedence over Content-Type and <meta> sniffing.
func (c *Client) parseHTML(op string, resp *response) (*html.Node, error) {
	var r io.Reader = bytes.NewReader(resp.body)
	if c.charset != "" {
		enc, err := htmlindex.Get(c.charset)
		if err != nil {
			return nil, newError(op, ErrBadResponse, resp.status, fmt.Errorf("charset %q: %w", c.charset, err))
		}
		r = enc.NewDecoder().Reader(r)
	} else {
		decoded, err := charset.NewReader(r, resp.header.Get("Content-Type"))
		if err != nil {
			return nil, newError(op, ErrBadResponse, resp.status, err)
		}
		r = decoded
	}

	doc, err := htmlq.Parse(r)
	if err != nil {
		return nil, newError(op, ErrBadResponse, resp.status, err)
	}
	return doc, nil
}
