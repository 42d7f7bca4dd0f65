// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/portal/htmlq"
)

var (
	loginTokenSelector = htmlq.MustCompile(selLoginToken)
	loginFormSelector  = htmlq.MustCompile(selLoginForm)
	meterRowsSelector  = htmlq.MustCompile(selMeterRows)
	tariffRowsSelector = htmlq.MustCompile(selTariffRows)
)

// Preflight opens the login page, capturing the session cookie and the
// anti-CSRF form token. Both are stored on the client.
func (c *Client) Preflight(ctx context.Context) (Session, error) {
	resp, err := c.do(ctx, request{
		op:         OpPreflight,
		method:     http.MethodGet,
		page:       pathPreflight,
		idempotent: true,
	})
	if err != nil {
		return Session{}, err
	}
	if resp.status != http.StatusOK {
		return Session{}, newError(OpPreflight, ErrUpstreamStatus, resp.status, nil)
	}

	id := sessionIDFrom(resp.header)
	if id == "" {
		c.logger.Warn().
			Str(zkhlog.FieldEvent, "portal.preflight.no_session").
			Msg("JSESSIONID not found in preflight response")
	}

	doc, err := c.parseHTML(OpPreflight, resp)
	if err != nil {
		return Session{}, err
	}
	input := htmlq.SelectOne(doc, loginTokenSelector)
	token, _ := htmlq.Attr(input, "value")
	if token == "" {
		return Session{}, newError(OpPreflight, ErrBadResponse, resp.status, errors.New("login form token not found"))
	}

	s := Session{ID: id, FormToken: token}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	c.logger.Debug().
		Str(zkhlog.FieldEvent, "portal.preflight.ok").
		Str("session", zkhlog.Redact(id)).
		Str("form_token", zkhlog.Redact(token)).
		Msg("preflight successful")
	return s, nil
}

// Login submits the login form. Preflight must have produced both a session
// id and a form token.
func (c *Client) Login(ctx context.Context) error {
	s := c.Session()
	if s.ID == "" || s.FormToken == "" {
		return newError(OpLogin, ErrNotPrepared, 0, nil)
	}

	form := url.Values{}
	form.Set("struts.token.name", "loginToken")
	form.Set("loginToken", s.FormToken)
	form.Set("userName", c.username)
	form.Set("userPass", c.password)
	form.Set("captchaCode", captchaCode)
	form.Set("timezone", c.timezone)
	form.Set("loginModule", loginModule)

	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Set("Origin", c.base.String())
	h.Set("Referer", c.pageURL(pathPreflight))
	h.Set("Cookie", sessionCookie+"="+s.ID+";")

	resp, err := c.do(ctx, request{
		op:     OpLogin,
		method: http.MethodPost,
		page:   pathLogin,
		header: h,
		body:   []byte(form.Encode()),
	})
	if err != nil {
		return err
	}

	if id := sessionIDFrom(resp.header); id != "" {
		c.mu.Lock()
		c.session.ID = id
		c.mu.Unlock()
		c.logger.Debug().
			Str(zkhlog.FieldEvent, "portal.login.session_updated").
			Str("session", zkhlog.Redact(id)).
			Msg("JSESSIONID updated after login")
	} else {
		c.logger.Warn().
			Str(zkhlog.FieldEvent, "portal.login.no_session").
			Msg("JSESSIONID not found in login response")
	}

	switch resp.status {
	case http.StatusOK, http.StatusFound:
		c.logger.Debug().
			Str(zkhlog.FieldEvent, "portal.login.ok").
			Int(zkhlog.FieldStatus, resp.status).
			Msg("login successful")
		return nil
	default:
		c.logger.Debug().
			Str(zkhlog.FieldEvent, "portal.login.rejected").
			Int(zkhlog.FieldStatus, resp.status).
			Str("body_head", bodyHead(resp.body)).
			Msg("login response")
		return newError(OpLogin, ErrLoginRejected, resp.status, nil)
	}
}

// Meters fetches and parses the counters page.
func (c *Client) Meters(ctx context.Context) (model.MeterReport, error) {
	rows, err := c.fetchRows(ctx, OpMeters, pathMeters, meterRowsSelector)
	if err != nil {
		return model.MeterReport{}, err
	}
	return ParseMeterRows(rows), nil
}

// Tariffs fetches and parses the tariffs page.
func (c *Client) Tariffs(ctx context.Context) (model.TariffReport, error) {
	rows, err := c.fetchRows(ctx, OpTariffs, pathTariffs, tariffRowsSelector)
	if err != nil {
		return model.TariffReport{}, err
	}
	return ParseTariffRows(rows), nil
}

func (c *Client) authCookie(id string) string {
	return strings.Join([]string{
		"userLogin=" + c.username,
		"loginModule=" + loginModule,
		sessionCookie + "=" + id,
	}, "; ") + ";"
}

func (c *Client) fetchRows(ctx context.Context, op, page string, sel *htmlq.Selector) ([][]string, error) {
	s := c.Session()
	if s.ID == "" {
		return nil, newError(op, ErrNotAuthenticated, 0, nil)
	}

	h := http.Header{}
	h.Set("Cookie", c.authCookie(s.ID))
	h.Set("Referer", c.pageURL(pathMain))

	resp, err := c.do(ctx, request{
		op:         op,
		method:     http.MethodGet,
		page:       page,
		header:     h,
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, newError(op, ErrUpstreamStatus, resp.status, nil)
	}

	doc, err := c.parseHTML(op, resp)
	if err != nil {
		return nil, err
	}

	rows := htmlq.TableRows(doc, sel)
	if len(rows) == 0 {
		if htmlq.SelectOne(doc, loginFormSelector) != nil {
			return nil, newError(op, ErrNotAuthenticated, resp.status, errors.New("session expired"))
		}
		c.logger.Warn().
			Str(zkhlog.FieldEvent, "portal."+op+".empty").
			Str(zkhlog.FieldURL, c.pageURL(page)).
			Msg("no table rows found")
		return nil, nil
	}
	return rows, nil
}
