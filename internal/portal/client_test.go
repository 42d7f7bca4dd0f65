// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/portal/portaltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:    baseURL,
		Username:   portaltest.Username,
		Password:   portaltest.Password,
		Timeout:    2 * time.Second,
		Backoff:    time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
		RateLimit:  1000,
	})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestNew_DefaultsToPortal(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.base.String())
	assert.Equal(t, DefaultTimezone, c.timezone)
	assert.Equal(t, DefaultBaseURL+"counters.action", c.pageURL(pathMeters))
}

func TestFullFlow(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	c := newTestClient(t, srv.BaseURL())
	ctx := context.Background()

	s, err := c.Preflight(ctx)
	require.NoError(t, err)
	assert.Equal(t, portaltest.PreflightSession, s.ID)
	assert.Equal(t, portaltest.FormToken, s.FormToken)

	require.NoError(t, c.Login(ctx))
	assert.Equal(t, portaltest.AuthSession, c.Session().ID)

	login := srv.LastRequest("doLogin!enter.action")
	assert.Equal(t, "loginToken", login.Form.Get("struts.token.name"))
	assert.Equal(t, portaltest.FormToken, login.Form.Get("loginToken"))
	assert.Equal(t, "x", login.Form.Get("captchaCode"))
	assert.Equal(t, "-420", login.Form.Get("timezone"))
	assert.Equal(t, "lk", login.Form.Get("loginModule"))
	assert.Equal(t, srv.BaseURL(), login.Header.Get("Origin"))
	assert.Equal(t, srv.BaseURL()+"login.action", login.Header.Get("Referer"))
	assert.Equal(t, "JSESSIONID="+portaltest.PreflightSession+";", login.Header.Get("Cookie"))

	meters, err := c.Meters(ctx)
	require.NoError(t, err)
	require.Len(t, meters.Meters, 3)
	assert.Equal(t, "2025-09-25", meters.Date.String())

	cold := meters.Meters["___123456"]
	assert.Equal(t, "Холодная вода №ХВ-123456", cold.Name)
	assert.Equal(t, int64(345), cold.Value)
	assert.Equal(t, "куб.м.", cold.Units)
	assert.Equal(t, "2029-06-01", cold.NextVerificationDate.String())

	power := meters.Meters["__77_01"]
	assert.Equal(t, int64(12045), power.Value)
	assert.False(t, power.NextVerificationDate.IsSet())

	req := srv.LastRequest("counters.action")
	assert.Equal(t, "userLogin="+portaltest.Username+"; loginModule=lk; JSESSIONID="+portaltest.AuthSession+";", req.Header.Get("Cookie"))
	assert.Equal(t, srv.BaseURL()+"main.action", req.Header.Get("Referer"))

	tariffs, err := c.Tariffs(ctx)
	require.NoError(t, err)
	require.Len(t, tariffs.Tariffs, 3)
	heat := tariffs.Tariffs["Отопление"]
	assert.Equal(t, "Gcal", heat.Unit)
	require.NotNil(t, heat.Tariff)
	assert.InDelta(t, 2845.12, *heat.Tariff, 1e-9)
	assert.Nil(t, tariffs.Tariffs["Электроснабжение"].Rate)
}

func TestLogin_RequiresPreflight(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1/room/lk/")
	err := c.Login(context.Background())
	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestLogin_RequiresSessionCookie(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	srv.OmitPreflightCookie(true)
	c := newTestClient(t, srv.BaseURL())

	s, err := c.Preflight(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.ID)
	assert.ErrorIs(t, c.Login(context.Background()), ErrNotPrepared)
}

func TestLogin_Rejected(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	srv.SetCredentials("someone", "else")
	c := newTestClient(t, srv.BaseURL())

	_, err := c.Preflight(context.Background())
	require.NoError(t, err)
	err = c.Login(context.Background())
	require.ErrorIs(t, err, ErrLoginRejected)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusForbidden, perr.Status)
	assert.Equal(t, OpLogin, perr.Op)
	assert.Equal(t, 1, srv.Hits("doLogin!enter.action"), "login is never retried")
}

func TestLogin_ServerErrorIsRejected(t *testing.T) {
	for _, code := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusNotFound} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv := portaltest.NewMockServer()
			defer srv.Close()
			srv.SetStatus("doLogin!enter.action", code)
			c := newTestClient(t, srv.BaseURL())

			_, err := c.Preflight(context.Background())
			require.NoError(t, err)
			err = c.Login(context.Background())
			require.ErrorIs(t, err, ErrLoginRejected)
			assert.NotErrorIs(t, err, ErrUpstreamStatus)

			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, code, perr.Status)
			assert.Equal(t, 1, srv.Hits("doLogin!enter.action"))
		})
	}
}

func TestFetch_RequiresSession(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1/room/lk/")
	_, err := c.Meters(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = c.Tariffs(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestFetch_ExpiredSessionRendersLoginForm(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	c := newTestClient(t, srv.BaseURL())

	_, err := c.Preflight(context.Background())
	require.NoError(t, err)
	// Skipping login leaves the preflight session, which the portal does not accept.
	_, err = c.Meters(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestPreflight_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><form id="loginForm"></form></body></html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Preflight(context.Background())
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestPreflight_NonOKStatus(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	srv.SetStatus("login.action", http.StatusNotFound)

	c := newTestClient(t, srv.BaseURL())
	_, err := c.Preflight(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.Equal(t, 1, srv.Hits("login.action"))
}

func TestRetry_ServerErrors(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	srv.FailNext("login.action", 2)

	c := newTestClient(t, srv.BaseURL())
	_, err := c.Preflight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, srv.Hits("login.action"))
}

func TestRetry_GivesUp(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	srv.FailNext("login.action", 10)

	c := newTestClient(t, srv.BaseURL())
	_, err := c.Preflight(context.Background())
	require.ErrorIs(t, err, ErrUpstreamStatus)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusInternalServerError, perr.Status)
	assert.Equal(t, defaultRetries+1, srv.Hits("login.action"))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := newTestClient(t, base)
	_, err := c.Preflight(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCanceledContext(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	c := newTestClient(t, srv.BaseURL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Preflight(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCharset_Windows1251(t *testing.T) {
	body, err := charmap.Windows1251.NewEncoder().String(`<html><body><form id="tariffsForm"><table>
<tr><th>h</th></tr><tr><td>Отопление</td><td>1</td><td>Гкал</td><td>2</td><td>01.01.2025</td></tr>
</table></form></body></html>`)
	require.NoError(t, err)

	for name, tc := range map[string]struct {
		contentType string
		forced      string
	}{
		"header": {contentType: "text/html; charset=windows-1251"},
		"forced": {contentType: "text/html", forced: "windows-1251"},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c, err := New(Options{BaseURL: srv.URL, Username: "u", Charset: tc.forced, RateLimit: 1000})
			require.NoError(t, err)
			c.session = Session{ID: "S", FormToken: "T"}

			report, err := c.Tariffs(context.Background())
			require.NoError(t, err)
			require.Contains(t, report.Tariffs, "Отопление")
			assert.Equal(t, "Gcal", report.Tariffs["Отопление"].Unit)
		})
	}
}

func TestCharset_UnknownLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Charset: "klingon", RateLimit: 1000})
	require.NoError(t, err)
	c.session = Session{ID: "S"}
	_, err = c.Meters(context.Background())
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestFetch_EmptyTableYieldsEmptyReport(t *testing.T) {
	srv := portaltest.NewMockServer()
	defer srv.Close()
	srv.SetPage("counters.action", `<html><body><p>Нет приборов учета</p></body></html>`)

	c := newTestClient(t, srv.BaseURL())
	ctx := context.Background()
	_, err := c.Preflight(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx))

	report, err := c.Meters(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Meters)
	assert.Equal(t, model.Date{}, report.Date)
}
