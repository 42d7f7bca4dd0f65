// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package portal is a session-scoped client for the ZKHNSO personal account portal.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/metrics"
	"github.com/ManuGH/zkhbridge/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"gopkg.in/retry.v1"
)

// Options configures the portal client.
type Options struct {
	BaseURL  string
	Username string
	Password string
	// Timezone is sent with the login form as the browser offset in minutes.
	Timezone string

	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration
	MaxBackoff     time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	UserAgent      string
	// Charset forces the response encoding (WHATWG label, e.g. "windows-1251").
	// Empty means detect from Content-Type and meta tags.
	Charset string

	// HTTPClient overrides the transport. Redirects are disabled on it.
	HTTPClient *http.Client
}

const (
	defaultTimeout        = 15 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultRateLimit      = 2
	defaultRateLimitBurst = 4
	defaultUserAgent      = "zkhbridge"

	maxBodyBytes  = 4 << 20
	debugBodyHead = 500
)

// Session is the state established by Preflight and refreshed by Login.
type Session struct {
	ID        string
	FormToken string
}

// Client talks to one portal account. A Client holds session state and is
// meant for one refresh run; it is safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	strategy   retry.Strategy
	username   string
	password   string
	timezone   string
	userAgent  string
	charset    string
	logger     zerolog.Logger

	mu      sync.Mutex
	session Session
}

func normalizeOptions(opts Options) Options {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(opts.Timezone) == "" {
		opts.Timezone = DefaultTimezone
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	return opts
}

// New creates a client. The base URL always ends with a slash so relative
// page names resolve inside it.
func New(opts Options) (*Client, error) {
	nopts := normalizeOptions(opts)

	raw := strings.TrimSpace(nopts.BaseURL)
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("portal: invalid base URL %q", nopts.BaseURL)
	}

	hc := nopts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: nopts.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: nopts.Timeout,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		}
	} else {
		clone := *hc
		hc = &clone
	}
	// Session cookies arrive on the redirect itself.
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		base:       base,
		httpClient: hc,
		limiter:    rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		strategy: retry.LimitCount(nopts.MaxRetries+1, retry.Exponential{
			Initial:  nopts.Backoff,
			Factor:   2,
			MaxDelay: nopts.MaxBackoff,
			Jitter:   true,
		}),
		username:  nopts.Username,
		password:  nopts.Password,
		timezone:  nopts.Timezone,
		userAgent: nopts.UserAgent,
		charset:   nopts.Charset,
		logger:    zkhlog.WithComponent("portal"),
	}, nil
}

// Session returns a copy of the current session state.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) pageURL(page string) string {
	return c.base.ResolveReference(&url.URL{Path: page}).String()
}

// response is a fully read upstream reply.
type response struct {
	status int
	header http.Header
	body   []byte
}

// request describes one logical call; idempotent requests are retried.
type request struct {
	op         string
	method     string
	page       string
	header     http.Header
	body       []byte
	idempotent bool
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	tracer := telemetry.Tracer("zkhbridge.portal")
	target := c.pageURL(r.page)
	route := "/" + r.page
	ctx, span := tracer.Start(ctx, "portal."+r.op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String(telemetry.PortalOpKey, r.op),
		attribute.String(telemetry.HTTPMethodKey, r.method),
		attribute.String(telemetry.HTTPRouteKey, route),
	)
	defer span.End()

	strategy := c.strategy
	if !r.idempotent {
		strategy = retry.LimitCount(1, retry.Regular{})
	}

	var (
		lastErr    error
		lastStatus int
	)
	attempt := retry.StartWithCancel(strategy, nil, ctx.Done())
	for attempt.Next() {
		n := attempt.Count()
		resp, err := c.attempt(ctx, tracer, r, target, route, n)
		status := 0
		if resp != nil {
			status = resp.status
		}

		retryable := shouldRetry(status, err) && attempt.More()
		// Non-idempotent callers classify every status themselves.
		if err == nil && (status < http.StatusInternalServerError || !r.idempotent) {
			span.SetAttributes(telemetry.HTTPAttributes(r.method, route, status)...)
			if status >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return resp, nil
		}

		lastErr, lastStatus = err, status
		if !retryable {
			break
		}
		c.logger.Debug().
			Str(zkhlog.FieldEvent, "portal.retry").
			Str("op", r.op).
			Int("attempt", n).
			Int(zkhlog.FieldStatus, status).
			Err(err).
			Msg("retrying portal request")
	}

	if ctxErr := ctx.Err(); ctxErr != nil && (attempt.Stopped() || lastErr == nil) {
		lastErr = ctxErr
	}
	if lastErr == nil && lastStatus == 0 {
		lastErr = errors.New("no attempt made")
	}
	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
		return nil, newError(r.op, ErrUnavailable, 0, lastErr)
	}
	span.SetAttributes(telemetry.HTTPAttributes(r.method, route, lastStatus)...)
	span.SetStatus(codes.Error, http.StatusText(lastStatus))
	return nil, newError(r.op, ErrUpstreamStatus, lastStatus, nil)
}

func (c *Client) attempt(ctx context.Context, tracer trace.Tracer, r request, target, route string, n int) (*response, error) {
	ctx, span := tracer.Start(ctx, "portal."+r.op+".attempt", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.Int(telemetry.PortalAttemptKey, n),
		attribute.Bool("retry", n > 1),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObservePortalAttempt(r.op, 0, time.Since(start), n > 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.ObservePortalAttempt(r.op, resp.StatusCode, time.Since(start), n > 1)
	span.SetAttributes(telemetry.HTTPAttributes(r.method, route, resp.StatusCode)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return status >= http.StatusInternalServerError
}

// sessionIDFrom returns the JSESSIONID from Set-Cookie headers, if any.
func sessionIDFrom(h http.Header) string {
	for _, line := range h.Values("Set-Cookie") {
		cookie, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		if cookie.Name == sessionCookie && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

func bodyHead(b []byte) string {
	if len(b) > debugBodyHead {
		b = b[:debugBodyHead]
	}
	return string(b)
}
