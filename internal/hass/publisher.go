// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotConfigured is returned by Publish when no Home Assistant URL is set.
var ErrNotConfigured = errors.New("hass: publisher not configured")

// PublisherOptions configures the REST publisher.
type PublisherOptions struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

const defaultPublishTimeout = 10 * time.Second

// Publisher pushes entity states to POST /api/states/<entity_id>.
type Publisher struct {
	base   *url.URL
	token  string
	client *http.Client
	logger zerolog.Logger
}

// statePayload is the body Home Assistant expects on /api/states.
type statePayload struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// NewPublisher validates the base URL and builds a publisher.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, ErrNotConfigured
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("hass: invalid base URL %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Publisher{
		base:   base,
		token:  opts.Token,
		client: client,
		logger: zkhlog.WithComponent("hass"),
	}, nil
}

// Publish posts every entity. Individual failures do not stop the loop; they
// are returned joined.
func (p *Publisher) Publish(ctx context.Context, entities []Entity) error {
	if p == nil {
		return ErrNotConfigured
	}
	var errs []error
	ok := 0
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.publishOne(ctx, e); err != nil {
			metrics.RecordHassState(false)
			p.logger.Warn().
				Err(err).
				Str(zkhlog.FieldEvent, "hass.publish.failed").
				Str(zkhlog.FieldEntityID, e.EntityID).
				Msg("failed to publish entity state")
			errs = append(errs, err)
			continue
		}
		metrics.RecordHassState(true)
		ok++
	}

	p.logger.Info().
		Str(zkhlog.FieldEvent, "hass.publish.done").
		Int("published", ok).
		Int("failed", len(entities)-ok).
		Msg("published entity states")
	return errors.Join(errs...)
}

func (p *Publisher) publishOne(ctx context.Context, e Entity) error {
	attrs := make(map[string]any, len(e.Attributes)+5)
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	attrs["friendly_name"] = e.Name
	attrs["icon"] = e.Icon
	if e.Unit != "" {
		attrs["unit_of_measurement"] = e.Unit
	}
	if e.DeviceClass != "" {
		attrs["device_class"] = e.DeviceClass
	}
	if e.StateClass != "" {
		attrs["state_class"] = e.StateClass
	}

	body, err := json.Marshal(statePayload{State: e.State, Attributes: attrs})
	if err != nil {
		return fmt.Errorf("%s: encode: %w", e.EntityID, err)
	}

	target := p.base.JoinPath("api", "states", e.EntityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", e.EntityID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", e.EntityID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	// 200 updates an existing state, 201 creates it.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s: home assistant returned status %d", e.EntityID, resp.StatusCode)
	}
	return nil
}
