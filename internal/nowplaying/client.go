// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package nowplaying talks to the radio server: the now-playing query, the
// listener heartbeat and the audio transport URL.
package nowplaying

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/metrics"
	"github.com/ManuGH/radiosync/internal/platform/httpx"
	"github.com/ManuGH/radiosync/internal/resilience"
	"github.com/rs/zerolog"
)

const (
	DefaultNowPlayingPath = "/api/now-playing"
	DefaultHeartbeatPath  = "/api/heartbeat"
	DefaultStreamPath     = "/stream"

	maxBodyBytes = 1 << 16
)

// Config locates the server endpoints.
type Config struct {
	BaseURL        string
	NowPlayingPath string
	HeartbeatPath  string
	StreamPath     string
	Timeout        time.Duration
	// BreakerThreshold and BreakerReset tune the per-endpoint circuit breakers.
	BreakerThreshold int
	BreakerReset     time.Duration
}

// Client fetches now-playing snapshots and heartbeats.
type Client struct {
	base      *url.URL
	cfg       Config
	http      *http.Client
	npBreaker *resilience.CircuitBreaker
	hbBreaker *resilience.CircuitBreaker
	logger    zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreakers replaces the endpoint circuit breakers.
func WithBreakers(nowPlaying, heartbeat *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.npBreaker = nowPlaying
		c.hbBreaker = heartbeat
	}
}

// New validates cfg and returns a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.NowPlayingPath == "" {
		cfg.NowPlayingPath = DefaultNowPlayingPath
	}
	if cfg.HeartbeatPath == "" {
		cfg.HeartbeatPath = DefaultHeartbeatPath
	}
	if cfg.StreamPath == "" {
		cfg.StreamPath = DefaultStreamPath
	}

	c := &Client{
		base:      base,
		cfg:       cfg,
		http:      httpx.NewTracedClient(cfg.Timeout, "nowplaying"),
		npBreaker: resilience.NewCircuitBreaker("nowplaying", cfg.BreakerThreshold, cfg.BreakerReset),
		hbBreaker: resilience.NewCircuitBreaker("heartbeat", cfg.BreakerThreshold, cfg.BreakerReset),
		logger:    xglog.WithComponent("nowplaying"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

func withHints(q url.Values, hints map[string]string) url.Values {
	if q == nil {
		q = url.Values{}
	}
	for k, v := range hints {
		if q.Get(k) == "" {
			q.Set(k, v)
		}
	}
	return q
}

// NowPlaying fetches the authoritative snapshot. A payload carrying an error
// field is reported as ErrServerError.
func (c *Client) NowPlaying(ctx context.Context, hints map[string]string) (Snapshot, error) {
	var snap Snapshot
	err := c.get(ctx, c.npBreaker, "now_playing", c.endpoint(c.cfg.NowPlayingPath, withHints(nil, hints)), &snap)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Error != "" {
		return Snapshot{}, &Error{Sentinel: ErrServerError, Operation: "now_playing", Body: snap.Error}
	}
	return snap, nil
}

// Heartbeat keeps the server-side listener session alive.
func (c *Client) Heartbeat(ctx context.Context, connectionID string, hints map[string]string) (Heartbeat, error) {
	q := url.Values{}
	q.Set("connection_id", connectionID)
	var hb Heartbeat
	if err := c.get(ctx, c.hbBreaker, "heartbeat", c.endpoint(c.cfg.HeartbeatPath, withHints(q, hints)), &hb); err != nil {
		return Heartbeat{}, err
	}
	return hb, nil
}

func (c *Client) get(ctx context.Context, cb *resilience.CircuitBreaker, op, target string, out any) error {
	start := time.Now()
	err := cb.Execute(func() error {
		return c.doGet(ctx, op, target, out)
	})
	metrics.ObserveFetch(op, err, time.Since(start))
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &Error{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	if err != nil && ctx.Err() == nil {
		c.logger.Warn().Err(err).Str("operation", op).Msg("fetch failed")
	}
	return err
}

func (c *Client) doGet(ctx context.Context, op, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &Error{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return wrapError(op, err, 0, nil)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return wrapError(op, err, res.StatusCode, nil)
	}
	if werr := wrapError(op, nil, res.StatusCode, body); werr != nil {
		return werr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
	}
	return nil
}

// StreamURL builds the audio transport URL. Hints are passed through opaquely
// and never override the core parameters.
func (c *Client) StreamURL(position float64, platform string, hints map[string]string, t time.Time) string {
	q := url.Values{}
	q.Set("t", strconv.FormatInt(t.UnixMilli(), 10))
	q.Set("position", strconv.FormatFloat(position, 'f', 3, 64))
	q.Set("platform", platform)

	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if q.Get(k) == "" {
			q.Set(k, hints[k])
		}
	}
	return c.endpoint(c.cfg.StreamPath, q)
}
