// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/zkhbridge/internal/cache"
	zkhlog "github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/metrics"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/ManuGH/zkhbridge/internal/resilience"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrRefreshInProgress is returned by TryRefresh while a run is active.
var ErrRefreshInProgress = errors.New("refresh already in progress")

const (
	DefaultInterval       = time.Hour
	defaultRefreshTimeout = 2 * time.Minute
	defaultSinkTimeout    = 30 * time.Second
)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	NewClient   ClientFactory
	Credentials Credentials
	Interval    time.Duration
	// RefreshTimeout bounds one run including all portal requests.
	RefreshTimeout time.Duration
	Sinks          []Sink
	Breaker        *resilience.CircuitBreaker
	// Restore sources, consulted in order on Start.
	Cache        cache.Cache
	SnapshotPath string
	Clock        func() time.Time
	// SkipInitial disables the refresh that Start normally runs immediately.
	SkipInitial bool
}

// Coordinator owns the current snapshot and schedules refreshes.
type Coordinator struct {
	mu       sync.RWMutex
	snapshot *model.Snapshot
	status   Status
	creds    Credentials
	interval time.Duration
	sinks    []Sink

	newClient      ClientFactory
	refreshTimeout time.Duration
	breaker        *resilience.CircuitBreaker
	cache          cache.Cache
	snapshotPath   string
	clock          func() time.Time
	skipInitial    bool
	logger         zerolog.Logger

	sf singleflight.Group

	// manual is held by a TryRefresh caller from before it joins the
	// flight until it returns.
	manual  atomic.Bool
	reset   chan struct{}
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	startMu sync.Mutex
	started bool
}

// NewCoordinator builds a stopped coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("portal", 3, 10*time.Minute)
	}
	c := &Coordinator{
		creds:          opts.Credentials,
		interval:       opts.Interval,
		sinks:          append([]Sink(nil), opts.Sinks...),
		newClient:      opts.NewClient,
		refreshTimeout: opts.RefreshTimeout,
		breaker:        opts.Breaker,
		cache:          opts.Cache,
		snapshotPath:   opts.SnapshotPath,
		clock:          opts.Clock,
		skipInitial:    opts.SkipInitial,
		logger:         zkhlog.WithComponent("coordinator"),
		reset:          make(chan struct{}, 1),
	}
	c.status.Interval = opts.Interval
	c.status.Breaker = string(opts.Breaker.State())
	return c
}

// AddSink registers a sink for subsequent snapshots.
func (c *Coordinator) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Start restores the last snapshot, runs an initial refresh in the
// background and schedules the next ones. It returns immediately.
func (c *Coordinator) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.started {
		return errors.New("coordinator already started")
	}
	c.started = true
	c.baseCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	c.restore(ctx)

	c.wg.Add(1)
	go c.loop()
	return nil
}

// Stop cancels the loop and any running refresh, then waits for them.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.startMu.Lock()
	if !c.started || c.cancel == nil {
		c.startMu.Unlock()
		return nil
	}
	c.cancel()
	c.startMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) loop() {
	defer c.wg.Done()

	wait := c.currentInterval()
	if !c.skipInitial {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	c.setNextRun(wait)

	for {
		select {
		case <-c.baseCtx.Done():
			return
		case <-c.reset:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			wait = c.currentInterval()
			timer.Reset(wait)
			c.setNextRun(wait)
		case <-timer.C:
			_, _ = c.Refresh(c.baseCtx)
			wait = c.currentInterval()
			timer.Reset(wait)
			c.setNextRun(wait)
		}
	}
}

// Refresh runs a refresh now, joining one that is already running.
func (c *Coordinator) Refresh(ctx context.Context) (*model.Snapshot, error) {
	c.startMu.Lock()
	base := c.baseCtx
	c.startMu.Unlock()
	if base == nil {
		base = context.WithoutCancel(ctx)
	}

	ch := c.sf.DoChan("refresh", func() (any, error) {
		return c.run(base)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryRefresh is Refresh that refuses to join a running refresh.
func (c *Coordinator) TryRefresh(ctx context.Context) (*model.Snapshot, error) {
	if !c.manual.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer c.manual.Store(false)

	c.mu.RLock()
	running := c.status.Running
	c.mu.RUnlock()
	if running {
		return nil, ErrRefreshInProgress
	}
	return c.Refresh(ctx)
}

// run executes one refresh and publishes the result. It is only called
// through singleflight, so at most one run is active.
func (c *Coordinator) run(base context.Context) (*model.Snapshot, error) {
	start := c.clock()
	c.mu.Lock()
	c.status.Running = true
	c.status.LastRun = start
	creds := c.creds
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, c.refreshTimeout)
	defer cancel()

	var snap *model.Snapshot
	err := c.breaker.Execute(func() error {
		var rerr error
		snap, rerr = Refresh(ctx, Deps{NewClient: c.newClient, Credentials: creds, Clock: c.clock})
		return rerr
	})
	duration := c.clock().Sub(start)
	metrics.ObserveRefresh(duration, err)

	c.mu.Lock()
	c.status.Running = false
	c.status.LastDuration = duration
	c.status.Breaker = string(c.breaker.State())
	if err != nil {
		c.status.LastError = err.Error()
		c.status.LastErrorStage = ""
		var se *StageError
		if errors.As(err, &se) {
			c.status.LastErrorStage = se.Stage
		}
		c.status.ConsecutiveFailures++
		c.mu.Unlock()
		if errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn().
				Str(zkhlog.FieldEvent, "refresh.skipped").
				Dur("retry_after", c.breaker.RetryAfter()).
				Msg("portal circuit open, refresh skipped")
		}
		return nil, err
	}
	c.snapshot = snap
	c.status.LastError = ""
	c.status.LastErrorStage = ""
	c.status.ConsecutiveFailures = 0
	c.status.LastSuccess = snap.FetchedAt
	c.status.Meters = len(snap.Meters)
	c.status.Tariffs = len(snap.Tariffs)
	sinks := append([]Sink(nil), c.sinks...)
	c.mu.Unlock()

	recordSnapshotMetrics(*snap)
	c.deliver(base, *snap, sinks)
	return snap, nil
}

func (c *Coordinator) deliver(base context.Context, snap model.Snapshot, sinks []Sink) {
	for _, s := range sinks {
		ctx, cancel := context.WithTimeout(base, defaultSinkTimeout)
		err := s.Deliver(ctx, snap)
		cancel()
		metrics.RecordSinkDelivery(s.Name(), err)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str(zkhlog.FieldEvent, "sink.failed").
				Str("sink", s.Name()).
				Msg("snapshot delivery failed")
			continue
		}
		c.logger.Debug().
			Str(zkhlog.FieldEvent, "sink.delivered").
			Str("sink", s.Name()).
			Msg("snapshot delivered")
	}
}

func recordSnapshotMetrics(snap model.Snapshot) {
	metrics.ResetReadings()
	metrics.RecordCounts(len(snap.Meters), len(snap.Tariffs))
	for _, key := range snap.MeterKeys() {
		m := snap.Meters[key]
		metrics.RecordMeter(key, m.Units, float64(m.Value))
	}
	for _, key := range snap.TariffKeys() {
		t := snap.Tariffs[key]
		metrics.RecordTariff(key, t.Unit, t.Tariff, t.Rate)
	}
}

// restore loads the last snapshot from the cache, falling back to the file.
func (c *Coordinator) restore(ctx context.Context) {
	var (
		snap   *model.Snapshot
		source string
	)
	if c.cache != nil {
		if data, ok := c.cache.Get(ctx, SnapshotCacheKey); ok {
			s, err := decodeSnapshot(data)
			if err != nil {
				c.logger.Warn().Err(err).Str(zkhlog.FieldEvent, "restore.cache_invalid").Msg("ignoring cached snapshot")
			} else {
				snap, source = s, "cache"
			}
		}
	}
	if snap == nil && c.snapshotPath != "" {
		s, err := ReadSnapshotFile(c.snapshotPath)
		switch {
		case err == nil:
			snap, source = s, "file"
		case !errors.Is(err, fs.ErrNotExist):
			c.logger.Warn().Err(err).Str(zkhlog.FieldEvent, "restore.file_invalid").Msg("ignoring snapshot file")
		}
	}
	if snap == nil {
		return
	}

	c.mu.Lock()
	c.snapshot = snap
	c.status.Restored = source
	c.status.LastSuccess = snap.FetchedAt
	c.status.Meters = len(snap.Meters)
	c.status.Tariffs = len(snap.Tariffs)
	c.mu.Unlock()
	recordSnapshotMetrics(*snap)

	c.logger.Info().
		Str(zkhlog.FieldEvent, "restore.ok").
		Str("source", source).
		Time("fetched_at", snap.FetchedAt).
		Int(zkhlog.FieldMeters, len(snap.Meters)).
		Int(zkhlog.FieldTariffs, len(snap.Tariffs)).
		Msg("restored last snapshot")
}

// Snapshot returns the current snapshot, if any.
func (c *Coordinator) Snapshot() (model.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return model.Snapshot{}, false
	}
	return *c.snapshot, true
}

// Status returns a copy of the refresh status.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.Breaker = string(c.breaker.State())
	return s
}

// SetInterval changes the schedule; the next run is rescheduled from now.
func (c *Coordinator) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	changed := c.interval != d
	c.interval = d
	c.status.Interval = d
	c.mu.Unlock()
	if !changed {
		return
	}
	select {
	case c.reset <- struct{}{}:
	default:
	}
}

// SetCredentials replaces the account used by subsequent refreshes.
func (c *Coordinator) SetCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

func (c *Coordinator) currentInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

func (c *Coordinator) setNextRun(wait time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.NextRun = c.clock().Add(wait)
}
