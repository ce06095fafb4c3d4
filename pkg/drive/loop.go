// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package drive runs the cyclic control loop: one LinUDP request/response
// exchange per tick at a fixed cadence, the controller that reacts to the
// reported drive state, and per-window timing statistics.
package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/mci"
	"github.com/Thermoquad/linstroke/pkg/stroke"
)

// Clock abstracts time for the loop
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config configures a Loop
type Config struct {
	Interval       time.Duration // tick interval
	ReportInterval time.Duration // statistics window
	ResponseFlags  linudp.ResponseFlags
	Limits         stroke.Limits
	MaxLag         mci.Position // position lag reported as an anomaly, 0 disables
	Logger         *slog.Logger
	Clock          Clock
}

// DefaultConfig returns the standard 5 ms / 1 s configuration
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Millisecond,
		ReportInterval: time.Second,
		ResponseFlags:  linudp.DEFAULT_RESPONSE_FLAGS,
		Limits:         stroke.NoLimits(),
	}
}

// maxReportAnomalies caps the anomalies carried in one report
const maxReportAnomalies = 8

// Report is published to observers at the end of each window
type Report struct {
	Time           time.Time
	Interval       time.Duration
	Stats          Statistics
	Usage          float64 // mean tick duration, percent of the interval
	PeakUsage      float64
	Response       *linudp.Response // last good response, nil before the first
	ControlFlags   mci.ControlFlags
	Params         stroke.Params
	MovingForwards bool
	AckPending     bool
	Anomalies      []linudp.ValidationError
}

// Observer receives reports on the loop goroutine and must not block
type Observer func(Report)

// Loop runs the control cycle against a single drive
type Loop struct {
	cfg        Config
	transport  Transport
	cell       *stroke.Cell
	controller *Controller
	logger     *slog.Logger
	clock      Clock

	mu        sync.Mutex
	observers []Observer

	stats     *Statistics
	anomalies []linudp.ValidationError
	last      *linudp.Response
	txBuf     [linudp.BUFFER_SIZE]byte
	rxBuf     [linudp.BUFFER_SIZE]byte
}

// NewLoop creates a loop. Params are read from cell every tick.
func NewLoop(cfg Config, transport Transport, cell *stroke.Cell) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.ResponseFlags == 0 {
		cfg.ResponseFlags = linudp.DEFAULT_RESPONSE_FLAGS
	}
	return &Loop{
		cfg:        cfg,
		transport:  transport,
		cell:       cell,
		controller: NewController(cfg.Limits, cfg.Logger),
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		stats:      NewStatistics(cfg.Clock.Now()),
	}
}

// AddObserver registers fn for every report
func (l *Loop) AddObserver(fn Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Run ticks until ctx is done or a whole report window fails, in which case
// the returned error matches ErrAllTicksFailed.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.cfg.Interval
	if interval <= 0 {
		return fmt.Errorf("invalid loop interval %v", interval)
	}

	now := l.clock.Now()
	l.stats.Reset(now)
	next := now.Add(interval)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := l.clock.Now()
		anomalies, err := l.tick()
		l.stats.Update(l.clock.Now().Sub(start), err, anomalies)
		if err != nil {
			l.logger.Debug("tick failed", "error", err)
		}
		l.collect(anomalies)

		if l.clock.Now().Sub(l.stats.StartTime) >= l.cfg.ReportInterval {
			report := l.report()
			l.publish(report)

			if l.stats.AllFailed() {
				return fmt.Errorf("%w (%d ticks, last error: %v)", ErrAllTicksFailed, l.stats.Ticks, l.stats.LastError)
			}
			l.stats.Reset(l.clock.Now())
			l.anomalies = nil
		}

		now := l.clock.Now()
		if next.After(now) {
			if err := l.clock.Sleep(ctx, next.Sub(now)); err != nil {
				return err
			}
			next = next.Add(interval)
		} else {
			l.logger.Warn("tick overrun", "late_by", now.Sub(next))
			l.stats.Overruns++
			next = now.Add(interval)
		}
	}
}

// tick performs one exchange. The returned anomalies describe the response.
func (l *Loop) tick() ([]linudp.ValidationError, error) {
	params := l.cell.Load()
	if l.cell.TakeAcknowledge() {
		l.controller.ArmAcknowledge()
	}

	motion := l.controller.Step(l.last, params)
	flags := l.controller.Flags()
	req := linudp.Request{
		ResponseFlags: l.cfg.ResponseFlags,
		ControlFlags:  &flags,
		MotionCommand: motion,
	}

	n, err := req.Encode(l.txBuf[:])
	if err != nil {
		return nil, &TickError{Kind: KindEncode, Err: err}
	}
	if err := l.transport.Send(l.txBuf[:n]); err != nil {
		return nil, &TickError{Kind: KindTransport, Err: err}
	}

	// The receive budget starts after the send
	n, err = l.transport.Receive(l.rxBuf[:], l.clock.Now().Add(l.cfg.Interval/2))
	if err != nil {
		kind := KindTransport
		if errors.Is(err, ErrReceiveTimeout) {
			kind = KindTimeout
		}
		return nil, &TickError{Kind: kind, Err: err}
	}

	resp, err := linudp.DecodeResponse(l.rxBuf[:n])
	if err != nil {
		return nil, &TickError{Kind: KindDecode, Err: err}
	}
	l.last = resp

	return linudp.ValidateResponse(resp, l.cfg.MaxLag), nil
}

func (l *Loop) collect(anomalies []linudp.ValidationError) {
	for _, a := range anomalies {
		if len(l.anomalies) >= maxReportAnomalies {
			return
		}
		l.anomalies = append(l.anomalies, a)
	}
}

func (l *Loop) report() Report {
	usage, peak := l.stats.Usage(l.cfg.Interval)
	return Report{
		Time:           l.clock.Now(),
		Interval:       l.cfg.Interval,
		Stats:          *l.stats,
		Usage:          usage,
		PeakUsage:      peak,
		Response:       l.last,
		ControlFlags:   l.controller.Flags(),
		Params:         l.cell.Load(),
		MovingForwards: l.controller.MovingForwards(),
		AckPending:     l.controller.AcknowledgePending(),
		Anomalies:      l.anomalies,
	}
}

func (l *Loop) publish(r Report) {
	attrs := []any{
		"timing", r.Stats.String(),
		"usage", fmt.Sprintf("%.2f%%", r.Usage),
		"peak", fmt.Sprintf("%.2f%%", r.PeakUsage),
		"control", r.ControlFlags.String(),
		"stroke", r.Params.String(),
	}
	if r.Response != nil && r.Response.State != nil {
		attrs = append(attrs, "state", r.Response.State.String())
	}
	if r.Response != nil && r.Response.ActualPosition != nil {
		attrs = append(attrs, "position", r.Response.ActualPosition.String())
	}
	l.logger.Info("timing statistics", attrs...)

	l.mu.Lock()
	observers := append([]Observer(nil), l.observers...)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(r)
	}
}

// AsyncObserver hands reports to fn on its own goroutine. Reports that
// arrive while fn is still busy with an earlier one are dropped. The
// goroutine exits when ctx is done.
func AsyncObserver(ctx context.Context, fn Observer) Observer {
	ch := make(chan Report, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-ch:
				fn(r)
			}
		}
	}()
	return func(r Report) {
		select {
		case ch <- r:
		default:
		}
	}
}
