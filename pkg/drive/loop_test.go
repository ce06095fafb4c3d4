// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package drive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/linstroke/pkg/drivesim"
	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/mci"
	"github.com/Thermoquad/linstroke/pkg/stroke"
)

// fakeClock only moves when the loop sleeps or a transport advances it
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

// scriptedTransport answers with the frames in script first (nil entries time
// out), then with frame for the first successes receives, then times out.
// Each send takes sendLatency and each receive takes latency on the fake
// clock. budgets records how far away each receive deadline was.
type scriptedTransport struct {
	clock       *fakeClock
	sendLatency time.Duration
	latency     time.Duration
	script      [][]byte
	frame       []byte
	successes   int
	sent        int
	budgets     []time.Duration
}

func (t *scriptedTransport) Send(frame []byte) error {
	t.clock.now = t.clock.now.Add(t.sendLatency)
	t.sent++
	return nil
}

func (t *scriptedTransport) Receive(buf []byte, deadline time.Time) (int, error) {
	t.budgets = append(t.budgets, deadline.Sub(t.clock.now))
	t.clock.now = t.clock.now.Add(t.latency)
	if len(t.script) > 0 {
		next := t.script[0]
		t.script = t.script[1:]
		if next == nil {
			return 0, ErrReceiveTimeout
		}
		return copy(buf, next), nil
	}
	if t.successes <= 0 {
		return 0, ErrReceiveTimeout
	}
	t.successes--
	return copy(buf, t.frame), nil
}

func (t *scriptedTransport) Close() error { return nil }

// simTransport answers every request from a simulated drive
type simTransport struct {
	drive *drivesim.Drive
	dt    time.Duration
	resp  [linudp.BUFFER_SIZE]byte
	n     int
	err   error
}

func (t *simTransport) Send(frame []byte) error {
	t.n, t.err = t.drive.Handle(frame, t.resp[:], t.dt)
	return nil
}

func (t *simTransport) Receive(buf []byte, deadline time.Time) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	return copy(buf, t.resp[:t.n]), nil
}

func (t *simTransport) Close() error { return nil }

func testConfig(clock Clock) Config {
	cfg := DefaultConfig()
	cfg.ReportInterval = 50 * time.Millisecond
	cfg.Logger = discardLogger()
	cfg.Clock = clock
	return cfg
}

func stateFrame(t *testing.T) []byte {
	t.Helper()
	return stateFrameAt(t, 0)
}

func stateFrameAt(t *testing.T, demand mci.Position) []byte {
	t.Helper()
	resp := &linudp.Response{
		RequestFlags:   linudp.REQ_CONTROL_FLAGS,
		ResponseFlags:  linudp.RESP_STATE | linudp.RESP_DEMAND_POSITION,
		State:          mci.NotReadyToSwitchOn{},
		DemandPosition: &demand,
	}
	buf := make([]byte, linudp.BUFFER_SIZE)
	n, err := resp.Encode(buf)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	return buf[:n]
}

// ============================================================================
// Circuit Breaker Tests
// ============================================================================

func TestLoop_AllTicksFailed(t *testing.T) {
	clock := newFakeClock()
	transport := &scriptedTransport{clock: clock}
	loop := NewLoop(testConfig(clock), transport, stroke.NewCell(stroke.DefaultParams()))

	var reports []Report
	loop.AddObserver(func(r Report) { reports = append(reports, r) })

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrAllTicksFailed) {
		t.Fatalf("Run() error = %v, want ErrAllTicksFailed", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}

	// 5 ms ticks over a 50 ms window, both ends included
	stats := reports[0].Stats
	if stats.Ticks != 11 || stats.Timeouts != 11 {
		t.Errorf("ticks = %d, timeouts = %d, want 11 and 11", stats.Ticks, stats.Timeouts)
	}
	if transport.sent != 11 {
		t.Errorf("sent %d requests, want 11", transport.sent)
	}
	if reports[0].Response != nil {
		t.Errorf("report response = %v, want nil", reports[0].Response)
	}
}

func TestLoop_OneSuccessKeepsRunning(t *testing.T) {
	clock := newFakeClock()
	transport := &scriptedTransport{clock: clock, frame: stateFrame(t), successes: 1}
	loop := NewLoop(testConfig(clock), transport, stroke.NewCell(stroke.DefaultParams()))

	var reports []Report
	loop.AddObserver(func(r Report) { reports = append(reports, r) })

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrAllTicksFailed) {
		t.Fatalf("Run() error = %v, want ErrAllTicksFailed", err)
	}

	// The window with one good exchange passes, the next one trips
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	first := reports[0].Stats
	if first.Ticks != 11 || first.Errors != 10 {
		t.Errorf("first window ticks = %d, errors = %d, want 11 and 10", first.Ticks, first.Errors)
	}
	if reports[0].Response == nil || reports[0].Response.State != (mci.NotReadyToSwitchOn{}) {
		t.Errorf("first report response = %v, want NotReadyToSwitchOn", reports[0].Response)
	}
}

func TestLoop_CancelStopsRun(t *testing.T) {
	clock := newFakeClock()
	transport := &scriptedTransport{clock: clock, frame: stateFrame(t), successes: 1000}
	loop := NewLoop(testConfig(clock), transport, stroke.NewCell(stroke.DefaultParams()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.AddObserver(func(Report) { cancel() })

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestLoop_InvalidInterval(t *testing.T) {
	cfg := testConfig(newFakeClock())
	cfg.Interval = 0
	loop := NewLoop(cfg, &scriptedTransport{}, stroke.NewCell(stroke.DefaultParams()))
	if err := loop.Run(context.Background()); err == nil {
		t.Error("Run() with zero interval returned nil")
	}
}

// ============================================================================
// Timing Tests
// ============================================================================

func TestLoop_OverrunRealigns(t *testing.T) {
	clock := newFakeClock()
	transport := &scriptedTransport{clock: clock, frame: stateFrame(t), successes: 1000, latency: 8 * time.Millisecond}
	loop := NewLoop(testConfig(clock), transport, stroke.NewCell(stroke.DefaultParams()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var report Report
	loop.AddObserver(func(r Report) {
		report = r
		cancel()
	})

	start := clock.Now()
	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	// Every 8 ms tick misses its 5 ms slot; the loop restarts the schedule
	// from the overrun instead of trying to catch up
	if report.Stats.Ticks != 7 {
		t.Errorf("ticks = %d, want 7", report.Stats.Ticks)
	}
	if report.Stats.Overruns != 6 {
		t.Errorf("overruns = %d, want 6", report.Stats.Overruns)
	}
	if report.PeakUsage <= 100 {
		t.Errorf("peak usage = %.1f%%, want above 100%%", report.PeakUsage)
	}
	if got := report.Time.Sub(start); got != 56*time.Millisecond {
		t.Errorf("report after %v, want 56ms", got)
	}
}

func TestLoop_ReceiveDeadlineHalfInterval(t *testing.T) {
	clock := newFakeClock()
	transport := &scriptedTransport{
		clock:       clock,
		sendLatency: time.Millisecond,
		frame:       stateFrame(t),
		successes:   1000,
	}
	cfg := testConfig(clock)
	loop := NewLoop(cfg, transport, stroke.NewCell(stroke.DefaultParams()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.AddObserver(func(Report) { cancel() })

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if len(transport.budgets) == 0 {
		t.Fatal("no receives recorded")
	}
	// Measured from the receive call, so the send time is not deducted
	for i, budget := range transport.budgets {
		if budget != cfg.Interval/2 {
			t.Fatalf("receive %d deadline %v away, want %v", i, budget, cfg.Interval/2)
		}
	}
}

// ============================================================================
// Decode Failure Tests
// ============================================================================

func TestLoop_DecodeErrorKeepsLastResponse(t *testing.T) {
	clock := newFakeClock()
	good := stateFrameAt(t, 1234)
	transport := &scriptedTransport{
		clock:  clock,
		script: [][]byte{good, good[:5]},
	}
	loop := NewLoop(testConfig(clock), transport, stroke.NewCell(stroke.DefaultParams()))

	var reports []Report
	loop.AddObserver(func(r Report) { reports = append(reports, r) })

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrAllTicksFailed) {
		t.Fatalf("Run() error = %v, want ErrAllTicksFailed", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}

	stats := reports[0].Stats
	if stats.DecodeErrors != 1 {
		t.Errorf("decode errors = %d, want 1", stats.DecodeErrors)
	}
	if stats.Timeouts != 9 || stats.Errors != 10 {
		t.Errorf("timeouts = %d, errors = %d, want 9 and 10", stats.Timeouts, stats.Errors)
	}

	// The truncated frame is discarded whole, the earlier response stays
	for i, r := range reports {
		if r.Response == nil || r.Response.DemandPosition == nil || *r.Response.DemandPosition != 1234 {
			t.Errorf("report %d response = %v, want demand position 1234", i, r.Response)
		}
	}
}

// ============================================================================
// Simulated Drive Tests
// ============================================================================

func TestLoop_DrivesSimulatedAxis(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(clock)
	sim := drivesim.New(drivesim.Config{BootTicks: 2, HomingTicks: 3})
	transport := &simTransport{drive: sim, dt: cfg.Interval}

	params := stroke.DefaultParams()
	params.Enabled = true
	params.End = mci.PositionFromMillimeters(20)
	cell := stroke.NewCell(params)
	loop := NewLoop(cfg, transport, cell)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const (
		phaseMoving = iota
		phaseFaulted
		phaseAcknowledged
		phaseDone
	)
	phase := phaseMoving
	reports := 0

	loop.AddObserver(func(r Report) {
		reports++
		if reports > 40 {
			cancel()
			return
		}
		state := r.Response.State

		switch phase {
		case phaseMoving:
			op, ok := state.(mci.OperationEnabled)
			if ok && op.Homed && *r.Response.DemandPosition > 0 {
				sim.InjectError(mci.ErrMotorHotSensor)
				phase = phaseFaulted
			}

		case phaseFaulted:
			if _, ok := state.(mci.Error); !ok {
				t.Errorf("state after fault = %v, want Error", state)
			}
			if r.ControlFlags.Has(mci.ErrorAcknowledge) || r.AckPending {
				t.Error("drive error acknowledged without a request")
			}
			cell.RequestAcknowledge()
			phase = phaseAcknowledged

		case phaseAcknowledged:
			if op, ok := state.(mci.OperationEnabled); ok && op.Homed {
				phase = phaseDone
				cancel()
			}
		}
	})

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if phase != phaseDone {
		t.Fatalf("stopped in phase %d after %d reports, drive state %v", phase, reports, sim.State())
	}
}

// ============================================================================
// Observer Tests
// ============================================================================

func TestAsyncObserver_DoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := make(chan struct{})
	got := make(chan Report, 8)
	obs := AsyncObserver(ctx, func(r Report) {
		<-gate
		got <- r
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			obs(Report{Interval: time.Duration(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer blocked the caller")
	}

	close(gate)
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no report delivered")
	}
}

// ============================================================================
// Statistics Tests
// ============================================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics(time.Time{})

	s.Update(2*time.Millisecond, nil, nil)
	s.Update(4*time.Millisecond, &TickError{Kind: KindTimeout, Err: ErrReceiveTimeout}, nil)
	s.Update(1*time.Millisecond, &TickError{Kind: KindDecode, Err: errors.New("short")}, nil)
	s.Update(1*time.Millisecond, errors.New("other"), []linudp.ValidationError{{Type: linudp.ANOMALY_WARNING}})

	if s.Ticks != 4 || s.Errors != 3 {
		t.Errorf("ticks = %d, errors = %d, want 4 and 3", s.Ticks, s.Errors)
	}
	if s.Timeouts != 1 || s.DecodeErrors != 1 || s.TransportErrors != 1 {
		t.Errorf("timeouts = %d, decode = %d, transport = %d, want 1 each", s.Timeouts, s.DecodeErrors, s.TransportErrors)
	}
	if s.Anomalies != 1 {
		t.Errorf("anomalies = %d, want 1", s.Anomalies)
	}
	if s.Min != time.Millisecond || s.Max != 4*time.Millisecond {
		t.Errorf("min = %v, max = %v, want 1ms and 4ms", s.Min, s.Max)
	}
	if s.Mean() != 2*time.Millisecond {
		t.Errorf("Mean() = %v, want 2ms", s.Mean())
	}
	if s.AllFailed() {
		t.Error("AllFailed() = true with one good tick")
	}

	avg, peak := s.Usage(4 * time.Millisecond)
	if avg != 50 || peak != 100 {
		t.Errorf("Usage() = %v, %v, want 50, 100", avg, peak)
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics(time.Time{})
	s.Update(time.Millisecond, ErrReceiveTimeout, nil)
	if !s.AllFailed() {
		t.Error("AllFailed() = false with every tick failed")
	}

	now := time.Unix(100, 0)
	s.Reset(now)
	if s.Ticks != 0 || s.Errors != 0 || s.LastError != nil || !s.StartTime.Equal(now) {
		t.Errorf("after Reset() = %+v", s)
	}
	if s.AllFailed() {
		t.Error("AllFailed() = true on an empty window")
	}
	if s.String() != "0s average, 0s min, 0s max, 0/0 errors" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestTickError_Unwrap(t *testing.T) {
	err := error(&TickError{Kind: KindTimeout, Err: ErrReceiveTimeout})
	if !errors.Is(err, ErrReceiveTimeout) {
		t.Error("TickError does not unwrap to its cause")
	}
	if err.Error() != "tick timeout: receive timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
}
