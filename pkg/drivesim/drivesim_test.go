// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package drivesim

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/mci"
)

const tick = 5 * time.Millisecond

func request(flags mci.ControlFlags, mc *mci.MotionCommand) *linudp.Request {
	return &linudp.Request{
		ResponseFlags: linudp.DEFAULT_RESPONSE_FLAGS,
		ControlFlags:  &flags,
		MotionCommand: mc,
	}
}

// stepUntil sends the same request until the drive reaches a state matching
// done, failing after limit requests
func stepUntil(t *testing.T, d *Drive, req *linudp.Request, limit int, done func(mci.State) bool) *linudp.Response {
	t.Helper()
	for i := 0; i < limit; i++ {
		resp := d.Step(req, tick)
		if done(resp.State) {
			return resp
		}
	}
	t.Fatalf("drive stuck in %v", d.State())
	return nil
}

func isType[T mci.State](s mci.State) bool {
	_, ok := s.(T)
	return ok
}

func homedDrive(t *testing.T) *Drive {
	t.Helper()
	d := New(Config{BootTicks: 2, HomingTicks: 3})
	stepUntil(t, d, request(0, nil), 5, isType[mci.ReadyToSwitchOn])
	stepUntil(t, d, request(mci.SwitchOn, nil), 2, isType[mci.OperationEnabled])
	stepUntil(t, d, request(mci.SwitchOn|mci.Home, nil), 10, func(s mci.State) bool {
		h, ok := s.(mci.Homing)
		return ok && h.Finished
	})
	resp := stepUntil(t, d, request(mci.SwitchOn, nil), 2, isType[mci.OperationEnabled])
	if !resp.State.(mci.OperationEnabled).Homed {
		t.Fatalf("state after homing = %v, want homed", resp.State)
	}
	return d
}

func TestDrive_PowerUpAndHoming(t *testing.T) {
	homedDrive(t)
}

func TestDrive_StartErrorAcknowledge(t *testing.T) {
	d := New(Config{BootTicks: 1, StartError: mci.ErrMotorHotSensor})

	resp := stepUntil(t, d, request(0, nil), 5, isType[mci.Error])
	if resp.State != (mci.Error{Code: mci.ErrMotorHotSensor}) {
		t.Errorf("state = %v, want Error(MotorHotSensor)", resp.State)
	}
	if resp.ErrorCode == nil || *resp.ErrorCode != mci.ErrMotorHotSensor {
		t.Errorf("error code = %v, want MotorHotSensor", resp.ErrorCode)
	}

	// Stays in error until acknowledged
	if s := d.Step(request(0, nil), tick).State; !isType[mci.Error](s) {
		t.Errorf("state without acknowledge = %v, want Error", s)
	}

	stepUntil(t, d, request(mci.ErrorAcknowledge, nil), 2, isType[mci.NotReadyToSwitchOn])
	stepUntil(t, d, request(0, nil), 3, isType[mci.ReadyToSwitchOn])
}

func TestDrive_MotionBeforeHomingFails(t *testing.T) {
	d := New(Config{})
	stepUntil(t, d, request(0, nil), 2, isType[mci.ReadyToSwitchOn])
	stepUntil(t, d, request(mci.SwitchOn, nil), 2, isType[mci.OperationEnabled])

	mc := &mci.MotionCommand{Count: 1, Command: mci.VAIGoToPos{TargetPosition: 1000}}
	resp := d.Step(request(mci.SwitchOn, mc), tick)
	if resp.State != (mci.Error{Code: mci.ErrNotHomed}) {
		t.Errorf("state = %v, want Error(NotHomed)", resp.State)
	}
}

func TestDrive_GoToPosReachesTarget(t *testing.T) {
	d := homedDrive(t)
	target := mci.PositionFromMillimeters(20)
	cmd := mci.VAIGoToPos{
		TargetPosition:  target,
		MaximalVelocity: mci.VelocityFromMetersPerSecond(1),
		Acceleration:    mci.AccelerationFromMetersPerSecondSquared(10),
		Deceleration:    mci.AccelerationFromMetersPerSecondSquared(10),
	}

	var resp *linudp.Response
	for i := 0; i < 400; i++ {
		mc := &mci.MotionCommand{Count: uint8(i+1) & 0x0F, Command: cmd}
		resp = d.Step(request(mci.SwitchOn, mc), tick)
		if op, ok := resp.State.(mci.OperationEnabled); ok && op.InTargetPosition {
			break
		}
	}

	op, ok := resp.State.(mci.OperationEnabled)
	if !ok || !op.InTargetPosition {
		t.Fatalf("state = %v, want in target", resp.State)
	}
	if *resp.DemandPosition != target {
		t.Errorf("demand position = %v, want %v", *resp.DemandPosition, target)
	}
}

func TestDrive_CountEcho(t *testing.T) {
	d := homedDrive(t)
	mc := &mci.MotionCommand{Count: 7, Command: mci.NoOperation{}}
	resp := d.Step(request(mci.SwitchOn, mc), tick)
	if op := resp.State.(mci.OperationEnabled); op.MotionCommandCount != 7 {
		t.Errorf("count = %d, want 7", op.MotionCommandCount)
	}
}

func TestDrive_RealtimeConfigurationEcho(t *testing.T) {
	d := New(Config{})
	req := request(0, nil)

	resp := d.Step(req, tick)
	if resp.ResponseFlags&linudp.RESP_REALTIME_CONFIGURATION == 0 {
		t.Error("capability bit not set")
	}
	if resp.RealtimeConfiguration != nil {
		t.Error("realtime configuration filled without being requested")
	}

	req.RealtimeConfiguration = &linudp.RealtimeConfiguration{Command: 0x42}
	resp = d.Step(req, tick)
	if resp.RealtimeConfiguration == nil || resp.RealtimeConfiguration.Command != 0x42 {
		t.Errorf("realtime configuration = %+v, want echo of 0x42", resp.RealtimeConfiguration)
	}
}

func TestProfile_Stop(t *testing.T) {
	var p profile
	p.goTo(mci.VAIGoToPos{
		TargetPosition:  mci.PositionFromMillimeters(1000),
		MaximalVelocity: mci.VelocityFromMetersPerSecond(1),
		Acceleration:    mci.AccelerationFromMetersPerSecondSquared(10),
		Deceleration:    mci.AccelerationFromMetersPerSecondSquared(10),
	})
	for i := 0; i < 50; i++ {
		p.step(0.005)
	}
	if p.velocity <= 0 {
		t.Fatalf("velocity = %v, want moving", p.velocity)
	}

	p.stop(mci.VAIStop{Deceleration: mci.AccelerationFromMetersPerSecondSquared(10)})
	for i := 0; i < 100 && p.active; i++ {
		p.step(0.005)
	}
	if p.velocity != 0 || p.active {
		t.Errorf("after stop velocity = %v, active = %v", p.velocity, p.active)
	}
}

func TestServe_UDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(Config{})
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx, conn, nil) }()

	client, err := net.Dial("udp", conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer client.Close()

	buf := make([]byte, linudp.BUFFER_SIZE)
	n, _ := request(0, nil).Encode(buf)
	if _, err := client.Write(buf[:n]); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err = client.Read(buf)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	resp, err := linudp.DecodeResponse(buf[:n])
	if err != nil {
		t.Fatalf("DecodeResponse() error: %v", err)
	}
	if resp.State == nil {
		t.Error("response has no state")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Serve() did not return after cancel")
	}
}
