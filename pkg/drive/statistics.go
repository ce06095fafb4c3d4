// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package drive

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/linstroke/pkg/linudp"
)

// Statistics tracks tick timing and error counts over one report window
type Statistics struct {
	StartTime time.Time

	// Counters
	Ticks           uint64
	Errors          uint64
	EncodeErrors    uint64
	TransportErrors uint64
	Timeouts        uint64
	DecodeErrors    uint64
	Overruns        uint64
	Anomalies       uint64

	// Tick durations
	Total time.Duration
	Min   time.Duration
	Max   time.Duration

	LastError error
}

// NewStatistics creates a new statistics window starting at now
func NewStatistics(now time.Time) *Statistics {
	s := &Statistics{}
	s.Reset(now)
	return s
}

// Update records one tick, its error and any anomalies in its response
func (s *Statistics) Update(duration time.Duration, err error, anomalies []linudp.ValidationError) {
	s.Ticks++
	s.Total += duration
	s.Min = min(s.Min, duration)
	s.Max = max(s.Max, duration)
	s.Anomalies += uint64(len(anomalies))

	if err == nil {
		return
	}
	s.Errors++
	s.LastError = err

	var tickErr *TickError
	if !errors.As(err, &tickErr) {
		s.TransportErrors++
		return
	}
	switch tickErr.Kind {
	case KindEncode:
		s.EncodeErrors++
	case KindTimeout:
		s.Timeouts++
	case KindDecode:
		s.DecodeErrors++
	default:
		s.TransportErrors++
	}
}

// Mean returns the average tick duration
func (s *Statistics) Mean() time.Duration {
	if s.Ticks == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Ticks)
}

// Usage returns the average and peak tick duration as a percentage of the
// tick interval
func (s *Statistics) Usage(interval time.Duration) (avg, peak float64) {
	if interval <= 0 || s.Ticks == 0 {
		return 0, 0
	}
	return float64(s.Mean()) / float64(interval) * 100, float64(s.Max) / float64(interval) * 100
}

// AllFailed reports whether every tick of the window errored
func (s *Statistics) AllFailed() bool {
	return s.Ticks > 0 && s.Errors == s.Ticks
}

// String returns a one line timing summary
func (s *Statistics) String() string {
	minDuration := s.Min
	if s.Ticks == 0 {
		minDuration = 0
	}
	result := fmt.Sprintf("%v average, %v min, %v max, %d/%d errors",
		s.Mean(), minDuration, s.Max, s.Errors, s.Ticks)
	if s.Errors > 0 {
		result += fmt.Sprintf(" (encode %d, transport %d, timeout %d, decode %d)",
			s.EncodeErrors, s.TransportErrors, s.Timeouts, s.DecodeErrors)
	}
	if s.Overruns > 0 {
		result += fmt.Sprintf(", %d overruns", s.Overruns)
	}
	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset(now time.Time) {
	*s = Statistics{
		StartTime: now,
		Min:       time.Duration(1<<63 - 1),
	}
}
