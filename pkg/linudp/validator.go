// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package linudp

import (
	"fmt"

	"github.com/Thermoquad/linstroke/pkg/mci"
)

// AnomalyType represents different types of response anomalies
type AnomalyType int

const (
	ANOMALY_WARNING AnomalyType = iota
	ANOMALY_DRIVE_ERROR
	ANOMALY_FATAL_ERROR
	ANOMALY_POSITION_LAG
	ANOMALY_UNKNOWN_STATE
	ANOMALY_DECODE_ERROR
)

func (a AnomalyType) String() string {
	switch a {
	case ANOMALY_WARNING:
		return "WARNING"
	case ANOMALY_DRIVE_ERROR:
		return "DRIVE_ERROR"
	case ANOMALY_FATAL_ERROR:
		return "FATAL_ERROR"
	case ANOMALY_POSITION_LAG:
		return "POSITION_LAG"
	case ANOMALY_UNKNOWN_STATE:
		return "UNKNOWN_STATE"
	case ANOMALY_DECODE_ERROR:
		return "DECODE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a response validation finding
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateResponse inspects a decoded response for conditions worth
// reporting. maxLag bounds |demand - actual|; zero disables the lag check.
// Returns a slice of validation errors (empty if nothing stands out).
func ValidateResponse(r *Response, maxLag mci.Position) []ValidationError {
	errors := []ValidationError{}

	if r.WarningFlags != nil && *r.WarningFlags != 0 {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_WARNING,
			Message: fmt.Sprintf("Drive warnings active: %s", *r.WarningFlags),
			Details: map[string]interface{}{"warnings": uint16(*r.WarningFlags)},
		})
	}

	if r.ErrorCode != nil && *r.ErrorCode != mci.ErrNone {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_DRIVE_ERROR,
			Message: fmt.Sprintf("Drive error %s (0x%04X)", *r.ErrorCode, uint16(*r.ErrorCode)),
			Details: map[string]interface{}{"code": uint16(*r.ErrorCode)},
		})
	}

	if r.StatusFlags != nil && r.StatusFlags.Has(mci.StatusFatalError) {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_FATAL_ERROR,
			Message: "Drive reports a fatal error, power cycle required",
			Details: map[string]interface{}{"status": uint16(*r.StatusFlags)},
		})
	}

	if u, ok := r.State.(mci.Unknown); ok {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_UNKNOWN_STATE,
			Message: fmt.Sprintf("Unknown drive state main=%d sub=0x%02X", u.Main, u.Sub),
			Details: map[string]interface{}{"main": u.Main, "sub": u.Sub},
		})
	}

	if maxLag > 0 && r.ActualPosition != nil && r.DemandPosition != nil {
		lag := *r.DemandPosition - *r.ActualPosition
		if lag < 0 {
			lag = -lag
		}
		if lag > maxLag {
			errors = append(errors, ValidationError{
				Type:    ANOMALY_POSITION_LAG,
				Message: fmt.Sprintf("Position lag %s exceeds %s", lag, maxLag),
				Details: map[string]interface{}{"lag": int32(lag), "max": int32(maxLag)},
			})
		}
	}

	return errors
}
