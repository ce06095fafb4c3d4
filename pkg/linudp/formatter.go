// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package linudp

import (
	"fmt"
	"strings"
)

// FormatRequest formats a request into a human-readable string
func FormatRequest(r *Request) string {
	result := fmt.Sprintf("REQUEST flags=%s respond=%s\n", r.Flags(), r.ResponseFlags)

	if r.ControlFlags != nil {
		result += fmt.Sprintf("  Control:   %s (0x%04X)\n", *r.ControlFlags, uint16(*r.ControlFlags))
	}
	if r.MotionCommand != nil {
		result += fmt.Sprintf("  Motion:    %s\n", r.MotionCommand)
	}
	if r.RealtimeConfiguration != nil {
		result += "  " + formatRealtimeConfiguration(r.RealtimeConfiguration)
	}

	return result
}

// FormatResponse formats a response into a human-readable string
func FormatResponse(r *Response) string {
	result := fmt.Sprintf("RESPONSE echo=%s fields=%s\n", r.RequestFlags, r.ResponseFlags)

	if r.State != nil {
		sub, main := r.State.Raw()
		result += fmt.Sprintf("  State:     %s (main=%d, sub=0x%02X)\n", r.State, main, sub)
	}
	if r.StatusFlags != nil {
		result += fmt.Sprintf("  Status:    %s\n", *r.StatusFlags)
	}
	if r.ActualPosition != nil || r.DemandPosition != nil {
		result += fmt.Sprintf("  Position:  actual=%s demand=%s\n",
			formatOptional(r.ActualPosition), formatOptional(r.DemandPosition))
	}
	if r.Current != nil {
		result += fmt.Sprintf("  Current:   %s\n", *r.Current)
	}
	if r.WarningFlags != nil && *r.WarningFlags != 0 {
		result += fmt.Sprintf("  Warnings:  %s\n", *r.WarningFlags)
	}
	if r.ErrorCode != nil {
		result += fmt.Sprintf("  Error:     %s (0x%04X)\n", *r.ErrorCode, uint16(*r.ErrorCode))
	}
	if r.MonitoringChannel != nil {
		m := r.MonitoringChannel
		result += fmt.Sprintf("  Monitor:   %d %d %d %d\n", m[0], m[1], m[2], m[3])
	}
	if r.RealtimeConfiguration != nil {
		result += "  " + formatRealtimeConfiguration(r.RealtimeConfiguration)
	}

	return result
}

func formatRealtimeConfiguration(c *RealtimeConfiguration) string {
	return fmt.Sprintf("Realtime:  cmd=0x%04X params=[0x%04X 0x%04X 0x%04X]\n",
		c.Command, c.Parameters[0], c.Parameters[1], c.Parameters[2])
}

func formatOptional[T fmt.Stringer](v *T) string {
	if v == nil {
		return "-"
	}
	return (*v).String()
}

// formatFlagWord renders the set bits of a flag word by name
func formatFlagWord(v uint32, names []string) string {
	if v == 0 {
		return "(none)"
	}
	parts := []string{}
	for bit := 0; bit < 32; bit++ {
		if v&(1<<bit) == 0 {
			continue
		}
		if bit < len(names) {
			parts = append(parts, names[bit])
		} else {
			parts = append(parts, fmt.Sprintf("BIT_%d", bit))
		}
	}
	return strings.Join(parts, "|")
}
