// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// tuiStyles is the shared palette of the terminal UIs
type tuiStyles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	statsLabel lipgloss.Style
	statsValue lipgloss.Style
	err        lipgloss.Style
	warning    lipgloss.Style
	box        lipgloss.Style
}

func newTUIStyles() tuiStyles {
	return tuiStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		statsLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		statsValue: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}

// label renders "Label: value" pairs separated by two spaces
func (s tuiStyles) label(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, fmt.Sprintf("%s %s", s.statsLabel.Render(pairs[i]), s.statsValue.Render(pairs[i+1])))
	}
	return strings.Join(parts, "  ")
}

// addLogEntry appends to log, keeping at most limit entries
func addLogEntry(log []errorLogEntry, limit int, message string, isError bool) []errorLogEntry {
	log = append(log, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	return log
}

// renderEventLog renders the last height entries of log
func renderEventLog(log []errorLogEntry, height, width int, s tuiStyles) string {
	var b strings.Builder
	b.WriteString(s.statsLabel.Render("EVENTS"))
	b.WriteString("\n")

	startIdx := max(len(log)-height, 0)

	if len(log) == 0 {
		b.WriteString(s.header.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(log); i++ {
			entry := log[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := s.warning
			if entry.isError {
				icon = "x"
				style = s.err
			}
			b.WriteString(fmt.Sprintf("%s %s %s\n",
				s.header.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return s.box.Width(width).Render(strings.TrimSuffix(b.String(), "\n"))
}

// formatUptime formats a duration to a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}
