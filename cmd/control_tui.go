// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/linstroke/pkg/drive"
	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/stroke"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxLogEntries  = 100
	eventLogHeight = 8
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// controlModel is the Bubble Tea model for the run command
type controlModel struct {
	driveInfo string
	console   *stroke.Console
	started   time.Time

	// Latest loop report, nil before the first window closes
	report    *drive.Report
	lastState string

	// Command line
	input textinput.Model

	errorLog []errorLogEntry

	// UI state
	width    int
	height   int
	quitting bool
	loopErr  error
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type reportMsg drive.Report

type loopStoppedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(console *stroke.Console, driveInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "command (h for help)"
	ti.Prompt = "> "
	ti.CharLimit = 32
	ti.Width = 40
	ti.Focus()

	return controlModel{
		driveInfo: driveInfo,
		console:   console,
		started:   time.Now(),
		input:     ti,
		width:     80,
		height:    24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, controlTickCmd())
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.executeInput()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		// Keeps the uptime display moving between reports
		return m, controlTickCmd()

	case reportMsg:
		r := drive.Report(msg)
		m.processReport(&r)
		return m, nil

	case loopStoppedMsg:
		m.loopErr = msg.err
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.addLogEntry(fmt.Sprintf("Control loop stopped: %v", msg.err), true)
		}
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := newTUIStyles()
	var s strings.Builder

	// Header
	s.WriteString(st.title.Render("LINSTROKE"))
	s.WriteString(" ")
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | up %s | Enter=send Esc=quit",
		m.driveInfo, formatUptime(time.Since(m.started)))))
	s.WriteString("\n\n")

	width := max(m.width-4, 20)
	s.WriteString(m.renderDrive(st, width))
	s.WriteString("\n")
	s.WriteString(m.renderStroke(st, width))
	s.WriteString("\n")
	s.WriteString(m.renderStatisticsBar(st, width))
	s.WriteString("\n")
	s.WriteString(renderEventLog(m.errorLog, eventLogHeight, width, st))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n")

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderDrive(st tuiStyles, width int) string {
	var content strings.Builder
	content.WriteString(st.statsLabel.Render("DRIVE"))
	content.WriteString(" | ")

	if m.report == nil || m.report.Response == nil {
		content.WriteString(st.warning.Render("Waiting for the drive..."))
		return st.box.Width(width).Render(content.String())
	}

	resp := m.report.Response
	pairs := []string{}
	if resp.State != nil {
		pairs = append(pairs, "State:", resp.State.String())
	}
	if resp.ActualPosition != nil {
		pairs = append(pairs, "Position:", resp.ActualPosition.String())
	}
	if resp.DemandPosition != nil {
		pairs = append(pairs, "Demand:", resp.DemandPosition.String())
	}
	if resp.Current != nil {
		pairs = append(pairs, "Current:", resp.Current.String())
	}
	content.WriteString(st.label(pairs...))

	content.WriteString("\n")
	content.WriteString(st.label("Control:", m.report.ControlFlags.String()))
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		content.WriteString("  ")
		content.WriteString(st.err.Render("Error: " + resp.ErrorCode.String()))
	}
	if resp.WarningFlags != nil && *resp.WarningFlags != 0 {
		content.WriteString("  ")
		content.WriteString(st.warning.Render("Warnings: " + resp.WarningFlags.String()))
	}

	return st.box.Width(width).Render(content.String())
}

func (m controlModel) renderStroke(st tuiStyles, width int) string {
	var content strings.Builder
	content.WriteString(st.statsLabel.Render("STROKE"))
	content.WriteString(" | ")

	if m.report == nil {
		content.WriteString(st.header.Render("No report yet"))
		return st.box.Width(width).Render(content.String())
	}

	p := m.report.Params
	direction := "backwards"
	if m.report.MovingForwards {
		direction = "forwards"
	}
	content.WriteString(st.label(
		"Mode:", p.Mode(),
		"Start:", p.Start.String(),
		"End:", p.End.String(),
		"Tolerance:", p.Tolerance.String(),
		"Direction:", direction,
	))
	content.WriteString("\n")
	content.WriteString(st.label(
		"Forwards:", p.Forwards.String(),
		"Backwards:", p.Backwards.String(),
	))
	if m.report.AckPending {
		content.WriteString("  ")
		content.WriteString(st.warning.Render("ack armed"))
	}

	return st.box.Width(width).Render(content.String())
}

func (m controlModel) renderStatisticsBar(st tuiStyles, width int) string {
	if m.report == nil {
		return st.box.Width(width).Render(st.header.Render("Collecting timing statistics..."))
	}

	stats := m.report.Stats
	errorsText := st.statsValue.Render("0")
	if stats.Errors > 0 {
		errorsText = st.err.Render(fmt.Sprintf("%d (timeout %d, decode %d, transport %d)",
			stats.Errors, stats.Timeouts, stats.DecodeErrors, stats.TransportErrors))
	}

	content := fmt.Sprintf("%s  %s %s  %s",
		st.label(
			"Ticks:", fmt.Sprintf("%d", stats.Ticks),
			"Mean:", stats.Mean().String(),
			"Max:", stats.Max.String(),
		),
		st.statsLabel.Render("Errors:"), errorsText,
		st.label(
			"Overruns:", fmt.Sprintf("%d", stats.Overruns),
			"Usage:", fmt.Sprintf("%.1f%% (peak %.1f%%)", m.report.Usage, m.report.PeakUsage),
		),
	)

	return st.box.Width(width).Render(content)
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processReport(r *drive.Report) {
	m.report = r

	if r.Stats.AllFailed() {
		m.addLogEntry(fmt.Sprintf("No response from drive: %v", r.Stats.LastError), true)
	}

	if r.Response != nil && r.Response.State != nil {
		state := r.Response.State.String()
		if state != m.lastState {
			m.addLogEntry("Drive state: "+state, false)
			m.lastState = state
		}
	}

	for _, a := range r.Anomalies {
		isError := a.Type == linudp.ANOMALY_DRIVE_ERROR || a.Type == linudp.ANOMALY_FATAL_ERROR
		m.addLogEntry(fmt.Sprintf("%s: %s", a.Type, a.Message), isError)
	}
}

func (m *controlModel) executeInput() {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return
	}

	reply, err := m.console.Execute(line)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	for _, l := range strings.Split(reply, "\n") {
		m.addLogEntry(l, false)
	}
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.errorLog = addLogEntry(m.errorLog, maxLogEntries, message, isError)
}

// runControlTUI runs the loop behind the interactive console until the user
// quits, ctx is cancelled or the loop gives up
func runControlTUI(ctx context.Context, cancel context.CancelFunc, loop *drive.Loop, console *stroke.Console, driveInfo string) error {
	p := tea.NewProgram(initialControlModel(console, driveInfo), tea.WithAltScreen(), tea.WithContext(ctx))

	loop.AddObserver(drive.AsyncObserver(ctx, func(r drive.Report) {
		p.Send(reportMsg(r))
	}))

	loopDone := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		loopDone <- err
		p.Send(loopStoppedMsg{err: err})
	}()

	_, err := p.Run()
	cancel()
	loopErr := <-loopDone

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return loopResult(loopErr)
}
