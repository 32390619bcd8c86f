// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/puppetflash/internal/logging"
	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

// Event log entry
type updateLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type updateModel struct {
	imagePath string
	connInfo  string
	platform  fwupdate.Platform

	phase   fwupdate.Phase
	lines   int
	total   int
	polls   int
	status  fwupdate.Status
	polled  bool
	elapsed time.Duration

	eventLog      []updateLogEntry
	maxLogEntries int

	progress progress.Model
	spinner  spinner.Model

	cancel   context.CancelFunc
	aborting bool
	done     bool
	report   fwupdate.Report
	err      error

	width  int
	height int
}

// Messages
type updateEventMsg fwupdate.Event
type updateDoneMsg struct {
	report fwupdate.Report
	err    error
}

func newUpdateModel(imagePath, connInfo string, platform fwupdate.Platform, total int, cancel context.CancelFunc) updateModel {
	return updateModel{
		imagePath:     imagePath,
		connInfo:      connInfo,
		platform:      platform,
		total:         total,
		maxLogEntries: 100,
		progress:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("12"))),
		),
		cancel: cancel,
		width:  80,
		height: 24,
	}
}

func runUpdateTUI(ctx context.Context, ch Channel, platform fwupdate.Platform, img *fwupdate.Image, imagePath, connInfo string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newUpdateModel(imagePath, connInfo, platform, img.Len(), cancel))

	// Log output would tear the alternate screen
	tr := fwupdate.New(ch, platform,
		fwupdate.WithPollInterval(cfg.Update.PollEvery),
		fwupdate.WithLogger(logging.Discard()),
		fwupdate.WithEventCallback(func(e fwupdate.Event) {
			p.Send(updateEventMsg(e))
		}),
	)

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		report, err := tr.Run(ctx, img)
		p.Send(updateDoneMsg{report: report, err: err})
	}()

	final, err := p.Run()
	// the caller closes ch once we return, so the session must be idle first
	cancel()
	<-sessionDone
	if err != nil {
		return exitWith(ExitFailure, fmt.Errorf("TUI error: %w", err))
	}

	m := final.(updateModel)
	if !m.done {
		fmt.Fprintln(os.Stdout, "Update aborted before the session finished.")
		return exitReported(ExitInterrupted, context.Canceled)
	}
	printReport(os.Stdout, m.report, m.err)
	return updateResult(m.report, m.err)
}

func (m updateModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func (m updateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.aborting {
				// second request: stop waiting for the session
				return m, tea.Quit
			}
			m.aborting = true
			m.addLogEntry("Aborting, waiting for the current register operation...", true)
			if m.cancel != nil {
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateEventMsg:
		m.applyEvent(fwupdate.Event(msg))

	case updateDoneMsg:
		m.done = true
		m.report = msg.report
		m.err = msg.err
		if msg.err != nil {
			m.phase = fwupdate.PhaseFailed
		} else {
			m.phase = fwupdate.PhaseSucceeded
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *updateModel) applyEvent(e fwupdate.Event) {
	m.lines = e.Lines
	m.total = e.TotalLines
	m.elapsed = e.Elapsed

	switch e.Kind {
	case fwupdate.EventPhase:
		m.phase = e.Phase
		switch e.Phase {
		case fwupdate.PhaseCheckingConnectivity:
			m.addLogEntry(fmt.Sprintf("Selected platform %s", e.Platform.Name()), false)
		case fwupdate.PhaseHandshaking:
			m.addLogEntry(fmt.Sprintf("Target connected: %s", e.Flags), false)
		case fwupdate.PhaseStreaming:
			m.addLogEntry("Handshake accepted", false)
		case fwupdate.PhaseFinalCheck:
			m.addLogEntry(fmt.Sprintf("Sent %d lines", e.Lines), false)
		}

	case fwupdate.EventPoll:
		m.polls++
		m.status = e.Status
		m.polled = true
		v := fwupdate.Classify(byte(e.Status))
		if v.Action == fwupdate.ActionFail || v.Action == fwupdate.ActionUnrecognized {
			m.addLogEntry(fmt.Sprintf("line %d: %s (%s)", e.Lines, e.Status, e.Status.Description()), true)
		}
	}
}

func (m *updateModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, updateLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m updateModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.lines) / float64(m.total)
}

func (m updateModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("PUPPETFLASH - FIRMWARE UPDATE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | Press 'q' to abort", m.connInfo, m.imagePath)))
	s.WriteString("\n\n")

	content := strings.Builder{}
	phase := m.phase.String()
	if !m.phase.Terminal() {
		phase = m.spinner.View() + " " + phase
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Platform:"), valueStyle.Render(m.platform.Name()),
		labelStyle.Render("Phase:"), valueStyle.Render(phase),
	))

	status := "-"
	if m.polled {
		status = m.status.String()
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Lines:"), valueStyle.Render(fmt.Sprintf("%d/%d", m.lines, m.total)),
		labelStyle.Render("Status:"), valueStyle.Render(status),
		labelStyle.Render("Elapsed:"), valueStyle.Render(m.elapsed.Round(time.Second).String()),
	))
	content.WriteString(m.progress.ViewAs(m.percent()))

	s.WriteString(boxStyle.Render(content.String()))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Events:"))
	s.WriteString("\n")

	logHeight := m.height - 12
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), infoStyle.Render("ℹ "+entry.message)))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
