// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/dl24log/pkg/capture"
	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

const monitorRows = 10

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of DL24 readings",
	Long: `Show a live dashboard with the latest reading, the session state, the
external probe average and the most recent readings.

File and publisher outputs stay active while the dashboard runs, so
monitor can replace log for interactive captures. Press 'q' to quit; the
outputs are closed as on Ctrl+C.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	addCaptureFlags(monitorCmd, false)
}

// Messages
type tickMsg time.Time
type frameMsg struct{ kind dl24.FrameKind }
type readingMsg struct {
	reading dl24.Reading
	state   session.State
}
type stateMsg struct{ state session.State }
type suppressedMsg struct{}
type sensorErrorMsg struct{}
type checksumMsg struct{}
type captureDoneMsg struct {
	result *capture.Result
	err    error
}

// dashboardRecorder forwards capture events to the TUI program
type dashboardRecorder struct {
	send func(tea.Msg)
}

func (d dashboardRecorder) FrameRead(kind dl24.FrameKind) { d.send(frameMsg{kind}) }
func (d dashboardRecorder) ChecksumFailed()               { d.send(checksumMsg{}) }
func (d dashboardRecorder) ReadingSuppressed()            { d.send(suppressedMsg{}) }
func (d dashboardRecorder) SensorFailed()                 { d.send(sensorErrorMsg{}) }
func (d dashboardRecorder) StateChanged(s session.State)  { d.send(stateMsg{s}) }

func (d dashboardRecorder) ReadingEmitted(r *dl24.Reading, s session.State) {
	d.send(readingMsg{reading: *r, state: s})
}

// Dashboard model
type monitorModel struct {
	connInfo  string
	sessionID string
	fileName  string
	cancel    context.CancelFunc

	stats    *dl24.Statistics
	state    session.State
	latest   *dl24.Reading
	extSum   float64
	extCount int

	recent table.Model
	rows   []table.Row

	done     bool
	doneErr  error
	reason   string
	quitting bool
}

func newMonitorModel(connInfo, sessionID, fileName string, cancel context.CancelFunc) monitorModel {
	columns := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Voltage", Width: 8},
		{Title: "Current", Width: 8},
		{Title: "Capacity", Width: 9},
		{Title: "Power", Width: 8},
		{Title: "MOSFET", Width: 6},
		{Title: "Ext", Width: 6},
		{Title: "Load", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(monitorRows+1),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)

	return monitorModel{
		connInfo:  connInfo,
		sessionID: sessionID,
		fileName:  fileName,
		cancel:    cancel,
		stats:     dl24.NewStatistics(),
		recent:    t,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case frameMsg:
		m.stats.UpdateFrame(msg.kind)

	case checksumMsg:
		m.stats.ChecksumErrors++

	case suppressedMsg:
		m.stats.SuppressedReadings++

	case sensorErrorMsg:
		m.stats.SensorErrors++

	case stateMsg:
		m.state = msg.state

	case readingMsg:
		r := msg.reading
		m.latest = &r
		m.state = msg.state
		m.stats.EmittedReadings++
		if r.ExternalTemp != nil {
			m.extSum += *r.ExternalTemp
			m.extCount++
		}
		m.addRow(&r)

	case captureDoneMsg:
		m.done = true
		m.doneErr = msg.err
		if msg.result != nil {
			m.reason = msg.result.Reason.String()
		}
	}
	return m, nil
}

func (m *monitorModel) addRow(r *dl24.Reading) {
	ext, load := "-", "-"
	if r.ExternalTemp != nil {
		ext = fmt.Sprintf("%.1f", *r.ExternalTemp)
	}
	if r.Resistance != nil {
		load = fmt.Sprintf("%.1f", *r.Resistance)
	}
	row := table.Row{
		time.Unix(r.Timestamp, 0).Format("15:04:05"),
		fmt.Sprintf("%.1f V", r.Voltage),
		fmt.Sprintf("%d mA", r.Current),
		fmt.Sprintf("%d mAh", r.Capacity),
		fmt.Sprintf("%.2f W", r.Power),
		fmt.Sprintf("%d", r.MosfetTemp),
		ext,
		load,
	}

	// Newest first
	m.rows = append([]table.Row{row}, m.rows...)
	if len(m.rows) > monitorRows {
		m.rows = m.rows[:monitorRows]
	}
	m.recent.SetRows(m.rows)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Closing outputs...\n"
	}

	// Styles
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
	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("DL24 LOGGER - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Session: %s | Press 'q' to quit", m.connInfo, m.sessionID)))
	s.WriteString("\n")
	if m.fileName != "" {
		s.WriteString(headerStyle.Render("File: " + m.fileName))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Latest reading
	var reading strings.Builder
	if m.latest == nil {
		reading.WriteString(warningStyle.Render("⏳ Waiting for data frames..."))
	} else {
		r := m.latest
		reading.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Voltage:"), valueStyle.Render(fmt.Sprintf("%.1f V", r.Voltage)),
			labelStyle.Render("Current:"), valueStyle.Render(fmt.Sprintf("%d mA", r.Current)),
			labelStyle.Render("Power:"), valueStyle.Render(fmt.Sprintf("%.2f W", r.Power)),
		))
		reading.WriteString(fmt.Sprintf("%s %s   %s %s",
			labelStyle.Render("Capacity:"), valueStyle.Render(fmt.Sprintf("%d mAh", r.Capacity)),
			labelStyle.Render("MOSFET:"), valueStyle.Render(fmt.Sprintf("%d", r.MosfetTemp)),
		))
		if r.Resistance != nil {
			reading.WriteString(fmt.Sprintf("   %s %s",
				labelStyle.Render("Load:"), valueStyle.Render(fmt.Sprintf("%.1f Ohm", *r.Resistance))))
		}
		if r.ExternalTemp != nil {
			reading.WriteString(fmt.Sprintf("   %s %s",
				labelStyle.Render("External:"), valueStyle.Render(fmt.Sprintf("%.1f", *r.ExternalTemp))))
		}
	}
	s.WriteString(boxStyle.Render(reading.String()))
	s.WriteString("\n\n")

	// Session and counters
	stateStyle := valueStyle
	if m.state == session.StateStopped {
		stateStyle = warningStyle
	}
	var counters strings.Builder
	counters.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("State:"), stateStyle.Render(m.state.String()),
		labelStyle.Render("Ext Average:"), valueStyle.Render(m.averageText()),
	))
	counters.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Emitted:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.EmittedReadings)),
		labelStyle.Render("Suppressed:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.SuppressedReadings)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
	))
	if m.stats.ChecksumErrors > 0 || m.stats.SensorErrors > 0 {
		counters.WriteString(fmt.Sprintf("\n%s %s   %s %s",
			labelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			labelStyle.Render("Sensor Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.SensorErrors)),
		))
	}
	s.WriteString(boxStyle.Render(counters.String()))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Recent Readings:"))
	s.WriteString("\n")
	s.WriteString(m.recent.View())
	s.WriteString("\n")

	if m.done {
		s.WriteString("\n")
		if m.doneErr != nil {
			s.WriteString(errorStyle.Render(fmt.Sprintf("Capture ended (%s): %v", m.reason, m.doneErr)))
		} else {
			s.WriteString(warningStyle.Render(fmt.Sprintf("Capture ended (%s)", m.reason)))
		}
		s.WriteString("\n")
	}

	return s.String()
}

func (m monitorModel) averageText() string {
	if m.extCount == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", m.extSum/float64(m.extCount))
}

func runMonitor(cmd *cobra.Command, args []string) error {
	applyCaptureFlags(cmd, cfg)
	cfg.Output.ConsoleFormat = "none"
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Session.PowerOn {
		if err := sendCommand(conn, dl24.CommandOK); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClose()

	p, err := newPipeline(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer p.close()

	m := newMonitorModel(connInfo, p.sessionID, p.fileName, cancel)
	prog := tea.NewProgram(m)

	// Capture loop; the outputs are closed when it returns
	done := make(chan error, 1)
	go func() {
		res, err := capture.Run(ctx, conn, p.captureConfig(cfg, dashboardRecorder{send: prog.Send}))
		prog.Send(captureDoneMsg{result: res, err: err})
		if res != nil && res.Reason == capture.ReasonInterrupted {
			prog.Quit()
		}
		done <- err
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("TUI error: %v", err)
	}

	cancel()
	return <-done
}
