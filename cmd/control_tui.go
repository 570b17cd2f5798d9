// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/control"
	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/Thermoquad/gyrostat/pkg/remote"
	"github.com/Thermoquad/gyrostat/pkg/session"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	refreshInterval = 50 * time.Millisecond // Drain the reading buffer every N
	statsInterval   = time.Second
	maxLogEntries   = 100
	eventLogHeight  = 8
	portListWidth   = 34
	minGaugeWidth   = 10
)

// focusPortList is the port picker; inputs follow at focusPortList+1+i
const focusPortList = 0

var paramLabels = map[control.Param]string{
	control.ParamKp:       "Kp",
	control.ParamKi:       "Ki",
	control.ParamKd:       "Kd",
	control.ParamTau:      "Tau",
	control.ParamSetpoint: "Setpoint",
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// panelController is the part of the session controller the panel drives
type panelController interface {
	Connect(ctx context.Context, port string, baud int) error
	Disconnect()
	State() session.State
	Stats() linewire.Statistics
	Port() string
	Baud() int
	Variant() linewire.Variant
}

// portItem adapts an enumerated port to list.Item
type portItem struct {
	session.PortInfo
}

func (p portItem) Title() string       { return p.Name }
func (p portItem) Description() string { return p.PortInfo.Description() }
func (p portItem) FilterValue() string { return p.Name }

// controlDeps is everything the panel is wired to
type controlDeps struct {
	ctx      context.Context
	ctrl     panelController
	ports    session.Enumerator
	post     func(control.Event)
	pending  func() bool
	readings *readingBuffer
	info     string
	autoPort string // connected on start when set
	baud     int
	ranges   map[linewire.Channel]linewire.Range
	store    *control.Store
	feed     remote.Feed // nil without a remote feed
}

// controlModel is the Bubble Tea model for the control panel
type controlModel struct {
	controlDeps

	variant  linewire.Variant
	portList list.Model
	baudIdx  int
	inputs   []textinput.Model // one per control.Params entry, then color
	invalid  []bool
	gauges   map[linewire.Channel]progress.Model
	focus    int

	// Mirrors of controller and store state, refreshed on ticks
	state        linewire.ControlState
	stateVersion uint64
	reading      linewire.Reading
	readingCount uint64
	stats        linewire.Statistics
	status       session.Status
	connectedAt  time.Time

	// Remote feed
	remoteValue float64
	hasRemote   bool

	events   eventLog
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type refreshTickMsg time.Time

type statsTickMsg time.Time

type statusMsg session.Status

type resetMsg struct{}

type sendErrorMsg struct {
	err error
}

type remoteSetpointMsg struct {
	value float64
}

type remoteFeedMsg struct {
	err error
}

type connectResultMsg struct {
	port string
	err  error
}

type portsMsg struct {
	ports []session.PortInfo
	err   error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(deps controlDeps) controlModel {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	portList := list.New([]list.Item{}, delegate, portListWidth, 10)
	portList.Title = "Ports"
	portList.SetShowStatusBar(false)
	portList.SetShowHelp(false)
	portList.SetFilteringEnabled(false)
	portList.KeyMap.Quit.SetEnabled(false)

	state := deps.store.Snapshot()

	inputs := make([]textinput.Model, len(control.Params)+1)
	for i, p := range control.Params {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = "0"
		ti.CharLimit = 16
		ti.Width = 12
		ti.SetValue(linewire.FormatNumber(p.Value(state)))
		inputs[i] = ti
	}
	color := textinput.New()
	color.Prompt = ""
	color.Placeholder = "RRGGBB"
	color.CharLimit = 7
	color.Width = 12
	color.SetValue(state.Color)
	inputs[len(control.Params)] = color

	variant := deps.ctrl.Variant()
	gauges := make(map[linewire.Channel]progress.Model)
	for _, c := range variant.Channels() {
		gauges[c] = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	}

	baudIdx := slices.Index(session.BaudRates, deps.baud)
	if baudIdx < 0 {
		baudIdx = slices.Index(session.BaudRates, session.DefaultBaud)
	}

	m := controlModel{
		controlDeps:  deps,
		variant:      variant,
		portList:     portList,
		baudIdx:      baudIdx,
		inputs:       inputs,
		invalid:      make([]bool, len(inputs)),
		gauges:       gauges,
		focus:        focusPortList,
		state:        state,
		stateVersion: deps.store.Version(),
		events:       newEventLog(maxLogEntries),
		width:        80,
		height:       24,
	}
	m.updateListSize()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	cmds := []tea.Cmd{refreshTickCmd(), statsTickCmd(), m.loadPortsCmd()}
	if m.autoPort != "" {
		cmds = append(cmds, m.connectCmd(m.autoPort))
	}
	return tea.Batch(cmds...)
}

func refreshTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func statsTickCmd() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.handleKeyMsg(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case refreshTickMsg:
		if r, count, ok := m.readings.take(); ok {
			m.reading = r
			m.readingCount = count
		}
		m.refreshState()
		return m, refreshTickCmd()

	case statsTickMsg:
		m.stats = m.ctrl.Stats()
		return m, statsTickCmd()

	case statusMsg:
		m.handleStatus(session.Status(msg))

	case resetMsg:
		m.reading = nil

	case sendErrorMsg:
		m.events.add(fmt.Sprintf("Send failed: %v", msg.err), true)

	case remoteSetpointMsg:
		if !m.hasRemote {
			m.events.add(fmt.Sprintf("Remote feed: first setpoint %s", linewire.FormatNumber(msg.value)), false)
		}
		m.remoteValue = msg.value
		m.hasRemote = true

	case remoteFeedMsg:
		m.events.add(fmt.Sprintf("Remote feed stopped: %v", msg.err), true)

	case connectResultMsg:
		// Other failures arrive as status messages
		if errors.Is(msg.err, session.ErrBusy) {
			m.events.add(fmt.Sprintf("Cannot connect to %s: %v", msg.port, msg.err), true)
		}

	case portsMsg:
		return m, m.handlePorts(msg)

	default:
		// Cursor blink for the focused input
		if i := m.focus - 1; i >= 0 {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return tea.Quit

	case "tab":
		return m.cycleFocus(1)

	case "shift+tab":
		return m.cycleFocus(-1)
	}

	if m.focus != focusPortList {
		return m.handleInputKey(msg)
	}

	switch key := msg.String(); key {
	case "q":
		m.quitting = true
		return tea.Quit

	case "enter":
		item, ok := m.portList.SelectedItem().(portItem)
		if !ok {
			m.events.add("No port selected", true)
			return nil
		}
		return m.connectCmd(item.Name)

	case "d":
		ctrl := m.ctrl
		return func() tea.Msg {
			ctrl.Disconnect()
			return nil
		}

	case "b":
		m.baudIdx = (m.baudIdx + 1) % len(session.BaudRates)
		m.events.add(fmt.Sprintf("Baud rate: %d (used on next connect)", m.selectedBaud()), false)

	case "r":
		return m.loadPortsCmd()

	case "m":
		m.post(control.SetRemoteMode{Enabled: !m.state.UseRemoteSetpoint})

	case "1", "2", "3", "4", "5", "6", "7", "8":
		m.post(control.ToggleLED{Index: int(key[0] - '1')})

	case "[", "]":
		if m.state.Motors == nil {
			m.events.add(control.ErrNoMotors.Error(), true)
			return nil
		}
		if key == "[" {
			m.post(control.SetMotor{Motor: control.MotorLeft, On: !m.state.Motors.Left})
		} else {
			m.post(control.SetMotor{Motor: control.MotorRight, On: !m.state.Motors.Right})
		}

	case "o":
		m.post(control.ResetOutputs{})
		m.post(control.Flush{})
		m.events.add("Outputs off", false)

	case "s":
		m.post(control.Flush{})

	default:
		var cmd tea.Cmd
		m.portList, cmd = m.portList.Update(msg)
		return cmd
	}

	return nil
}

// handleInputKey edits the focused input and posts the parsed value
func (m *controlModel) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	i := m.focus - 1
	switch msg.String() {
	case "esc":
		return m.setFocus(focusPortList)

	case "enter":
		m.post(control.Flush{})
		return nil
	}

	if m.locked(i) {
		m.events.add(control.ErrSetpointLocked.Error(), true)
		return nil
	}

	before := m.inputs[i].Value()
	var cmd tea.Cmd
	m.inputs[i], cmd = m.inputs[i].Update(msg)
	if value := m.inputs[i].Value(); value != before {
		m.applyInput(i, value)
	}
	return cmd
}

// applyInput validates an edited input and posts its event. Invalid text
// stays in the input, marked, until it parses or focus leaves.
func (m *controlModel) applyInput(i int, value string) {
	value = strings.TrimSpace(value)

	if i == len(control.Params) {
		if value != "" {
			if _, err := linewire.NormalizeColor(value); err != nil {
				m.invalid[i] = true
				return
			}
		}
		m.invalid[i] = false
		m.post(control.SetColor{Color: value})
		return
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		m.invalid[i] = true
		return
	}
	m.invalid[i] = false
	m.post(control.SetParam{Param: control.Params[i], Value: v})
}

// locked reports whether input i is the setpoint while the remote feed drives it
func (m *controlModel) locked(i int) bool {
	return i < len(control.Params) &&
		control.Params[i] == control.ParamSetpoint &&
		m.state.UseRemoteSetpoint
}

func (m *controlModel) cycleFocus(delta int) tea.Cmd {
	n := len(m.inputs) + 1
	return m.setFocus((m.focus + delta + n) % n)
}

func (m *controlModel) setFocus(focus int) tea.Cmd {
	m.focus = focus
	var cmd tea.Cmd
	for i := range m.inputs {
		if i+1 == focus {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	m.syncInputs()
	return cmd
}

// refreshState picks up changes the dispatcher committed to the store
func (m *controlModel) refreshState() {
	if v := m.store.Version(); v != m.stateVersion {
		m.stateVersion = v
		m.state = m.store.Snapshot()
		m.syncInputs()
	}
}

// syncInputs shows the stored state in every input not being edited
func (m *controlModel) syncInputs() {
	for i, p := range control.Params {
		if i+1 != m.focus {
			m.inputs[i].SetValue(linewire.FormatNumber(p.Value(m.state)))
			m.invalid[i] = false
		}
	}
	if c := len(control.Params); c+1 != m.focus {
		m.inputs[c].SetValue(m.state.Color)
		m.invalid[c] = false
	}
}

func (m *controlModel) handleStatus(s session.Status) {
	m.status = s
	if s.Message != "" {
		m.events.add(s.Message, s.Err != nil)
	}

	switch {
	case s.Connected:
		m.connectedAt = time.Now()
		m.stats = linewire.Statistics{}
		// Bring the freshly opened device in line with the panel
		m.post(control.Flush{})
	case s.State == session.StateClosed:
		m.connectedAt = time.Time{}
	}
}

func (m *controlModel) handlePorts(msg portsMsg) tea.Cmd {
	if msg.err != nil {
		m.events.add(fmt.Sprintf("Port scan failed: %v", msg.err), true)
		return nil
	}

	selected := m.autoPort
	if item, ok := m.portList.SelectedItem().(portItem); ok {
		selected = item.Name
	}

	items := make([]list.Item, len(msg.ports))
	for i, p := range msg.ports {
		items[i] = portItem{p}
	}
	cmd := m.portList.SetItems(items)

	if i := slices.IndexFunc(msg.ports, func(p session.PortInfo) bool { return p.Name == selected }); i >= 0 {
		m.portList.Select(i)
	}
	m.events.add(fmt.Sprintf("Found %d port(s)", len(msg.ports)), false)
	return cmd
}

func (m controlModel) connectCmd(port string) tea.Cmd {
	ctx, ctrl, baud := m.ctx, m.ctrl, m.selectedBaud()
	return func() tea.Msg {
		return connectResultMsg{port: port, err: ctrl.Connect(ctx, port, baud)}
	}
}

func (m controlModel) loadPortsCmd() tea.Cmd {
	ports := m.ports
	return func() tea.Msg {
		found, err := ports.Ports()
		return portsMsg{ports: found, err: err}
	}
}

func (m controlModel) selectedBaud() int {
	return session.BaudRates[m.baudIdx]
}

func (m *controlModel) updateListSize() {
	// Header, gauges and control panel rows below the list
	listHeight := max(m.height-eventLogHeight-12, 6)
	m.portList.SetSize(portListWidth, listHeight)

	gaugeWidth := max(m.rightWidth()-32, minGaugeWidth)
	for c, g := range m.gauges {
		g.Width = gaugeWidth
		m.gauges[c] = g
	}
}

func (m controlModel) rightWidth() int {
	return max(m.width-portListWidth-6, 40)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("GYROSTAT CONTROL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | ", m.info)))
	s.WriteString(m.renderConnState())
	s.WriteString("\n\n")

	// Layout: left panel (ports) | right panel (gauges, controls)
	listStyle := boxStyle.Width(portListWidth)
	if m.focus == focusPortList {
		listStyle = focusedBoxStyle.Width(portListWidth)
	}
	portPanel := listStyle.Render(m.portList.View() + "\n" + m.renderBaud())

	controlStyle := boxStyle
	if m.focus != focusPortList {
		controlStyle = focusedBoxStyle
	}
	rightPanel := lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Width(m.rightWidth()).Render(m.renderGauges()),
		controlStyle.Width(m.rightWidth()).Render(m.renderControlPanel()),
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, portPanel, " ", rightPanel))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")
	s.WriteString(m.events.render(eventLogHeight, m.width-4))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(m.helpText()))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderConnState() string {
	switch m.status.State {
	case session.StateOpen:
		return statsValueStyle.Render(fmt.Sprintf("CONNECTED %s @ %d", m.status.Port, m.ctrl.Baud()))
	case session.StateOpening:
		return warningStyle.Render("OPENING " + m.status.Port)
	case session.StateClosing:
		return warningStyle.Render("CLOSING")
	default:
		return errorStyle.Render("DISCONNECTED")
	}
}

func (m controlModel) renderBaud() string {
	return fmt.Sprintf("%s %s",
		statsLabelStyle.Render("Baud:"),
		statsValueStyle.Render(strconv.Itoa(m.selectedBaud())))
}

func (m controlModel) renderGauges() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("TELEMETRY"))
	if m.readingCount > 0 {
		s.WriteString(headerStyle.Render(fmt.Sprintf("  %d readings", m.readingCount)))
	}

	for _, c := range m.variant.Channels() {
		r := m.ranges[c]
		bar := m.gauges[c]

		v, ok := m.reading[c]
		value := "     ---"
		gauge := bar.ViewAs(0)
		needle := ""
		if ok {
			value = fmt.Sprintf("%8.1f", v)
			gauge = bar.ViewAs(r.Fraction(v))
			needle = fmt.Sprintf("%+4.0f°", r.NeedleAngle(v))
		}

		fmt.Fprintf(&s, "\n%s %s %s %s",
			statsLabelStyle.Render(fmt.Sprintf("%-6s", linewire.FormatChannel(c))),
			gauge,
			statsValueStyle.Render(value),
			headerStyle.Render(needle))
	}

	return s.String()
}

func (m controlModel) renderControlPanel() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("CONTROL"))
	if m.pending != nil && m.pending() {
		s.WriteString(warningStyle.Render("  send pending"))
	}
	s.WriteString("\n")

	for i, p := range control.Params {
		fmt.Fprintf(&s, "%s %s",
			statsLabelStyle.Render(fmt.Sprintf("%-9s", paramLabels[p])),
			m.renderInput(i))
		if p == control.ParamSetpoint && m.state.UseRemoteSetpoint {
			s.WriteString(warningStyle.Render(" remote " + linewire.FormatNumber(m.state.RemoteSetpoint)))
		}
		s.WriteString("\n")
	}
	fmt.Fprintf(&s, "%s %s\n",
		statsLabelStyle.Render(fmt.Sprintf("%-9s", "Color")),
		m.renderInput(len(control.Params)))

	// Remote mode
	remoteState := headerStyle.Render("OFF")
	if m.state.UseRemoteSetpoint {
		remoteState = statsValueStyle.Render("ON")
	}
	feed := "no feed configured"
	if m.feed != nil {
		feed = m.feed.String()
		if m.hasRemote {
			feed += " (last " + linewire.FormatNumber(m.remoteValue) + ")"
		}
	}
	fmt.Fprintf(&s, "%s %s %s\n",
		statsLabelStyle.Render(fmt.Sprintf("%-9s", "Remote")),
		remoteState,
		headerStyle.Render(feed))

	// LEDs
	s.WriteString(statsLabelStyle.Render(fmt.Sprintf("%-9s", "LEDs")))
	for i := range linewire.LEDCount {
		style := buttonStyle
		if m.state.LEDs.On(i) {
			style = activeButtonStyle
		}
		s.WriteString(" ")
		s.WriteString(style.Render(strconv.Itoa(i)))
	}

	// Motors
	if m.state.Motors != nil {
		s.WriteString("\n")
		s.WriteString(statsLabelStyle.Render(fmt.Sprintf("%-9s", "Motors")))
		for _, motor := range []struct {
			name string
			on   bool
		}{
			{"Left", m.state.Motors.Left},
			{"Right", m.state.Motors.Right},
		} {
			style := buttonStyle
			if motor.on {
				style = activeButtonStyle
			}
			s.WriteString(" ")
			s.WriteString(style.Render(motor.name))
		}
	}

	return s.String()
}

func (m controlModel) renderInput(i int) string {
	in := m.inputs[i]
	if m.focus == i+1 {
		view := in.View()
		if m.invalid[i] {
			view += errorStyle.Render(" invalid")
		}
		return view
	}

	val := in.Value()
	if val == "" {
		val = in.Placeholder
	}
	if m.locked(i) {
		return headerStyle.Render(fmt.Sprintf("[%s] locked", val))
	}
	return fmt.Sprintf("[%s]", val)
}

func (m controlModel) renderStatisticsBar() string {
	st := m.stats
	var decodedPercent float64
	if st.TotalLines > 0 {
		decodedPercent = float64(st.DecodedLines) * 100.0 / float64(st.TotalLines)
	}

	sent := statsValueStyle.Render(strconv.FormatUint(st.CommandsSent, 10))
	if st.WriteErrors > 0 {
		sent += errorStyle.Render(fmt.Sprintf(" (%d failed)", st.WriteErrors))
	}

	uptime := "-"
	if !m.connectedAt.IsZero() {
		uptime = formatUptime(time.Since(m.connectedAt))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Lines:"), statsValueStyle.Render(strconv.FormatUint(st.TotalLines, 10)),
		statsLabelStyle.Render("Decoded:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", decodedPercent)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f Hz", st.ReadingHz)),
		statsLabelStyle.Render("Sent:"), sent,
		statsLabelStyle.Render("Connected:"), statsValueStyle.Render(uptime),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) helpText() string {
	if m.focus != focusPortList {
		return "type to edit | enter=send now esc=ports tab=next | ctrl+c=quit"
	}
	help := "enter=connect d=disconnect b=baud r=ports s=send m=remote 1-8=LED 0-7 o=off"
	if m.variant.HasMotors() {
		help += " [ ]=motors"
	}
	return help + " tab=inputs q=quit"
}
