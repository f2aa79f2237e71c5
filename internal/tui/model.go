package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"serial-monitor/internal/console"
	"serial-monitor/internal/monitor"
	"serial-monitor/internal/record"
	"serial-monitor/internal/store"
)

const (
	sparkWidth   = 24
	maxTableRows = 12
)

type dialog int

const (
	dialogNone dialog = iota
	dialogNames
	dialogSave
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

type model struct {
	deps       Deps
	table      table.Model
	vp         viewport.Model
	input      textinput.Model
	dialog     dialog
	stats      []store.ChannelStats
	spark      []string
	samples    int
	settings   monitor.Settings
	recording  bool
	admin      bool
	entries    []console.Entry
	consoleSeq uint64
	lastEvent  string
	notice     string
	wrap       bool
	autoscroll bool
	help       bool
	width      int
	height     int
}

func newModel(d Deps) model {
	if d.Refresh <= 0 {
		d.Refresh = DefaultRefresh
	}
	if d.CSVPath == nil {
		d.CSVPath = func(s string) string { return s }
	}
	cols := []table.Column{
		{Title: "Channel", Width: 16},
		{Title: "Latest", Width: 12},
		{Title: "Min", Width: 12},
		{Title: "Max", Width: 12},
		{Title: "Samples", Width: 8},
		{Title: "Trend", Width: sparkWidth},
	}
	m := model{
		deps:       d,
		table:      table.New(table.WithColumns(cols), table.WithHeight(2)),
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
	m.refresh()
	return m
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return tick(m.deps.Refresh) }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.updateViewportHeight()
		m.refreshViewport()
	case tickMsg:
		m.refresh()
		return m, tick(m.deps.Refresh)
	case eventMsg:
		m.lastEvent = formatEvent(msg.Event)
	case adminMsg:
		m.admin = msg.active
	case tea.KeyMsg:
		if m.dialog != dialogNone {
			return m.updateDialog(msg)
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			case "q", "ctrl+c":
				return m, tea.Quit
			}
			return m, nil
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "c":
		m.send(monitor.ClearControl())
	case "+", "=":
		m.send(monitor.BufferSizeControl(max(m.settings.BufferSize*2, 1)))
	case "-":
		m.send(monitor.BufferSizeControl(max(m.settings.BufferSize/2, 1)))
	case "r":
		opts := m.settings.RawTraffic
		opts.Enable = !opts.Enable
		m.send(monitor.RawTrafficControl(opts))
	case "p":
		next := monitor.WindowProtocol
		if m.settings.Window == monitor.WindowProtocol {
			next = monitor.WindowRaw
		}
		m.send(monitor.WindowControl(next))
	case "n":
		m.openDialog(dialogNames, "name,name,...", strings.Join(m.names(), ","))
	case "S":
		name := "serial_" + time.Now().Format("20060102_150405") + ".csv"
		m.openDialog(dialogSave, "file.csv", name)
	case "R":
		if m.deps.Recorder != nil {
			m.deps.Recorder.SetEnabled(!m.deps.Recorder.Enabled())
			m.recording = m.deps.Recorder.Enabled()
		}
	case "w":
		m.wrap = !m.wrap
		m.refreshViewport()
	case "s":
		m.autoscroll = !m.autoscroll
		if m.autoscroll {
			m.vp.GotoBottom()
		}
	case "?", "h":
		m.help = true
	case "k", "up":
		if !m.autoscroll {
			m.vp.LineUp(1)
		}
	case "j", "down":
		if !m.autoscroll {
			m.vp.LineDown(1)
		}
	}
	return m, nil
}

func (m model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		val := strings.TrimSpace(m.input.Value())
		switch m.dialog {
		case dialogNames:
			m.send(monitor.NamesControl(parseNames(val)))
		case dialogSave:
			if val != "" {
				m.send(monitor.SaveControl(record.FileOptions{
					FilePath:         m.deps.CSVPath(val),
					SaveAbsoluteTime: true,
					SaveRawTraffic:   m.settings.RawTraffic.Enable,
				}))
			}
		}
		m.dialog = dialogNone
		m.updateViewportHeight()
	case tea.KeyEsc:
		m.dialog = dialogNone
		m.updateViewportHeight()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) openDialog(d dialog, placeholder, value string) {
	m.input = textinput.New()
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	m.dialog = d
	m.updateViewportHeight()
}

// send queues c without blocking the render loop.
func (m *model) send(c monitor.Control) {
	if m.deps.Controls == nil {
		return
	}
	select {
	case m.deps.Controls <- c:
		m.notice = ""
	default:
		m.notice = "control queue full, " + c.Kind.String() + " dropped"
	}
}

func (m model) names() []string {
	names := make([]string, len(m.stats))
	for i, st := range m.stats {
		names[i] = st.Name
	}
	return names
}

func parseNames(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// refresh pulls the latest state from the store, console and engine.
func (m *model) refresh() {
	if m.deps.Store != nil {
		snap := m.deps.Store.Recent(sparkWidth)
		m.stats = snap.Channels()
		m.spark = make([]string, len(snap.Dataset))
		for i, set := range snap.Dataset {
			m.spark[i] = sparkline(set)
		}
		m.samples = snap.Total
	}
	if m.deps.Settings != nil {
		m.settings = m.deps.Settings.Settings()
	}
	if m.deps.Recorder != nil {
		m.recording = m.deps.Recorder.Enabled()
	}
	m.table.SetRows(m.rows())
	m.table.SetHeight(min(len(m.stats), maxTableRows) + 1)
	if m.deps.Console != nil {
		if seq := m.deps.Console.Seq(); seq != m.consoleSeq {
			m.consoleSeq = seq
			m.entries = m.deps.Console.Entries()
			m.refreshViewport()
		}
	}
	m.updateViewportHeight()
}

func (m model) rows() []table.Row {
	rows := make([]table.Row, len(m.stats))
	for i, st := range m.stats {
		rows[i] = table.Row{
			st.Name,
			formatValue(st.Latest),
			formatValue(st.Min),
			formatValue(st.Max),
			strconv.Itoa(st.Samples),
			m.spark[i],
		}
	}
	return rows
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatEvent(ev monitor.Event) string {
	switch {
	case ev.Value != 0:
		return fmt.Sprintf("%s %g", ev.Kind, ev.Value)
	case ev.Index != 0:
		return fmt.Sprintf("%s %d", ev.Kind, ev.Index)
	default:
		return ev.Kind.String()
	}
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline scales values into block characters between their finite min
// and max. NaN and ±Inf render as a space.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if finite(v) {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	top := len(sparkLevels) - 1
	out := make([]rune, len(values))
	for i, v := range values {
		if !finite(v) {
			out[i] = ' '
			continue
		}
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(top))
		}
		out[i] = sparkLevels[min(max(idx, 0), top)]
	}
	return string(out)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (m *model) updateViewportHeight() {
	used := lipgloss.Height(m.renderHeader()) + lipgloss.Height(m.table.View()) + lipgloss.Height(m.renderBottom()) + 3
	m.vp.Height = max(m.height-used, 0)
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *model) refreshViewport() {
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		line := e.Timestamp.Format("15:04:05.000") + " " + e.Text
		if m.wrap && m.vp.Width > 0 {
			line = wordwrap.String(line, m.vp.Width)
		}
		switch e.Level {
		case console.Ok:
			line = okStyle.Render(line)
		case console.Error:
			line = errorStyle.Render(line)
		case console.Debug:
			line = debugStyle.Render(line)
		}
		lines = append(lines, line)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m model) View() string {
	if m.help {
		return renderHelp()
	}
	divider := strings.Repeat("─", m.width)
	sections := []string{
		m.renderHeader(),
		divider,
		m.table.View(),
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}

func (m model) renderHeader() string {
	raw := "off"
	if m.settings.RawTraffic.Enable {
		raw = fmt.Sprintf("on (%d)", m.settings.RawTraffic.MaxLen)
	}
	event := m.lastEvent
	if event == "" {
		event = "-"
	}
	return fmt.Sprintf("%s window=%s buffer=%d samples=%d raw=%s event=%s",
		titleStyle.Render("SERIAL MONITOR"), m.settings.Window, m.settings.BufferSize, m.samples, raw, event)
}

func indicator(on bool) string {
	if on {
		return okStyle.Render("●")
	}
	return errorStyle.Render("●")
}

func (m model) renderBottom() string {
	switch m.dialog {
	case dialogNames:
		return "Channel names: " + m.input.View()
	case dialogSave:
		return "Save CSV as: " + m.input.View()
	}
	line := fmt.Sprintf("Recording %s | Admin UI %s | Wrap %s | Scroll %s | ? help",
		indicator(m.recording), indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll))
	if m.notice != "" {
		line = errorStyle.Render(m.notice) + "\n" + line
	}
	return line
}

func renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q    quit",
		" c    clear all data",
		" +/-  double/halve buffer size",
		" r    toggle raw traffic capture",
		" p    toggle protocol window",
		" n    set channel names (comma separated)",
		" S    save buffer to CSV",
		" R    toggle recording",
		" w    toggle console wrap",
		" s    toggle console auto-scroll",
		" h/?  toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down  scroll one line",
	}
	return strings.Join(lines, "\n")
}
