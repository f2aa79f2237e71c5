package tui

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"serial-monitor/internal/console"
	"serial-monitor/internal/monitor"
	"serial-monitor/internal/store"
)

type fakeProgram struct {
	mu   sync.Mutex
	msgs []tea.Msg
	quit chan struct{}
	once sync.Once
	// block makes Run wait for Quit.
	block bool
}

func newFakeProgram(block bool) *fakeProgram {
	return &fakeProgram{quit: make(chan struct{}), block: block}
}

func (f *fakeProgram) Send(msg tea.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeProgram) Run() (tea.Model, error) {
	if f.block {
		<-f.quit
	}
	return nil, nil
}

func (f *fakeProgram) Quit() { f.once.Do(func() { close(f.quit) }) }

type fakeSettings struct{ s monitor.Settings }

func (f fakeSettings) Settings() monitor.Settings { return f.s }

type fakeSwitch struct{ on bool }

func (f *fakeSwitch) Enabled() bool      { return f.on }
func (f *fakeSwitch) SetEnabled(on bool) { f.on = on }

func key(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func testModel(t *testing.T, queue int) (model, chan monitor.Control, *fakeSwitch) {
	t.Helper()
	st := store.New()
	st.Update(func(d *store.DataContainer) {
		d.Reset(2)
		for i := 0; i < 5; i++ {
			_ = d.Append(time.Duration(i)*time.Millisecond, time.Unix(int64(i), 0), []float64{float64(i), float64(10 - i)}, 100)
		}
	})
	sink := console.NewSink(10, nil)
	sink.Okf("connected to %s at %d baud", "/dev/ttyFAKE", 115200)
	sink.Errorf("serial port %s: %v", "/dev/ttyFAKE", errors.New("busy"))

	controls := make(chan monitor.Control, queue)
	rec := &fakeSwitch{}
	m := newModel(Deps{
		Store:   st,
		Console: sink,
		Settings: fakeSettings{monitor.Settings{
			BufferSize: 100,
			RawTraffic: monitor.RawTrafficOptions{MaxLen: 50},
			Window:     monitor.WindowProtocol,
		}},
		Controls: controls,
		Recorder: rec,
		CSVPath:  func(name string) string { return "exports/" + name },
	})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return mi.(model), controls, rec
}

func press(m model, keys ...tea.KeyMsg) model {
	for _, k := range keys {
		mi, _ := m.Update(k)
		m = mi.(model)
	}
	return m
}

func TestRefreshShowsChannelsAndConsole(t *testing.T) {
	m, _, _ := testModel(t, 1)
	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Column 0" || rows[0][1] != "4" || rows[1][2] != "6" || rows[1][3] != "10" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if m.samples != 5 {
		t.Fatalf("expected 5 samples, got %d", m.samples)
	}
	view := m.View()
	if !strings.Contains(view, "connected to /dev/ttyFAKE") || !strings.Contains(view, "busy") {
		t.Fatalf("console entries missing from view:\n%s", view)
	}
	if !strings.Contains(view, "window=protocol") {
		t.Fatalf("header missing window state:\n%s", view)
	}
}

func TestKeysSendControls(t *testing.T) {
	cases := []struct {
		key   rune
		check func(monitor.Control) bool
	}{
		{'c', func(c monitor.Control) bool { return c.Kind == monitor.Clear }},
		{'+', func(c monitor.Control) bool { return c.Kind == monitor.SetBufferSize && c.BufferSize == 200 }},
		{'-', func(c monitor.Control) bool { return c.Kind == monitor.SetBufferSize && c.BufferSize == 50 }},
		{'r', func(c monitor.Control) bool {
			return c.Kind == monitor.SetRawTraffic && c.RawTraffic.Enable && c.RawTraffic.MaxLen == 50
		}},
		{'p', func(c monitor.Control) bool { return c.Kind == monitor.SetWindow && c.Window == monitor.WindowRaw }},
	}
	for _, tc := range cases {
		m, controls, _ := testModel(t, 1)
		press(m, key(tc.key))
		select {
		case c := <-controls:
			if !tc.check(c) {
				t.Errorf("%q: unexpected control %+v", tc.key, c)
			}
		default:
			t.Errorf("%q: no control sent", tc.key)
		}
	}
}

func TestNamesDialog(t *testing.T) {
	m, controls, _ := testModel(t, 1)
	m = press(m, key('n'))
	if m.dialog != dialogNames {
		t.Fatalf("names dialog not opened")
	}
	if m.input.Value() != "Column 0,Column 1" {
		t.Fatalf("dialog should start with current names, got %q", m.input.Value())
	}
	m.input.SetValue("Freq. , Resp.")
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.dialog != dialogNone {
		t.Fatalf("dialog not closed")
	}
	c := <-controls
	if c.Kind != monitor.SetNames || len(c.Names) != 2 || c.Names[0] != "Freq." || c.Names[1] != "Resp." {
		t.Fatalf("unexpected control %+v", c)
	}
}

func TestSaveDialog(t *testing.T) {
	m, controls, _ := testModel(t, 1)
	m = press(m, key('S'))
	if m.dialog != dialogSave {
		t.Fatalf("save dialog not opened")
	}
	m.input.SetValue("run.csv")
	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	c := <-controls
	if c.Kind != monitor.SaveCSV || c.File.FilePath != "exports/run.csv" || !c.File.SaveAbsoluteTime {
		t.Fatalf("unexpected control %+v", c)
	}
}

func TestDialogEscapeSendsNothing(t *testing.T) {
	m, controls, _ := testModel(t, 1)
	m = press(m, key('S'), tea.KeyMsg{Type: tea.KeyEsc})
	if m.dialog != dialogNone || len(controls) != 0 {
		t.Fatalf("escape must close the dialog without sending")
	}
}

func TestQueueFullSetsNotice(t *testing.T) {
	m, controls, _ := testModel(t, 1)
	controls <- monitor.ClearControl()
	m = press(m, key('c'))
	if !strings.Contains(m.notice, "dropped") {
		t.Fatalf("expected drop notice, got %q", m.notice)
	}
}

func TestRecordToggle(t *testing.T) {
	m, _, rec := testModel(t, 1)
	m = press(m, key('R'))
	if !rec.on || !m.recording {
		t.Fatalf("recording should be on")
	}
	press(m, key('R'))
	if rec.on {
		t.Fatalf("recording should be off")
	}
}

func TestEventAndAdminMessages(t *testing.T) {
	m, _, _ := testModel(t, 1)
	mi, _ := m.Update(eventMsg{monitor.Event{Kind: monitor.ShotStart, Index: 3}})
	mi, _ = mi.(model).Update(adminMsg{active: true})
	m = mi.(model)
	if m.lastEvent != "SHOTST 3" || !m.admin {
		t.Fatalf("unexpected state event=%q admin=%v", m.lastEvent, m.admin)
	}
	if got := formatEvent(monitor.Event{Kind: monitor.PhaseBaseResult, Value: 1.5}); got != "PHABASE 1.5" {
		t.Fatalf("formatEvent = %q", got)
	}
}

func TestHelpToggle(t *testing.T) {
	m, controls, _ := testModel(t, 1)
	m = press(m, key('?'))
	if !strings.Contains(m.View(), "Key Bindings") {
		t.Fatalf("help view not shown")
	}
	m = press(m, key('c'), key('?'))
	if m.help || len(controls) != 0 {
		t.Fatalf("keys must be ignored while help is shown")
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{0, 7, 14}); got != "▁▄█" {
		t.Fatalf("sparkline = %q", got)
	}
	if got := sparkline([]float64{3, 3}); got != "▁▁" {
		t.Fatalf("flat sparkline = %q", got)
	}
	if sparkline(nil) != "" {
		t.Fatalf("empty sparkline must be empty")
	}
}

func TestSparklineNonFinite(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	cases := []struct {
		name   string
		values []float64
		want   string
	}{
		{"positive inf", []float64{1, 2, inf}, "▁█ "},
		{"negative inf", []float64{-inf, 0, 7}, " ▁█"},
		{"nan", []float64{nan, 0, 14, 7}, " ▁█▄"},
		{"only non-finite", []float64{nan, inf, -inf}, "   "},
		{"flat with nan", []float64{5, nan, 5}, "▁ ▁"},
	}
	for _, tc := range cases {
		if got := sparkline(tc.values); got != tc.want {
			t.Errorf("%s: sparkline = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRefreshWithInfiniteValue(t *testing.T) {
	m, _, _ := testModel(t, 1)
	m.deps.Store.Update(func(d *store.DataContainer) {
		_ = d.Append(5*time.Millisecond, time.Unix(5, 0), []float64{math.Inf(1), math.NaN()}, 100)
	})
	m.refresh()
	if m.samples != 6 || len(m.spark) != 2 {
		t.Fatalf("unexpected state samples=%d spark=%v", m.samples, m.spark)
	}
	if !strings.Contains(m.View(), "+Inf") {
		t.Fatalf("latest value missing from view")
	}
}

func TestUIForwardEvents(t *testing.T) {
	p := newFakeProgram(false)
	u := &UI{program: p}
	events := make(chan monitor.Event, 2)
	events <- monitor.Event{Kind: monitor.BiasDetectStart}
	events <- monitor.Event{Kind: monitor.BiasResult, Index: 12}
	close(events)
	if err := u.ForwardEvents(context.Background(), events); err != nil {
		t.Fatalf("ForwardEvents: %v", err)
	}
	u.SetAdminStatus(true)
	if len(p.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(p.msgs))
	}
	if ev, ok := p.msgs[1].(eventMsg); !ok || ev.Index != 12 {
		t.Fatalf("unexpected message %#v", p.msgs[1])
	}
	if _, ok := p.msgs[2].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[2])
	}
}

func TestUIRun(t *testing.T) {
	u := &UI{program: newFakeProgram(false)}
	if err := u.Run(context.Background()); !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}

	u = &UI{program: newFakeProgram(true)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
