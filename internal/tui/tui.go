// Package tui renders the live store, console and engine state in a
// bubbletea terminal UI and turns key presses into engine controls.
package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"serial-monitor/internal/console"
	"serial-monitor/internal/monitor"
	"serial-monitor/internal/store"
)

// ErrQuit is returned by Run when the operator quits the UI.
var ErrQuit = errors.New("quit by operator")

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
	Run() (tea.Model, error)
	Quit()
}

// SettingsSource reports the engine settings.
type SettingsSource interface {
	Settings() monitor.Settings
}

// RecordSwitch turns sample recording on and off.
type RecordSwitch interface {
	Enabled() bool
	SetEnabled(on bool)
}

// Deps are the collaborators the UI reads from and controls.
type Deps struct {
	Store    *store.Store
	Console  *console.Sink
	Settings SettingsSource
	Controls chan<- monitor.Control
	// Recorder is optional; without it the record key is a no-op.
	Recorder RecordSwitch
	CSVPath  func(string) string
	// Refresh is the redraw interval.
	Refresh time.Duration
}

// DefaultRefresh is used when Deps.Refresh is zero.
const DefaultRefresh = 100 * time.Millisecond

// eventMsg carries a decoded protocol event.
type eventMsg struct{ monitor.Event }

// adminMsg reports admin server status.
type adminMsg struct{ active bool }

// tickMsg triggers a redraw from the store.
type tickMsg time.Time

// UI owns the bubbletea program.
type UI struct {
	program teaProgram
}

// New prepares the UI; Run starts it.
func New(d Deps) *UI {
	m := newModel(d)
	return &UI{program: tea.NewProgram(m, tea.WithAltScreen())}
}

// Run blocks until the operator quits or ctx is cancelled. Quitting from
// the keyboard returns ErrQuit so callers can stop the rest of the app.
func (u *UI) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, u.program.Quit)
	defer stop()
	if _, err := u.program.Run(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	return ErrQuit
}

// ForwardEvents hands protocol events to the UI until events is closed or
// ctx is cancelled.
func (u *UI) ForwardEvents(ctx context.Context, events <-chan monitor.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			u.program.Send(eventMsg{ev})
		}
	}
}

// SetAdminStatus updates the admin indicator.
func (u *UI) SetAdminStatus(active bool) {
	u.program.Send(adminMsg{active: active})
}
