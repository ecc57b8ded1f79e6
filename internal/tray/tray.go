// Package tray provides the system tray shell: start/stop controls and a
// live volume readout.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/pinchvolume/internal/app"
)

// Tray represents the system tray application. It only ever reads events
// from the control loop; it never touches loop state.
type Tray struct {
	onStart    func() error
	onStop     func()
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex

	ready     bool
	running   bool
	level     float64
	lastError string

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuVolume *systray.MenuItem
	menuGauge  *systray.MenuItem
	menuError  *systray.MenuItem
}

// New creates a new Tray instance in the stopped state.
func New() *Tray {
	return &Tray{}
}

// OnStart sets the callback for the start menu item.
func (t *Tray) OnStart(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnStop sets the callback for the stop menu item.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Watch applies events to the readout until the channel is closed.
func (t *Tray) Watch(events <-chan app.Event) {
	for e := range events {
		t.Apply(e)
	}
}

// Apply updates the tray state for one event.
func (t *Tray) Apply(e app.Event) {
	t.mu.Lock()
	switch e.Type {
	case app.EventSessionStarted:
		t.running = true
		t.level = e.Value
		t.lastError = ""
	case app.EventVolumeChanged:
		t.level = e.Value
	case app.EventSessionStopped:
		t.running = false
		t.level = e.Value
	case app.EventSinkError, app.EventStartFailed:
		if e.Err != nil {
			t.lastError = e.Err.Error()
		}
	}
	t.mu.Unlock()

	t.render()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("PinchVolume")
	systray.SetTooltip("Hand gesture volume control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem("▶ Start", "Start hand tracking")
	systray.AddSeparator()

	t.menuVolume = systray.AddMenuItem(Label(t.level), "Current volume")
	t.menuVolume.Disable()
	t.menuGauge = systray.AddMenuItem(Bar(t.level, GaugeWidth), "")
	t.menuGauge.Disable()
	t.menuError = systray.AddMenuItem("", "Last error")
	t.menuError.Disable()
	t.menuError.Hide()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit PinchVolume")
	t.ready = true
	t.mu.Unlock()

	t.render()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = false
}

// render pushes the current state to the menu items.
func (t *Tray) render() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.ready {
		return
	}

	if t.running {
		t.menuToggle.SetTitle("■ Stop")
		t.menuToggle.SetTooltip("Stop hand tracking")
	} else {
		t.menuToggle.SetTitle("▶ Start")
		t.menuToggle.SetTooltip("Start hand tracking")
	}

	t.menuVolume.SetTitle(Label(t.level))
	t.menuGauge.SetTitle(Bar(t.level, GaugeWidth))

	if t.lastError == "" {
		t.menuError.Hide()
	} else {
		t.menuError.SetTitle("⚠ " + t.lastError)
		t.menuError.Show()
	}
}

// handleToggle starts or stops tracking depending on the current state.
// The readout changes when the resulting event arrives.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	running := t.running
	start, stop := t.onStart, t.onStop
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if running {
		if stop != nil {
			stop()
		}
		return
	}
	if start != nil {
		start()
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.Quit()
}

// Quit runs the quit callback and ends Run. It is safe to call from any
// goroutine.
func (t *Tray) Quit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Running reports whether the tray shows a running session.
func (t *Tray) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// VolumeLabel returns the current readout text.
func (t *Tray) VolumeLabel() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Label(t.level)
}

// LastError returns the last error shown in the menu.
func (t *Tray) LastError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastError
}
