// Package window tracks the main window's lifecycle. The shell owns exactly
// one window for the whole process; closing it hides it unless the
// application is quitting, and a page that never renders fails the launch.
package window

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// State is a point in the window lifecycle.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Hidden
	Destroyed
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Hidden:
		return "hidden"
	case Destroyed:
		return "destroyed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Window is the part of the native window the lifecycle drives.
type Window interface {
	Show()
	Hide()
	Focus()
}

// Lifecycle is the state machine around the single main window. All methods
// are safe to call from any goroutine; calls into Window happen outside the
// lock.
type Lifecycle struct {
	mu       sync.Mutex
	state    State
	win      Window
	quitting bool
	timer    *time.Timer
	logger   *log.Logger
}

func New(logger *log.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Alive reports whether a window handle exists. The relay checks this before
// showing anything.
func (l *Lifecycle) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.win != nil && l.state != Destroyed && l.state != Failed
}

// Quitting reports whether shutdown has begun.
func (l *Lifecycle) Quitting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quitting
}

// Start attaches the window and enters Loading. If the page has not rendered
// within timeout, onTimeout runs once on its own goroutine and the state
// becomes Failed. Start only works from Uninitialized.
func (l *Lifecycle) Start(win Window, timeout time.Duration, onTimeout func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Uninitialized || win == nil {
		return false
	}
	l.win = win
	l.state = Loading
	l.logger.Debug("window loading", "timeout", timeout)
	l.timer = time.AfterFunc(timeout, func() {
		if l.fail() {
			l.logger.Error("page did not render in time", "timeout", timeout)
			if onTimeout != nil {
				onTimeout()
			}
		}
	})
	return true
}

// Fail moves a loading window to Failed, for load errors detected elsewhere.
func (l *Lifecycle) Fail() bool {
	return l.fail()
}

func (l *Lifecycle) fail() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Loading {
		return false
	}
	l.state = Failed
	l.stopTimerLocked()
	return true
}

// Rendered handles the page's render signal. The first one moves Loading to
// Ready and shows the window; it returns true only for that transition.
// Later signals (reloads, SPA navigations) are ignored.
func (l *Lifecycle) Rendered() bool {
	l.mu.Lock()
	if l.state != Loading {
		l.mu.Unlock()
		return false
	}
	l.state = Ready
	l.stopTimerLocked()
	win := l.win
	l.mu.Unlock()

	l.logger.Info("window ready")
	win.Show()
	win.Focus()
	return true
}

// Activate brings a hidden window back, e.g. from the tray or a second
// launch. A ready window is just focused.
func (l *Lifecycle) Activate() bool {
	l.mu.Lock()
	var show bool
	switch l.state {
	case Hidden:
		l.state = Ready
		show = true
	case Ready:
	default:
		l.mu.Unlock()
		return false
	}
	win := l.win
	l.mu.Unlock()

	if show {
		l.logger.Debug("window shown")
		win.Show()
	}
	win.Focus()
	return true
}

// CloseRequested handles the user closing the window. It reports whether the
// native close must be prevented: while not quitting the window is only
// hidden; once quitting it is destroyed and the handle cleared.
func (l *Lifecycle) CloseRequested() (prevent bool) {
	l.mu.Lock()
	if l.quitting {
		l.destroyLocked()
		l.mu.Unlock()
		return false
	}
	if l.state != Ready {
		l.mu.Unlock()
		return true
	}
	l.state = Hidden
	win := l.win
	l.mu.Unlock()

	l.logger.Debug("window hidden")
	win.Hide()
	return true
}

// SetQuitting flags shutdown. Subsequent close requests destroy the window.
func (l *Lifecycle) SetQuitting() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quitting = true
}

// Destroyed records that the native window is gone. The runtime only tears
// the window down on shutdown, so this implies quitting.
func (l *Lifecycle) Destroyed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quitting = true
	l.destroyLocked()
}

func (l *Lifecycle) destroyLocked() {
	l.stopTimerLocked()
	if l.state != Failed {
		l.state = Destroyed
	}
	l.win = nil
}

func (l *Lifecycle) stopTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
