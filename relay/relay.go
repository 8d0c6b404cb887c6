// Package relay turns notifications forwarded by the page into native OS
// notifications.
package relay

import (
	"fmt"

	"github.com/charmbracelet/log"

	"kosmigo/bridge"
)

// WindowState reports whether the main window still exists.
type WindowState interface {
	Alive() bool
}

// Relay shows one native notification per forwarded request. It never
// replies to the page and never lets a failure escape to the caller.
type Relay struct {
	notifier Notifier
	window   WindowState
	icon     string
	logger   *log.Logger
}

// New returns a relay using notifier and the fixed application icon path.
func New(notifier Notifier, window WindowState, icon string, logger *log.Logger) *Relay {
	return &Relay{notifier: notifier, window: window, icon: icon, logger: logger}
}

// Show displays req. Requests arriving with no live window, or on a platform
// without notification support, are dropped. Identical requests each produce
// their own notification.
func (r *Relay) Show(req bridge.NotificationRequest) {
	if r.window == nil || !r.window.Alive() {
		r.logger.Debug("no window, dropping notification", "title", req.Title)
		return
	}
	if !r.notifier.Supported() {
		r.logger.Debug("notifications unsupported, dropping", "title", req.Title)
		return
	}
	if err := r.notify(req); err != nil {
		r.logger.Error("failed to show notification", "title", req.Title, "err", err)
	}
}

// Handle is the bridge handler for show-notification messages.
func (r *Relay) Handle(m bridge.Message) {
	r.Show(m.Notification())
}

func (r *Relay) notify(req bridge.NotificationRequest) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notifier panicked: %v", p)
		}
	}()
	return r.notifier.Notify(req.Title, req.Body, r.icon)
}
