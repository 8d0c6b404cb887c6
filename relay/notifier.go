package relay

import "github.com/gen2brain/beeep"

// Notifier is the operating system's notification capability.
type Notifier interface {
	// Supported reports whether notifications can be shown at all.
	Supported() bool
	// Notify shows one notification. icon is a file path or empty.
	Notify(title, body, icon string) error
}

// desktopNotifier shows notifications through beeep.
type desktopNotifier struct{}

// NewDesktopNotifier returns the beeep-backed Notifier for this platform.
func NewDesktopNotifier(appName string) Notifier {
	beeep.AppName = appName
	return desktopNotifier{}
}

func (desktopNotifier) Supported() bool { return notificationsSupported() }

func (desktopNotifier) Notify(title, body, icon string) error {
	return beeep.Notify(title, body, icon)
}
