package relay

import (
	"os"
	"os/exec"
)

// notificationsSupported needs a session bus or a notify-send binary, which
// is what beeep falls back to.
func notificationsSupported() bool {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
		return true
	}
	_, err := exec.LookPath("notify-send")
	return err == nil
}
