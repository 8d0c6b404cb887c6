//go:build windows

package presence

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialDiscord tries the discord-ipc-0 through discord-ipc-9 named pipes.
func dialDiscord() (net.Conn, error) {
	timeout := time.Second
	var lastErr error
	for i := 0; i < 10; i++ {
		conn, err := winio.DialPipe(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), &timeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no discord ipc pipe found: %w", lastErr)
}
