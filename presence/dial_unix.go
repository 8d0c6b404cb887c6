//go:build !windows

package presence

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// socketDirs lists where Discord may put its IPC socket, in lookup order.
func socketDirs() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if d := os.Getenv(env); d != "" {
			dirs = append(dirs, d)
		}
	}
	return append(dirs, "/tmp")
}

// dialDiscord tries discord-ipc-0 through discord-ipc-9 in each directory.
func dialDiscord() (net.Conn, error) {
	var lastErr error
	for _, dir := range socketDirs() {
		for i := 0; i < 10; i++ {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			conn, err := net.DialTimeout("unix", path, time.Second)
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
	}
	return nil, fmt.Errorf("no discord ipc socket found: %w", lastErr)
}
