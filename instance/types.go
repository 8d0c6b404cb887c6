package instance

import (
	"encoding/json"
	"path/filepath"

	"kosmigo/config"
)

// Request is the wire format for requests sent over the instance socket.
type Request struct {
	Type  string          `json:"type"`            // "Activate", "SetPreference", "OpenURL", "Ping"
	Args  []string        `json:"args,omitempty"`  // command-line args of the second launch
	Key   string          `json:"key,omitempty"`   // preference key for SetPreference
	Value json.RawMessage `json:"value,omitempty"` // preference value for SetPreference
	URL   string          `json:"url,omitempty"`   // target for OpenURL
}

// Response is the wire format for responses sent over the instance socket.
type Response struct {
	Type    string `json:"type"`              // "OK", "Error"
	Message string `json:"message,omitempty"` // error message
}

// Handler receives requests from later launches. Implemented by the shell.
// Implementations must not block on the UI; they hand work to their own loop.
type Handler interface {
	Activate(args []string)
	SetPreference(key string, value json.RawMessage) error
	OpenURL(url string) error
}

// SocketPath returns the path of the instance socket inside the config dir.
func SocketPath() string {
	return filepath.Join(config.Dir(), "kosmi.sock")
}
