package instance

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrNotRunning is returned by the client helpers when no instance listens.
var ErrNotRunning = errors.New("no running instance")

// Activate asks the running instance to surface its window. args are the
// command line of the launch being redirected.
func Activate(sockPath string, args []string) error {
	return call(sockPath, Request{Type: "Activate", Args: args})
}

// SetPreference asks the running instance to store and apply a preference.
func SetPreference(sockPath, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return call(sockPath, Request{Type: "SetPreference", Key: key, Value: data})
}

// OpenURL asks the running instance to load url in its window.
func OpenURL(sockPath, url string) error {
	return call(sockPath, Request{Type: "OpenURL", URL: url})
}

// Running reports whether an instance answers on sockPath.
func Running(sockPath string) bool {
	return call(sockPath, Request{Type: "Ping"}) == nil
}

func call(sockPath string, req Request) error {
	resp, err := send(sockPath, req)
	if err != nil {
		return err
	}
	if resp.Type == "Error" {
		return fmt.Errorf("instance error: %s", resp.Message)
	}
	return nil
}

// send opens a connection, writes the request, reads one response, and closes.
func send(sockPath string, req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrNotRunning, sockPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}
		return nil, fmt.Errorf("instance closed connection")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}
	return &resp, nil
}
