// Package instance keeps a single running copy of the shell. The first launch
// holds a file lock and serves a Unix socket; later launches and the CLI
// forward their requests over it.
package instance

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by Acquire when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Server listens on the instance socket and routes requests to a Handler.
type Server struct {
	handler  Handler
	lock     *flock.Flock
	listener net.Listener
	sockPath string
	logger   *log.Logger
	wg       sync.WaitGroup
}

// LockPath is the lock file guarding sockPath.
func LockPath(sockPath string) string {
	return sockPath + ".lock"
}

// Acquire makes this process the primary instance. Ownership is an exclusive
// lock on LockPath(sockPath); only the holder touches the socket, so a
// leftover socket file is stale and gets replaced. If another process holds
// the lock Acquire returns ErrAlreadyRunning.
func Acquire(sockPath string, logger *log.Logger) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(sockPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	lock := flock.New(LockPath(sockPath))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	_ = os.Remove(sockPath)
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to listen on %s: %w", sockPath, err)
	}

	return &Server{
		lock:     lock,
		listener: listener,
		sockPath: sockPath,
		logger:   logger,
	}, nil
}

// Serve routes requests to handler until the listener is closed. Clients
// that connect before Serve is called wait in the listen backlog.
func (s *Server) Serve(handler Handler) error {
	s.handler = handler
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close shuts down the server: closes the listener, waits for connections,
// removes the socket and releases the lock. After Close returns a new launch
// can become the primary instance.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
	_ = os.Remove(s.sockPath)
	_ = s.lock.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		resp := s.handleRequest(scanner.Bytes())

		data, err := json.Marshal(resp)
		if err != nil {
			data, _ = json.Marshal(Response{Type: "Error", Message: err.Error()})
		}
		data = append(data, '\n')

		if _, err := conn.Write(data); err != nil {
			return
		}
	}
}

func (s *Server) handleRequest(line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Type: "Error", Message: "parse error: " + err.Error()}
	}

	switch req.Type {
	case "Ping":
		return Response{Type: "OK"}

	case "Activate":
		s.handler.Activate(req.Args)
		return Response{Type: "OK"}

	case "SetPreference":
		if err := s.handler.SetPreference(req.Key, req.Value); err != nil {
			return Response{Type: "Error", Message: err.Error()}
		}
		return Response{Type: "OK"}

	case "OpenURL":
		if err := s.handler.OpenURL(req.URL); err != nil {
			return Response{Type: "Error", Message: err.Error()}
		}
		return Response{Type: "OK"}

	default:
		s.logger.Warn("unknown instance request", "type", req.Type)
		return Response{Type: "Error", Message: "unknown request type: " + req.Type}
	}
}
