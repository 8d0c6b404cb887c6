package bridge

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"kosmigo/urlpolicy"
)

// Path is the endpoint the injected script connects to.
const Path = "/bridge"

// maxMessageSize bounds one page message. Notification bodies are short.
const maxMessageSize = 64 * 1024

// Server is the loopback WebSocket endpoint the hosted page writes into. Only
// pages served from an application domain that know the session token may
// connect; every decoded message is pushed into the Channel.
type Server struct {
	ch       *Channel
	policy   *urlpolicy.Policy
	logger   *log.Logger
	token    string
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	conns    map[*websocket.Conn]struct{}
}

func NewServer(ch *Channel, policy *urlpolicy.Policy, logger *log.Logger) *Server {
	s := &Server{
		ch:     ch,
		policy: policy,
		logger: logger,
		token:  uuid.NewString(),
		conns:  make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Token is the per-process secret the page must present.
func (s *Server) Token() string { return s.token }

// Listen binds a random loopback port. Call Serve afterwards.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen for bridge: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(Path, s.Handler())

	s.mu.Lock()
	s.listener = l
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Unlock()
	return nil
}

// URL is the endpoint handed to the injected script. Empty before Listen.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	u := url.URL{Scheme: "ws", Host: s.listener.Addr().String(), Path: Path}
	return u.String()
}

// Serve blocks until Close.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, l := s.server, s.listener
	s.mu.Unlock()
	if srv == nil {
		return errors.New("bridge server not listening")
	}
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops accepting connections and drops the open ones.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	for c := range s.conns {
		c.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Handler upgrades authorized requests and reads messages until the page
// goes away.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			s.logger.Warn("bridge connection with bad token", "origin", r.Header.Get("Origin"))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("bridge upgrade failed", "err", err)
			return
		}
		s.track(conn, true)
		defer s.track(conn, false)
		s.readLoop(conn)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if s.policy.IsAppURL(origin) {
		return true
	}
	s.logger.Warn("bridge connection from foreign origin", "origin", origin)
	return false
}

func (s *Server) track(conn *websocket.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
	conn.Close()
}

// readLoop handles one page connection. Messages are forwarded in arrival
// order; nothing is ever written back.
func (s *Server) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug("bridge connection closed", "err", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		m, err := Decode(data)
		if err != nil {
			s.logger.Warn("dropping bridge message", "err", err)
			continue
		}
		if err := s.ch.Send(m); err != nil {
			s.logger.Warn("bridge message dropped", "kind", m.Kind, "err", err)
			if errors.Is(err, ErrChannelClosed) {
				return
			}
		}
	}
}
