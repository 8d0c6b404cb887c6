package presence

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Discord IPC opcodes.
const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2
	opPing      uint32 = 3
	opPong      uint32 = 4
)

// maxFrame bounds a frame read from the Discord client.
const maxFrame = 1 << 20

// ErrNoDiscord is returned when no Discord client is listening.
var ErrNoDiscord = errors.New("discord client not running")

// DialFunc opens a raw IPC connection to the Discord client.
type DialFunc func() (net.Conn, error)

// DiscordClient talks to the local Discord client over its IPC socket. The
// connection is opened lazily and dropped after any error so the next call
// starts over with a fresh handshake.
type DiscordClient struct {
	clientID string
	dial     DialFunc
	timeout  time.Duration
	logger   *log.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewDiscordClient returns a client for the given application id using the
// platform's IPC transport.
func NewDiscordClient(clientID string, logger *log.Logger) *DiscordClient {
	return NewDiscordClientWithDialer(clientID, dialDiscord, logger)
}

func NewDiscordClientWithDialer(clientID string, dial DialFunc, logger *log.Logger) *DiscordClient {
	return &DiscordClient{clientID: clientID, dial: dial, timeout: 5 * time.Second, logger: logger}
}

type activityAssets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
}

type activityTimestamps struct {
	Start int64 `json:"start,omitempty"`
}

type activityPayload struct {
	Details    string              `json:"details,omitempty"`
	State      string              `json:"state,omitempty"`
	Timestamps *activityTimestamps `json:"timestamps,omitempty"`
	Assets     *activityAssets     `json:"assets,omitempty"`
	Instance   bool                `json:"instance"`
}

type command struct {
	Cmd   string `json:"cmd"`
	Args  any    `json:"args"`
	Nonce string `json:"nonce"`
}

type setActivityArgs struct {
	PID      int             `json:"pid"`
	Activity activityPayload `json:"activity"`
}

type response struct {
	Cmd  string `json:"cmd"`
	Evt  string `json:"evt"`
	Data struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
	Nonce string `json:"nonce"`
}

func toPayload(a Activity) activityPayload {
	p := activityPayload{
		Details:  a.Details,
		State:    a.State,
		Instance: a.Instance,
	}
	if !a.StartTimestamp.IsZero() {
		p.Timestamps = &activityTimestamps{Start: a.StartTimestamp.UnixMilli()}
	}
	if a.LargeImageKey != "" || a.LargeImageText != "" {
		p.Assets = &activityAssets{LargeImage: a.LargeImageKey, LargeText: a.LargeImageText}
	}
	return p
}

// SetActivity publishes a, connecting first if needed.
func (c *DiscordClient) SetActivity(ctx context.Context, a Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	nonce := uuid.NewString()
	err := c.roundTripLocked(ctx, command{
		Cmd:   "SET_ACTIVITY",
		Args:  setActivityArgs{PID: os.Getpid(), Activity: toPayload(a)},
		Nonce: nonce,
	}, nonce)
	if err != nil {
		c.resetLocked()
		return err
	}
	return nil
}

// Close sends a close frame and drops the connection.
func (c *DiscordClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = writeFrame(c.conn, opClose, []byte("{}"))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *DiscordClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDiscord, err)
	}
	c.conn = conn
	c.setDeadlineLocked(ctx)

	hello, _ := json.Marshal(map[string]any{"v": 1, "client_id": c.clientID})
	if err := writeFrame(conn, opHandshake, hello); err != nil {
		c.resetLocked()
		return fmt.Errorf("discord handshake failed: %w", err)
	}
	var ready response
	if err := c.readResponseLocked(&ready); err != nil {
		c.resetLocked()
		return fmt.Errorf("discord handshake failed: %w", err)
	}
	if ready.Evt == "ERROR" {
		c.resetLocked()
		return fmt.Errorf("discord rejected handshake: %s", ready.Data.Message)
	}
	c.logger.Info("connected to discord")
	return nil
}

func (c *DiscordClient) roundTripLocked(ctx context.Context, cmd command, nonce string) error {
	c.setDeadlineLocked(ctx)
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := writeFrame(c.conn, opFrame, data); err != nil {
		return fmt.Errorf("discord write failed: %w", err)
	}
	for {
		var resp response
		if err := c.readResponseLocked(&resp); err != nil {
			return fmt.Errorf("discord read failed: %w", err)
		}
		if resp.Nonce != nonce {
			continue
		}
		if resp.Evt == "ERROR" {
			return fmt.Errorf("discord %s failed: %s", cmd.Cmd, resp.Data.Message)
		}
		return nil
	}
}

// readResponseLocked reads frames until a JSON payload arrives, answering
// pings on the way.
func (c *DiscordClient) readResponseLocked(resp *response) error {
	for {
		op, payload, err := readFrame(c.conn)
		if err != nil {
			return err
		}
		switch op {
		case opPing:
			if err := writeFrame(c.conn, opPong, payload); err != nil {
				return err
			}
		case opClose:
			return fmt.Errorf("closed by discord: %s", payload)
		case opFrame:
			return json.Unmarshal(payload, resp)
		}
	}
}

func (c *DiscordClient) setDeadlineLocked(ctx context.Context) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
}

func (c *DiscordClient) resetLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func writeFrame(w io.Writer, op uint32, payload []byte) error {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], op)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (uint32, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	op := binary.LittleEndian.Uint32(header[0:4])
	n := binary.LittleEndian.Uint32(header[4:8])
	if n > maxFrame {
		return 0, nil, fmt.Errorf("discord frame too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return op, payload, nil
}
