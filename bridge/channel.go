package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrChannelClosed is returned by Send after Close.
var ErrChannelClosed = errors.New("bridge channel closed")

// ErrChannelFull is returned by Send when the consumer has fallen behind.
var ErrChannelFull = errors.New("bridge channel full")

// Channel is the asynchronous one-way queue between the transport and the
// shell's event loop. Send never blocks the sender; messages from a single
// sender come out of Receive in the order they went in.
type Channel struct {
	mu     sync.RWMutex
	ch     chan Message
	closed bool
}

// NewChannel returns a channel that buffers up to size messages.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 1
	}
	return &Channel{ch: make(chan Message, size)}
}

// Send enqueues m without waiting. A full or closed channel drops the message
// and reports why.
func (c *Channel) Send(m Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrChannelClosed
	}
	select {
	case c.ch <- m:
		return nil
	default:
		return ErrChannelFull
	}
}

// Receive returns the consumer end. It is closed by Close.
func (c *Channel) Receive() <-chan Message {
	return c.ch
}

// Close stops accepting messages. Already queued messages remain readable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Handler consumes one message of a given kind.
type Handler func(Message)

// Dispatcher is the table of handlers keyed by message kind.
type Dispatcher struct {
	handlers map[Kind]Handler
	logger   *log.Logger
}

func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind]Handler), logger: logger}
}

// Handle registers h for kind, replacing any earlier handler.
func (d *Dispatcher) Handle(kind Kind, h Handler) {
	d.handlers[kind] = h
}

// Dispatch runs the handler for m.Kind. Unknown kinds are logged and dropped.
// A panicking handler is recovered so the event loop keeps running.
func (d *Dispatcher) Dispatch(m Message) (err error) {
	h, ok := d.handlers[m.Kind]
	if !ok {
		d.logger.Warn("no handler for bridge message", "kind", m.Kind)
		return fmt.Errorf("no handler for %q", m.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %q panicked: %v", m.Kind, r)
			d.logger.Error("bridge handler panicked", "kind", m.Kind, "panic", r)
		}
	}()
	h(m)
	return nil
}
