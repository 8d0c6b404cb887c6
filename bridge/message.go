// Package bridge carries one-way messages from the hosted page to the host
// process. The page side is an injected script that exposes a small
// capability object; the host side is a loopback WebSocket endpoint feeding
// an in-process queue that the shell drains on its event loop.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a page-to-host message.
type Kind string

const (
	KindShowNotification Kind = "show-notification"
	KindDroppedLink      Kind = "dropped-link"
	KindPageReady        Kind = "page-ready"
	KindPageState        Kind = "page-state"
	KindOpenWindow       Kind = "open-window"
	KindJoinRoom         Kind = "join-room"
)

// Message is the wire format of every page-to-host message. There are no
// replies.
type Message struct {
	Kind    Kind            `json:"kind"`
	Title   string          `json:"title,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
	URL     string          `json:"url,omitempty"`
}

// NotificationRequest is a forwarded page notification. Fields other than
// body are carried opaquely in Extra.
type NotificationRequest struct {
	Title string
	Body  string
	Extra map[string]json.RawMessage
}

var ErrInvalidMessage = errors.New("invalid bridge message")

// Decode parses and validates one message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch m.Kind {
	case KindShowNotification, KindPageReady, KindPageState:
	case KindDroppedLink, KindOpenWindow, KindJoinRoom:
		if m.URL == "" {
			return Message{}, fmt.Errorf("%w: %s without url", ErrInvalidMessage, m.Kind)
		}
	case "":
		return Message{}, fmt.Errorf("%w: missing kind", ErrInvalidMessage)
	default:
		return Message{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	return m, nil
}

// Notification extracts the notification fields of a show-notification
// message. Missing or malformed options give an empty body rather than an
// error; the page already believes its call succeeded.
func (m Message) Notification() NotificationRequest {
	req := NotificationRequest{Title: m.Title}
	if len(m.Options) == 0 {
		return req
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(m.Options, &fields); err != nil {
		return req
	}
	if raw, ok := fields["body"]; ok {
		var body string
		if json.Unmarshal(raw, &body) == nil {
			req.Body = body
		}
		delete(fields, "body")
	}
	if len(fields) > 0 {
		req.Extra = fields
	}
	return req
}

// NewNotification builds a show-notification message, mainly for tests and
// host-side callers.
func NewNotification(title, body string) Message {
	opts, _ := json.Marshal(map[string]string{"body": body})
	return Message{Kind: KindShowNotification, Title: title, Options: opts}
}
