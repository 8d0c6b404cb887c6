// Package prefs persists the user's window and audio preferences and the
// recent-room list between runs.
package prefs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxRecentRooms caps the recent-room list.
const MaxRecentRooms = 10

// Bounds is the main window rectangle.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultBounds is used on first launch. Position is left to the OS.
var DefaultBounds = Bounds{Width: 1280, Height: 820}

// HasPosition reports whether the bounds carry a saved window position.
func (b Bounds) HasPosition() bool {
	return b.X != 0 || b.Y != 0
}

// Snapshot is every preference the shell reads at startup.
type Snapshot struct {
	WindowBounds  Bounds   `json:"windowBounds"`
	IsAlwaysOnTop bool     `json:"isAlwaysOnTop"`
	IsMuted       bool     `json:"isMuted"`
	CustomCSS     string   `json:"customCSS"`
	RecentRooms   []string `json:"recentRooms"`
}

func (s *Store) WindowBounds() Bounds {
	b := Get(s, KeyWindowBounds, DefaultBounds)
	if b.Width <= 0 || b.Height <= 0 {
		b.Width, b.Height = DefaultBounds.Width, DefaultBounds.Height
	}
	return b
}

func (s *Store) SetWindowBounds(b Bounds) error { return s.Set(KeyWindowBounds, b) }

func (s *Store) AlwaysOnTop() bool { return Get(s, KeyAlwaysOnTop, false) }

func (s *Store) SetAlwaysOnTop(on bool) error { return s.Set(KeyAlwaysOnTop, on) }

func (s *Store) Muted() bool { return Get(s, KeyMuted, false) }

func (s *Store) SetMuted(on bool) error { return s.Set(KeyMuted, on) }

func (s *Store) CustomCSS() string { return Get(s, KeyCustomCSS, "") }

func (s *Store) SetCustomCSS(css string) error { return s.Set(KeyCustomCSS, css) }

// RecentRooms returns a copy of the recent-room list, most recent first.
func (s *Store) RecentRooms() []string {
	return CleanRecent(Get(s, KeyRecentRooms, []string{}), MaxRecentRooms)
}

// AddRecentRoom moves url to the front of the recent list, dropping any older
// copy and evicting the oldest entry past MaxRecentRooms. The read and the
// write happen under one lock.
func (s *Store) AddRecentRoom(url string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := PushRecent(CleanRecent(getLocked(s, KeyRecentRooms, []string{}), MaxRecentRooms), url, MaxRecentRooms)
	data, err := json.Marshal(rooms)
	if err != nil {
		return nil, err
	}
	s.values[KeyRecentRooms] = data
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return rooms, nil
}

// ClearRecentRooms empties the recent list.
func (s *Store) ClearRecentRooms() error { return s.Set(KeyRecentRooms, []string{}) }

// Snapshot reads every known preference at once.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		WindowBounds:  s.WindowBounds(),
		IsAlwaysOnTop: s.AlwaysOnTop(),
		IsMuted:       s.Muted(),
		CustomCSS:     s.CustomCSS(),
		RecentRooms:   s.RecentRooms(),
	}
}

// PushRecent returns a new list with url first, without duplicates, at most
// max long. The input slice is not modified.
func PushRecent(list []string, url string, max int) []string {
	out := make([]string, 0, max)
	out = append(out, url)
	for _, r := range list {
		if len(out) >= max {
			break
		}
		if r != url {
			out = append(out, r)
		}
	}
	return out
}

// CleanRecent drops entries that are not absolute http(s) URLs and any repeat
// of an earlier entry, then caps the list at max. The first occurrence wins.
func CleanRecent(list []string, max int) []string {
	out := make([]string, 0, min(len(list), max))
	seen := make(map[string]bool, len(list))
	for _, r := range list {
		if len(out) >= max {
			break
		}
		if seen[r] || !isWebURL(r) {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ParseValue converts a command-line string into the typed value stored under
// key. Unknown keys are rejected so typos do not end up in the file.
func ParseValue(key, raw string) (any, error) {
	switch key {
	case KeyAlwaysOnTop, KeyMuted:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key, raw)
		}
		return b, nil
	case KeyCustomCSS:
		return raw, nil
	case KeyWindowBounds:
		var b Bounds
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("%s expects JSON like {\"width\":1280,\"height\":820}: %w", key, err)
		}
		if b.Width <= 0 || b.Height <= 0 {
			return nil, fmt.Errorf("%s needs a positive width and height", key)
		}
		return b, nil
	case KeyRecentRooms:
		var rooms []string
		if err := json.Unmarshal([]byte(raw), &rooms); err != nil {
			return nil, fmt.Errorf("%s expects a JSON array of URLs: %w", key, err)
		}
		for _, r := range rooms {
			if !isWebURL(r) {
				return nil, fmt.Errorf("%s entry %q is not an http(s) URL", key, r)
			}
		}
		return CleanRecent(rooms, MaxRecentRooms), nil
	}
	return nil, fmt.Errorf("unknown preference %q", key)
}

// Known lists the preference keys in display order.
func Known() []string {
	return []string{KeyWindowBounds, KeyAlwaysOnTop, KeyMuted, KeyCustomCSS, KeyRecentRooms}
}

// DecodeValue converts a JSON-encoded value for key, as sent by another
// process, into the typed value stored under key.
func DecodeValue(key string, raw json.RawMessage) (any, error) {
	if key == KeyCustomCSS {
		var css string
		if err := json.Unmarshal(raw, &css); err != nil {
			return nil, fmt.Errorf("%s expects a string: %w", key, err)
		}
		return css, nil
	}
	return ParseValue(key, string(raw))
}
