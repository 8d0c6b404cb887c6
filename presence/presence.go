// Package presence publishes what the user is doing in the app to the local
// Discord client.
package presence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Activity is one status update.
type Activity struct {
	Details        string
	State          string
	StartTimestamp time.Time
	LargeImageKey  string
	LargeImageText string
	Instance       bool
}

// BuildActivity derives the status from the page location and title. Room
// pages show the room name taken from the title.
func BuildActivity(pageURL, title string, start time.Time) Activity {
	a := Activity{
		Details:        "Browsing Kosmi",
		State:          "Exploring rooms",
		StartTimestamp: start,
		LargeImageKey:  "kosmi_logo",
		LargeImageText: "Kosmi Desktop",
	}
	if strings.Contains(pageURL, "/room/") {
		a.Details = "In a Kosmi Room"
		room := strings.Replace(title, " - Kosmi", "", 1)
		if room == "" {
			room = "Chilling"
		}
		a.State = room
	}
	return a
}

// Client sends activities somewhere.
type Client interface {
	SetActivity(ctx context.Context, a Activity) error
	Close() error
}

// Updater owns the presence connection and remembers the last page seen so
// periodic ticks can republish it. Updates never overlap; a tick arriving
// while one is in flight is skipped.
type Updater struct {
	client Client
	start  time.Time
	logger *log.Logger

	mu       sync.Mutex
	url      string
	title    string
	inFlight bool
	closed   bool
}

func NewUpdater(client Client, start time.Time, logger *log.Logger) *Updater {
	return &Updater{client: client, start: start, logger: logger}
}

// SetPage records the current location and title.
func (u *Updater) SetPage(url, title string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.url, u.title = url, title
}

// Current returns the activity that the next update would publish.
func (u *Updater) Current() Activity {
	u.mu.Lock()
	defer u.mu.Unlock()
	return BuildActivity(u.url, u.title, u.start)
}

// Update publishes the current activity. Errors are logged and reported;
// the caller's loop is expected to carry on. It returns false when skipped.
func (u *Updater) Update(ctx context.Context) bool {
	u.mu.Lock()
	if u.inFlight || u.closed {
		u.mu.Unlock()
		return false
	}
	u.inFlight = true
	a := BuildActivity(u.url, u.title, u.start)
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.inFlight = false
		u.mu.Unlock()
	}()

	if err := u.client.SetActivity(ctx, a); err != nil {
		// Discord not running is the normal state for most users.
		if errors.Is(err, ErrNoDiscord) {
			u.logger.Debug("presence skipped", "err", err)
		} else {
			u.logger.Warn("failed to update presence", "err", err)
		}
		return true
	}
	u.logger.Debug("presence updated", "details", a.Details, "state", a.State)
	return true
}

// Close disconnects. Further updates are skipped.
func (u *Updater) Close() error {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()
	return u.client.Close()
}
