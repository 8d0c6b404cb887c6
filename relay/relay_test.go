package relay

import (
	"bytes"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosmigo/bridge"
	"kosmigo/logging"
)

type shown struct {
	title, body, icon string
}

type fakeNotifier struct {
	supported bool
	err       error
	panicMsg  string
	shown     []shown
}

func (n *fakeNotifier) Supported() bool { return n.supported }

func (n *fakeNotifier) Notify(title, body, icon string) error {
	if n.panicMsg != "" {
		panic(n.panicMsg)
	}
	n.shown = append(n.shown, shown{title, body, icon})
	return n.err
}

type fakeWindow bool

func (w fakeWindow) Alive() bool { return bool(w) }

func TestForwardedNotificationIsShownVerbatim(t *testing.T) {
	n := &fakeNotifier{supported: true}
	r := New(n, fakeWindow(true), "/icons/kosmi.png", logging.Discard())

	m, err := bridge.Decode([]byte(`{"kind":"show-notification","title":"Hi","options":{"body":"there"}}`))
	require.NoError(t, err)
	r.Handle(m)

	require.Equal(t, []shown{{"Hi", "there", "/icons/kosmi.png"}}, n.shown)
}

func TestUnsupportedPlatformDropsSilently(t *testing.T) {
	n := &fakeNotifier{supported: false}
	r := New(n, fakeWindow(true), "", logging.Discard())
	r.Show(bridge.NotificationRequest{Title: "Hi", Body: "there"})
	assert.Empty(t, n.shown)
}

func TestNoWindowIsNoop(t *testing.T) {
	n := &fakeNotifier{supported: true}
	New(n, fakeWindow(false), "", logging.Discard()).Show(bridge.NotificationRequest{Title: "Hi"})
	New(n, nil, "", logging.Discard()).Show(bridge.NotificationRequest{Title: "Hi"})
	assert.Empty(t, n.shown)
}

func TestDuplicatesAreNotCollapsed(t *testing.T) {
	n := &fakeNotifier{supported: true}
	r := New(n, fakeWindow(true), "", logging.Discard())
	for i := 0; i < 3; i++ {
		r.Show(bridge.NotificationRequest{Title: "Same", Body: "same"})
	}
	assert.Len(t, n.shown, 3)
}

func TestFailuresAreLoggedNotRaised(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)

	failing := &fakeNotifier{supported: true, err: errors.New("dbus gone")}
	require.NotPanics(t, func() {
		New(failing, fakeWindow(true), "", logger).Show(bridge.NotificationRequest{Title: "Hi"})
	})
	assert.Contains(t, buf.String(), "dbus gone")

	buf.Reset()
	panicking := &fakeNotifier{supported: true, panicMsg: "boom"}
	require.NotPanics(t, func() {
		New(panicking, fakeWindow(true), "", logger).Show(bridge.NotificationRequest{Title: "Hi"})
	})
	assert.Contains(t, buf.String(), "notifier panicked: boom")
}

func TestOrderPreserved(t *testing.T) {
	n := &fakeNotifier{supported: true}
	r := New(n, fakeWindow(true), "", logging.Discard())
	for _, title := range []string{"one", "two", "three"} {
		r.Show(bridge.NotificationRequest{Title: title})
	}
	require.Len(t, n.shown, 3)
	assert.Equal(t, "one", n.shown[0].title)
	assert.Equal(t, "three", n.shown[2].title)
}
