package window

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosmigo/logging"
)

type fakeWindow struct {
	mu    sync.Mutex
	calls []string
}

func (w *fakeWindow) record(c string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, c)
}

func (w *fakeWindow) Show()  { w.record("show") }
func (w *fakeWindow) Hide()  { w.record("hide") }
func (w *fakeWindow) Focus() { w.record("focus") }

func (w *fakeWindow) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func started(t *testing.T) (*Lifecycle, *fakeWindow) {
	t.Helper()
	l := New(logging.Discard())
	w := &fakeWindow{}
	require.True(t, l.Start(w, time.Hour, nil))
	return l, w
}

func TestStartOnlyOnce(t *testing.T) {
	l := New(logging.Discard())
	assert.Equal(t, Uninitialized, l.State())
	assert.False(t, l.Alive())
	assert.False(t, l.Start(nil, time.Second, nil))

	w := &fakeWindow{}
	require.True(t, l.Start(w, time.Hour, nil))
	assert.Equal(t, Loading, l.State())
	assert.True(t, l.Alive())
	assert.False(t, l.Start(w, time.Hour, nil))
}

func TestRenderedShowsOnce(t *testing.T) {
	l, w := started(t)
	assert.True(t, l.Rendered())
	assert.False(t, l.Rendered())
	assert.Equal(t, Ready, l.State())
	assert.Equal(t, []string{"show", "focus"}, w.Calls())
}

func TestCloseHidesUnlessQuitting(t *testing.T) {
	l, w := started(t)
	l.Rendered()

	assert.True(t, l.CloseRequested())
	assert.Equal(t, Hidden, l.State())
	assert.True(t, l.Alive())

	// A second close on a hidden window stays hidden.
	assert.True(t, l.CloseRequested())
	assert.Equal(t, Hidden, l.State())

	assert.True(t, l.Activate())
	assert.Equal(t, Ready, l.State())

	l.SetQuitting()
	assert.True(t, l.Quitting())
	assert.False(t, l.CloseRequested())
	assert.Equal(t, Destroyed, l.State())
	assert.False(t, l.Alive())
	assert.False(t, l.Activate())

	assert.Equal(t, []string{"show", "focus", "hide", "show", "focus"}, w.Calls())
}

func TestCloseWhileLoadingIsPrevented(t *testing.T) {
	l, w := started(t)
	assert.True(t, l.CloseRequested())
	assert.Equal(t, Loading, l.State())
	assert.Empty(t, w.Calls())
}

func TestActivateReadyOnlyFocuses(t *testing.T) {
	l, w := started(t)
	assert.False(t, l.Activate())
	l.Rendered()
	assert.True(t, l.Activate())
	assert.Equal(t, []string{"show", "focus", "focus"}, w.Calls())
}

func TestLoadTimeoutFails(t *testing.T) {
	l := New(logging.Discard())
	fired := make(chan struct{})
	require.True(t, l.Start(&fakeWindow{}, 20*time.Millisecond, func() { close(fired) }))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback did not run")
	}
	assert.Equal(t, Failed, l.State())
	assert.False(t, l.Alive())
	assert.False(t, l.Rendered())
}

func TestRenderBeforeTimeoutCancelsIt(t *testing.T) {
	l := New(logging.Discard())
	var fired atomic.Bool
	require.True(t, l.Start(&fakeWindow{}, 30*time.Millisecond, func() { fired.Store(true) }))
	require.True(t, l.Rendered())

	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.Equal(t, Ready, l.State())
}

func TestFailAndDestroyed(t *testing.T) {
	l, _ := started(t)
	assert.True(t, l.Fail())
	assert.False(t, l.Fail())
	assert.Equal(t, Failed, l.State())

	l.Destroyed()
	assert.Equal(t, Failed, l.State())
	assert.True(t, l.Quitting())

	m, _ := started(t)
	m.Destroyed()
	assert.Equal(t, Destroyed, m.State())
	assert.False(t, m.Alive())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "hidden", Hidden.String())
	assert.Equal(t, "unknown", State(42).String())
}
