package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosmigo/logging"
)

func TestBuildActivity(t *testing.T) {
	start := time.Unix(1700000000, 0)
	tests := []struct {
		name        string
		url, title  string
		wantDetails string
		wantState   string
	}{
		{"home", "https://app.kosmi.io/", "Kosmi", "Browsing Kosmi", "Exploring rooms"},
		{"room with title", "https://app.kosmi.io/room/abc", "Movie Night - Kosmi", "In a Kosmi Room", "Movie Night"},
		{"room with bare suffix", "https://app.kosmi.io/room/abc", " - Kosmi", "In a Kosmi Room", "Chilling"},
		{"room without title", "https://app.kosmi.io/room/abc", "", "In a Kosmi Room", "Chilling"},
		{"not loaded yet", "", "", "Browsing Kosmi", "Exploring rooms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := BuildActivity(tt.url, tt.title, start)
			assert.Equal(t, tt.wantDetails, a.Details)
			assert.Equal(t, tt.wantState, a.State)
			assert.Equal(t, start, a.StartTimestamp)
			assert.Equal(t, "kosmi_logo", a.LargeImageKey)
			assert.Equal(t, "Kosmi Desktop", a.LargeImageText)
			assert.False(t, a.Instance)
		})
	}
}

type fakeClient struct {
	mu     sync.Mutex
	sent   []Activity
	err    error
	closed bool
}

func (c *fakeClient) SetActivity(_ context.Context, a Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, a)
	return c.err
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func TestUpdaterPublishesCurrentPage(t *testing.T) {
	c := &fakeClient{}
	u := NewUpdater(c, time.Unix(1, 0), logging.Discard())
	require.True(t, u.Update(context.Background()))

	u.SetPage("https://app.kosmi.io/room/xyz", "Lobby - Kosmi")
	assert.Equal(t, "Lobby", u.Current().State)
	require.True(t, u.Update(context.Background()))

	require.Len(t, c.sent, 2)
	assert.Equal(t, "Browsing Kosmi", c.sent[0].Details)
	assert.Equal(t, "In a Kosmi Room", c.sent[1].Details)
	assert.Equal(t, c.sent[0].StartTimestamp, c.sent[1].StartTimestamp)
}

func TestUpdaterSurvivesErrorsAndStopsAfterClose(t *testing.T) {
	c := &fakeClient{err: errors.New("discord not running")}
	u := NewUpdater(c, time.Now(), logging.Discard())
	assert.True(t, u.Update(context.Background()))
	assert.True(t, u.Update(context.Background()))

	require.NoError(t, u.Close())
	assert.True(t, c.closed)
	assert.False(t, u.Update(context.Background()))
	assert.Len(t, c.sent, 2)
}

// fakeDiscord speaks the server side of the IPC protocol on one connection.
type fakeDiscord struct {
	t        *testing.T
	commands chan map[string]any
	reject   bool
}

func (d *fakeDiscord) serve(conn net.Conn) {
	defer conn.Close()
	op, payload, err := readFrame(conn)
	if err != nil || op != opHandshake {
		return
	}
	var hello map[string]any
	_ = json.Unmarshal(payload, &hello)
	d.commands <- hello

	ready, _ := json.Marshal(map[string]any{"cmd": "DISPATCH", "evt": "READY"})
	if writeFrame(conn, opFrame, ready) != nil {
		return
	}
	for {
		op, payload, err := readFrame(conn)
		if err != nil || op == opClose {
			return
		}
		var cmd map[string]any
		_ = json.Unmarshal(payload, &cmd)
		d.commands <- cmd

		reply := map[string]any{"cmd": cmd["cmd"], "nonce": cmd["nonce"]}
		if d.reject {
			reply["evt"] = "ERROR"
			reply["data"] = map[string]any{"code": 4000, "message": "bad activity"}
		}
		// An unrelated event first; the client must skip it.
		other, _ := json.Marshal(map[string]any{"cmd": "DISPATCH", "evt": "ACTIVITY_JOIN"})
		if writeFrame(conn, opFrame, other) != nil {
			return
		}
		data, _ := json.Marshal(reply)
		if writeFrame(conn, opFrame, data) != nil {
			return
		}
	}
}

func (d *fakeDiscord) next() map[string]any {
	select {
	case c := <-d.commands:
		return c
	case <-time.After(2 * time.Second):
		d.t.Fatal("fake discord received nothing")
		return nil
	}
}

func pipeDialer(d *fakeDiscord, fails int) DialFunc {
	var mu sync.Mutex
	return func() (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if fails > 0 {
			fails--
			return nil, errors.New("connection refused")
		}
		client, server := net.Pipe()
		go d.serve(server)
		return client, nil
	}
}

func TestDiscordClientHandshakeAndSetActivity(t *testing.T) {
	d := &fakeDiscord{t: t, commands: make(chan map[string]any, 8)}
	c := NewDiscordClientWithDialer("1424391198860382310", pipeDialer(d, 0), logging.Discard())

	start := time.UnixMilli(1700000000123)
	errc := make(chan error, 1)
	go func() {
		errc <- c.SetActivity(context.Background(), BuildActivity("https://app.kosmi.io/room/a", "Den - Kosmi", start))
	}()

	hello := d.next()
	assert.Equal(t, float64(1), hello["v"])
	assert.Equal(t, "1424391198860382310", hello["client_id"])

	cmd := d.next()
	require.NoError(t, <-errc)
	assert.Equal(t, "SET_ACTIVITY", cmd["cmd"])
	assert.NotEmpty(t, cmd["nonce"])

	args := cmd["args"].(map[string]any)
	assert.NotZero(t, args["pid"])
	activity := args["activity"].(map[string]any)
	assert.Equal(t, "In a Kosmi Room", activity["details"])
	assert.Equal(t, "Den", activity["state"])
	assert.Equal(t, false, activity["instance"])
	assert.Equal(t, float64(1700000000123), activity["timestamps"].(map[string]any)["start"])
	assets := activity["assets"].(map[string]any)
	assert.Equal(t, "kosmi_logo", assets["large_image"])
	assert.Equal(t, "Kosmi Desktop", assets["large_text"])

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestDiscordClientReconnectsAfterFailure(t *testing.T) {
	d := &fakeDiscord{t: t, commands: make(chan map[string]any, 8)}
	c := NewDiscordClientWithDialer("id", pipeDialer(d, 1), logging.Discard())

	err := c.SetActivity(context.Background(), Activity{Details: "x"})
	require.ErrorIs(t, err, ErrNoDiscord)

	errc := make(chan error, 1)
	go func() { errc <- c.SetActivity(context.Background(), Activity{Details: "y"}) }()
	d.next()
	assert.Equal(t, "SET_ACTIVITY", d.next()["cmd"])
	require.NoError(t, <-errc)
	require.NoError(t, c.Close())
}

func TestDiscordClientReportsRejection(t *testing.T) {
	d := &fakeDiscord{t: t, commands: make(chan map[string]any, 8), reject: true}
	c := NewDiscordClientWithDialer("id", pipeDialer(d, 0), logging.Discard())

	errc := make(chan error, 1)
	go func() { errc <- c.SetActivity(context.Background(), Activity{Details: "x"}) }()
	d.next()
	d.next()
	err := <-errc
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad activity")

	// The failed connection was dropped; nothing to close.
	require.NoError(t, c.Close())
}

func TestUpdaterKeepsQuietWithoutDiscord(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})

	c := &fakeClient{err: fmt.Errorf("%w: dial failed", ErrNoDiscord)}
	u := NewUpdater(c, time.Now(), logger)
	for i := 0; i < 3; i++ {
		require.True(t, u.Update(context.Background()))
	}
	assert.Empty(t, buf.String())

	c.err = errors.New("discord read failed: EOF")
	require.True(t, u.Update(context.Background()))
	assert.Contains(t, buf.String(), "failed to update presence")
}

func TestDiscordClientGivesUpOnStalledPeer(t *testing.T) {
	d := &fakeDiscord{t: t, commands: make(chan map[string]any, 8)}
	var mu sync.Mutex
	dials := 0
	dial := func() (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		client, server := net.Pipe()
		if dials == 1 {
			// Accepts the handshake and never answers.
			go func() {
				defer server.Close()
				_, _ = io.Copy(io.Discard, server)
			}()
		} else {
			go d.serve(server)
		}
		return client, nil
	}
	c := NewDiscordClientWithDialer("id", dial, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	started := time.Now()
	err := c.SetActivity(ctx, Activity{Details: "x"})
	require.Error(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)

	errc := make(chan error, 1)
	go func() { errc <- c.SetActivity(context.Background(), Activity{Details: "y"}) }()
	d.next()
	assert.Equal(t, "SET_ACTIVITY", d.next()["cmd"])
	require.NoError(t, <-errc)
	require.NoError(t, c.Close())
}
