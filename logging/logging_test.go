package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]log.Level{
		"":        log.InfoLevel,
		"debug":   log.DebugLevel,
		"INFO":    log.InfoLevel,
		"warn":    log.WarnLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	lvl, err := ParseLevel("chatty")
	require.Error(t, err)
	require.Equal(t, log.InfoLevel, lvl)
}

func TestNewConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")
	require.Contains(t, out, "key=value")
}

func TestNewFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kosmi.log")
	logger, closer, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug("page ready", "url", "https://app.kosmi.io/")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	require.NotEmpty(t, line)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	require.Equal(t, "page ready", entry["msg"])
	require.Equal(t, "https://app.kosmi.io/", entry["url"])
	require.EqualValues(t, os.Getpid(), entry["pid"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestNewFileReplacesConsole(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "kosmi.log")
	logger, closer, err := New(Options{File: path, Console: &console})
	require.NoError(t, err)

	logger.Warn("window failed to load")
	require.NoError(t, closer.Close())

	require.Empty(t, console.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "window failed to load")
}
