// Package updater checks the release feed for a newer build and replaces the
// running executable with it.
package updater

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/selfupdate"
)

// Info is the result of a check.
type Info struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	BinaryURL      string
	ChecksumURL    string
}

// Updater talks to a release feed laid out as
//
//	<feed>/latest.txt
//	<feed>/<version>/kosmi-desktop-<os>-<arch>[.exe]
//	<feed>/<version>/kosmi-desktop-<os>-<arch>[.exe].sha256
type Updater struct {
	feed    string
	current string
	client  *http.Client
	logger  *log.Logger

	// target is the executable to replace; empty means the running one.
	target string
}

func New(feedURL, currentVersion string, logger *log.Logger) *Updater {
	return &Updater{
		feed:    strings.TrimRight(feedURL, "/"),
		current: currentVersion,
		client:  &http.Client{Timeout: 10 * time.Minute},
		logger:  logger,
	}
}

// Enabled reports whether this build can update itself. Development builds
// and an empty feed cannot.
func (u *Updater) Enabled() bool {
	return u.feed != "" && ParseSemVer(u.current) != nil
}

// AssetName is the release binary for this platform.
func AssetName() string {
	name := fmt.Sprintf("kosmi-desktop-%s-%s", runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

// Check fetches latest.txt and compares it with the running version.
func (u *Updater) Check(ctx context.Context) (Info, error) {
	info := Info{CurrentVersion: u.current}
	if !u.Enabled() {
		return info, nil
	}

	body, err := u.get(ctx, u.feed+"/latest.txt", 256)
	if err != nil {
		return info, fmt.Errorf("failed to check for updates: %w", err)
	}
	latest := strings.TrimSpace(string(body))
	info.LatestVersion = latest
	info.Available = IsNewer(u.current, latest)
	if info.Available {
		base := u.feed + "/" + url.PathEscape(latest) + "/" + AssetName()
		info.BinaryURL = base
		info.ChecksumURL = base + ".sha256"
	}
	u.logger.Debug("update check", "current", u.current, "latest", latest, "available", info.Available)
	return info, nil
}

// Apply downloads the release described by info and swaps it in for the
// current executable. The running process keeps its old image until it
// restarts.
func (u *Updater) Apply(ctx context.Context, info Info) error {
	if !info.Available || info.BinaryURL == "" {
		return errors.New("no update to apply")
	}

	sum, err := u.get(ctx, info.ChecksumURL, 1024)
	if err != nil {
		return fmt.Errorf("failed to fetch checksum: %w", err)
	}
	fields := strings.Fields(string(sum))
	if len(fields) == 0 {
		return errors.New("empty checksum file")
	}
	checksum, err := hex.DecodeString(fields[0])
	if err != nil {
		return fmt.Errorf("invalid checksum: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.BinaryURL, nil)
	if err != nil {
		return err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download update: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update download returned HTTP %d", resp.StatusCode)
	}

	u.logger.Info("applying update", "version", info.LatestVersion)
	err = selfupdate.Apply(resp.Body, selfupdate.Options{
		TargetPath: u.target,
		Checksum:   checksum,
	})
	if err != nil {
		if rerr := selfupdate.RollbackError(err); rerr != nil {
			return fmt.Errorf("update failed and rollback failed: %w", rerr)
		}
		return fmt.Errorf("failed to apply update: %w", err)
	}
	return nil
}

// Restart launches a fresh copy of the executable with the same arguments.
// Call it after the single-instance lock has been released.
func Restart() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to restart: %w", err)
	}
	return cmd.Process.Release()
}

func (u *Updater) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
