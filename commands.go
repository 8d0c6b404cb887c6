package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kosmigo/config"
	"kosmigo/instance"
	"kosmigo/prefs"
	"kosmigo/urlpolicy"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print preferences",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPrefs(prefs.DefaultPath())
		if err != nil {
			return err
		}
		var key string
		if len(args) == 1 {
			key = args[0]
		}
		return printPrefs(cmd.OutOrStdout(), store, key)
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a preference, applying it to the running window",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setPref(instance.SocketPath(), prefs.DefaultPath(), urlpolicy.New(cfg.AllowedDomains...), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
		return nil
	},
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore every preference to its default",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if instance.Running(instance.SocketPath()) {
			return errors.New("the app is running; quit it before resetting preferences")
		}
		store, err := openPrefs(prefs.DefaultPath())
		if err != nil {
			return err
		}
		if err := store.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "preferences reset")
		return nil
	},
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Manage recent rooms",
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent rooms, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPrefs(prefs.DefaultPath())
		if err != nil {
			return err
		}
		printRooms(cmd.OutOrStdout(), store.RecentRooms())
		return nil
	},
}

var roomsAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Open a room in the running window, or add it to recent rooms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opened, err := addRoom(instance.SocketPath(), prefs.DefaultPath(), urlpolicy.New(cfg.AllowedDomains...), args[0])
		if err != nil {
			return err
		}
		if opened {
			fmt.Fprintln(cmd.OutOrStdout(), "opened in Kosmi")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "added to recent rooms")
		}
		return nil
	},
}

var roomsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all recent rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setPref(instance.SocketPath(), prefs.DefaultPath(), nil, prefs.KeyRecentRooms, "[]"); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "recent rooms cleared")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Kosmi Desktop %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\n", config.Dir())
	},
}

func init() {
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd, prefsResetCmd)
	roomsCmd.AddCommand(roomsListCmd, roomsAddCmd, roomsClearCmd)
}

// openPrefs opens the store for the CLI. A corrupt file is reported but the
// defaults are still usable.
func openPrefs(path string) (*prefs.Store, error) {
	store, err := prefs.Open(path)
	if err != nil && !errors.Is(err, prefs.ErrCorrupt) {
		return nil, err
	}
	return store, nil
}

// printPrefs writes a KEY/VALUE/SOURCE table of the effective preferences.
// With key set only that row is printed.
func printPrefs(w io.Writer, store *prefs.Store, key string) error {
	if key != "" && !isKnown(key) {
		return fmt.Errorf("unknown preference %q", key)
	}

	data, err := json.Marshal(store.Snapshot())
	if err != nil {
		return err
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
	for _, k := range prefs.Known() {
		if key != "" && k != key {
			continue
		}
		source := "default"
		if _, ok := store.Raw(k); ok {
			source = "set"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k, values[k], source)
	}
	return tw.Flush()
}

func isKnown(key string) bool {
	for _, k := range prefs.Known() {
		if k == key {
			return true
		}
	}
	return false
}

// setPref validates raw for key and stores it. A running instance stores and
// applies it itself; otherwise the file is written directly.
func setPref(sock, path string, policy *urlpolicy.Policy, key, raw string) error {
	value, err := prefs.ParseValue(key, raw)
	if err != nil {
		return err
	}
	if err := checkRoomURLs(policy, key, value); err != nil {
		return err
	}
	err = instance.SetPreference(sock, key, value)
	if err == nil || !errors.Is(err, instance.ErrNotRunning) {
		return err
	}
	store, err := openPrefs(path)
	if err != nil {
		return err
	}
	return store.Set(key, value)
}

// addRoom opens an app URL in the running window. With no window running it
// is pushed onto the recent list instead. It reports whether a window took it.
func addRoom(sock, path string, policy *urlpolicy.Policy, raw string) (bool, error) {
	u, err := url.Parse(raw)
	if err != nil || policy.Decide(raw) != urlpolicy.Allow {
		return false, fmt.Errorf("not a Kosmi URL: %s", raw)
	}
	raw = u.String()

	err = instance.OpenURL(sock, raw)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, instance.ErrNotRunning) {
		return false, err
	}
	store, err := openPrefs(path)
	if err != nil {
		return false, err
	}
	_, err = store.AddRecentRoom(raw)
	return false, err
}

func printRooms(w io.Writer, rooms []string) {
	if len(rooms) == 0 {
		fmt.Fprintln(w, "no recent rooms")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tURL")
	for i, r := range rooms {
		fmt.Fprintf(tw, "%d\t%s\n", i+1, r)
	}
	tw.Flush()
}
