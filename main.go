package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"kosmigo/bridge"
	"kosmigo/config"
	"kosmigo/instance"
	"kosmigo/logging"
	"kosmigo/prefs"
	"kosmigo/presence"
	"kosmigo/relay"
	"kosmigo/updater"
)

var (
	cfgFile  string
	logLevel string
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "kosmi [url]",
	Short: "Kosmi desktop app",
	Long: `Kosmi Desktop hosts the Kosmi web app in a native window with tray,
notifications, Discord presence and automatic updates.

Passing a Kosmi URL opens it, in the running window if there is one.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var target string
		if len(args) == 1 {
			target = args[0]
		}
		code, err := runShell(target)
		exitCode = code
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <config dir>/kosmi/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kosmi:", err)
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// loadConfig reads the config file and applies the command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// runShell runs the desktop window until it quits and returns the process
// exit code. Errors before the window exists are returned as is.
func runShell(target string) (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return 1, reportStartupError(err)
	}
	logger, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return 1, reportStartupError(err)
	}
	defer closer.Close()

	// A redirected launch exits here, before it touches any shared state.
	sock := instance.SocketPath()
	inst, err := instance.Acquire(sock, logger.WithPrefix("instance"))
	if errors.Is(err, instance.ErrAlreadyRunning) {
		logger.Info("handing off to running instance", "socket", sock)
		return 0, handOff(sock, target)
	}
	if err != nil {
		logger.Error("failed to acquire instance lock", "err", err)
		return 1, reportStartupError(err)
	}

	store, err := prefs.Open(prefs.DefaultPath())
	if err != nil {
		if !errors.Is(err, prefs.ErrCorrupt) {
			inst.Close()
			logger.Error("failed to open preferences", "err", err)
			return 1, reportStartupError(err)
		}
		logger.Warn("starting with default preferences", "err", err)
	}

	icon, err := writeIconFile(config.Dir())
	if err != nil {
		logger.Warn("failed to write notification icon", "err", err)
	}

	channel := bridge.NewChannel(64)
	defer channel.Close()

	platform := newWailsPlatform(logger.WithPrefix("platform"))
	deps := appDeps{
		Config:   cfg,
		Logger:   logger,
		Platform: platform,
		Prefs:    store,
		Notifier: relay.NewDesktopNotifier("Kosmi"),
		Icon:     icon,
		Updater:  updater.New(cfg.Update.FeedURL, Version, logger.WithPrefix("updater")),
		Channel:  channel,
	}
	if cfg.Presence.Enabled {
		deps.Presence = presence.NewDiscordClient(cfg.Presence.ClientID, logger.WithPrefix("discord"))
	}
	app := newApp(deps)

	go func() {
		if err := inst.Serve(app); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("instance server stopped", "err", err)
		}
	}()

	srv := bridge.NewServer(channel, app.policy, logger.WithPrefix("bridge"))
	if err := srv.Listen(); err != nil {
		inst.Close()
		logger.Error("failed to start page bridge", "err", err)
		return 1, reportStartupError(fmt.Errorf("failed to start page bridge: %w", err))
	}
	app.bridge = srv
	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error("page bridge stopped", "err", err)
		}
	}()
	logger.Info("page bridge listening", "url", srv.URL())

	bounds := store.WindowBounds()
	err = wails.Run(&options.App{
		Title:            "Kosmi",
		Width:            bounds.Width,
		Height:           bounds.Height,
		MinWidth:         940,
		MinHeight:        600,
		StartHidden:      true,
		AlwaysOnTop:      store.AlwaysOnTop(),
		BackgroundColour: &options.RGBA{R: 42, G: 33, B: 57, A: 255},
		AssetServer:      &assetserver.Options{Handler: loaderHandler()},
		Menu:             buildMenu(app.menuState(), app.onMenu),
		Logger:           wailsLogger{l: logger.WithPrefix("wails")},
		OnStartup: func(ctx context.Context) {
			platform.attach(ctx, app.onMenu)
			app.start()
			platform.startTray(trayIconBytes())
			go app.run(ctx)
			go app.boot(ctx, target)
		},
		OnBeforeClose: func(ctx context.Context) bool {
			return app.beforeClose()
		},
		OnShutdown: func(ctx context.Context) {
			app.shutdown()
		},
	})

	// The instance lock must be released before a restarted copy starts.
	if cerr := srv.Close(); cerr != nil {
		logger.Debug("page bridge close", "err", cerr)
	}
	inst.Close()
	if err != nil {
		return 1, fmt.Errorf("window failed: %w", err)
	}

	if app.restart.Load() {
		logger.Info("restarting into new version")
		if err := updater.Restart(); err != nil {
			logger.Error("restart failed", "err", err)
		}
	}
	return int(app.exitCode.Load()), nil
}

// handOff forwards this launch to the primary instance. The primary may hold
// the lock a moment before its socket accepts, so refusals are retried briefly.
func handOff(sock, target string) error {
	var args []string
	if target != "" {
		args = []string{target}
	}
	var err error
	for i := 0; i < 10; i++ {
		if err = instance.Activate(sock, args); !errors.Is(err, instance.ErrNotRunning) {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return err
}
