package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"kosmigo/bridge"
	"kosmigo/config"
	"kosmigo/prefs"
	"kosmigo/presence"
	"kosmigo/relay"
	"kosmigo/updater"
	"kosmigo/urlpolicy"
	"kosmigo/window"
)

// App is the application context. It is built once at startup and every
// handler reaches the window, the preferences and the background services
// through it.
type App struct {
	cfg      *config.Config
	logger   *log.Logger
	platform Platform
	prefs    *prefs.Store
	policy   *urlpolicy.Policy
	life     *window.Lifecycle
	relay    *relay.Relay
	presence *presence.Updater
	updater  *updater.Updater
	bridge   *bridge.Server
	channel  *bridge.Channel
	dispatch *bridge.Dispatcher
	session  string
	client   *http.Client

	tasks    chan func()
	stop     chan struct{}
	stopOnce sync.Once

	exitCode atomic.Int32
	restart  atomic.Bool
	updating atomic.Bool

	// Owned by the event loop.
	lastRoom string
}

// appDeps are the collaborators handed to newApp. Presence and Updater may
// be nil to disable those features.
type appDeps struct {
	Config   *config.Config
	Logger   *log.Logger
	Platform Platform
	Prefs    *prefs.Store
	Notifier relay.Notifier
	Icon     string
	Presence presence.Client
	Updater  *updater.Updater
	Bridge   *bridge.Server
	Channel  *bridge.Channel
}

func newApp(d appDeps) *App {
	a := &App{
		cfg:      d.Config,
		logger:   d.Logger,
		platform: d.Platform,
		prefs:    d.Prefs,
		policy:   urlpolicy.New(d.Config.AllowedDomains...),
		life:     window.New(d.Logger.WithPrefix("window")),
		updater:  d.Updater,
		bridge:   d.Bridge,
		channel:  d.Channel,
		session:  uuid.NewString(),
		client:   &http.Client{Timeout: d.Config.LoadTimeout},
		tasks:    make(chan func(), 128),
		stop:     make(chan struct{}),
	}
	if a.channel == nil {
		a.channel = bridge.NewChannel(64)
	}
	a.relay = relay.New(d.Notifier, a.life, d.Icon, d.Logger.WithPrefix("relay"))
	if d.Presence != nil {
		a.presence = presence.NewUpdater(d.Presence, time.Now(), d.Logger.WithPrefix("presence"))
	}

	a.dispatch = bridge.NewDispatcher(d.Logger.WithPrefix("bridge"))
	a.dispatch.Handle(bridge.KindShowNotification, a.relay.Handle)
	a.dispatch.Handle(bridge.KindDroppedLink, a.onDroppedLink)
	a.dispatch.Handle(bridge.KindPageReady, a.onPageReady)
	a.dispatch.Handle(bridge.KindPageState, a.onPageState)
	a.dispatch.Handle(bridge.KindOpenWindow, a.onOpenWindow)
	a.dispatch.Handle(bridge.KindJoinRoom, a.onJoinRoom)
	return a
}

// start restores the saved window state and begins loading. It runs once the
// native window exists.
func (a *App) start() {
	b := a.prefs.WindowBounds()
	a.platform.SetBounds(b)
	if a.prefs.AlwaysOnTop() {
		a.platform.SetAlwaysOnTop(true)
	}
	a.updateMenu()
	a.life.Start(a.platform, a.cfg.LoadTimeout, a.onLoadTimeout)
}

// boot checks that the remote app is reachable and then leaves the loader
// page for it.
func (a *App) boot(ctx context.Context, target string) {
	if err := a.preflight(ctx); err != nil {
		a.logger.Error("remote app unreachable", "url", a.cfg.EntryURL, "err", err)
		a.fatal("Connection Error", fmt.Sprintf(
			"Could not connect to Kosmi. Please check your internet connection and try again.\n\nError: %v", err))
		return
	}
	if target == "" || a.policy.Decide(target) != urlpolicy.Allow {
		target = a.cfg.EntryURL
	}
	a.post(func() { a.navigate(target) })
}

func (a *App) preflight(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.EntryURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// run is the event loop. Page messages, menu and tray actions, second-launch
// requests and the presence timer are all handled here, one at a time.
func (a *App) run(ctx context.Context) {
	inject := time.NewTicker(time.Second)
	defer inject.Stop()

	var tick <-chan time.Time
	if a.presence != nil {
		t := time.NewTicker(a.cfg.Presence.Interval)
		defer t.Stop()
		tick = t.C
	}

	a.logger.Debug("event loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case m, ok := <-a.channel.Receive():
			if !ok {
				return
			}
			_ = a.dispatch.Dispatch(m)
		case fn := <-a.tasks:
			fn()
		case <-inject.C:
			a.injectBridge()
		case <-tick:
			a.updatePresence(ctx)
		}
	}
}

// post hands fn to the event loop. It never blocks, so it is safe to call
// from UI callbacks.
func (a *App) post(fn func()) {
	select {
	case a.tasks <- fn:
	default:
		a.logger.Warn("event loop busy, dropping task")
	}
}

// injectBridge installs the page-side bridge. It is a no-op on pages that
// already have it and on pages outside the app domains.
func (a *App) injectBridge() {
	if !a.life.Alive() || a.bridge == nil {
		return
	}
	a.platform.EvalJS(bridge.Script(bridge.ScriptConfig{
		Endpoint: a.bridge.URL(),
		Token:    a.bridge.Token(),
		Session:  a.session,
		Domains:  a.policy.Domains(),
	}))
}

func (a *App) updatePresence(ctx context.Context) {
	if a.presence == nil {
		return
	}
	go a.presence.Update(ctx)
}

// Bridge handlers

func (a *App) onPageReady(m bridge.Message) {
	first := a.life.Rendered()
	a.applyPageState()
	if a.presence != nil {
		a.presence.SetPage(m.URL, m.Title)
		a.updatePresence(context.Background())
	}
	a.recordRoom(m.URL)
	if first && a.cfg.Update.CheckOnStart {
		go a.checkForUpdates(false)
	}
}

func (a *App) onPageState(m bridge.Message) {
	if a.presence != nil {
		a.presence.SetPage(m.URL, m.Title)
	}
	a.recordRoom(m.URL)
}

func (a *App) onDroppedLink(m bridge.Message) {
	a.openURL(m.URL)
}

func (a *App) onOpenWindow(m bridge.Message) {
	a.openURL(m.URL)
}

func (a *App) onJoinRoom(m bridge.Message) {
	target := roomURL(a.cfg.EntryURL, m.URL)
	if a.policy.Decide(target) != urlpolicy.Allow {
		a.logger.Warn("join room with foreign link", "input", m.URL)
		a.platform.InfoDialog("Join Room", "That does not look like a Kosmi room link.")
		return
	}
	a.openURL(target)
}

// roomURL turns what the user typed into the join prompt into a URL: full
// links are kept, bare hosts get a scheme and anything else is a room code.
func roomURL(entry, input string) string {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		return input
	}
	if host, _, _ := strings.Cut(input, "/"); strings.Contains(host, ".") {
		return "https://" + input
	}
	code := strings.Trim(input, "/")
	code = strings.TrimPrefix(code, "room/")
	return strings.TrimRight(entry, "/") + "/room/" + url.PathEscape(code)
}

// openURL applies the navigation policy to a URL the user or the page wants
// to open.
func (a *App) openURL(raw string) {
	switch a.policy.Decide(raw) {
	case urlpolicy.Allow:
		a.navigate(raw)
		if raw != a.cfg.EntryURL {
			a.addRecent(raw)
		}
	case urlpolicy.External:
		a.logger.Debug("opening externally", "url", raw)
		a.platform.OpenExternal(raw)
	case urlpolicy.Deny:
		a.logger.Warn("refusing to open url", "url", raw)
	}
}

func (a *App) navigate(target string) {
	a.logger.Info("loading", "url", target)
	a.platform.EvalJS(bridge.LocationCall(target))
}

// recordRoom adds room pages the user reaches inside the app to recents.
func (a *App) recordRoom(raw string) {
	if raw == a.lastRoom || !strings.Contains(raw, "/room/") || !a.policy.IsAppURL(raw) {
		return
	}
	a.addRecent(raw)
}

func (a *App) addRecent(raw string) {
	a.lastRoom = raw
	if _, err := a.prefs.AddRecentRoom(raw); err != nil {
		a.logger.Error("failed to save recent room", "url", raw, "err", err)
		return
	}
	a.updateMenu()
}

func (a *App) applyPageState() {
	a.platform.EvalJS(bridge.ApplyCall(bridge.PageState{
		Muted:     a.prefs.Muted(),
		CustomCSS: a.prefs.CustomCSS(),
	}))
}

func (a *App) updateMenu() {
	a.platform.UpdateMenu(a.menuState())
}

func (a *App) menuState() MenuState {
	return MenuState{
		Muted:       a.prefs.Muted(),
		AlwaysOnTop: a.prefs.AlwaysOnTop(),
		RecentRooms: a.prefs.RecentRooms(),
		CanUpdate:   a.updater != nil && a.updater.Enabled(),
	}
}

// Menu and tray

// onMenu is the click handler for menu and tray items. It may be called on
// the UI thread, so the work itself happens on the event loop.
func (a *App) onMenu(action menuAction, arg string) {
	a.post(func() { a.handleMenu(action, arg) })
}

func (a *App) handleMenu(action menuAction, arg string) {
	switch action {
	case actionShow:
		a.life.Activate()
	case actionHome:
		a.life.Activate()
		a.openURL(a.cfg.EntryURL)
	case actionJoinRoom:
		a.life.Activate()
		a.platform.EvalJS(bridge.PromptJoinCall())
	case actionQuit:
		a.quit()
	case actionBack:
		a.platform.EvalJS(bridge.HistoryCall(false))
	case actionForward:
		a.platform.EvalJS(bridge.HistoryCall(true))
	case actionRecentRoom:
		a.openURL(arg)
	case actionClearRecent:
		if err := a.prefs.ClearRecentRooms(); err != nil {
			a.logger.Error("failed to clear recent rooms", "err", err)
		}
		a.lastRoom = ""
		a.updateMenu()
	case actionReload:
		a.platform.Reload()
	case actionHardReload:
		a.platform.EvalJS(bridge.HardReloadCall())
	case actionFullscreen:
		a.platform.ToggleFullscreen()
	case actionPiP:
		a.platform.EvalJS(bridge.TogglePictureInPictureCall())
	case actionToggleMute:
		a.applyPreference(prefs.KeyMuted, !a.prefs.Muted())
	case actionToggleOnTop:
		a.applyPreference(prefs.KeyAlwaysOnTop, !a.prefs.AlwaysOnTop())
	case actionAbout:
		a.platform.InfoDialog("About Kosmi Desktop", fmt.Sprintf(
			"Kosmi Desktop %s\n\nA desktop home for %s", Version, a.cfg.EntryURL))
	case actionCheckUpdates:
		go a.checkForUpdates(true)
	default:
		a.logger.Warn("unknown menu action", "action", action)
	}
}

// applyPreference stores value and applies it to the running window.
func (a *App) applyPreference(key string, value any) {
	if err := a.prefs.Set(key, value); err != nil {
		a.logger.Error("failed to save preference", "key", key, "err", err)
	}
	a.preferenceChanged(key)
}

func (a *App) preferenceChanged(key string) {
	switch key {
	case prefs.KeyAlwaysOnTop:
		a.platform.SetAlwaysOnTop(a.prefs.AlwaysOnTop())
	case prefs.KeyMuted:
		a.applyPageState()
	case prefs.KeyCustomCSS:
		a.platform.Reload()
	case prefs.KeyWindowBounds:
		a.platform.SetBounds(a.prefs.WindowBounds())
	case prefs.KeyRecentRooms:
		a.lastRoom = ""
	}
	a.updateMenu()
}

// Window events

// beforeClose is the native close hook. It reports whether the close must
// be prevented.
func (a *App) beforeClose() bool {
	prevent := a.life.CloseRequested()
	if prevent {
		a.post(a.saveBounds)
	}
	return prevent
}

func (a *App) saveBounds() {
	b, ok := a.platform.Bounds()
	if !ok || b.Width <= 0 || b.Height <= 0 {
		return
	}
	if err := a.prefs.SetWindowBounds(b); err != nil {
		a.logger.Error("failed to save window bounds", "err", err)
	}
}

// quit flags shutdown and tears the window down.
func (a *App) quit() {
	if a.life.Quitting() {
		return
	}
	a.logger.Info("quitting")
	a.life.SetQuitting()
	if a.life.Alive() {
		a.saveBounds()
	}
	a.platform.Quit()
}

// shutdown runs after the window is gone.
func (a *App) shutdown() {
	a.life.Destroyed()
	a.stopOnce.Do(func() { close(a.stop) })
	if a.presence != nil {
		if err := a.presence.Close(); err != nil {
			a.logger.Debug("presence close", "err", err)
		}
	}
}

func (a *App) onLoadTimeout() {
	a.platform.ErrorDialog("Connection Timeout",
		"The application took too long to load. Please check your internet connection and try again.")
	a.exitCode.Store(1)
	a.life.SetQuitting()
	a.platform.Quit()
}

// fatal reports an error that leaves the app unusable and exits.
func (a *App) fatal(title, message string) {
	a.life.Fail()
	a.platform.ErrorDialog(title, message)
	a.exitCode.Store(1)
	a.life.SetQuitting()
	a.platform.Quit()
}

// Updates

func (a *App) checkForUpdates(manual bool) {
	if !a.updating.CompareAndSwap(false, true) {
		return
	}
	defer a.updating.Store(false)

	if a.updater == nil || !a.updater.Enabled() {
		if manual {
			a.platform.InfoDialog("No Updates", "You are running the latest version of Kosmi Desktop.")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	info, err := a.updater.Check(ctx)
	cancel()
	if err != nil {
		a.logger.Warn("update check failed", "err", err)
		if manual {
			a.platform.ErrorDialog("Update Error", fmt.Sprintf("Could not check for updates.\n\n%v", err))
		}
		return
	}
	if !info.Available {
		if manual {
			a.platform.InfoDialog("No Updates", "You are running the latest version of Kosmi Desktop.")
		}
		return
	}

	if !a.platform.Confirm("Update Available", fmt.Sprintf(
		"Kosmi Desktop %s is available (you have %s).\n\nInstall it and restart now?",
		info.LatestVersion, info.CurrentVersion)) {
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := a.updater.Apply(ctx, info); err != nil {
		a.logger.Error("update failed", "err", err)
		a.platform.ErrorDialog("Update Error", fmt.Sprintf("The update could not be installed.\n\n%v", err))
		return
	}
	a.restart.Store(true)
	a.post(a.quit)
}

// instance.Handler

// Activate surfaces the window for a second launch and opens any app URL it
// was given.
func (a *App) Activate(args []string) {
	a.post(func() {
		a.life.Activate()
		for _, arg := range args {
			if a.policy.IsAppURL(arg) {
				a.openURL(arg)
				break
			}
		}
	})
}

// SetPreference stores a preference sent by the CLI and applies it.
func (a *App) SetPreference(key string, raw json.RawMessage) error {
	value, err := prefs.DecodeValue(key, raw)
	if err != nil {
		return err
	}
	if err := checkRoomURLs(a.policy, key, value); err != nil {
		return err
	}
	if err := a.prefs.Set(key, value); err != nil {
		return err
	}
	a.post(func() { a.preferenceChanged(key) })
	return nil
}

// checkRoomURLs rejects a recent-room list holding anything but app URLs. A
// nil policy skips the check.
func checkRoomURLs(policy *urlpolicy.Policy, key string, value any) error {
	rooms, ok := value.([]string)
	if key != prefs.KeyRecentRooms || !ok || policy == nil {
		return nil
	}
	for _, r := range rooms {
		if !policy.IsAppURL(r) {
			return errors.New("not a Kosmi URL: " + r)
		}
	}
	return nil
}

// OpenURL loads an app URL sent by the CLI.
func (a *App) OpenURL(raw string) error {
	if a.policy.Decide(raw) != urlpolicy.Allow {
		return errors.New("not a Kosmi URL: " + raw)
	}
	a.post(func() {
		a.life.Activate()
		a.openURL(raw)
	})
	return nil
}
