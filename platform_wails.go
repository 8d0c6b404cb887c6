package main

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"kosmigo/prefs"
)

// wailsPlatform drives the Wails window. Every call before OnStartup has
// delivered the runtime context is dropped.
type wailsPlatform struct {
	mu      sync.Mutex
	ctx     context.Context
	onClick func(menuAction, string)
	logger  *log.Logger
	tray    *trayIcon
}

func newWailsPlatform(logger *log.Logger) *wailsPlatform {
	return &wailsPlatform{logger: logger}
}

// attach stores the runtime context and the menu click handler.
func (p *wailsPlatform) attach(ctx context.Context, onClick func(menuAction, string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx = ctx
	p.onClick = onClick
}

func (p *wailsPlatform) context() (context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx, p.ctx != nil
}

func (p *wailsPlatform) Show() {
	if ctx, ok := p.context(); ok {
		runtime.Show(ctx)
		runtime.WindowShow(ctx)
	}
}

func (p *wailsPlatform) Hide() {
	if ctx, ok := p.context(); ok {
		runtime.WindowHide(ctx)
	}
}

func (p *wailsPlatform) Focus() {
	if ctx, ok := p.context(); ok {
		runtime.WindowUnminimise(ctx)
		runtime.WindowShow(ctx)
	}
}

func (p *wailsPlatform) EvalJS(js string) {
	if ctx, ok := p.context(); ok {
		runtime.WindowExecJS(ctx, js)
	}
}

func (p *wailsPlatform) Reload() {
	if ctx, ok := p.context(); ok {
		runtime.WindowReload(ctx)
	}
}

func (p *wailsPlatform) SetAlwaysOnTop(on bool) {
	if ctx, ok := p.context(); ok {
		runtime.WindowSetAlwaysOnTop(ctx, on)
	}
}

func (p *wailsPlatform) ToggleFullscreen() {
	ctx, ok := p.context()
	if !ok {
		return
	}
	if runtime.WindowIsFullscreen(ctx) {
		runtime.WindowUnfullscreen(ctx)
	} else {
		runtime.WindowFullscreen(ctx)
	}
}

func (p *wailsPlatform) Bounds() (prefs.Bounds, bool) {
	ctx, ok := p.context()
	if !ok {
		return prefs.Bounds{}, false
	}
	x, y := runtime.WindowGetPosition(ctx)
	w, h := runtime.WindowGetSize(ctx)
	return prefs.Bounds{X: x, Y: y, Width: w, Height: h}, true
}

func (p *wailsPlatform) SetBounds(b prefs.Bounds) {
	ctx, ok := p.context()
	if !ok {
		return
	}
	if b.Width > 0 && b.Height > 0 {
		runtime.WindowSetSize(ctx, b.Width, b.Height)
	}
	if b.HasPosition() {
		runtime.WindowSetPosition(ctx, b.X, b.Y)
	} else {
		runtime.WindowCenter(ctx)
	}
}

func (p *wailsPlatform) OpenExternal(url string) {
	if ctx, ok := p.context(); ok {
		runtime.BrowserOpenURL(ctx, url)
	}
}

func (p *wailsPlatform) UpdateMenu(state MenuState) {
	ctx, ok := p.context()
	if !ok {
		return
	}
	p.mu.Lock()
	click := p.onClick
	p.mu.Unlock()
	runtime.MenuSetApplicationMenu(ctx, buildMenu(state, click))
	runtime.MenuUpdateApplicationMenu(ctx)
}

func (p *wailsPlatform) ErrorDialog(title, message string) {
	p.dialog(runtime.ErrorDialog, title, message)
}

func (p *wailsPlatform) InfoDialog(title, message string) {
	p.dialog(runtime.InfoDialog, title, message)
}

func (p *wailsPlatform) Confirm(title, message string) bool {
	ctx, ok := p.context()
	if !ok {
		return false
	}
	answer, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         title,
		Message:       message,
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "Yes",
		CancelButton:  "No",
	})
	if err != nil {
		p.logger.Warn("dialog failed", "title", title, "err", err)
		return false
	}
	return answer == "Yes" || answer == "Ok" || answer == "OK"
}

func (p *wailsPlatform) dialog(kind runtime.DialogType, title, message string) {
	ctx, ok := p.context()
	if !ok {
		p.logger.Error(title, "message", message)
		return
	}
	if _, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
		Type:    kind,
		Title:   title,
		Message: message,
	}); err != nil {
		p.logger.Warn("dialog failed", "title", title, "err", err)
	}
}

func (p *wailsPlatform) Quit() {
	p.mu.Lock()
	tray := p.tray
	p.mu.Unlock()
	if tray != nil {
		tray.Stop()
	}
	if ctx, ok := p.context(); ok {
		runtime.Quit(ctx)
	}
}

// startTray shows the tray icon. Clicking it surfaces the window.
func (p *wailsPlatform) startTray(icon []byte) {
	p.mu.Lock()
	click := p.onClick
	p.mu.Unlock()
	t := newTrayIcon(icon, click, p.logger)
	t.Start()
	p.mu.Lock()
	p.tray = t
	p.mu.Unlock()
}

// wailsLogger routes Wails' own log lines into the shell logger.
type wailsLogger struct {
	l *log.Logger
}

func (w wailsLogger) Print(message string)   { w.l.Print(message) }
func (w wailsLogger) Trace(message string)   { w.l.Debug(message) }
func (w wailsLogger) Debug(message string)   { w.l.Debug(message) }
func (w wailsLogger) Info(message string)    { w.l.Info(message) }
func (w wailsLogger) Warning(message string) { w.l.Warn(message) }
func (w wailsLogger) Error(message string)   { w.l.Error(message) }
func (w wailsLogger) Fatal(message string)   { w.l.Fatal(message) }
