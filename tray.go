package main

import (
	"github.com/charmbracelet/log"
	"github.com/energye/systray"
)

// trayIcon is the status-area icon. Left click surfaces the window, right
// click opens a small menu.
type trayIcon struct {
	icon    []byte
	onClick func(menuAction, string)
	logger  *log.Logger
	end     func()
}

func newTrayIcon(icon []byte, onClick func(menuAction, string), logger *log.Logger) *trayIcon {
	return &trayIcon{icon: icon, onClick: onClick, logger: logger}
}

// Start runs the tray alongside the Wails event loop.
func (t *trayIcon) Start() {
	start, end := systray.RunWithExternalLoop(t.onReady, func() {})
	if startTrayLoop(start) {
		t.end = end
	}
}

func (t *trayIcon) Stop() {
	if t.end != nil {
		t.end()
		t.end = nil
	}
}

func (t *trayIcon) onReady() {
	systray.SetIcon(t.icon)
	systray.SetTooltip("Kosmi")

	// Callbacks run on the tray's thread; onClick only queues work.
	systray.SetOnClick(func(systray.IMenu) { t.fire(actionShow) })
	systray.SetOnRClick(func(menu systray.IMenu) { menu.ShowMenu() })

	mShow := systray.AddMenuItem("Show Kosmi", "Show the Kosmi window")
	mShow.Click(func() { t.fire(actionShow) })
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit Kosmi")
	mQuit.Click(func() { t.fire(actionQuit) })

	t.logger.Debug("tray ready")
}

func (t *trayIcon) fire(action menuAction) {
	if t.onClick != nil {
		t.onClick(action, "")
	}
}
