package main

import "kosmigo/prefs"

// Platform abstracts the native window, menu and dialogs so the App can be
// driven without a real webview.
type Platform interface {
	Show()
	Hide()
	Focus()
	EvalJS(js string)
	Reload()
	SetAlwaysOnTop(on bool)
	ToggleFullscreen()
	Bounds() (prefs.Bounds, bool)
	SetBounds(b prefs.Bounds)
	OpenExternal(url string)
	UpdateMenu(state MenuState)
	ErrorDialog(title, message string)
	InfoDialog(title, message string)
	Confirm(title, message string) bool
	Quit()
}

// MenuState is everything the application menu reflects.
type MenuState struct {
	Muted       bool
	AlwaysOnTop bool
	RecentRooms []string
	CanUpdate   bool
}

// menuAction identifies a menu or tray item.
type menuAction string

const (
	actionShow         menuAction = "show"
	actionHome         menuAction = "home"
	actionJoinRoom     menuAction = "join-room"
	actionQuit         menuAction = "quit"
	actionBack         menuAction = "back"
	actionForward      menuAction = "forward"
	actionRecentRoom   menuAction = "recent-room"
	actionClearRecent  menuAction = "clear-recent"
	actionReload       menuAction = "reload"
	actionHardReload   menuAction = "hard-reload"
	actionFullscreen   menuAction = "fullscreen"
	actionPiP          menuAction = "pip"
	actionToggleMute   menuAction = "toggle-mute"
	actionToggleOnTop  menuAction = "toggle-on-top"
	actionAbout        menuAction = "about"
	actionCheckUpdates menuAction = "check-updates"
)
