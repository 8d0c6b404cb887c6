package main

import (
	goruntime "runtime"

	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
)

// buildMenu renders the application menu for state. click receives the
// action of every item; arg is set for recent-room entries.
func buildMenu(state MenuState, click func(menuAction, string)) *menu.Menu {
	on := func(action menuAction, arg string) menu.Callback {
		return func(*menu.CallbackData) {
			if click != nil {
				click(action, arg)
			}
		}
	}

	m := menu.NewMenu()
	if goruntime.GOOS == "darwin" {
		m.Append(menu.AppMenu())
	}

	file := m.AddSubmenu("File")
	file.AddText("Show Kosmi", keys.CmdOrCtrl("0"), on(actionShow, ""))
	file.AddText("Go to Home", nil, on(actionHome, ""))
	file.AddText("Join Room...", keys.CmdOrCtrl("j"), on(actionJoinRoom, ""))
	file.AddSeparator()
	file.AddText("Quit", keys.CmdOrCtrl("q"), on(actionQuit, ""))

	nav := m.AddSubmenu("Navigation")
	nav.AddText("Back", keys.CmdOrCtrl("["), on(actionBack, ""))
	nav.AddText("Forward", keys.CmdOrCtrl("]"), on(actionForward, ""))

	rooms := m.AddSubmenu("Rooms")
	if len(state.RecentRooms) == 0 {
		empty := rooms.AddText("No recent rooms", nil, nil)
		empty.Disabled = true
	} else {
		for _, room := range state.RecentRooms {
			rooms.AddText(room, nil, on(actionRecentRoom, room))
		}
		rooms.AddSeparator()
		rooms.AddText("Clear Recent Rooms", nil, on(actionClearRecent, ""))
	}

	m.Append(menu.EditMenu())

	view := m.AddSubmenu("View")
	view.AddText("Reload", keys.CmdOrCtrl("r"), on(actionReload, ""))
	view.AddText("Hard Reload (Clear Cache)", keys.Combo("r", keys.CmdOrCtrlKey, keys.ShiftKey), on(actionHardReload, ""))
	view.AddSeparator()
	view.AddText("Toggle Full Screen", keys.Key("f11"), on(actionFullscreen, ""))
	view.AddText("Toggle Picture-in-Picture", nil, on(actionPiP, ""))
	view.AddSeparator()
	view.AddCheckbox("Mute Audio", state.Muted, nil, on(actionToggleMute, ""))
	view.AddCheckbox("Always on Top", state.AlwaysOnTop, nil, on(actionToggleOnTop, ""))

	help := m.AddSubmenu("Help")
	help.AddText("About Kosmi Desktop", nil, on(actionAbout, ""))
	updates := help.AddText("Check for Updates...", nil, on(actionCheckUpdates, ""))
	updates.Disabled = !state.CanUpdate

	return m
}
