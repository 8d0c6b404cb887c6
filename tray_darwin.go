//go:build darwin

package main

// startTrayLoop does not start the tray on macOS. The status item would have
// to be created on the AppKit main thread that Wails already owns; the application
// menu's Show Kosmi item covers reactivation there.
func startTrayLoop(start func()) bool {
	return false
}
