//go:build !darwin

package main

// startTrayLoop on Linux and Windows just calls start directly.
func startTrayLoop(start func()) bool {
	start()
	return true
}
