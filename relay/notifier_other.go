//go:build !linux

package relay

func notificationsSupported() bool { return true }
