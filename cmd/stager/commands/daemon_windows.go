//go:build windows

package commands

import "fmt"

// isProcessRunning cannot probe a process on Windows without opening it;
// status falls back to the health endpoint.
func isProcessRunning(pidPath string) (int, bool) {
	return 0, false
}

// startDaemon is not supported on Windows.
func startDaemon() error {
	return fmt.Errorf("daemon mode is not supported on Windows, use --foreground")
}
