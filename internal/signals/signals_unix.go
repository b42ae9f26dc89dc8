//go:build unix

// Package signals lists the OS signals that interrupt an agent run.
package signals

import (
	"os"
	"syscall"
)

// ShutdownSignals returns the signals that cancel a running command.
// On Unix this includes SIGTERM (e.g. from a process manager).
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
