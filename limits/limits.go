// Package limits carries the fixed system-wide table sizes this repository
// uses in place of boot-time-discovered memory sizing, per
// original_source/kernel/include/kernel/param.h. Adapted from the teacher's
// limits/limits.go (Syslimit_t, Sysatomic_t) which tracks live usage against
// configurable ceilings; here the ceilings are the concrete constants
// spec.md's Testable Properties reference directly (MAX_PROCESSES,
// MAX_FILES_PER_PROCESS), so they are plain constants rather than a runtime
// atomic-counter struct, since nothing in this module grows them at runtime.
package limits

import "time"

const (
	MaxProcesses       = 1024
	MaxCPUs            = 8
	MaxFilesPerProcess = 16
	MaxExecArgs        = 32
	PageSize           = 4096
	UserMaxStackSize   = 16 * PageSize
)

// ShutdownDrainTimeout bounds how long proc.Shutdown waits for any one
// process to actually exit after being killed, so a Runnable process
// that never gets scheduled cannot hang shutdown forever. A var, not a
// const, so tests can shorten it instead of waiting out the real value.
var ShutdownDrainTimeout = 5 * time.Second
