//go:build unix

package builtin

import "syscall"

// unixUmask wraps syscall.Umask, which both sets the process umask to mask
// and returns the previous value, matching the semantics "umask" needs to
// peek at the current mask without disturbing it (call with the returned
// value to restore it).
func unixUmask(mask int) int {
	return syscall.Umask(mask)
}
