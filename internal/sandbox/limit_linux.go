//go:build linux

package sandbox

import "golang.org/x/sys/unix"

// limitSelf caps the address space of the calling process. The cap survives
// execve.
func limitSelf(mb int) error {
	lim := uint64(mb) << 20
	return unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: lim, Max: lim})
}
