//go:build unix

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// machine returns the raw machine identifier reported by uname(2).
func machine() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}

	return unix.ByteSliceToString(uts.Machine[:]), nil
}
