//go:build !windows

package localfs

import (
	"fmt"
	"io/fs"
	"syscall"
)

// fileIdentity returns "dev:ino" for the file behind info.
func fileIdentity(info fs.FileInfo) (string, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("ino:%d:%d", uint64(st.Dev), uint64(st.Ino)), true
}
