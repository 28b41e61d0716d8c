//go:build darwin

package watcher

import (
	"strings"

	"golang.org/x/sys/unix"
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	name := strings.ToLower(unix.ByteSliceToString(st.Fstypename[:]))
	switch {
	case name == "nfs":
		return FSTypeNFS
	case name == "smbfs" || name == "cifs":
		return FSTypeSMB
	case strings.Contains(name, "sshfs"):
		return FSTypeSSHFS
	case strings.HasPrefix(name, "macfuse") || strings.HasPrefix(name, "osxfuse") || strings.Contains(name, "fuse"):
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}
