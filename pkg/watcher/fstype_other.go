//go:build !linux && !darwin

package watcher

func detectFilesystemType(string) FilesystemType {
	return FSTypeUnknown
}
