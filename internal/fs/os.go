//go:build !windows
// +build !windows

package fs

import "os"

func Open(path string) (File, error) {
	return os.Open(path)
}

func OpenRW(path string) (WritableFile, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}
