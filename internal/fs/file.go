package fs

import (
	"io"
	"os"
)

type File interface {
	io.ReadCloser
	io.ReaderAt
	Stat() (os.FileInfo, error)
}

// WritableFile is a File that also accepts positioned writes. Only regular
// image files satisfy it; raw volumes are opened read-only.
type WritableFile interface {
	File
	io.WriterAt
}
