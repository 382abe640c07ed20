// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package defrag

import (
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/logger"
)

var (
	// ErrFileNotFound is returned when the target path does not match any
	// file produced by directory traversal. The match is exact.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileTooSmall is returned when the target occupies fewer than two
	// clusters and cannot be scattered.
	ErrFileTooSmall = errors.New("file too small to fragment")

	// ErrNoFreeClusters is returned when the free snapshot runs out before
	// every cluster of the target has a destination.
	ErrNoFreeClusters = errors.New("no free clusters available")
)

// Fragmenter scatters a file's clusters into randomly chosen free
// clusters. It exists to produce fragmented inputs for testing and
// demonstration.
type Fragmenter struct {
	*ClusterManager
}

func NewFragmenter(img io.WriterAt, table *fat.Table, dirs *fat.DirParser, log *logger.Logger) *Fragmenter {
	return &Fragmenter{
		ClusterManager: NewClusterManager(img, table, dirs, log),
	}
}

// FragmentFile relocates every cluster of the named file to a uniformly
// random free cluster, links the new clusters head-to-tail, frees the old
// ones and repoints the directory entry at the new head. The path must
// match a traversal-produced path exactly.
func (f *Fragmenter) FragmentFile(path string) error {
	files, err := f.dirs.AllFiles(f.table.BPB().RootCluster)
	if err != nil {
		return err
	}

	var target *fat.FileEntry
	for i := range files {
		if files[i].Path == path {
			target = &files[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	chain := f.table.ChainFrom(target.StartingCluster)
	if len(chain) < 2 {
		return fmt.Errorf("%w: %s", ErrFileTooSmall, path)
	}
	oldClusters := chainIndices(chain)

	f.log.Infof("fragmenting file %q, clusters %v", path, oldClusters)

	newClusters := make([]uint32, 0, len(oldClusters))
	for _, old := range oldClusters {
		if len(f.freeClusters) == 0 {
			return ErrNoFreeClusters
		}

		k := rand.Intn(len(f.freeClusters))
		picked := f.freeClusters[k]
		f.freeClusters = append(f.freeClusters[:k], f.freeClusters[k+1:]...)

		if err := f.CopyClusterData(old, picked); err != nil {
			return err
		}
		newClusters = append(newClusters, picked)
	}

	if err := f.UpdateDirectoryEntry(*target, newClusters[0]); err != nil {
		return err
	}

	f.UpdateFAT(oldClusters, newClusters)

	f.log.Infof("file %q scattered to clusters %v", path, newClusters)
	return f.WriteFAT()
}
