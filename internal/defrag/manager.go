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
	"fmt"
	"io"

	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/logger"
)

// FragmentedFile pairs a file path with the cluster indices of its chain.
type FragmentedFile struct {
	Path         string
	ClusterChain []uint32
}

// ClusterManager holds the primitives shared by the defragmenter and the
// fragmenter: the free-cluster snapshot, the fragmentation predicate,
// per-cluster copies, FAT chain rewrites and the final FAT flush.
//
// The free list is a snapshot taken at construction. Clusters freed
// mid-run are not recycled within the same run.
type ClusterManager struct {
	img   io.WriterAt // nil for read-only inspection
	table *fat.Table
	dirs  *fat.DirParser
	log   *logger.Logger

	freeClusters []uint32
}

func NewClusterManager(img io.WriterAt, table *fat.Table, dirs *fat.DirParser, log *logger.Logger) *ClusterManager {
	return &ClusterManager{
		img:          img,
		table:        table,
		dirs:         dirs,
		log:          log,
		freeClusters: findFreeClusters(table),
	}
}

func findFreeClusters(table *fat.Table) []uint32 {
	var free []uint32
	for _, c := range table.Clusters() {
		if c.Index >= fat.MinValidIndex && c.IsFree() {
			free = append(free, c.Index)
		}
	}
	return free
}

// IsFragmented reports whether the chain is not a contiguous ascending
// run: true iff some non-terminal cluster's successor differs from its own
// index plus one. The terminal cluster carries the end marker and is not
// checked.
func (m *ClusterManager) IsFragmented(chain []fat.Cluster) bool {
	for i := 0; i < len(chain)-1; i++ {
		if chain[i].NextIndex != chain[i].Index+1 {
			return true
		}
	}
	return false
}

// FindFragmentedFiles resolves the chain of every file and returns the
// fragmented subset.
func (m *ClusterManager) FindFragmentedFiles(files []fat.FileEntry) []FragmentedFile {
	var fragmented []FragmentedFile
	for _, f := range files {
		chain := m.table.ChainFrom(f.StartingCluster)
		if m.IsFragmented(chain) {
			fragmented = append(fragmented, FragmentedFile{
				Path:         f.Path,
				ClusterChain: chainIndices(chain),
			})
		}
	}
	return fragmented
}

func chainIndices(chain []fat.Cluster) []uint32 {
	indices := make([]uint32, len(chain))
	for i, c := range chain {
		indices[i] = c.Index
	}
	return indices
}

// CopyClusterData copies one cluster's payload from src to dst. Copying a
// cluster onto itself is a no-op.
func (m *ClusterManager) CopyClusterData(src, dst uint32) error {
	if src == dst {
		return nil
	}

	data, err := m.table.ReadClusterData(m.table.Cluster(src))
	if err != nil {
		return err
	}
	if _, err := m.img.WriteAt(data, m.table.ClusterOffset(dst)); err != nil {
		return fmt.Errorf("failed to write cluster %d: %w", dst, err)
	}
	return nil
}

// UpdateFAT frees every cluster in old, then links the clusters in new
// head-to-tail, terminating the last one with the end marker. The two sets
// are expected to be disjoint; a cluster present in both ends up linked.
func (m *ClusterManager) UpdateFAT(old, new []uint32) {
	for _, index := range old {
		m.table.MarkFree(index)
	}

	for i := 0; i < len(new)-1; i++ {
		m.table.SetNext(new[i], new[i+1])
	}
	m.table.MarkEnd(new[len(new)-1])
}

// UpdateDirectoryEntry repoints the file's directory entry at a new first
// cluster.
func (m *ClusterManager) UpdateDirectoryEntry(file fat.FileEntry, newStart uint32) error {
	return m.dirs.UpdateStartingCluster(m.img, file.Path, newStart)
}

// WriteFAT flushes the in-memory cluster table back to every FAT copy.
func (m *ClusterManager) WriteFAT() error {
	return m.table.WriteTo(m.img)
}
