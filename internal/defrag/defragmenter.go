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
	"io"
	"slices"

	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/logger"
	"github.com/fat32tools/fatdefrag/pkg/pbar"
)

// ErrNoContiguousRun is returned when Best-Fit cannot find a free run
// large enough for a relocation.
var ErrNoContiguousRun = errors.New("insufficient contiguous free space")

// Defragmenter relocates every fragmented file into a contiguous run of
// free clusters, chosen with a Best-Fit policy.
type Defragmenter struct {
	*ClusterManager
}

func NewDefragmenter(img io.WriterAt, table *fat.Table, dirs *fat.DirParser, log *logger.Logger) *Defragmenter {
	return &Defragmenter{
		ClusterManager: NewClusterManager(img, table, dirs, log),
	}
}

type relocation struct {
	file  fat.FileEntry
	chain []uint32
}

// Defragment relocates every fragmented file reachable from the root
// directory, then flushes the FAT once. Files are processed in traversal
// order; each relocation is independent. Any I/O failure aborts without
// flushing, leaving the on-disk FAT unchanged.
func (d *Defragmenter) Defragment() error {
	files, err := d.dirs.AllFiles(d.table.BPB().RootCluster)
	if err != nil {
		return err
	}

	var relocations []relocation
	for _, file := range files {
		chain := d.table.ChainFrom(file.StartingCluster)
		if d.IsFragmented(chain) {
			relocations = append(relocations, relocation{file: file, chain: chainIndices(chain)})
		}
	}

	if len(relocations) == 0 {
		d.log.Infof("no fragmented files found")
		return d.WriteFAT()
	}

	clusterSize := int64(d.table.BPB().ClusterSize())

	var totalBytes int64
	for _, r := range relocations {
		totalBytes += int64(len(r.chain)) * clusterSize
	}
	bar := pbar.New(totalBytes)

	for _, r := range relocations {
		d.log.Infof("file %q is fragmented %v, relocating", r.file.Path, r.chain)

		newClusters, err := d.allocateClusters(len(r.chain))
		if err != nil {
			return err
		}

		for i := range r.chain {
			if err := d.CopyClusterData(r.chain[i], newClusters[i]); err != nil {
				return err
			}
			bar.Add(clusterSize)
			bar.Render(false)
		}

		d.UpdateFAT(r.chain, newClusters)

		if err := d.UpdateDirectoryEntry(r.file, newClusters[0]); err != nil {
			return err
		}

		bar.FilesMoved++
		d.log.Infof("file %q relocated to clusters %v", r.file.Path, newClusters)
	}

	bar.Render(true)
	bar.Finish()

	return d.WriteFAT()
}

// allocateClusters reserves a contiguous run of n free clusters and
// removes it from the free snapshot.
func (d *Defragmenter) allocateClusters(n int) ([]uint32, error) {
	run, err := d.findBestFitRun(n)
	if err != nil {
		return nil, err
	}

	taken := make(map[uint32]struct{}, len(run))
	for _, index := range run {
		taken[index] = struct{}{}
	}
	d.freeClusters = slices.DeleteFunc(d.freeClusters, func(index uint32) bool {
		_, ok := taken[index]
		return ok
	})

	return run, nil
}

// findBestFitRun picks, among the maximal runs of consecutive free
// clusters, the smallest one of length >= n, breaking ties by first
// encounter. It returns the first n indices of that run.
func (d *Defragmenter) findBestFitRun(n int) ([]uint32, error) {
	free := slices.Clone(d.freeClusters)
	slices.Sort(free)

	var best []uint32
	minOverflow := -1

	for _, run := range ConsecutiveRuns(free) {
		if len(run) < n {
			continue
		}
		overflow := len(run) - n
		if minOverflow < 0 || overflow < minOverflow {
			best = run[:n]
			minOverflow = overflow
		}
		if overflow == 0 {
			break
		}
	}

	if best == nil {
		return nil, ErrNoContiguousRun
	}

	d.log.Debugf("best-fit run %v with overflow %d", best, minOverflow)
	return best, nil
}

// ConsecutiveRuns partitions a sorted list of cluster indices into maximal
// runs of consecutive integers.
func ConsecutiveRuns(indices []uint32) [][]uint32 {
	var runs [][]uint32

	var current []uint32
	for _, index := range indices {
		if len(current) > 0 && index != current[len(current)-1]+1 {
			runs = append(runs, current)
			current = nil
		}
		current = append(current, index)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}
