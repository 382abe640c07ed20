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
package fat

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fat32tools/fatdefrag/internal/logger"
)

const fatEntrySize = 4

// Table is the sole in-memory mirror of the on-disk FAT. It owns the
// cluster array: every mutation between load and flush goes through its
// methods, and WriteTo serialises the array back to every FAT copy.
type Table struct {
	bpb      *BPB
	img      io.ReaderAt
	clusters []Cluster
	log      *logger.Logger
}

// NewTable loads the first FAT copy of the image into memory.
func NewTable(img io.ReaderAt, bpb *BPB, log *logger.Logger) (*Table, error) {
	data := make([]byte, bpb.FATSizeBytes())
	if _, err := img.ReadAt(data, bpb.FATStart()); err != nil {
		return nil, fmt.Errorf("failed to read FAT: %w", err)
	}

	clusters := make([]Cluster, 0, len(data)/fatEntrySize)
	for i := 0; i+fatEntrySize <= len(data); i += fatEntrySize {
		next := binary.LittleEndian.Uint32(data[i:i+fatEntrySize]) & EntryMask
		clusters = append(clusters, Cluster{
			Index:     uint32(i / fatEntrySize),
			NextIndex: next,
			IsEnd:     next >= EndOfChainMark,
		})
	}

	return &Table{
		bpb:      bpb,
		img:      img,
		clusters: clusters,
		log:      log,
	}, nil
}

// BPB returns the geometry the table was loaded with.
func (t *Table) BPB() *BPB {
	return t.bpb
}

// NumClusters returns the number of FAT entries, including the two
// reserved ones.
func (t *Table) NumClusters() uint32 {
	return uint32(len(t.clusters))
}

// Cluster returns the entry at the given index.
func (t *Table) Cluster(index uint32) Cluster {
	return t.clusters[index]
}

// Clusters returns the full cluster array. The slice must not be mutated;
// use SetNext, MarkEnd and MarkFree instead.
func (t *Table) Clusters() []Cluster {
	return t.clusters
}

// ChainFrom walks the successor links starting at the given cluster and
// returns the chain, including the terminal cluster. The walk stops at an
// invalid cluster, at an end marker, or at a revisit; a revisit is a cycle,
// which is logged and truncates the chain to the prefix walked so far.
func (t *Table) ChainFrom(start uint32) []Cluster {
	var chain []Cluster

	visited := make(map[uint32]struct{})

	current := start
	for current >= MinValidIndex && current < t.NumClusters() && t.clusters[current].IsValid() {
		if _, seen := visited[current]; seen {
			t.log.Warnf("cycle detected in cluster chain at %d", current)
			break
		}
		visited[current] = struct{}{}

		c := t.clusters[current]
		chain = append(chain, c)
		if c.IsEnd {
			break
		}
		current = c.NextIndex
	}
	return chain
}

// ReadClusterData reads the payload of the given cluster from the image.
func (t *Table) ReadClusterData(c Cluster) ([]byte, error) {
	data := make([]byte, t.bpb.ClusterSize())
	if _, err := t.img.ReadAt(data, t.ClusterOffset(c.Index)); err != nil {
		return nil, fmt.Errorf("failed to read cluster %d: %w", c.Index, err)
	}
	return data, nil
}

// ClusterOffset returns the byte offset of a cluster within the image.
func (t *Table) ClusterOffset(index uint32) int64 {
	return t.bpb.ClusterOffset(index)
}

// SetNext links a cluster to its successor.
func (t *Table) SetNext(index, next uint32) {
	t.clusters[index].NextIndex = next
	t.clusters[index].IsEnd = next >= EndOfChainMark
}

// MarkEnd makes a cluster the terminal cluster of its chain.
func (t *Table) MarkEnd(index uint32) {
	t.SetNext(index, EntryMask)
}

// MarkFree releases a cluster.
func (t *Table) MarkFree(index uint32) {
	t.SetNext(index, FreeMark)
}

// WriteTo serialises the cluster array and writes it to every FAT copy on
// the image. Entries are written as the low 28 bits of the successor with
// the reserved upper nibble zeroed; the nibble read from disk is not
// round-tripped.
func (t *Table) WriteTo(w io.WriterAt) error {
	data := make([]byte, len(t.clusters)*fatEntrySize)
	for i, c := range t.clusters {
		binary.LittleEndian.PutUint32(data[i*fatEntrySize:], c.NextIndex&EntryMask)
	}
	if size := t.bpb.FATSizeBytes(); int64(len(data)) > size {
		data = data[:size]
	}

	for k := 0; k < int(t.bpb.NumFATs); k++ {
		offset := t.bpb.FATStart() + int64(k)*t.bpb.FATSizeBytes()
		if _, err := w.WriteAt(data, offset); err != nil {
			return fmt.Errorf("failed to write FAT copy %d: %w", k, err)
		}
	}
	return nil
}
