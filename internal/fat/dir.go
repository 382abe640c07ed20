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
	"strings"
	"unicode"

	"github.com/fat32tools/fatdefrag/internal/logger"
	textunicode "golang.org/x/text/encoding/unicode"
)

// Directory entry attributes (bit flags).
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20

	// AttrLongName marks a long-file-name entry; the marker is the exact
	// value, not a bit test.
	AttrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

const (
	// DirEntrySize is the size of one on-disk directory record.
	DirEntrySize = 32

	entryEndMarker = 0x00
	entryDeleted   = 0xE5
)

// FileEntry is the projection of a directory entry the engine operates on.
type FileEntry struct {
	Path            string
	StartingCluster uint32
	Size            uint32
	Attributes      uint8
}

// dirEntry is a single decoded record, before path accumulation.
type dirEntry struct {
	name            string
	attributes      uint8
	startingCluster uint32
	size            uint32
}

// DirParser walks directory clusters and decodes their 32-byte records,
// assembling long names from the LFN entries preceding each primary entry.
type DirParser struct {
	table *Table
	log   *logger.Logger
}

func NewDirParser(table *Table, log *logger.Logger) *DirParser {
	return &DirParser{
		table: table,
		log:   log,
	}
}

var utf16le = textunicode.UTF16(textunicode.LittleEndian, textunicode.IgnoreBOM)

// decodeLFNFragment extracts the UTF-16LE name fragment of one LFN entry.
// Trailing 0x0000 and 0xFFFF pad units are stripped before decoding.
func decodeLFNFragment(raw []byte) string {
	units := make([]byte, 0, 26)
	units = append(units, raw[1:11]...)
	units = append(units, raw[14:26]...)
	units = append(units, raw[28:32]...)

	for len(units) >= 2 {
		u := binary.LittleEndian.Uint16(units[len(units)-2:])
		if u != 0x0000 && u != 0xFFFF {
			break
		}
		units = units[:len(units)-2]
	}

	decoded, err := utf16le.NewDecoder().Bytes(units)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// printableOnly drops non-printable code points from an assembled long
// name before it is compared or reported.
func printableOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}

// assembleName builds the entry name, preferring the accumulated LFN
// fragments over the 8.3 short name.
func assembleName(raw []byte, lfn []string) string {
	if len(lfn) > 0 {
		return printableOnly(strings.Join(lfn, ""))
	}

	name := strings.TrimSpace(string(raw[0:8]))
	ext := strings.TrimSpace(string(raw[8:11]))
	if ext != "" {
		return name + "." + ext
	}
	return name
}

func startingCluster(raw []byte) uint32 {
	high := uint32(binary.LittleEndian.Uint16(raw[20:22]))
	low := uint32(binary.LittleEndian.Uint16(raw[26:28]))
	return high<<16 | low
}

// parseEntries decodes the records of one directory cluster. The LFN
// assembly buffer does not survive a cluster boundary.
func (p *DirParser) parseEntries(data []byte) []dirEntry {
	var entries []dirEntry
	var lfn []string

	for i := 0; i+DirEntrySize <= len(data); i += DirEntrySize {
		raw := data[i : i+DirEntrySize]
		if raw[0] == entryEndMarker {
			break
		}
		if raw[0] == entryDeleted {
			continue
		}

		if raw[11] == AttrLongName {
			// Fragments appear on disk in reverse sequence order.
			lfn = append([]string{decodeLFNFragment(raw)}, lfn...)
			continue
		}

		name := assembleName(raw, lfn)
		lfn = nil

		if name == "." || name == ".." {
			continue
		}

		start := startingCluster(raw)
		if start < MinValidIndex || start >= p.table.NumClusters() {
			p.log.Warnf("invalid starting cluster %d for entry %q", start, name)
			continue
		}

		entries = append(entries, dirEntry{
			name:            name,
			attributes:      raw[11],
			startingCluster: start,
			size:            binary.LittleEndian.Uint32(raw[28:32]),
		})
	}
	return entries
}

// AllFiles walks the directory tree depth-first from the given root
// cluster and returns a descriptor for every file, with '/'-joined paths.
func (p *DirParser) AllFiles(rootCluster uint32) ([]FileEntry, error) {
	var files []FileEntry
	if err := p.walkDir(rootCluster, "", &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (p *DirParser) walkDir(cluster uint32, prefix string, files *[]FileEntry) error {
	for _, c := range p.table.ChainFrom(cluster) {
		data, err := p.table.ReadClusterData(c)
		if err != nil {
			return err
		}

		for _, e := range p.parseEntries(data) {
			path := e.name
			if prefix != "" {
				path = prefix + "/" + e.name
			}

			if e.attributes&AttrDirectory != 0 {
				if err := p.walkDir(e.startingCluster, path, files); err != nil {
					return err
				}
				continue
			}

			*files = append(*files, FileEntry{
				Path:            path,
				StartingCluster: e.startingCluster,
				Size:            e.size,
				Attributes:      e.attributes,
			})
		}
	}
	return nil
}

// FindEntry scans the directory chain rooted at dirCluster for an entry
// whose reconstructed name matches target case-insensitively. It returns
// the byte offset of the 32-byte record within the image and the cluster
// containing it.
func (p *DirParser) FindEntry(dirCluster uint32, target string) (int64, uint32, bool) {
	for _, c := range p.table.ChainFrom(dirCluster) {
		data, err := p.table.ReadClusterData(c)
		if err != nil {
			p.log.Warnf("failed to read directory cluster %d: %s", c.Index, err)
			return 0, 0, false
		}

		var lfn []string
		for i := 0; i+DirEntrySize <= len(data); i += DirEntrySize {
			raw := data[i : i+DirEntrySize]
			if raw[0] == entryEndMarker {
				break
			}
			if raw[0] == entryDeleted {
				continue
			}

			if raw[11] == AttrLongName {
				lfn = append([]string{decodeLFNFragment(raw)}, lfn...)
				continue
			}

			name := assembleName(raw, lfn)
			lfn = nil

			if strings.EqualFold(name, target) {
				return p.table.ClusterOffset(c.Index) + int64(i), c.Index, true
			}
		}
	}
	return 0, 0, false
}

// NavigatePath resolves every component but the last, following
// subdirectory entries from the root cluster, and returns the cluster of
// the parent directory of the final component.
func (p *DirParser) NavigatePath(parts []string) (uint32, bool) {
	current := p.table.BPB().RootCluster
	for _, part := range parts[:len(parts)-1] {
		next, ok := p.findSubdirCluster(current, part)
		if !ok {
			p.log.Warnf("directory %q not found", part)
			return 0, false
		}
		current = next
	}
	return current, true
}

func (p *DirParser) findSubdirCluster(dirCluster uint32, name string) (uint32, bool) {
	for _, c := range p.table.ChainFrom(dirCluster) {
		data, err := p.table.ReadClusterData(c)
		if err != nil {
			p.log.Warnf("failed to read directory cluster %d: %s", c.Index, err)
			return 0, false
		}

		for _, e := range p.parseEntries(data) {
			if e.attributes&AttrDirectory != 0 && strings.EqualFold(e.name, name) {
				return e.startingCluster, true
			}
		}
	}
	return 0, false
}

// UpdateStartingCluster rewrites the first-cluster field of the directory
// entry at the given path: the high word at record offset 20 and the low
// word at offset 26, both little-endian. No other byte of the record is
// touched. An unresolved path is logged and skipped.
func (p *DirParser) UpdateStartingCluster(w io.WriterAt, path string, newStart uint32) error {
	parts := strings.Split(path, "/")

	dirCluster, ok := p.NavigatePath(parts)
	if !ok {
		p.log.Warnf("path %q does not resolve, starting cluster not updated", path)
		return nil
	}

	offset, _, found := p.FindEntry(dirCluster, parts[len(parts)-1])
	if !found {
		p.log.Warnf("file %q not found, starting cluster not updated", path)
		return nil
	}

	var word [2]byte

	binary.LittleEndian.PutUint16(word[:], uint16(newStart>>16))
	if _, err := w.WriteAt(word[:], offset+20); err != nil {
		return fmt.Errorf("failed to write high word of starting cluster: %w", err)
	}

	binary.LittleEndian.PutUint16(word[:], uint16(newStart&0xFFFF))
	if _, err := w.WriteAt(word[:], offset+26); err != nil {
		return fmt.Errorf("failed to write low word of starting cluster: %w", err)
	}

	p.log.Debugf("updated starting cluster of %q to %d", path, newStart)
	return nil
}
