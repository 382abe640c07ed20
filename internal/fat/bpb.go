package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// BootSectorSize is the size of the boot sector holding the BPB.
const BootSectorSize = 512

// rawBootSector maps the FAT32 boot sector byte layout. Multi-byte fields
// are little-endian; binary.Read decodes the struct sequentially, so field
// order and width must match the on-disk record exactly.
type rawBootSector struct {
	Jump              [3]byte  // 0x00 Boot strap short or near jump
	OEMName           [8]byte  // 0x03 OEM name
	BytesPerSector    uint16   // 0x0B Bytes per logical sector
	SectorsPerCluster uint8    // 0x0D Sectors per cluster
	ReservedSectors   uint16   // 0x0E Reserved sector count
	NumFATs           uint8    // 0x10 Number of FAT copies
	RootEntries       uint16   // 0x11 Root directory entries (FAT12/16 only)
	TotalSectors16    uint16   // 0x13 Total sectors if < 0x10000
	Media             uint8    // 0x15 Media descriptor
	FATSize16         uint16   // 0x16 Sectors per FAT (FAT12/16 only)
	SectorsPerTrack   uint16   // 0x18 Sectors per track
	NumHeads          uint16   // 0x1A Number of heads
	HiddenSectors     uint32   // 0x1C Hidden sectors
	TotalSectors32    uint32   // 0x20 Total sectors
	FATSize32         uint32   // 0x24 Sectors per FAT
	Flags             uint16   // 0x28 Bit 8: FAT mirroring, low 4: active FAT
	Version           uint16   // 0x2A Filesystem version
	RootCluster       uint32   // 0x2C First cluster of the root directory
	InfoSector        uint16   // 0x30 FSInfo sector
	BackupBoot        uint16   // 0x32 Backup boot sector
	Reserved          [12]byte // 0x34 Unused
	DriveNumber       uint8    // 0x40 Drive number
	Reserved1         uint8    // 0x41 Reserved
	BootSignature     uint8    // 0x42 Extended boot signature
	VolumeID          uint32   // 0x43 Volume serial number
	VolumeLabel       [11]byte // 0x47 Volume label
	FilesystemType    [8]byte  // 0x52 Filesystem type string
	Padding           [420]byte
	Marker            uint16 // 0x1FE Boot sector signature
}

// BPB holds the volume geometry consumed by the engine. Immutable after
// load.
type BPB struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	TotalSectors      uint32
	FATSize           uint32 // sectors per FAT
	RootCluster       uint32
}

// ReadBPB decodes the BPB from the first sector of the image.
func ReadBPB(r io.ReaderAt) (*BPB, error) {
	buf := make([]byte, BootSectorSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("failed to read boot sector: %w", err)
	}
	return ReadBPBFrom(buf)
}

// ReadBPBFrom decodes the BPB from a raw boot sector. The boot signature
// and geometry are not sanity-checked; callers may.
func ReadBPBFrom(data []byte) (*BPB, error) {
	if len(data) != BootSectorSize {
		return nil, fmt.Errorf("boot sector size mismatch: expected %d bytes, got %d bytes",
			BootSectorSize, len(data))
	}

	var bs rawBootSector
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &bs); err != nil {
		return nil, fmt.Errorf("error decoding boot sector: %w", err)
	}

	return &BPB{
		BytesPerSector:    bs.BytesPerSector,
		SectorsPerCluster: bs.SectorsPerCluster,
		ReservedSectors:   bs.ReservedSectors,
		NumFATs:           bs.NumFATs,
		TotalSectors:      bs.TotalSectors32,
		FATSize:           bs.FATSize32,
		RootCluster:       bs.RootCluster,
	}, nil
}

// ClusterSize returns the allocation unit size in bytes.
func (b *BPB) ClusterSize() uint32 {
	return uint32(b.BytesPerSector) * uint32(b.SectorsPerCluster)
}

// FATStart returns the byte offset of the first FAT copy.
func (b *BPB) FATStart() int64 {
	return int64(b.ReservedSectors) * int64(b.BytesPerSector)
}

// FATSizeBytes returns the size of a single FAT copy in bytes.
func (b *BPB) FATSizeBytes() int64 {
	return int64(b.FATSize) * int64(b.BytesPerSector)
}

// DataRegionStart returns the byte offset of cluster 2.
func (b *BPB) DataRegionStart() int64 {
	sectors := int64(b.ReservedSectors) + int64(b.NumFATs)*int64(b.FATSize)
	return sectors * int64(b.BytesPerSector)
}

// ClusterOffset returns the byte offset of the given cluster within the
// image. Valid for index >= 2.
func (b *BPB) ClusterOffset(index uint32) int64 {
	return b.DataRegionStart() + int64(index-MinValidIndex)*int64(b.ClusterSize())
}
