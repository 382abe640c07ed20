package fat_test

import (
	"bytes"
	"testing"

	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/fat/fattest"
	"github.com/stretchr/testify/require"
)

func TestReadBPB(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())

	bpb, err := fat.ReadBPB(im)
	require.NoError(t, err)

	require.Equal(t, uint16(512), bpb.BytesPerSector)
	require.Equal(t, uint8(1), bpb.SectorsPerCluster)
	require.Equal(t, uint16(1), bpb.ReservedSectors)
	require.Equal(t, uint8(2), bpb.NumFATs)
	require.Equal(t, uint32(16), bpb.FATSize)
	require.Equal(t, uint32(2), bpb.RootCluster)

	require.Equal(t, uint32(512), bpb.ClusterSize())
	require.Equal(t, int64(512), bpb.FATStart())
	require.Equal(t, int64(16*512), bpb.FATSizeBytes())
	require.Equal(t, int64(im.DataStart()), bpb.DataRegionStart())
}

func TestReadBPB_ShortRead(t *testing.T) {
	_, err := fat.ReadBPB(bytes.NewReader(make([]byte, 100)))
	require.Error(t, err)
}

func TestReadBPBFrom_SizeMismatch(t *testing.T) {
	_, err := fat.ReadBPBFrom(make([]byte, 511))
	require.Error(t, err)
}

func TestClusterOffset(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())

	bpb, err := fat.ReadBPB(im)
	require.NoError(t, err)

	// Cluster 2 sits at the start of the data region.
	require.Equal(t, bpb.DataRegionStart(), bpb.ClusterOffset(2))
	require.Equal(t, bpb.DataRegionStart()+3*int64(bpb.ClusterSize()), bpb.ClusterOffset(5))
}
