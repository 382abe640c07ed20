package defrag_test

import (
	"fmt"
	"testing"

	"github.com/fat32tools/fatdefrag/internal/defrag"
	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/fat/fattest"
	"github.com/fat32tools/fatdefrag/internal/logger"
	"github.com/stretchr/testify/require"
)

// fillChainData writes a distinct payload into every cluster of a chain
// and returns the concatenation.
func fillChainData(im *fattest.Image, chain []uint32) []byte {
	var all []byte
	for i, index := range chain {
		payload := []byte(fmt.Sprintf("cluster-%d-", i))
		im.WriteClusterData(index, payload)
		all = append(all, im.ClusterData(index)...)
	}
	return all
}

func readChainData(t *testing.T, im *fattest.Image, table *fat.Table, start uint32) []byte {
	t.Helper()

	var all []byte
	for _, c := range table.ChainFrom(start) {
		all = append(all, im.ClusterData(c.Index)...)
	}
	return all
}

func TestDefragment_RelocatesFragmentedFile(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())

	chain := []uint32{6, 1552, 1553, 1554, 1555, 1556}
	im.SetChain(chain...)
	im.AddDirEntry(2, "FRAG", "BIN", fat.AttrArchive, 6, 6*512-100)

	want := fillChainData(im, chain)

	// One free run of length 8 starting at 100.
	im.FillExcept(100, 101, 102, 103, 104, 105, 106, 107)

	table, dirs := newEngine(t, im)
	d := defrag.NewDefragmenter(im, table, dirs, logger.Discard())
	require.NoError(t, d.Defragment())

	// The chain is now a strictly consecutive ascending run.
	for _, index := range []uint32{100, 101, 102, 103, 104} {
		require.Equal(t, index+1, im.FATEntry(index))
	}
	require.GreaterOrEqual(t, im.FATEntry(105), uint32(fat.EndOfChainMark))

	// The old clusters are free.
	for _, index := range chain {
		require.Equal(t, uint32(0), im.FATEntry(index))
	}

	// The directory entry points at the new head.
	files, err := dirs.AllFiles(2)
	require.NoError(t, err)
	require.Equal(t, uint32(100), files[0].StartingCluster)

	// The payload survived the relocation byte for byte.
	require.Equal(t, want, readChainData(t, im, table, 100))

	// Both FAT copies were flushed.
	require.Equal(t, im.FATCopy(0), im.FATCopy(1))
}

func TestDefragment_ContiguousFileUntouched(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())

	im.SetChain(10, 11, 12)
	im.AddDirEntry(2, "OK", "BIN", fat.AttrArchive, 10, 1536)
	fillChainData(im, []uint32{10, 11, 12})

	before := make([]byte, len(im.Data))
	copy(before, im.Data)

	table, dirs := newEngine(t, im)
	d := defrag.NewDefragmenter(im, table, dirs, logger.Discard())
	require.NoError(t, d.Defragment())

	// No allocation, no copy, no directory rewrite: the image is
	// byte-identical.
	require.Equal(t, before, im.Data)
}

func TestDefragment_BestFitPicksSmallestSufficientRun(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())

	// Fragmented 4-cluster file.
	chain := []uint32{10, 12, 14, 16}
	im.SetChain(chain...)
	im.AddDirEntry(2, "SPREAD", "BIN", fat.AttrArchive, 10, 2048)
	fillChainData(im, chain)

	// Free runs of lengths 3, 5, 7 and 12.
	var free []uint32
	for _, run := range [][2]uint32{{50, 3}, {60, 5}, {70, 7}, {90, 12}} {
		for i := uint32(0); i < run[1]; i++ {
			free = append(free, run[0]+i)
		}
	}
	im.FillExcept(free...)

	table, dirs := newEngine(t, im)
	d := defrag.NewDefragmenter(im, table, dirs, logger.Discard())
	require.NoError(t, d.Defragment())

	// The length-5 run has the smallest overflow.
	files, err := dirs.AllFiles(2)
	require.NoError(t, err)
	require.Equal(t, uint32(60), files[0].StartingCluster)

	require.Equal(t, uint32(61), im.FATEntry(60))
	require.Equal(t, uint32(62), im.FATEntry(61))
	require.Equal(t, uint32(63), im.FATEntry(62))
	require.GreaterOrEqual(t, im.FATEntry(63), uint32(fat.EndOfChainMark))

	// The tail of the chosen run stays free.
	require.Equal(t, uint32(0), im.FATEntry(64))
}

func TestDefragment_NoContiguousRun(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())

	chain := []uint32{10, 12, 14}
	im.SetChain(chain...)
	im.AddDirEntry(2, "BIG", "BIN", fat.AttrArchive, 10, 1536)

	// Only scattered single free clusters remain.
	im.FillExcept(50, 60, 70)

	before := im.FATCopy(0)

	table, dirs := newEngine(t, im)
	d := defrag.NewDefragmenter(im, table, dirs, logger.Discard())

	err := d.Defragment()
	require.ErrorIs(t, err, defrag.ErrNoContiguousRun)

	// Nothing was flushed: the on-disk FAT is untouched.
	require.Equal(t, before, im.FATCopy(0))
}

func TestConsecutiveRuns(t *testing.T) {
	runs := defrag.ConsecutiveRuns([]uint32{2, 3, 4, 7, 8, 10, 11, 12, 13})
	require.Equal(t, [][]uint32{{2, 3, 4}, {7, 8}, {10, 11, 12, 13}}, runs)

	require.Empty(t, defrag.ConsecutiveRuns(nil))
}
