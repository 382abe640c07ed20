package defrag_test

import (
	"testing"

	"github.com/fat32tools/fatdefrag/internal/defrag"
	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/fat/fattest"
	"github.com/fat32tools/fatdefrag/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestFragmentFile(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())

	chain := []uint32{20, 21, 22, 23}
	im.SetChain(chain...)
	im.AddDirEntry(2, "VICTIM", "BIN", fat.AttrArchive, 20, 2048)
	want := fillChainData(im, chain)

	// A free pool with no run of four: the result cannot come out
	// contiguous.
	pool := []uint32{50, 51, 80, 81, 90, 91}
	im.FillExcept(pool...)

	table, dirs := newEngine(t, im)
	fr := defrag.NewFragmenter(im, table, dirs, logger.Discard())
	require.NoError(t, fr.FragmentFile("VICTIM.BIN"))

	files, err := dirs.AllFiles(2)
	require.NoError(t, err)
	require.Len(t, files, 1)

	newChain := table.ChainFrom(files[0].StartingCluster)
	require.Len(t, newChain, 4)

	// Every new cluster comes from the free pool, without repeats.
	seen := map[uint32]bool{}
	poolSet := map[uint32]bool{}
	for _, index := range pool {
		poolSet[index] = true
	}
	for _, c := range newChain {
		require.True(t, poolSet[c.Index], "cluster %d not drawn from the free pool", c.Index)
		require.False(t, seen[c.Index])
		seen[c.Index] = true
	}

	mgr := defrag.NewClusterManager(im, table, dirs, logger.Discard())
	require.True(t, mgr.IsFragmented(newChain))

	// The old clusters are free, on disk too.
	for _, index := range chain {
		require.Equal(t, uint32(0), im.FATEntry(index))
	}

	// Payload order follows the original chain order.
	require.Equal(t, want, readChainData(t, im, table, files[0].StartingCluster))

	// The flush reached every FAT copy.
	require.Equal(t, im.FATCopy(0), im.FATCopy(1))
}

func TestFragmentFile_NotFound(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())
	im.SetChain(20, 21)
	im.AddDirEntry(2, "VICTIM", "BIN", fat.AttrArchive, 20, 1024)

	table, dirs := newEngine(t, im)
	fr := defrag.NewFragmenter(im, table, dirs, logger.Discard())

	// The lookup is exact, not case-insensitive.
	err := fr.FragmentFile("victim.bin")
	require.ErrorIs(t, err, defrag.ErrFileNotFound)
}

func TestFragmentFile_TooSmall(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())
	im.SetChain(20)
	im.AddDirEntry(2, "TINY", "BIN", fat.AttrArchive, 20, 100)

	table, dirs := newEngine(t, im)
	fr := defrag.NewFragmenter(im, table, dirs, logger.Discard())

	err := fr.FragmentFile("TINY.BIN")
	require.ErrorIs(t, err, defrag.ErrFileTooSmall)
}

func TestFragmentFile_NoFreeClusters(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())
	im.SetChain(20, 21)
	im.AddDirEntry(2, "VICTIM", "BIN", fat.AttrArchive, 20, 1024)

	im.FillExcept() // everything occupied

	table, dirs := newEngine(t, im)
	fr := defrag.NewFragmenter(im, table, dirs, logger.Discard())

	err := fr.FragmentFile("VICTIM.BIN")
	require.ErrorIs(t, err, defrag.ErrNoFreeClusters)
}
