package fat_test

import (
	"testing"

	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/fat/fattest"
	"github.com/fat32tools/fatdefrag/internal/logger"
	"github.com/stretchr/testify/require"
)

// newVolume builds a volume with a root directory holding FILE1.TXT, a
// README (no extension) and a SUB directory with NOTES.TXT inside.
func newVolume(t *testing.T) (*fattest.Image, *fat.DirParser) {
	t.Helper()

	im := fattest.New(fattest.DefaultConfig())

	im.SetChain(3) // SUB directory cluster
	im.SetChain(10, 11)
	im.SetChain(15)
	im.SetChain(20)

	im.AddDirEntry(2, "FILE1", "TXT", fat.AttrArchive, 10, 1000)
	im.AddDirEntry(2, "README", "", fat.AttrArchive, 15, 42)
	im.AddDirEntry(2, "SUB", "", fat.AttrDirectory, 3, 0)

	im.AddDirEntry(3, ".", "", fat.AttrDirectory, 3, 0)
	im.AddDirEntry(3, "..", "", fat.AttrDirectory, 2, 0)
	im.AddDirEntry(3, "NOTES", "TXT", fat.AttrArchive, 20, 100)

	table := newTable(t, im)
	return im, fat.NewDirParser(table, logger.Discard())
}

func TestAllFiles(t *testing.T) {
	_, dirs := newVolume(t)

	files, err := dirs.AllFiles(2)
	require.NoError(t, err)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	require.Equal(t, []string{"FILE1.TXT", "README", "SUB/NOTES.TXT"}, paths)

	require.Equal(t, uint32(10), files[0].StartingCluster)
	require.Equal(t, uint32(1000), files[0].Size)
	require.Equal(t, uint32(20), files[2].StartingCluster)
}

func TestAllFiles_SkipsDeletedAndInvalid(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())
	im.SetChain(10)

	im.AddDirEntry(2, "GONE", "TXT", fat.AttrArchive, 10, 10)
	im.AddDirEntry(2, "BAD", "TXT", fat.AttrArchive, 0xFFFFFF, 10) // out of range
	im.AddDirEntry(2, "OK", "TXT", fat.AttrArchive, 10, 10)

	// Mark the first record deleted.
	im.Data[im.ClusterOffset(2)] = 0xE5

	table := newTable(t, im)
	dirs := fat.NewDirParser(table, logger.Discard())

	files, err := dirs.AllFiles(2)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "OK.TXT", files[0].Path)
}

func TestAllFiles_LongNames(t *testing.T) {
	im := fattest.New(fattest.DefaultConfig())
	im.SetChain(30)

	// Fragments appear on disk in reverse sequence order: seq 3 carries
	// the tail of the name and the last-in-group flag.
	im.AddRawDirEntry(2, fattest.LFNEntry(3, true, "ent_3"))
	im.AddRawDirEntry(2, fattest.LFNEntry(2, false, "ent_2"))
	im.AddRawDirEntry(2, fattest.LFNEntry(1, false, "ent_1"))
	im.AddDirEntry(2, "ENT_1~1", "", fat.AttrArchive, 30, 64)

	table := newTable(t, im)
	dirs := fat.NewDirParser(table, logger.Discard())

	files, err := dirs.AllFiles(2)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "ent_1ent_2ent_3", files[0].Path)
}

func TestFindEntry(t *testing.T) {
	im, dirs := newVolume(t)

	offset, cluster, found := dirs.FindEntry(2, "file1.txt")
	require.True(t, found)
	require.Equal(t, uint32(2), cluster)
	require.Equal(t, int64(im.ClusterOffset(2)), offset)

	_, _, found = dirs.FindEntry(2, "NOPE.TXT")
	require.False(t, found)
}

func TestNavigatePath(t *testing.T) {
	_, dirs := newVolume(t)

	parent, ok := dirs.NavigatePath([]string{"SUB", "NOTES.TXT"})
	require.True(t, ok)
	require.Equal(t, uint32(3), parent)

	parent, ok = dirs.NavigatePath([]string{"FILE1.TXT"})
	require.True(t, ok)
	require.Equal(t, uint32(2), parent)

	_, ok = dirs.NavigatePath([]string{"MISSING", "X.TXT"})
	require.False(t, ok)
}

func TestUpdateStartingCluster(t *testing.T) {
	im, dirs := newVolume(t)

	offset, _, found := dirs.FindEntry(3, "NOTES.TXT")
	require.True(t, found)

	var before [32]byte
	copy(before[:], im.Data[offset:])

	require.NoError(t, dirs.UpdateStartingCluster(im, "SUB/NOTES.TXT", 500))

	var after [32]byte
	copy(after[:], im.Data[offset:])

	// Only the two first-cluster words changed.
	for i := range before {
		switch i {
		case 20, 21, 26, 27:
			continue
		default:
			require.Equal(t, before[i], after[i], "byte %d", i)
		}
	}

	files, err := dirs.AllFiles(2)
	require.NoError(t, err)
	for _, f := range files {
		if f.Path == "SUB/NOTES.TXT" {
			require.Equal(t, uint32(500), f.StartingCluster)
			return
		}
	}
	t.Fatal("SUB/NOTES.TXT not found after rewrite")
}

func TestUpdateStartingCluster_MissingPathIsSkipped(t *testing.T) {
	im, dirs := newVolume(t)

	before := make([]byte, len(im.Data))
	copy(before, im.Data)

	require.NoError(t, dirs.UpdateStartingCluster(im, "NO/SUCH.TXT", 99))
	require.Equal(t, before, im.Data)
}
