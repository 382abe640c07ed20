package cmd

import (
	"fmt"
	"os"

	"github.com/fat32tools/fatdefrag/internal/defrag"
	"github.com/fat32tools/fatdefrag/internal/env"
	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/fs"
	"github.com/fat32tools/fatdefrag/pkg/dfxml"
)

// writeReport emits a DFXML fragmentation report for the given file set.
// Each file carries one byte run per maximal consecutive cluster range, so
// a fragmented file shows up as a fileobject with more than one run.
func writeReport(path, imagePath string, f fs.File, bpb *fat.BPB, table *fat.Table, files []fat.FileEntry) error {
	finfo, err := f.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file %q: %w", path, err)
	}
	defer out.Close()

	w := dfxml.NewWriter(out)

	err = w.WriteHeader(dfxml.Header{
		XmlOutput: dfxml.XmlOutputVersion,
		Metadata:  dfxml.DefaultMetadata,
		Creator: dfxml.Creator{
			Package:              env.AppName,
			Version:              env.Version,
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
		Source: dfxml.Source{
			ImageFilename: imagePath,
			SectorSize:    int(bpb.BytesPerSector),
			ImageSize:     uint64(finfo.Size()),
		},
	})
	if err != nil {
		return err
	}

	clusterSize := uint64(bpb.ClusterSize())

	for _, file := range files {
		chain := table.ChainFrom(file.StartingCluster)

		indices := make([]uint32, len(chain))
		for i, c := range chain {
			indices[i] = c.Index
		}

		var runs []dfxml.ByteRun
		var logicalOffset uint64
		for _, run := range defrag.ConsecutiveRuns(indices) {
			runs = append(runs, dfxml.ByteRun{
				Offset:    logicalOffset,
				ImgOffset: uint64(table.ClusterOffset(run[0])),
				Length:    uint64(len(run)) * clusterSize,
			})
			logicalOffset += uint64(len(run)) * clusterSize
		}

		err := w.WriteFileObject(dfxml.FileObject{
			Filename: file.Path,
			FileSize: uint64(file.Size),
			ByteRuns: dfxml.ByteRuns{Runs: runs},
		})
		if err != nil {
			return err
		}
	}
	return w.Close()
}
