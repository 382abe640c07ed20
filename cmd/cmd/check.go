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
package cmd

import (
	"fmt"

	"github.com/fat32tools/fatdefrag/internal/defrag"
	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/fs"
	"github.com/fat32tools/fatdefrag/pkg/util/format"
	"github.com/spf13/cobra"
)

func DefineCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "check <image_path>",
		Short:        "List all files on a FAT32 image and flag fragmented ones",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunCheck,
	}

	cmd.Flags().StringP("output", "o", "", "write an XML fragmentation report to the given path")

	return cmd
}

func RunCheck(cmd *cobra.Command, args []string) error {
	path := fs.NormalizeVolumePath(args[0])

	log := newLogger(cmd)

	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image %q: %w", path, err)
	}
	defer f.Close()

	bpb, err := fat.ReadBPB(f)
	if err != nil {
		return err
	}

	table, err := fat.NewTable(f, bpb, log)
	if err != nil {
		return err
	}
	dirs := fat.NewDirParser(table, log)

	files, err := dirs.AllFiles(bpb.RootCluster)
	if err != nil {
		return err
	}

	mgr := defrag.NewClusterManager(nil, table, dirs, log)
	fragmented := mgr.FindFragmentedFiles(files)

	fmt.Println("All files:")
	for _, file := range files {
		fmt.Printf("  %s  start=%d  size=%s\n",
			file.Path, file.StartingCluster, format.FormatBytes(int64(file.Size)))
	}

	fmt.Println()
	fmt.Println("Fragmented files:")
	for _, file := range fragmented {
		fmt.Printf("  %s  clusters=%v\n", file.Path, file.ClusterChain)
	}
	fmt.Printf("\n[INFO] %d files, %d fragmented\n", len(files), len(fragmented))

	if reportPath, _ := cmd.Flags().GetString("output"); reportPath != "" {
		if err := writeReport(reportPath, path, f, bpb, table, files); err != nil {
			return err
		}
		fmt.Printf("[INFO] Report saved to: %s\n", reportPath)
	}
	return nil
}
