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
	"time"

	"github.com/fat32tools/fatdefrag/internal/defrag"
	"github.com/fat32tools/fatdefrag/internal/fat"
	"github.com/fat32tools/fatdefrag/internal/fs"
	"github.com/fat32tools/fatdefrag/pkg/util/format"
	ioutil "github.com/fat32tools/fatdefrag/pkg/util/io"
	"github.com/spf13/cobra"
)

func DefineDefragmentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defragment <image_path>",
		Short: "Relocate every fragmented file into a contiguous cluster run",
		Long: `The 'defragment' command duplicates the given FAT32 image, suffixing the copy
with "_defragmented", and relocates every fragmented file on the copy into a
contiguous run of free clusters. The original image is never modified.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunDefragment,
	}

	cmd.Flags().StringP("output", "o", "", "write an XML fragmentation report of the defragmented image to the given path")

	return cmd
}

func RunDefragment(cmd *cobra.Command, args []string) error {
	src := args[0]
	dst := src + "_defragmented"

	log := newLogger(cmd)

	if err := ioutil.CopyFile(dst, src); err != nil {
		return fmt.Errorf("failed to duplicate image: %w", err)
	}
	fmt.Printf("[INFO] Working copy: %s\n", dst)

	f, err := fs.OpenRW(dst)
	if err != nil {
		return fmt.Errorf("failed to open image %q: %w", dst, err)
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

	start := time.Now()

	d := defrag.NewDefragmenter(f, table, dirs, log)
	if err := d.Defragment(); err != nil {
		return err
	}

	fmt.Printf("[INFO] Defragmentation completed in %s\n", format.FormatDurationHMS(time.Since(start)))

	if reportPath, _ := cmd.Flags().GetString("output"); reportPath != "" {
		files, err := dirs.AllFiles(bpb.RootCluster)
		if err != nil {
			return err
		}
		if err := writeReport(reportPath, dst, f, bpb, table, files); err != nil {
			return err
		}
		fmt.Printf("[INFO] Report saved to: %s\n", reportPath)
	}
	return nil
}
