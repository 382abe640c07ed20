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
	ioutil "github.com/fat32tools/fatdefrag/pkg/util/io"
	"github.com/spf13/cobra"
)

func DefineFragmentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fragment <image_path> <file_path>",
		Short: "Scatter a file's clusters into random free clusters (for testing)",
		Long: `The 'fragment' command duplicates the given FAT32 image, suffixing the copy
with "_fragmented", and scatters the clusters of the named file into randomly
chosen free clusters on the copy. The file path must match the path printed
by 'check' exactly. The original image is never modified.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunFragment,
	}
}

func RunFragment(cmd *cobra.Command, args []string) error {
	src := args[0]
	dst := src + "_fragmented"

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

	fr := defrag.NewFragmenter(f, table, dirs, log)
	if err := fr.FragmentFile(args[1]); err != nil {
		return err
	}

	fmt.Printf("[INFO] File %q fragmented on %s\n", args[1], dst)
	return nil
}
