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
package pbar

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fat32tools/fatdefrag/pkg/util/format"
)

const MinRefreshRate = time.Millisecond * 500

// ProgressBar tracks relocation progress and renders it as a single
// rewritten terminal line.
type ProgressBar struct {
	TotalBytes         int64
	ProcessedBytes     int64
	FilesMoved         int
	StartTime          time.Time
	LastUpdateTime     time.Time
	LastProcessedBytes int64
}

func New(totalBytes int64) *ProgressBar {
	return &ProgressBar{
		TotalBytes:     totalBytes,
		StartTime:      time.Now(),
		LastUpdateTime: time.Unix(0, 0),
	}
}

// Add records n more processed bytes.
func (pb *ProgressBar) Add(n int64) {
	pb.ProcessedBytes += n
}

// Render updates and prints the progress bar line
func (pb *ProgressBar) Render(force bool) {
	if !force && (pb.LastUpdateTime.IsZero() || time.Since(pb.LastUpdateTime) < MinRefreshRate) {
		return
	}

	percentage := float64(pb.ProcessedBytes) / float64(pb.TotalBytes) * 100

	barLength := 20
	filledLen := int(float64(barLength) * percentage / 100)
	var bar string
	if filledLen >= barLength {
		bar = strings.Repeat("=", barLength)
	} else {
		bar = strings.Repeat("=", filledLen) + ">" + strings.Repeat(" ", barLength-filledLen-1)
	}

	currentSpeedBytesPerSec := float64(pb.ProcessedBytes-pb.LastProcessedBytes) / time.Since(pb.LastUpdateTime).Seconds()
	currentSpeedMBps := currentSpeedBytesPerSec / (1024 * 1024)

	var etaStr string
	if pb.ProcessedBytes > 0 && currentSpeedBytesPerSec > 0 {
		remainingBytes := pb.TotalBytes - pb.ProcessedBytes
		etaSeconds := float64(remainingBytes) / currentSpeedBytesPerSec
		etaStr = fmt.Sprintf("%02d:%02d:%02d remaining",
			int(etaSeconds/3600),
			int(etaSeconds/60)%60,
			int(etaSeconds)%60)
	} else {
		etaStr = "calculating..."
	}

	// Update last values for next speed calculation
	pb.LastUpdateTime = time.Now()
	pb.LastProcessedBytes = pb.ProcessedBytes

	// \r moves the cursor to the beginning of the line; trailing spaces
	// clear leftovers from a previous longer line
	fmt.Fprintf(os.Stdout, "\r[INFO] Progress: [%s] %3.0f%% (%s/%s) | Files Moved: %d | @ %.2fMB/s [%s]    ",
		bar,
		percentage,
		format.FormatBytes(pb.ProcessedBytes),
		format.FormatBytes(pb.TotalBytes),
		pb.FilesMoved,
		currentSpeedMBps,
		etaStr)

	os.Stdout.Sync()
}

// Finish prints a newline, ending the progress bar output
func (pb *ProgressBar) Finish() {
	fmt.Println()
}
