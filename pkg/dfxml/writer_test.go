package dfxml_test

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/fat32tools/fatdefrag/pkg/dfxml"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer

	w := dfxml.NewWriter(&buf)

	err := w.WriteHeader(dfxml.Header{
		XmlOutput: dfxml.XmlOutputVersion,
		Metadata:  dfxml.DefaultMetadata,
		Creator: dfxml.Creator{
			Package:              "fatdefrag",
			Version:              "test",
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
		Source: dfxml.Source{
			ImageFilename: "disk.img",
			SectorSize:    512,
			ImageSize:     1 << 20,
		},
	})
	require.NoError(t, err)

	err = w.WriteFileObject(dfxml.FileObject{
		Filename: "DIR/FRAG.BIN",
		FileSize: 3000,
		ByteRuns: dfxml.ByteRuns{
			Runs: []dfxml.ByteRun{
				{Offset: 0, ImgOffset: 18432, Length: 2048},
				{Offset: 2048, ImgOffset: 811008, Length: 1024},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, w.Close())

	out := buf.String()
	require.True(t, strings.HasPrefix(out, xml.Header))
	require.Contains(t, out, `<dfxml xmloutputversion="1.0">`)
	require.Contains(t, out, "<image_filename>disk.img</image_filename>")
	require.Contains(t, out, "<filename>DIR/FRAG.BIN</filename>")
	require.Contains(t, out, `<byte_run offset="0" img_offset="18432" len="2048">`)
	require.Contains(t, out, "</dfxml>")

	// The document is well-formed.
	dec := xml.NewDecoder(strings.NewReader(out))
	for {
		_, err := dec.Token()
		if err != nil {
			require.Equal(t, "EOF", err.Error())
			break
		}
	}
}
