//go:build !ga_nobz2

package codec

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

func init() {
	register(BZ2, streamCompressor{
		writer: func(w io.Writer, level int) (io.WriteCloser, error) {
			// bzip2 has no level 0; zero selects the library default.
			return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
		},
		reader: func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r, nil)
		},
	})
}
