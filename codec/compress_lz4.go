//go:build !ga_nolz4

package codec

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

var lz4HCLevels = [...]lz4.CompressionLevel{
	lz4.Level1, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

func init() {
	register(LZ4, lz4Compressor(func(int) lz4.CompressionLevel { return lz4.Fast }))
	register(LZ4HC, lz4Compressor(func(level int) lz4.CompressionLevel { return lz4HCLevels[clampLevel(level)] }))
}

func lz4Compressor(levelFor func(int) lz4.CompressionLevel) Compressor {
	return streamCompressor{
		writer: func(w io.Writer, level int) (io.WriteCloser, error) {
			zw := lz4.NewWriter(w)
			if err := zw.Apply(lz4.CompressionLevelOption(levelFor(level))); err != nil {
				return nil, err
			}
			return zw, nil
		},
		reader: func(r io.Reader) (io.Reader, error) {
			return lz4.NewReader(r), nil
		},
	}
}
