//go:build !ga_nolzma

package codec

import (
	"io"

	"github.com/ulikunitz/xz"
)

// xzDictCaps maps a level to a dictionary size, following the xz presets
// but capped at 8 MiB so small values do not allocate large windows.
var xzDictCaps = [...]int{
	256 << 10, 1 << 20, 2 << 20, 4 << 20, 4 << 20,
	8 << 20, 8 << 20, 8 << 20, 8 << 20, 8 << 20,
}

func init() {
	register(LZMA, streamCompressor{
		writer: func(w io.Writer, level int) (io.WriteCloser, error) {
			cfg := xz.WriterConfig{DictCap: xzDictCaps[clampLevel(level)]}
			return cfg.NewWriter(w)
		},
		reader: func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		},
	})
}
