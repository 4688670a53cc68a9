package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

func init() {
	register(Gzip, streamCompressor{
		writer: func(w io.Writer, level int) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, level)
		},
		reader: func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		},
	})

	register(Zlib, streamCompressor{
		writer: func(w io.Writer, level int) (io.WriteCloser, error) {
			return zlib.NewWriterLevel(w, level)
		},
		reader: func(r io.Reader) (io.Reader, error) {
			return zlib.NewReader(r)
		},
	})

	register(Zstd, streamCompressor{
		writer: func(w io.Writer, level int) (io.WriteCloser, error) {
			return zstd.NewWriter(w,
				zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
				zstd.WithEncoderConcurrency(1))
		},
		reader: func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	})

	register(Snappy, snappyCompressor{})
	register(Zip, zipCompressor{})
}

// snappyCompressor writes the snappy block format.
type snappyCompressor struct{}

func (snappyCompressor) Compress(data []byte, _ int) ([]byte, error) {
	return s2.EncodeSnappy(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

// zipEntryName is the single member written into zip payloads.
const zipEntryName = "payload.json"

// zipCompressor wraps the payload in a one-entry zip archive: stored at
// level 0, deflated otherwise.
type zipCompressor struct{}

func (zipCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	method := zip.Deflate
	if level == 0 {
		method = zip.Store
	}

	w, err := zw.CreateHeader(&zip.FileHeader{Name: zipEntryName, Method: method})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zipCompressor) Decompress(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("zip: archive has no entries")
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
