package codec

import (
	"bytes"
	"io"
	"sort"
)

// Compressor is one compression stage. Level is in 0..9; implementations
// without levels ignore it.
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// registry holds the compressors compiled into this binary. It is filled by
// init functions and never written afterwards.
var registry = map[Method]Compressor{}

func register(m Method, c Compressor) {
	registry[m] = c
}

func lookup(m Method) (Compressor, bool) {
	c, ok := registry[m]
	return c, ok
}

// Available returns the methods usable without fallback, sorted, None included.
func Available() []Method {
	compiled := make([]Method, 0, len(registry))
	for m := range registry {
		compiled = append(compiled, m)
	}
	sort.Slice(compiled, func(i, j int) bool { return compiled[i] < compiled[j] })
	return append([]Method{None}, compiled...)
}

// IsAvailable reports whether m can be used without falling back.
func IsAvailable(m Method) bool {
	if m == None {
		return true
	}
	_, ok := registry[m]
	return ok
}

// streamCompressor adapts a streaming writer/reader pair to Compressor.
type streamCompressor struct {
	writer func(w io.Writer, level int) (io.WriteCloser, error)
	reader func(r io.Reader) (io.Reader, error)
}

func (s streamCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := s.writer(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s streamCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := s.reader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}
	return io.ReadAll(r)
}

func clampLevel(level int) int {
	switch {
	case level < 0:
		return 0
	case level > 9:
		return 9
	default:
		return level
	}
}
