// Package codec turns values into bytes and back before they cross a process
// or network boundary.
//
// Encoding is two stages: values are serialized to JSON, then the bytes are
// run through the configured compression method. Decoding reverses both.
// Records round-trip through struct tags; opaque object graphs are not
// supported.
//
// # Methods
//
// The method set is closed: none, blosclz, lz4, lz4hc, zlib, zstd, gzip, bz2,
// zip, lzma and snappy. An unknown method is an invalid-class error. A known
// method whose library is not compiled in (blosclz always, and lz4, lzma, bz2
// under the ga_nolz4, ga_nolzma and ga_nobz2 build tags) degrades to no
// compression with a warning. Available reports what this binary supports;
// it is computed once at program start.
//
// Payloads carry no method tag. Producers and consumers must agree on the
// method, and a fallback on one host is only readable by a host that falls
// back the same way.
//
//	c, err := codec.New(codec.LZ4, 5)
//	if err != nil {
//	    return err
//	}
//	data, err := c.Encode(map[string]any{"level": "high"})
//	...
//	var out map[string]any
//	err = c.Decode(data, &out)
//
// Decoding nil or empty input is a no-op: it marks an absent value, which is
// distinct from a missing key.
package codec
