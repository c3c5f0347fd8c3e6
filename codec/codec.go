// Package codec wraps temporary chunk files in an optional compression
// format. Chunk files are written once and read once, so the fastest setting
// of each format is used.
package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec transforms the byte stream of a chunk file.
type Codec interface {
	Name() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

var (
	None Codec = none{}
	Zstd Codec = zstdCodec{}
	LZ4  Codec = lz4Codec{}
	S2   Codec = s2Codec{}
)

// Parse resolves a codec by name. The empty string selects None.
func Parse(name string) (Codec, error) {
	switch name {
	case "", None.Name():
		return None, nil
	case Zstd.Name():
		return Zstd, nil
	case LZ4.Name():
		return LZ4, nil
	case S2.Name():
		return S2, nil
	}
	return nil, fmt.Errorf("codec: unknown codec %q", name)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type none struct{}

func (none) Name() string { return "none" }

func (none) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (none) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd writer: %w", err)
	}
	return enc, nil
}

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd reader: %w", err)
	}
	return dec.IOReadCloser(), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
		return nil, fmt.Errorf("codec: lz4 writer: %w", err)
	}
	return zw, nil
}

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }

func (s2Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return s2.NewWriter(w, s2.WriterConcurrency(1)), nil
}

func (s2Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(r)), nil
}
