package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/davidvella/xsort/failure"
)

const (
	// DefaultMaxRecordSize bounds how far past the budget a chunk may extend
	// while looking for the end of its last record.
	DefaultMaxRecordSize = 16 << 20
	defaultProbeSize     = 64 * 1024
)

// Chunk is a delimiter-aligned byte range [Start, End) of the input.
type Chunk struct {
	Index int
	Start int64
	End   int64
}

// Len returns the size of the chunk in bytes.
func (c Chunk) Len() int64 {
	return c.End - c.Start
}

// Load reads the chunk from r, reusing buf when it is large enough.
func (c Chunk) Load(r io.ReaderAt, buf []byte) ([]byte, error) {
	n := int(c.Len())
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	if _, err := io.ReadFull(io.NewSectionReader(r, c.Start, c.Len()), buf); err != nil {
		return nil, fmt.Errorf("chunk %d: read [%d, %d): %w", c.Index, c.Start, c.End, err)
	}
	return buf, nil
}

// Options configures how input is split.
type Options struct {
	// Delimiter terminates records. The zero value is NUL; DefaultOptions
	// uses '\n'.
	Delimiter byte

	// MaxRecordSize is the most a chunk may exceed the budget by. Zero means
	// DefaultMaxRecordSize.
	MaxRecordSize int64

	// ProbeSize is how many bytes are read at a time while searching for a
	// delimiter.
	ProbeSize int
}

// DefaultOptions splits newline-delimited input.
func DefaultOptions() Options {
	return Options{
		Delimiter:     '\n',
		MaxRecordSize: DefaultMaxRecordSize,
		ProbeSize:     defaultProbeSize,
	}
}

// Splitter walks an input of known size and cuts it into chunks.
type Splitter struct {
	r      io.ReaderAt
	size   int64
	budget int64
	opts   Options
	probe  []byte
}

// NewSplitter returns a Splitter producing chunks of about budget bytes.
func NewSplitter(r io.ReaderAt, size, budget int64, opts Options) (*Splitter, error) {
	if budget <= 0 {
		return nil, failure.New(failure.StageChunk, failure.ErrInvalidOption,
			fmt.Errorf("budget must be positive, got %d", budget))
	}
	if size < 0 {
		return nil, failure.New(failure.StageChunk, failure.ErrInvalidOption,
			fmt.Errorf("size must not be negative, got %d", size))
	}
	if opts.MaxRecordSize <= 0 {
		opts.MaxRecordSize = DefaultMaxRecordSize
	}
	if opts.ProbeSize <= 0 {
		opts.ProbeSize = defaultProbeSize
	}
	return &Splitter{
		r:      r,
		size:   size,
		budget: budget,
		opts:   opts,
	}, nil
}

// All yields chunks in input order. Iteration stops after the first error.
func (s *Splitter) All() iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		var start int64
		for index := 0; start < s.size; index++ {
			end, err := s.end(start)
			if err != nil {
				var fe *failure.Error
				if !errors.As(err, &fe) {
					fe = failure.New(failure.StageChunk, failure.ErrIO, err)
				}
				yield(Chunk{Index: index, Start: start}, fe.WithChunk(index))
				return
			}
			if !yield(Chunk{Index: index, Start: start, End: end}, nil) {
				return
			}
			start = end
		}
	}
}

// end finds where the chunk beginning at start finishes: just past the first
// delimiter at or after start+budget-1, or the end of input. A chunk is never
// longer than budget plus MaxRecordSize.
func (s *Splitter) end(start int64) (int64, error) {
	target := start + s.budget
	if target >= s.size || target < start {
		return s.size, nil
	}

	if s.probe == nil {
		s.probe = make([]byte, s.opts.ProbeSize)
	}

	limit := target + s.opts.MaxRecordSize
	for pos := target - 1; pos < s.size && pos < limit; {
		n, err := s.r.ReadAt(s.probe, pos)
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		if i := bytes.IndexByte(s.probe[:n], s.opts.Delimiter); i >= 0 {
			return s.bound(pos+int64(i)+1, limit, target)
		}
		pos += int64(n)
	}
	return s.bound(s.size, limit, target)
}

func (s *Splitter) bound(end, limit, target int64) (int64, error) {
	if end > limit {
		return 0, failure.New(failure.StageChunk, failure.ErrMemoryExceeded,
			fmt.Errorf("no delimiter within %d bytes of offset %d", s.opts.MaxRecordSize, target))
	}
	return end, nil
}

// Split cuts the first size bytes of r into delimiter-aligned chunks of about
// budget bytes. Empty input yields no chunks.
func Split(r io.ReaderAt, size, budget int64, opts Options) ([]Chunk, error) {
	s, err := NewSplitter(r, size, budget, opts)
	if err != nil {
		return nil, err
	}
	var chunks []Chunk
	for c, err := range s.All() {
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// SplitFile splits the file at path.
func SplitFile(path string, budget int64, opts Options) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		kind := failure.ErrIO
		if errors.Is(err, os.ErrNotExist) {
			kind = failure.ErrInputNotFound
		}
		return nil, failure.New(failure.StageChunk, kind, err).WithPath(path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, failure.New(failure.StageChunk, failure.ErrIO, err).WithPath(path)
	}

	chunks, err := Split(f, info.Size(), budget, opts)
	if err != nil {
		if fe, ok := failure.As(err); ok {
			return nil, fe.WithPath(path)
		}
		return nil, err
	}
	return chunks, nil
}
