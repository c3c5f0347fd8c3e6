package recordio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

const (
	// DefaultBufferSize is the read/write buffer used for record streams.
	DefaultBufferSize = 64 * 1024
	// DefaultDelimiter terminates records unless configured otherwise.
	DefaultDelimiter = '\n'
)

var ErrRecordTooLarge = errors.New("recordio: record exceeds maximum size")

// Reader reads delimiter-terminated records. The slice returned by Next is
// only valid until the following call to Next.
type Reader struct {
	br      *bufio.Reader
	delim   byte
	max     int
	buf     []byte
	err     error
	records int64
	offset  int64
}

// NewReader returns a Reader splitting r on delim. Records longer than
// maxSize bytes fail with ErrRecordTooLarge; zero means no limit.
func NewReader(r io.Reader, delim byte, maxSize int) *Reader {
	return &Reader{
		br:    bufio.NewReaderSize(r, DefaultBufferSize),
		delim: delim,
		max:   maxSize,
	}
}

// Next returns the next record without its delimiter, or io.EOF once the
// stream is exhausted. A final record without a trailing delimiter is still
// returned.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.buf = r.buf[:0]
	for {
		line, err := r.br.ReadSlice(r.delim)
		r.offset += int64(len(line))
		switch {
		case err == nil:
			rec := line[:len(line)-1]
			if len(r.buf) > 0 {
				r.buf = append(r.buf, rec...)
				rec = r.buf
			}
			if err := r.checkSize(len(rec)); err != nil {
				return nil, err
			}
			r.records++
			return rec, nil
		case errors.Is(err, bufio.ErrBufferFull):
			r.buf = append(r.buf, line...)
			if err := r.checkSize(len(r.buf)); err != nil {
				return nil, err
			}
		case errors.Is(err, io.EOF):
			r.buf = append(r.buf, line...)
			r.err = io.EOF
			if len(r.buf) == 0 {
				return nil, io.EOF
			}
			if err := r.checkSize(len(r.buf)); err != nil {
				return nil, err
			}
			r.records++
			return r.buf, nil
		default:
			r.err = fmt.Errorf("recordio: read failed: %w", err)
			return nil, r.err
		}
	}
}

func (r *Reader) checkSize(n int) error {
	if r.max > 0 && n > r.max {
		r.err = fmt.Errorf("%w: more than %d bytes at record %d", ErrRecordTooLarge, r.max, r.records)
		return r.err
	}
	return nil
}

// All returns an iterator over the remaining records. Iteration stops at the
// first error, which is then reported by Err.
func (r *Reader) All() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			rec, err := r.Next()
			if err != nil {
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Err returns the error that stopped iteration, ignoring io.EOF.
func (r *Reader) Err() error {
	if errors.Is(r.err, io.EOF) {
		return nil
	}
	return r.err
}

// Records returns how many records have been read.
func (r *Reader) Records() int64 {
	return r.records
}

// Offset returns how many bytes have been consumed from the stream.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Writer writes records, terminating each with the delimiter.
type Writer struct {
	bw      *bufio.Writer
	delim   byte
	records int64
	bytes   int64
}

func NewWriter(w io.Writer, delim byte) *Writer {
	return &Writer{
		bw:    bufio.NewWriterSize(w, DefaultBufferSize),
		delim: delim,
	}
}

// Write appends rec followed by the delimiter.
func (w *Writer) Write(rec []byte) error {
	if _, err := w.bw.Write(rec); err != nil {
		return fmt.Errorf("recordio: error writing record: %w", err)
	}
	if err := w.bw.WriteByte(w.delim); err != nil {
		return fmt.Errorf("recordio: error writing delimiter: %w", err)
	}
	w.records++
	w.bytes += int64(len(rec)) + 1
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("recordio: flush failed: %w", err)
	}
	return nil
}

func (w *Writer) Records() int64 {
	return w.records
}

func (w *Writer) Bytes() int64 {
	return w.bytes
}

// Scan yields the [start, end) offsets of every record in data, excluding
// delimiters. A trailing record without delimiter is included; empty data
// yields nothing.
func Scan(data []byte, delim byte) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		start := 0
		for start < len(data) {
			i := bytes.IndexByte(data[start:], delim)
			if i < 0 {
				yield(start, len(data))
				return
			}
			if !yield(start, start+i) {
				return
			}
			start += i + 1
		}
	}
}

// ReadRecords reads every record from r into freshly allocated slices.
func ReadRecords(r io.Reader, delim byte) ([][]byte, error) {
	rd := NewReader(r, delim, 0)
	records := make([][]byte, 0, 1)
	for rec := range rd.All() {
		records = append(records, bytes.Clone(rec))
	}
	return records, rd.Err()
}
