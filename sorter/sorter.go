// Package sorter sorts one chunk of records in memory and persists it as a
// sorted run file.
//
// Records keep their original order when the comparator considers them
// equal, so a sorted run is a stable permutation of its chunk. Nothing is
// dropped here; duplicates are only removed while merging.
package sorter

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/davidvella/xsort/chunk"
	"github.com/davidvella/xsort/failure"
	"github.com/davidvella/xsort/monitoring"
	"github.com/davidvella/xsort/record"
	"github.com/davidvella/xsort/recordio"
	"github.com/sirupsen/logrus"
)

// checkEvery is how many records are written between cancellation checks.
const checkEvery = 4096

// Storage creates and removes run files.
type Storage interface {
	// Create a new file for writing.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// Delete a file.
	Delete(ctx context.Context, name string) error
}

// SortedFile describes a run file holding one sorted chunk.
type SortedFile struct {
	Name    string
	Chunk   int
	Records int64
	Bytes   int64
}

// FileName returns the run file name for the chunk with the given index.
func FileName(index int) string {
	return fmt.Sprintf("chunk-%06d.run", index)
}

type Options struct {
	Delimiter byte
	Compare   record.Compare
	// Limit is the largest chunk accepted, in bytes. Zero disables the check.
	Limit int64
	// MaxRecordSize is the largest record accepted, in bytes. Zero disables
	// the check.
	MaxRecordSize int64
	Logger        logrus.FieldLogger
	Stats         *monitoring.Stats
}

type Sorter struct {
	storage Storage
	opts    Options
	log     logrus.FieldLogger
	spans   []span
}

// span locates one record inside the chunk buffer.
type span struct {
	start, end int
}

// New returns a Sorter writing to storage. A Sorter reuses internal buffers
// and must not be shared between goroutines.
func New(storage Storage, opts Options) *Sorter {
	if opts.Compare == nil {
		opts.Compare = record.Bytes
	}
	return &Sorter{
		storage: storage,
		opts:    opts,
		log:     monitoring.Component(opts.Logger, "sorter"),
	}
}

// Sort orders the records of c, whose bytes are data, and writes them to a
// new run file. On failure no file is left behind.
func (s *Sorter) Sort(ctx context.Context, c chunk.Chunk, data []byte) (SortedFile, error) {
	started := time.Now()
	if s.opts.Limit > 0 && int64(len(data)) > s.opts.Limit {
		return SortedFile{}, failure.New(failure.StageSort, failure.ErrMemoryExceeded,
			fmt.Errorf("chunk is %d bytes, limit is %d", len(data), s.opts.Limit)).WithChunk(c.Index)
	}
	if err := ctx.Err(); err != nil {
		return SortedFile{}, failure.New(failure.StageSort, failure.ErrWorkerFailure, err).WithChunk(c.Index)
	}

	s.spans = s.spans[:0]
	for start, end := range recordio.Scan(data, s.opts.Delimiter) {
		if s.opts.MaxRecordSize > 0 && int64(end-start) > s.opts.MaxRecordSize {
			return SortedFile{}, failure.New(failure.StageSort, failure.ErrMemoryExceeded,
				fmt.Errorf("record %d is %d bytes, limit is %d", len(s.spans)+1, end-start, s.opts.MaxRecordSize)).WithChunk(c.Index)
		}
		s.spans = append(s.spans, span{start: start, end: end})
	}
	compare := s.opts.Compare
	slices.SortFunc(s.spans, func(a, b span) int {
		if c := compare(data[a.start:a.end], data[b.start:b.end]); c != 0 {
			return c
		}
		return cmp.Compare(a.start, b.start)
	})

	name := FileName(c.Index)
	n, err := s.write(ctx, name, data)
	if err != nil {
		if derr := s.storage.Delete(context.WithoutCancel(ctx), name); derr != nil {
			s.log.WithError(derr).WithField("file", name).Warn("failed to remove partial run file")
		}
		return SortedFile{}, failure.New(failure.StageSort, failure.ErrIO, err).WithChunk(c.Index).WithPath(name)
	}

	s.opts.Stats.ChunkSorted(int64(len(s.spans)), int64(len(data)))
	s.log.WithFields(logrus.Fields{
		"chunk":    c.Index,
		"file":     name,
		"records":  len(s.spans),
		"bytes":    len(data),
		"duration": time.Since(started),
	}).Debug("chunk sorted")

	return SortedFile{
		Name:    name,
		Chunk:   c.Index,
		Records: int64(len(s.spans)),
		Bytes:   n,
	}, nil
}

func (s *Sorter) write(ctx context.Context, name string, data []byte) (int64, error) {
	wc, err := s.storage.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	w := recordio.NewWriter(wc, s.opts.Delimiter)
	for i, sp := range s.spans {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				wc.Close()
				return 0, err
			}
		}
		if err := w.Write(data[sp.start:sp.end]); err != nil {
			wc.Close()
			return 0, err
		}
	}
	if err := w.Flush(); err != nil {
		wc.Close()
		return 0, err
	}
	if err := wc.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", name, err)
	}
	return w.Bytes(), nil
}
