// Package scheduler turns an input into sorted run files, sorting chunks on
// one or more workers.
//
// The input is split with a per-worker budget of max(1, Budget/Workers) so
// that all workers together stay within Budget. Each worker owns a contiguous
// range of chunk indexes and shares nothing with the others: it has its own
// buffer and sorter and writes only its own slots of the result slice.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/davidvella/xsort/chunk"
	"github.com/davidvella/xsort/failure"
	"github.com/davidvella/xsort/monitoring"
	"github.com/davidvella/xsort/record"
	"github.com/davidvella/xsort/sorter"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Budget is the most input held in memory at once, across all workers.
	Budget  int64
	Workers int
	// Delimiter terminates records.
	Delimiter     byte
	MaxRecordSize int64
	Compare       record.Compare
	Logger        logrus.FieldLogger
	Stats         *monitoring.Stats
}

// PerWorkerBudget returns the chunk budget each of workers gets.
func PerWorkerBudget(budget int64, workers int) int64 {
	if workers < 1 {
		workers = 1
	}
	return max(1, budget/int64(workers))
}

// Produce splits the first size bytes of src into chunks, sorts every chunk
// and writes it to store. The returned files are in chunk order, one per
// chunk. If any chunk fails, the remaining work is canceled, every file
// already written is deleted and the first failure is returned.
func Produce(ctx context.Context, src io.ReaderAt, size int64, store sorter.Storage, opts Options) ([]sorter.SortedFile, error) {
	if opts.Budget <= 0 {
		return nil, failure.New(failure.StageSchedule, failure.ErrInvalidOption,
			fmt.Errorf("budget must be positive, got %d", opts.Budget))
	}
	if opts.Workers < 1 {
		return nil, failure.New(failure.StageSchedule, failure.ErrInvalidOption,
			fmt.Errorf("workers must be at least 1, got %d", opts.Workers))
	}
	if opts.MaxRecordSize <= 0 {
		opts.MaxRecordSize = chunk.DefaultMaxRecordSize
	}
	log := monitoring.Component(opts.Logger, "scheduler")

	perWorker := PerWorkerBudget(opts.Budget, opts.Workers)
	chunks, err := chunk.Split(src, size, perWorker, chunk.Options{
		Delimiter:     opts.Delimiter,
		MaxRecordSize: opts.MaxRecordSize,
	})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []sorter.SortedFile{}, nil
	}

	workers := min(opts.Workers, len(chunks))
	log.WithFields(logrus.Fields{
		"chunks":     len(chunks),
		"workers":    workers,
		"chunk_size": humanize.IBytes(uint64(perWorker)),
	}).Info("input split into chunks")

	s := &schedule{
		src:     src,
		store:   store,
		chunks:  chunks,
		results: make([]sorter.SortedFile, len(chunks)),
		done:    make([]*roaring.Bitmap, workers),
		sorter: sorter.Options{
			Delimiter:     opts.Delimiter,
			Compare:       opts.Compare,
			Limit:         perWorker + opts.MaxRecordSize,
			MaxRecordSize: opts.MaxRecordSize,
			Logger:        opts.Logger,
			Stats:         opts.Stats,
		},
		log: log,
	}

	if workers == 1 {
		err = s.work(ctx, 0, 0, len(chunks))
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for w := range workers {
			lo, hi := w*len(chunks)/workers, (w+1)*len(chunks)/workers
			g.Go(func() error {
				return s.work(gctx, w, lo, hi)
			})
		}
		err = g.Wait()
	}
	if err == nil {
		err = s.barrier()
	}
	if err != nil {
		log.WithError(err).Error("sorting chunks failed")
		return nil, s.cleanup(ctx, err)
	}
	return s.results, nil
}

type schedule struct {
	src     io.ReaderAt
	store   sorter.Storage
	chunks  []chunk.Chunk
	results []sorter.SortedFile
	// done[w] holds the chunk indexes worker w finished.
	done   []*roaring.Bitmap
	sorter sorter.Options
	log    logrus.FieldLogger
}

// work sorts chunks [lo, hi) as worker w.
func (s *schedule) work(ctx context.Context, w, lo, hi int) (err error) {
	current := lo
	defer func() {
		if r := recover(); r != nil {
			err = failure.New(failure.StageSchedule, failure.ErrWorkerFailure,
				fmt.Errorf("worker %d panicked: %v", w, r)).WithChunk(current)
			// The chunk may have been half written when the panic hit.
			if current < hi {
				name := sorter.FileName(s.chunks[current].Index)
				if derr := s.store.Delete(context.WithoutCancel(ctx), name); derr != nil {
					s.log.WithError(derr).WithField("file", name).Warn("failed to remove partial run file")
				}
			}
		}
	}()

	started := time.Now()
	done := roaring.New()
	s.done[w] = done
	srt := sorter.New(s.store, s.sorter)
	var buf []byte
	for ; current < hi; current++ {
		c := s.chunks[current]
		if err := ctx.Err(); err != nil {
			return failure.New(failure.StageSchedule, failure.ErrWorkerFailure, err).WithChunk(c.Index)
		}
		data, err := c.Load(s.src, buf)
		if err != nil {
			return failure.New(failure.StageSchedule, failure.ErrIO, err).WithChunk(c.Index)
		}
		buf = data
		f, err := srt.Sort(ctx, c, data)
		if err != nil {
			return err
		}
		s.results[c.Index] = f
		done.Add(uint32(c.Index))
	}

	s.log.WithFields(logrus.Fields{
		"worker":   w,
		"chunks":   hi - lo,
		"duration": time.Since(started),
	}).Debug("worker finished")
	return nil
}

// barrier checks that every chunk has a sorted file before merging starts.
func (s *schedule) barrier() error {
	covered := roaring.FastOr(s.done...)
	if n := covered.GetCardinality(); n != uint64(len(s.chunks)) {
		missing := roaring.Flip(covered, 0, uint64(len(s.chunks)))
		return failure.New(failure.StageSchedule, failure.ErrWorkerFailure,
			fmt.Errorf("%d of %d chunks sorted, missing %v", n, len(s.chunks), missing.ToArray()))
	}
	return nil
}

// cleanup deletes every file already produced. Delete failures are appended
// to cause.
func (s *schedule) cleanup(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	var errs *multierror.Error
	for _, f := range s.results {
		if f.Name == "" {
			continue
		}
		if err := s.store.Delete(ctx, f.Name); err != nil {
			s.log.WithError(err).WithField("file", f.Name).Warn("failed to remove run file")
			errs = multierror.Append(errs, err)
		}
	}
	if errs == nil {
		return cause
	}
	return multierror.Append(cause, errs.Errors...)
}
