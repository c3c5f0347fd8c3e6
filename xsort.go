package xsort

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/davidvella/xsort/failure"
	"github.com/davidvella/xsort/merge"
	"github.com/davidvella/xsort/monitoring"
	"github.com/davidvella/xsort/scheduler"
	"github.com/davidvella/xsort/storage/local"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Run sorts the records of inputPath into outputPath.
//
// The input is sorted in chunks that fit the memory budget, the chunks are
// written to a private directory under the temp dir and then merged. The
// output is replaced atomically: on failure it is left untouched and every
// temporary file is removed.
func Run(ctx context.Context, inputPath, outputPath string, opts ...Option) (res Result, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return Result{}, err
	}

	stats, err := monitoring.NewStats(o.registerer)
	if err != nil {
		return Result{}, failure.New(failure.StagePipeline, failure.ErrInvalidOption, err)
	}

	res.RunID = uuid.NewString()
	log := monitoring.Component(o.logger, "pipeline").WithField("run_id", res.RunID)
	defer func() {
		if err != nil {
			stats.RunFinished("failure")
			log.WithError(err).Error("sort failed")
			return
		}
		stats.RunFinished("success")
	}()

	in, err := os.Open(inputPath)
	if err != nil {
		kind := failure.ErrIO
		if errors.Is(err, os.ErrNotExist) {
			kind = failure.ErrInputNotFound
		}
		return res, failure.New(failure.StagePipeline, kind, err).WithPath(inputPath)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return res, failure.New(failure.StagePipeline, failure.ErrIO, err).WithPath(inputPath)
	}
	if info.IsDir() {
		return res, failure.New(failure.StagePipeline, failure.ErrInputNotFound,
			errors.New("input is a directory")).WithPath(inputPath)
	}
	res.BytesIn = info.Size()

	log.WithFields(logrus.Fields{
		"input":   inputPath,
		"output":  outputPath,
		"size":    humanize.IBytes(uint64(info.Size())),
		"budget":  humanize.IBytes(uint64(o.budget)),
		"workers": o.workers,
	}).Info("sort started")

	runDir := filepath.Join(o.tempDir, "xsort-"+res.RunID)
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return res, failure.New(failure.StagePipeline, failure.ErrIO, err).WithPath(runDir)
	}
	store := local.NewLocalStorage(runDir, o.codec)
	defer func() {
		if cerr := store.Clear(); cerr != nil {
			log.WithError(cerr).Warn("failed to remove run directory")
			if err != nil {
				err = multierror.Append(err, cerr)
			}
		}
	}()

	started := time.Now()
	files, err := scheduler.Produce(ctx, in, info.Size(), store, scheduler.Options{
		Budget:        o.budget,
		Workers:       o.workers,
		Delimiter:     o.delimiter,
		MaxRecordSize: o.maxRecordSize,
		Compare:       o.compare,
		Logger:        o.logger,
		Stats:         stats,
	})
	if err != nil {
		return res, err
	}
	res.SortDuration = time.Since(started)
	stats.ObserveStage(string(failure.StageSort), res.SortDuration)
	res.Chunks = len(files)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
		res.RecordsIn += f.Records
	}

	ms, err := writeOutput(ctx, outputPath, func(w io.Writer) (merge.Stats, error) {
		return merge.Merge(ctx, names, store, w, merge.Options{
			Compare:       o.compare,
			Equal:         o.equal,
			Dedupe:        o.dedupe && !o.groups,
			Delimiter:     o.delimiter,
			MaxRecordSize: int(o.maxRecordSize),
			FanIn:         o.fanIn,
			Frontier:      o.frontier,
			Verify:        o.verify,
			Groups:        o.groups,
			GroupFormat:   o.groupFormat,
			Logger:        o.logger,
			Stats:         stats,
		})
	})
	if err != nil {
		return res, err
	}
	res.RecordsOut = ms.Records
	res.Duplicates = ms.Duplicates
	res.Groups = ms.Groups
	res.BytesOut = ms.Bytes
	res.MergePasses = ms.Passes
	res.MergeDuration = ms.Duration

	log.WithFields(logrus.Fields{
		"chunks":      res.Chunks,
		"records_in":  res.RecordsIn,
		"records_out": res.RecordsOut,
		"duplicates":  res.Duplicates,
		"groups":      res.Groups,
		"bytes_out":   humanize.IBytes(uint64(res.BytesOut)),
		"duration":    time.Since(started),
	}).Info("sort finished")
	return res, nil
}

// writeOutput runs fn against a temporary file next to path and renames it
// over path once fn succeeds and the data is synced.
func writeOutput(ctx context.Context, path string, fn func(io.Writer) (merge.Stats, error)) (merge.Stats, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".xsort-*.tmp")
	if err != nil {
		return merge.Stats{}, failure.New(failure.StagePipeline, failure.ErrIO, err).WithPath(path)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmp)
		}
	}()

	ms, err := fn(f)
	if err != nil {
		return ms, err
	}
	if err := ctx.Err(); err != nil {
		return ms, failure.New(failure.StagePipeline, err, err)
	}
	if err := f.Sync(); err != nil {
		return ms, failure.New(failure.StagePipeline, failure.ErrIO, err).WithPath(tmp)
	}
	if err := f.Chmod(0o644); err != nil {
		return ms, failure.New(failure.StagePipeline, failure.ErrIO, err).WithPath(tmp)
	}
	if err := f.Close(); err != nil {
		return ms, failure.New(failure.StagePipeline, failure.ErrIO, err).WithPath(tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		committed = true
		return ms, failure.New(failure.StagePipeline, failure.ErrIO, err).WithPath(path)
	}
	committed = true
	return ms, nil
}
