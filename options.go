package xsort

import (
	"fmt"
	"os"

	"github.com/davidvella/xsort/chunk"
	"github.com/davidvella/xsort/codec"
	"github.com/davidvella/xsort/failure"
	"github.com/davidvella/xsort/merge"
	"github.com/davidvella/xsort/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DefaultBudget is the memory budget used when none is given.
const DefaultBudget = 1 << 30

// options defines all configuration options for a sort run.
type options struct {
	// Sort options
	budget        int64 // Bytes of input held in memory at once
	workers       int   // Chunk sorting workers
	delimiter     byte
	compare       record.Compare
	maxRecordSize int64

	// Merge options
	dedupe   bool
	equal    record.Equal
	fanIn    int
	frontier merge.Frontier
	verify   bool

	// Duplicate report
	groups      bool
	groupFormat record.GroupFormat

	// Temporary files
	tempDir string
	codec   codec.Codec

	logger     logrus.FieldLogger
	registerer prometheus.Registerer
}

// Option is a function that configures a sort run.
type Option func(*options)

// WithBudget sets the memory budget in bytes shared by all workers.
func WithBudget(bytes int64) Option {
	return func(o *options) {
		o.budget = bytes
	}
}

// WithWorkers sets how many chunks are sorted in parallel.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithDedupe enables or disables dropping duplicate records.
func WithDedupe(dedupe bool) Option {
	return func(o *options) {
		o.dedupe = dedupe
	}
}

// WithDelimiter sets the byte terminating records.
func WithDelimiter(delim byte) Option {
	return func(o *options) {
		o.delimiter = delim
	}
}

// WithComparator sets the total order records are sorted by.
func WithComparator(c record.Compare) Option {
	return func(o *options) {
		o.compare = c
	}
}

// WithEqual sets when two records count as duplicates. Records that are
// equal must also compare equal.
func WithEqual(e record.Equal) Option {
	return func(o *options) {
		o.equal = e
	}
}

// WithTempDir sets the directory the run directory is created in.
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// WithCodec sets the compression of temporary files.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithMaxRecordSize sets the largest record accepted, in bytes.
func WithMaxRecordSize(bytes int64) Option {
	return func(o *options) {
		o.maxRecordSize = bytes
	}
}

// WithFanIn sets the most sorted files merged at once.
func WithFanIn(n int) Option {
	return func(o *options) {
		o.fanIn = n
	}
}

// WithFrontier sets the structure used to pick the next record while merging.
func WithFrontier(f merge.Frontier) Option {
	return func(o *options) {
		o.frontier = f
	}
}

// WithVerify enables or disables checking sorted files while merging.
func WithVerify(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// WithDuplicateGroups makes the output hold only groups of two or more
// records that compare equal, one output record per group rendered by f. A
// nil f writes each group's records followed by an empty record. Dedupe is
// not applied, so identical records are reported too.
func WithDuplicateGroups(f record.GroupFormat) Option {
	return func(o *options) {
		o.groups = true
		o.groupFormat = f
	}
}

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer registers run metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		budget:        DefaultBudget,
		workers:       1,
		delimiter:     '\n',
		compare:       record.Bytes,
		maxRecordSize: chunk.DefaultMaxRecordSize,
		dedupe:        true,
		equal:         record.Exact,
		fanIn:         merge.DefaultFanIn,
		frontier:      merge.LoserTree,
		verify:        true,
		tempDir:       os.TempDir(),
		codec:         codec.None,
	}
}

func (o *options) validate() error {
	var err error
	switch {
	case o.budget <= 0:
		err = fmt.Errorf("budget must be positive, got %d", o.budget)
	case o.workers < 1:
		err = fmt.Errorf("workers must be at least 1, got %d", o.workers)
	case o.maxRecordSize <= 0:
		err = fmt.Errorf("max record size must be positive, got %d", o.maxRecordSize)
	case o.fanIn < 2:
		err = fmt.Errorf("fan-in must be at least 2, got %d", o.fanIn)
	case o.compare == nil:
		err = fmt.Errorf("comparator is required")
	case o.equal == nil:
		err = fmt.Errorf("equality is required")
	case o.codec == nil:
		err = fmt.Errorf("codec is required")
	case o.tempDir == "":
		err = fmt.Errorf("temp dir is required")
	}
	if err != nil {
		return failure.New(failure.StagePipeline, failure.ErrInvalidOption, err)
	}
	return nil
}
