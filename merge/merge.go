package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/davidvella/xsort/failure"
	"github.com/davidvella/xsort/loser"
	"github.com/davidvella/xsort/monitoring"
	"github.com/davidvella/xsort/priority"
	"github.com/davidvella/xsort/record"
	"github.com/davidvella/xsort/recordio"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultFanIn is the most files merged at once.
	DefaultFanIn = 512
	// checkEvery is how many records are emitted between cancellation checks.
	checkEvery = 1024
)

// Storage holds the sorted run files being merged. Merge deletes each file
// once it has been read to the end.
type Storage interface {
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// Frontier selects the structure holding the head record of every source.
type Frontier int

const (
	LoserTree Frontier = iota
	PriorityQueue
)

func (f Frontier) String() string {
	switch f {
	case LoserTree:
		return "loser"
	case PriorityQueue:
		return "btree"
	}
	return fmt.Sprintf("Frontier(%d)", int(f))
}

// ParseFrontier resolves a frontier by name.
func ParseFrontier(name string) (Frontier, error) {
	switch name {
	case "", "loser":
		return LoserTree, nil
	case "btree", "heap":
		return PriorityQueue, nil
	}
	return 0, fmt.Errorf("unknown frontier %q", name)
}

type Options struct {
	Compare record.Compare
	Equal   record.Equal
	// Dedupe drops a record equal to the record emitted just before it.
	Dedupe    bool
	Delimiter byte
	// MaxRecordSize bounds a single record read back from a run file.
	MaxRecordSize int
	// FanIn is the most files open at once. More files are first merged in
	// contiguous groups into intermediate run files.
	FanIn    int
	Frontier Frontier
	// Verify checks that every source is sorted while it is read.
	Verify bool
	// Groups makes the final pass write only groups of two or more
	// consecutive records that compare equal, each rendered by GroupFormat.
	// Records in smaller groups are dropped. Intermediate passes are not
	// affected.
	Groups      bool
	GroupFormat record.GroupFormat
	Logger      logrus.FieldLogger
	Stats       *monitoring.Stats
}

func (o *Options) withDefaults() {
	if o.Compare == nil {
		o.Compare = record.Bytes
	}
	if o.Equal == nil {
		o.Equal = record.Exact
	}
	if o.FanIn < 2 {
		o.FanIn = DefaultFanIn
	}
	if o.GroupFormat == nil {
		o.GroupFormat = record.Lines(o.Delimiter)
	}
}

// Stats summarises a merge.
type Stats struct {
	// Records and Bytes count what was written to the output.
	Records int64
	Bytes   int64
	// Duplicates counts records dropped in any pass.
	Duplicates int64
	// Groups counts the groups written when Options.Groups is set. Records
	// then counts the records in those groups.
	Groups int64
	// Passes is the number of merge passes, including the final one.
	Passes   int
	Duration time.Duration
}

// Merge streams the records of files, each sorted under opts.Compare, to w as
// one sorted sequence. Records comparing equal are emitted in file order. Every
// source file is deleted as soon as it is exhausted.
//
// A source that cannot be read or is found out of order fails the merge with
// failure.ErrCorruptChunkFile naming the file. Output already written to w is
// then incomplete and must be discarded by the caller.
func Merge(ctx context.Context, files []string, store Storage, w io.Writer, opts Options) (Stats, error) {
	opts.withDefaults()
	m := &merger{
		store: store,
		opts:  opts,
		log:   monitoring.Component(opts.Logger, "merge"),
	}
	started := time.Now()

	files, err := m.reduce(ctx, files)
	if err != nil {
		return m.stats, err
	}

	rw := recordio.NewWriter(w, opts.Delimiter)
	var n int64
	if opts.Groups {
		g := &grouper{compare: opts.Compare, format: opts.GroupFormat, w: rw}
		if _, err = m.pass(ctx, files, g.add); err == nil {
			err = g.flush()
		}
		if err != nil {
			return m.stats, wrapWrite(err)
		}
		n = g.records
		m.stats.Groups = g.groups
	} else {
		if n, err = m.pass(ctx, files, rw.Write); err != nil {
			return m.stats, err
		}
	}
	if err := rw.Flush(); err != nil {
		return m.stats, failure.New(failure.StageMerge, failure.ErrIO, err)
	}
	m.stats.Records = n
	m.stats.Bytes = rw.Bytes()
	m.stats.Duration = time.Since(started)
	m.opts.Stats.OutputWritten(rw.Bytes())

	m.log.WithFields(logrus.Fields{
		"files":      len(files),
		"records":    n,
		"duplicates": m.stats.Duplicates,
		"groups":     m.stats.Groups,
		"passes":     m.stats.Passes,
		"duration":   m.stats.Duration,
	}).Info("merge finished")
	return m.stats, nil
}

type merger struct {
	store Storage
	opts  Options
	log   logrus.FieldLogger
	stats Stats
	// failed is set by a source that could not be read.
	failed error
}

// reduce merges contiguous groups of files into intermediate runs until at
// most FanIn files remain.
func (m *merger) reduce(ctx context.Context, files []string) ([]string, error) {
	for round := 1; len(files) > m.opts.FanIn; round++ {
		next := make([]string, 0, len(files)/m.opts.FanIn+1)
		for g := 0; g*m.opts.FanIn < len(files); g++ {
			group := files[g*m.opts.FanIn : min((g+1)*m.opts.FanIn, len(files))]
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			name := fmt.Sprintf("merge-%02d-%06d.run", round, g)
			if err := m.intermediate(ctx, group, name); err != nil {
				return nil, err
			}
			next = append(next, name)
		}
		m.log.WithFields(logrus.Fields{
			"round":  round,
			"inputs": len(files),
			"runs":   len(next),
		}).Debug("intermediate merge pass finished")
		files = next
	}
	return files, nil
}

func (m *merger) intermediate(ctx context.Context, group []string, name string) error {
	wc, err := m.store.Create(ctx, name)
	if err != nil {
		return failure.New(failure.StageMerge, failure.ErrIO, err).WithPath(name)
	}
	rw := recordio.NewWriter(wc, m.opts.Delimiter)
	_, err = m.pass(ctx, group, rw.Write)
	if err == nil {
		if err = rw.Flush(); err == nil {
			err = wc.Close()
		} else {
			wc.Close()
		}
		if err != nil {
			err = failure.New(failure.StageMerge, failure.ErrIO, err).WithPath(name)
		}
	} else {
		wc.Close()
	}
	if err != nil {
		if derr := m.store.Delete(context.WithoutCancel(ctx), name); derr != nil {
			m.log.WithError(derr).WithField("file", name).Warn("failed to remove intermediate run file")
		}
		return err
	}
	return nil
}

// pass merges files into sink and returns how many records it was given.
func (m *merger) pass(ctx context.Context, files []string, sink func([]byte) error) (int64, error) {
	m.stats.Passes++
	started := time.Now()
	m.failed = nil

	sources := make([]*source, len(files))
	for i, name := range files {
		sources[i] = &source{name: name, m: m, ctx: ctx}
	}

	var (
		written    int64
		duplicates int64
		last       []byte
		haveLast   bool
		err        error
	)
	for rec := range m.frontier(sources) {
		if m.failed != nil {
			break
		}
		if written%checkEvery == 0 {
			if err = ctx.Err(); err != nil {
				err = failure.New(failure.StageMerge, err, err)
				break
			}
		}
		if m.opts.Dedupe {
			if haveLast && m.opts.Equal(last, rec) {
				duplicates++
				continue
			}
			last = append(last[:0], rec...)
			haveLast = true
		}
		if err = sink(rec); err != nil {
			err = wrapWrite(err)
			break
		}
		written++
	}
	if err == nil {
		err = m.failed
	}

	m.stats.Duplicates += duplicates
	m.opts.Stats.RecordsMerged(written)
	m.opts.Stats.DuplicatesDropped(duplicates)
	m.opts.Stats.ObserveStage(string(failure.StageMerge), time.Since(started))
	return written, err
}

// wrapWrite marks an error from writing the output as an I/O failure.
func wrapWrite(err error) error {
	if _, ok := failure.As(err); ok {
		return err
	}
	return failure.New(failure.StageMerge, failure.ErrIO, err)
}

// grouper collects runs of records that compare equal and writes those with
// two or more members as one output record each.
type grouper struct {
	compare record.Compare
	format  record.GroupFormat
	w       *recordio.Writer

	buf     []byte
	ends    []int
	members [][]byte
	out     []byte

	groups  int64
	records int64
}

func (g *grouper) add(rec []byte) error {
	if len(g.ends) > 0 && g.compare(g.buf[:g.ends[0]], rec) != 0 {
		if err := g.flush(); err != nil {
			return err
		}
	}
	g.buf = append(g.buf, rec...)
	g.ends = append(g.ends, len(g.buf))
	return nil
}

// flush writes the pending group if it has more than one member.
func (g *grouper) flush() error {
	defer func() {
		g.buf = g.buf[:0]
		g.ends = g.ends[:0]
	}()
	if len(g.ends) < 2 {
		return nil
	}
	g.members = g.members[:0]
	start := 0
	for _, end := range g.ends {
		g.members = append(g.members, g.buf[start:end])
		start = end
	}
	g.out = g.format(g.out[:0], g.members)
	if err := g.w.Write(g.out); err != nil {
		return err
	}
	g.groups++
	g.records += int64(len(g.ends))
	return nil
}

func (m *merger) frontier(sources []*source) iter.Seq[[]byte] {
	if m.opts.Frontier == PriorityQueue {
		return queueMerge(sources, m.opts.Compare)
	}
	seqs := make([]loser.Sequence[[]byte], len(sources))
	for i, s := range sources {
		seqs[i] = s
	}
	return loser.New(seqs, func(a, b []byte) int { return m.opts.Compare(a, b) }).All()
}

// queueMerge is the frontier kept in a priority queue keyed by source index.
func queueMerge(sources []*source, compare record.Compare) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		pq := priority.NewQueue[int, []byte](func(a, b []byte) bool {
			return compare(a, b) < 0
		})
		nexts := make([]func() ([]byte, bool), len(sources))
		for i, s := range sources {
			next, stop := iter.Pull(s.All())
			defer stop()
			nexts[i] = next
			if v, ok := next(); ok {
				pq.Set(i, v)
			}
		}
		for {
			i, v, ok := pq.Pop()
			if !ok || !yield(v) {
				return
			}
			if v, ok := nexts[i](); ok {
				pq.Set(i, v)
			}
		}
	}
}

// source reads one run file. Records it yields stay valid until it is
// advanced again.
type source struct {
	name string
	m    *merger
	ctx  context.Context
}

func (s *source) All() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		m := s.m
		rc, err := m.store.Open(s.ctx, s.name)
		if err != nil {
			s.fail(err)
			return
		}
		m.opts.Stats.ChunkFileOpened()
		closed := false
		closeFile := func() error {
			if closed {
				return nil
			}
			closed = true
			m.opts.Stats.ChunkFileClosed()
			return rc.Close()
		}
		defer closeFile()

		r := recordio.NewReader(rc, m.opts.Delimiter, m.opts.MaxRecordSize)
		var cur, prev []byte
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				s.fail(err)
				return
			}
			if m.opts.Verify {
				cur = append(cur[:0], rec...)
				if r.Records() > 1 && m.opts.Compare(prev, cur) > 0 {
					s.fail(fmt.Errorf("record %d sorts before record %d", r.Records(), r.Records()-1))
					return
				}
				rec = cur
				cur, prev = prev, cur
			}
			if !yield(rec) {
				return
			}
		}

		if err := closeFile(); err != nil {
			s.fail(err)
			return
		}
		if err := m.store.Delete(context.WithoutCancel(s.ctx), s.name); err != nil {
			m.log.WithError(err).WithField("file", s.name).Warn("failed to remove exhausted run file")
		}
	}
}

func (s *source) fail(err error) {
	s.m.opts.Stats.CorruptChunkFile()
	if s.m.failed == nil {
		s.m.failed = failure.New(failure.StageMerge, failure.ErrCorruptChunkFile, err).WithPath(s.name)
	}
}
