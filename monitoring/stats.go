package monitoring

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xsort"

// Stats exports sort run metrics. A nil *Stats is valid and records nothing.
type Stats struct {
	chunksSorted   prometheus.Counter
	recordsSorted  prometheus.Counter
	bytesSorted    prometheus.Counter
	recordsMerged  prometheus.Counter
	duplicates     prometheus.Counter
	bytesWritten   prometheus.Counter
	corruptFiles   prometheus.Counter
	openChunkFiles prometheus.Gauge
	runs           *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
}

// NewStats registers the sort metrics with reg. Collectors that are already
// registered are reused, so several pipelines can share one registry. A nil
// reg uses a private registry.
func NewStats(reg prometheus.Registerer) (*Stats, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	var (
		s   Stats
		err error
	)
	if s.chunksSorted, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_sorted_total",
		Help:      "Total number of chunks sorted and written to temporary files",
	})); err != nil {
		return nil, err
	}
	if s.recordsSorted, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_sorted_total",
		Help:      "Total number of records sorted in memory",
	})); err != nil {
		return nil, err
	}
	if s.bytesSorted, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_sorted_total",
		Help:      "Total number of input bytes loaded into memory for sorting",
	})); err != nil {
		return nil, err
	}
	if s.recordsMerged, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_merged_total",
		Help:      "Total number of records emitted by merge passes",
	})); err != nil {
		return nil, err
	}
	if s.duplicates, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicates_dropped_total",
		Help:      "Total number of duplicate records dropped while merging",
	})); err != nil {
		return nil, err
	}
	if s.bytesWritten, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "output_bytes_total",
		Help:      "Total number of bytes written to final outputs",
	})); err != nil {
		return nil, err
	}
	if s.corruptFiles, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "corrupt_chunk_files_total",
		Help:      "Total number of chunk files rejected during merge",
	})); err != nil {
		return nil, err
	}
	if s.openChunkFiles, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_chunk_files",
		Help:      "Number of chunk files currently open for merging",
	})); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total number of sort runs by outcome",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.stageDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	return &s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func (s *Stats) ChunkSorted(records, bytes int64) {
	if s == nil {
		return
	}
	s.chunksSorted.Inc()
	s.recordsSorted.Add(float64(records))
	s.bytesSorted.Add(float64(bytes))
}

func (s *Stats) RecordsMerged(n int64) {
	if s == nil {
		return
	}
	s.recordsMerged.Add(float64(n))
}

func (s *Stats) DuplicatesDropped(n int64) {
	if s == nil {
		return
	}
	s.duplicates.Add(float64(n))
}

func (s *Stats) OutputWritten(bytes int64) {
	if s == nil {
		return
	}
	s.bytesWritten.Add(float64(bytes))
}

func (s *Stats) CorruptChunkFile() {
	if s == nil {
		return
	}
	s.corruptFiles.Inc()
}

func (s *Stats) ChunkFileOpened() {
	if s == nil {
		return
	}
	s.openChunkFiles.Inc()
}

func (s *Stats) ChunkFileClosed() {
	if s == nil {
		return
	}
	s.openChunkFiles.Dec()
}

// RunFinished counts a completed run; status is "success" or "failure".
func (s *Stats) RunFinished(status string) {
	if s == nil {
		return
	}
	s.runs.WithLabelValues(status).Inc()
}

func (s *Stats) ObserveStage(stage string, d time.Duration) {
	if s == nil {
		return
	}
	s.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
