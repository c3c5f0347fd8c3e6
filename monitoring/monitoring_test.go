package monitoring_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/davidvella/xsort/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "text info", level: "info", format: "text"},
		{name: "json debug", level: "debug", format: "json"},
		{name: "default format", level: "warn", format: ""},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := monitoring.NewLogger(tt.level, tt.format, &buf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l, err := monitoring.NewLogger("info", "json", &buf)
	require.NoError(t, err)

	monitoring.Component(l, "merge").WithField("file", "chunk-000000.run").Info("merge pass finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "merge", entry["component"])
	assert.Equal(t, "chunk-000000.run", entry["file"])
	assert.Equal(t, "merge pass finished", entry["msg"])

	assert.NotPanics(t, func() {
		monitoring.Component(nil, "sorter").Error("dropped")
	})
}

func TestStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := monitoring.NewStats(reg)
	require.NoError(t, err)

	s.ChunkSorted(10, 100)
	s.ChunkSorted(5, 50)
	s.RecordsMerged(12)
	s.DuplicatesDropped(3)
	s.OutputWritten(99)
	s.CorruptChunkFile()
	s.ChunkFileOpened()
	s.ChunkFileOpened()
	s.ChunkFileClosed()
	s.RunFinished("success")
	s.ObserveStage("merge", 20*time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "xsort_chunks_sorted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["xsort_chunks_sorted_total"])
	assert.Equal(t, 15.0, values["xsort_records_sorted_total"])
	assert.Equal(t, 150.0, values["xsort_bytes_sorted_total"])
	assert.Equal(t, 12.0, values["xsort_records_merged_total"])
	assert.Equal(t, 3.0, values["xsort_duplicates_dropped_total"])
	assert.Equal(t, 99.0, values["xsort_output_bytes_total"])
	assert.Equal(t, 1.0, values["xsort_corrupt_chunk_files_total"])
	assert.Equal(t, 1.0, values["xsort_open_chunk_files"])
	assert.Equal(t, 1.0, values["xsort_runs_total"])
}

func TestStatsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := monitoring.NewStats(reg)
	require.NoError(t, err)
	b, err := monitoring.NewStats(reg)
	require.NoError(t, err)

	a.RecordsMerged(1)
	b.RecordsMerged(2)
	n, err := testutil.GatherAndCount(reg, "xsort_records_merged_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilStats(t *testing.T) {
	var s *monitoring.Stats
	assert.NotPanics(t, func() {
		s.ChunkSorted(1, 1)
		s.RecordsMerged(1)
		s.DuplicatesDropped(1)
		s.OutputWritten(1)
		s.CorruptChunkFile()
		s.ChunkFileOpened()
		s.ChunkFileClosed()
		s.RunFinished("failure")
		s.ObserveStage("sort", time.Second)
	})

	s, err := monitoring.NewStats(nil)
	require.NoError(t, err)
	assert.NotNil(t, s)
}
