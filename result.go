package xsort

import "time"

// Result describes a completed sort run.
type Result struct {
	// RunID names the run's temporary directory and tags its log entries.
	RunID string
	// Chunks is the number of sorted chunk files produced.
	Chunks     int
	RecordsIn  int64
	RecordsOut int64
	Duplicates int64
	// Groups counts duplicate groups written by a WithDuplicateGroups run.
	// RecordsOut then counts the records in those groups.
	Groups   int64
	BytesIn  int64
	BytesOut int64
	// MergePasses counts merge passes, including the final one.
	MergePasses   int
	SortDuration  time.Duration
	MergeDuration time.Duration
}
