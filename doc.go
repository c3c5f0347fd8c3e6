// Package xsort sorts files larger than memory.
//
// Run splits the input into delimiter-aligned chunks no larger than the memory
// budget, sorts each chunk on one of several workers and writes it to a
// temporary run file, then merges every run file into the output in a single
// streaming pass. Duplicate records are dropped while merging unless dedupe
// is disabled.
//
// The sort is stable. Records that compare equal keep their input order, so
// the output is the same whatever the number of workers.
//
// Basic usage:
//
//	res, err := xsort.Run(ctx, "certs.jsonl", "certs.sorted.jsonl",
//	    xsort.WithBudget(512<<20),
//	    xsort.WithWorkers(4),
//	    xsort.WithComparator(record.JSONKey("data", "leaf_cert", "fingerprint")),
//	)
package xsort
