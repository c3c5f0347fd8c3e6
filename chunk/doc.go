// Package chunk cuts an input file into delimiter-aligned byte ranges that
// each fit a memory budget.
//
// The splitter jumps budget bytes ahead of the current chunk start and scans
// forward to the next delimiter, so every chunk ends just after a delimiter
// (or at end of input) and no record ever straddles two chunks. A chunk can
// therefore exceed the budget by at most one record; records longer than
// Options.MaxRecordSize are reported as failure.ErrMemoryExceeded instead of
// silently producing an oversized chunk.
//
// Concatenating the chunks of an input in Index order reproduces the input
// byte for byte:
//
//	chunks, err := chunk.SplitFile("input.jsonl", 64<<20, chunk.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, c := range chunks {
//	    fmt.Printf("chunk %d: [%d, %d)\n", c.Index, c.Start, c.End)
//	}
package chunk
