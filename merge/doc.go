// Package merge combines sorted run files into one sorted stream.
//
// The frontier holds the head record of every open file and is either a loser
// tree (the default) or a btree-backed priority queue. Both break ties by file
// index, so merging runs of consecutive chunks is stable.
//
// Files are opened lazily when the frontier first pulls from them and are
// deleted once read to the end, so disk usage shrinks as the merge advances.
// When more files are given than Options.FanIn allows open at once, contiguous
// groups are merged into intermediate runs first.
//
// With Options.Groups set the final pass reports duplicates instead of
// removing them: only runs of two or more records that compare equal reach
// the output, one formatted record per run.
package merge
