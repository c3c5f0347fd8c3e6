// Package loser implements a tournament tree (also known as a loser tree) for
// merging multiple sorted sequences. This implementation is based on the work by
// Bryan Boreham (https://github.com/bboreham/go-loser).
//
// Each internal node holds the leaf that lost the comparison between its
// children and node 0 holds the overall winner, so advancing the winner costs
// O(log n) comparisons.
//
// Values are ordered by a three-way comparison function. Values comparing equal
// are yielded in the order of the sequences passed to New, which makes the merge
// stable. Exhausted sequences drop out without needing a sentinel maximum.
//
// Basic usage:
//
//	tree := loser.New(
//	    []loser.Sequence[int]{seq1, seq2, seq3},
//	    cmp.Compare[int],
//	)
//	for v := range tree.All() {
//	    fmt.Println(v)
//	}
package loser
