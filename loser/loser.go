// Package loser Taken from talk: https://github.com/bboreham/go-loser/blob/iter/tree.go.
// Thank you Bryan
package loser

import (
	"iter"
)

type Sequence[E any] interface {
	All() iter.Seq[E]
}

// New returns a tree merging sequences, each of which must already be ordered
// by cmp. Equal values are yielded in sequence order.
func New[E any](sequences []Sequence[E], cmp func(E, E) int) *Tree[E] {
	t := Tree[E]{
		nodes:     make([]node[E], len(sequences)*2),
		sequences: sequences,
		cmp:       cmp,
	}
	return &t
}

// A loser tree is a binary tree laid out such that nodes N and N+1 have parent N/2.
// We store M leaf nodes in positions M...2M-1, and M-1 internal nodes in positions 1..M-1.
// Node 0 is a special node, containing the winner of the contest.
type Tree[E any] struct {
	nodes     []node[E]
	sequences []Sequence[E]
	cmp       func(E, E) int
}

type node[E any] struct {
	index int              // Leaf position of the loser for internal nodes, of the winner for node 0.
	value E                // Current head, leaf nodes only.
	done  bool             // Leaf sequence is exhausted.
	next  func() (E, bool) // Only populated for leaf nodes.
}

func (t *Tree[E]) moveNext(index int) bool {
	n := &t.nodes[index]
	if v, ok := n.next(); ok {
		n.value = v
		return true
	}
	var zero E
	n.value = zero
	n.done = true
	return false
}

// All yields the merged values. The tree can be iterated once.
func (t *Tree[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		if len(t.nodes) == 0 {
			return
		}
		for i, s := range t.sequences {
			next, stop := iter.Pull(s.All())
			t.nodes[i+len(t.sequences)].next = next
			//nolint:gocritic // is not a leak.
			defer stop()
			t.moveNext(i + len(t.sequences)) // Call next() on each item to get the first value.
		}
		t.initialize()
		for {
			winner := t.nodes[0].index
			if t.nodes[winner].done || !yield(t.nodes[winner].value) {
				return
			}
			t.moveNext(winner)
			t.replayGames(winner)
		}
	}
}

func (t *Tree[E]) initialize() {
	t.nodes[0].index = t.playGame(1)
}

// beats reports whether leaf a wins against leaf b. Exhausted leaves always
// lose; ties go to the earlier sequence.
func (t *Tree[E]) beats(a, b int) bool {
	na, nb := &t.nodes[a], &t.nodes[b]
	switch {
	case na.done:
		return false
	case nb.done:
		return true
	}
	if c := t.cmp(na.value, nb.value); c != 0 {
		return c < 0
	}
	return a < b
}

// Find the winner at position pos; if it is a non-leaf node, store the loser.
// pos must be >= 1 and < len(t.nodes).
func (t *Tree[E]) playGame(pos int) int {
	nodes := t.nodes
	if pos >= len(nodes)/2 {
		return pos
	}
	left := t.playGame(pos * 2)
	right := t.playGame(pos*2 + 1)
	var loser, winner int
	if t.beats(left, right) {
		loser, winner = right, left
	} else {
		loser, winner = left, right
	}
	nodes[pos].index = loser
	return winner
}

// Starting at pos, which is a winner, re-consider all values up to the root.
func (t *Tree[E]) replayGames(pos int) {
	nodes := t.nodes
	for n := parent(pos); n != 0; n = parent(n) {
		node := &nodes[n]
		if t.beats(node.index, pos) {
			// Record pos as the loser here, and the old loser is the new winner.
			node.index, pos = pos, node.index
		}
	}
	// pos is now the winner; store it in node 0.
	nodes[0].index = pos
}

func parent(i int) int { return i >> 1 }
