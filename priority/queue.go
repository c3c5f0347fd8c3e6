// Package priority implements a keyed priority queue ordered by a caller
// supplied less function. It backs the alternative merge frontier, where keys
// are source indexes and values are the current head record of each source.
//
// Items are held in a google/btree ordered by value and then by key, so items
// with equal values pop in key order. A map from key to item gives O(1) Get
// and lets Set and Remove locate an item without scanning.
package priority

import (
	"cmp"

	"github.com/google/btree"
)

const degree = 8

// item represents an item in the value queue.
type item[K cmp.Ordered, V any] struct {
	key   K
	value V
}

// Queue is a priority queue of unique keys.
type Queue[K cmp.Ordered, V any] struct {
	tree  *btree.BTreeG[item[K, V]]
	items map[K]item[K, V]
}

// NewQueue creates a new priority queue. less returns true if a has higher
// priority than b.
func NewQueue[K cmp.Ordered, V any](less func(a, b V) bool) *Queue[K, V] {
	return &Queue[K, V]{
		tree: btree.NewG(degree, func(a, b item[K, V]) bool {
			if less(a.value, b.value) {
				return true
			}
			if less(b.value, a.value) {
				return false
			}
			return a.key < b.key
		}),
		items: make(map[K]item[K, V]),
	}
}

// Len returns the number of items in the queue.
func (pq *Queue[K, V]) Len() int {
	return len(pq.items)
}

// Get returns the value stored for key.
func (pq *Queue[K, V]) Get(key K) (V, bool) {
	i, ok := pq.items[key]
	return i.value, ok
}

// Set adds a new key or updates an existing key's value.
func (pq *Queue[K, V]) Set(key K, value V) {
	if old, ok := pq.items[key]; ok {
		pq.tree.Delete(old)
	}
	i := item[K, V]{key: key, value: value}
	pq.items[key] = i
	pq.tree.ReplaceOrInsert(i)
}

// Remove removes the given key from the queue.
func (pq *Queue[K, V]) Remove(key K) {
	i, ok := pq.items[key]
	if !ok {
		return
	}
	pq.tree.Delete(i)
	delete(pq.items, key)
}

// Pop removes and returns the highest priority item.
func (pq *Queue[K, V]) Pop() (key K, value V, exists bool) {
	i, ok := pq.tree.DeleteMin()
	if !ok {
		return key, value, false
	}
	delete(pq.items, i.key)
	return i.key, i.value, true
}

// Peek returns the highest priority item without removing it.
func (pq *Queue[K, V]) Peek() (key K, value V, exists bool) {
	i, ok := pq.tree.Min()
	if !ok {
		return key, value, false
	}
	return i.key, i.value, true
}
