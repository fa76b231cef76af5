// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package heap implements a generic binary min-heap.
package heap

// Heap is a min-heap of T ordered by Less.
// The zero Heap is not usable; set Less first.
type Heap[T any] struct {
	Items []T
	Less  func(x, y T) bool
}

// New returns a heap ordered by less holding items,
// which are reordered in place.
func New[T any](items []T, less func(x, y T) bool) *Heap[T] {
	h := &Heap[T]{Items: items, Less: less}
	for i := len(items)/2 - 1; i >= 0; i-- {
		h.down(i)
	}
	return h
}

// Len returns the number of items.
func (h *Heap[T]) Len() int { return len(h.Items) }

// Push adds x.
func (h *Heap[T]) Push(x T) {
	h.Items = append(h.Items, x)
	h.up(len(h.Items) - 1)
}

// Peek returns the smallest item without removing it.
func (h *Heap[T]) Peek() T { return h.Items[0] }

// Pop removes and returns the smallest item.
// It panics if the heap is empty.
func (h *Heap[T]) Pop() T {
	ret := h.Items[0]
	last := len(h.Items) - 1
	h.Items[0] = h.Items[last]
	var zero T
	h.Items[last] = zero
	h.Items = h.Items[:last]
	if last > 0 {
		h.down(0)
	}
	return ret
}

// Fix restores ordering after Items[i] has changed.
func (h *Heap[T]) Fix(i int) {
	h.down(i)
	h.up(i)
}

func (h *Heap[T]) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.Less(h.Items[i], h.Items[p]) {
			break
		}
		h.Items[p], h.Items[i] = h.Items[i], h.Items[p]
		i = p
	}
}

func (h *Heap[T]) down(i int) {
	n := len(h.Items)
	for {
		c := 2*i + 1
		if c >= n {
			break
		}
		if r := c + 1; r < n && h.Less(h.Items[r], h.Items[c]) {
			c = r
		}
		if !h.Less(h.Items[c], h.Items[i]) {
			break
		}
		h.Items[c], h.Items[i] = h.Items[i], h.Items[c]
		i = c
	}
}
