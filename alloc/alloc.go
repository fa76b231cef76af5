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

// Package alloc defines the storage allocator
// capability used to back bit tables and
// code lists, along with a few implementations.
package alloc

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/SnellerInc/bitcode"
)

// Allocator manages slices of E.
//
// Allocate returns a zeroed slice of length n.
// Resize returns a slice of length n whose first
// min(len(s), n) elements are those of s and whose
// remaining elements are zero; s must not be used
// after a successful Resize. Release returns s to
// the allocator.
//
// Allocators are not required to be safe for
// concurrent use.
type Allocator[E any] interface {
	Allocate(n int) ([]E, error)
	Resize(s []E, n int) ([]E, error)
	Release(s []E) error
}

type validator interface {
	Validate() error
}

// Check returns bitcode.ErrInvalidAllocator if a
// is nil or is missing one of its operations.
func Check[E any](a Allocator[E]) error {
	if a == nil {
		return fmt.Errorf("alloc.Check: nil allocator: %w", bitcode.ErrInvalidAllocator)
	}
	if v, ok := a.(validator); ok {
		return v.Validate()
	}
	return nil
}

func badSize(op string, n int) error {
	return fmt.Errorf("alloc: %s(%d): %w", op, n, bitcode.ErrInvalidParameter)
}

func zero[E any](s []E) {
	var z E
	for i := range s {
		s[i] = z
	}
}

// resize grows or shrinks s in place when possible.
func resize[E any](s []E, n int) []E {
	if n <= len(s) {
		zero(s[n:])
		return s[:n]
	}
	old := len(s)
	s = slices.Grow(s, n-old)[:n]
	zero(s[old:])
	return s
}

// Heap allocates from the Go heap.
// It is the default allocator.
type Heap[E any] struct{}

// Allocate implements Allocator.Allocate
func (Heap[E]) Allocate(n int) ([]E, error) {
	if n < 0 {
		return nil, badSize("Allocate", n)
	}
	return make([]E, n), nil
}

// Resize implements Allocator.Resize
func (Heap[E]) Resize(s []E, n int) ([]E, error) {
	if n < 0 {
		return nil, badSize("Resize", n)
	}
	return resize(s, n), nil
}

// Release implements Allocator.Release
func (Heap[E]) Release(s []E) error { return nil }

// Default returns the default allocator for E.
func Default[E any]() Allocator[E] { return Heap[E]{} }
