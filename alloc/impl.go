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

package alloc

import (
	"fmt"

	"github.com/SnellerInc/bitcode"
)

// Budget is a heap allocator that fails with
// bitcode.ErrInsufficientMemory once more than
// a fixed number of elements would be live.
type Budget[E any] struct {
	limit int
	live  int
}

// NewBudget returns a Budget allowing
// at most limit live elements.
func NewBudget[E any](limit int) *Budget[E] {
	return &Budget[E]{limit: limit}
}

// Live returns the number of live elements.
func (b *Budget[E]) Live() int { return b.live }

func (b *Budget[E]) reserve(op string, delta int) error {
	if b.live+delta > b.limit {
		return fmt.Errorf("alloc.Budget.%s: %d live + %d > %d: %w", op, b.live, delta, b.limit, bitcode.ErrInsufficientMemory)
	}
	b.live += delta
	return nil
}

// Allocate implements Allocator.Allocate
func (b *Budget[E]) Allocate(n int) ([]E, error) {
	if n < 0 {
		return nil, badSize("Allocate", n)
	}
	if err := b.reserve("Allocate", n); err != nil {
		return nil, err
	}
	return make([]E, n), nil
}

// Resize implements Allocator.Resize
func (b *Budget[E]) Resize(s []E, n int) ([]E, error) {
	if n < 0 {
		return nil, badSize("Resize", n)
	}
	if err := b.reserve("Resize", n-len(s)); err != nil {
		return nil, err
	}
	return resize(s, n), nil
}

// Release implements Allocator.Release
func (b *Budget[E]) Release(s []E) error {
	b.live -= len(s)
	return nil
}

// Arena hands out slices that are only
// reclaimed together by ReleaseAll.
// Release of an individual slice is a no-op.
type Arena[E any] struct {
	chunks [][]E
	live   int
}

// Allocate implements Allocator.Allocate
func (a *Arena[E]) Allocate(n int) ([]E, error) {
	if n < 0 {
		return nil, badSize("Allocate", n)
	}
	mem := make([]E, n)
	a.chunks = append(a.chunks, mem)
	a.live += n
	return mem, nil
}

// Resize implements Allocator.Resize.
// The old slice stays owned by the arena.
func (a *Arena[E]) Resize(s []E, n int) ([]E, error) {
	if n < 0 {
		return nil, badSize("Resize", n)
	}
	mem, _ := a.Allocate(n)
	copy(mem, s)
	return mem, nil
}

// Release implements Allocator.Release
func (a *Arena[E]) Release(s []E) error { return nil }

// Live returns the number of elements
// allocated since the last ReleaseAll.
func (a *Arena[E]) Live() int { return a.live }

// ReleaseAll drops every allocation at once.
func (a *Arena[E]) ReleaseAll() {
	for i := range a.chunks {
		a.chunks[i] = nil
	}
	a.chunks = a.chunks[:0]
	a.live = 0
}

// Funcs adapts three functions to an Allocator.
// Every field must be set; a Funcs with a nil
// field fails with bitcode.ErrInvalidAllocator.
type Funcs[E any] struct {
	AllocateFunc func(n int) ([]E, error)
	ResizeFunc   func(s []E, n int) ([]E, error)
	ReleaseFunc  func(s []E) error
}

// Validate returns bitcode.ErrInvalidAllocator
// if any of the functions is missing.
func (f *Funcs[E]) Validate() error {
	switch {
	case f.AllocateFunc == nil:
		return fmt.Errorf("alloc.Funcs: missing AllocateFunc: %w", bitcode.ErrInvalidAllocator)
	case f.ResizeFunc == nil:
		return fmt.Errorf("alloc.Funcs: missing ResizeFunc: %w", bitcode.ErrInvalidAllocator)
	case f.ReleaseFunc == nil:
		return fmt.Errorf("alloc.Funcs: missing ReleaseFunc: %w", bitcode.ErrInvalidAllocator)
	}
	return nil
}

// Allocate implements Allocator.Allocate
func (f *Funcs[E]) Allocate(n int) ([]E, error) {
	if f.AllocateFunc == nil {
		return nil, f.Validate()
	}
	return f.AllocateFunc(n)
}

// Resize implements Allocator.Resize
func (f *Funcs[E]) Resize(s []E, n int) ([]E, error) {
	if f.ResizeFunc == nil {
		return nil, f.Validate()
	}
	return f.ResizeFunc(s, n)
}

// Release implements Allocator.Release
func (f *Funcs[E]) Release(s []E) error {
	if f.ReleaseFunc == nil {
		return f.Validate()
	}
	return f.ReleaseFunc(s)
}
