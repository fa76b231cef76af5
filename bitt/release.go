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

package bitt

import (
	"fmt"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/ints"
)

// Valid checks that ref addresses a slot of a live
// table of c whose chain of parents ends at the root.
// It returns bitcode.ErrUnrelated for references into
// other contexts or detached tables and
// bitcode.ErrInvalidSize for out-of-range indexes.
func (c *Context[T]) Valid(ref Ref) error {
	if err := c.ready("Valid"); err != nil {
		return err
	}
	if ref.owner != c.id {
		return fmt.Errorf("bitt.Context.Valid: %w", bitcode.ErrUnrelated)
	}
	t, err := c.get("Valid", ref.Table)
	if err != nil {
		return err
	}
	if ref.Index >= uint32(len(t.entries)) {
		return fmt.Errorf("bitt.Context.Valid: index %d in table of width %d: %w", ref.Index, t.width, bitcode.ErrInvalidSize)
	}
	h := ref.Table
	for steps := 0; h != c.Root(); steps++ {
		t := &c.tables[h]
		p := t.parent
		if steps > len(c.tables) || p == NoTable || int(p) >= len(c.tables) || !c.tables[p].live {
			return fmt.Errorf("bitt.Context.Valid: table %d is detached: %w", ref.Table, bitcode.ErrUnrelated)
		}
		pt := &c.tables[p]
		if t.index >= uint32(len(pt.entries)) {
			return fmt.Errorf("bitt.Context.Valid: table %d is detached: %w", ref.Table, bitcode.ErrUnrelated)
		}
		if e := &pt.entries[t.index]; e.kind != SubTable || e.child != h {
			return fmt.Errorf("bitt.Context.Valid: table %d is detached: %w", ref.Table, bitcode.ErrUnrelated)
		}
		h = p
	}
	if c.tables[h].parent != NoTable {
		return fmt.Errorf("bitt.Context.Valid: %w", bitcode.ErrUnrelated)
	}
	return nil
}

// Entry returns the entry addressed by ref.
func (c *Context[T]) Entry(ref Ref) (Entry[T], error) {
	if err := c.Valid(ref); err != nil {
		return Entry[T]{}, err
	}
	return c.tables[ref.Table].entries[ref.Index], nil
}

func (c *Context[T]) leaf(op string, ref Ref) ([]Entry[T], uint32, uint32, error) {
	if err := c.Valid(ref); err != nil {
		return nil, 0, 0, err
	}
	entries := c.tables[ref.Table].entries
	e := &entries[ref.Index]
	if !e.IsLeaf() {
		return nil, 0, 0, fmt.Errorf("bitt.Context.%s: %s entry: %w", op, e.kind, bitcode.ErrNotFound)
	}
	return entries, ref.Index & ints.Mask[uint32](e.n), uint32(1) << e.n, nil
}

// SetData replaces the payload of the leaf
// addressed by ref and of all its replicas.
func (c *Context[T]) SetData(ref Ref, v T) error {
	entries, first, step, err := c.leaf("SetData", ref)
	if err != nil {
		return err
	}
	for j := first; j < uint32(len(entries)); j += step {
		entries[j].data = v
	}
	return nil
}

// SetCallback turns the leaf addressed by ref
// into a Callback leaf. Its payload is kept.
func (c *Context[T]) SetCallback(ref Ref, fn EntryFunc, param any) error {
	if fn == nil {
		return fmt.Errorf("bitt.Context.SetCallback: %w", bitcode.ErrNullCallback)
	}
	entries, first, step, err := c.leaf("SetCallback", ref)
	if err != nil {
		return err
	}
	for j := first; j < uint32(len(entries)); j += step {
		entries[j].kind = Callback
		entries[j].fn = fn
		entries[j].param = param
	}
	return nil
}

func (c *Context[T]) drop(h Handle) error {
	t := &c.tables[h]
	if !t.live {
		return nil
	}
	for i := range t.entries {
		if t.entries[i].kind == SubTable {
			if err := c.drop(t.entries[i].child); err != nil {
				return err
			}
		}
	}
	t = &c.tables[h]
	err := c.alloc.Release(t.entries)
	t.entries = nil
	t.width = 0
	t.live = false
	return err
}

// ReleaseTable releases table h and every table
// below it, children first, and clears the slot
// linking it from its parent. It is the building
// block of Release; releasing the whole Context
// is the supported way to free tables.
func (c *Context[T]) ReleaseTable(h Handle) error {
	if h == c.Root() {
		return c.Release()
	}
	t, err := c.get("ReleaseTable", h)
	if err != nil {
		return err
	}
	if p := t.parent; p != NoTable && int(p) < len(c.tables) && c.tables[p].live {
		if e := &c.tables[p].entries[t.index]; e.kind == SubTable && e.child == h {
			*e = Entry[T]{}
		}
	}
	return c.drop(h)
}

// Reset releases every table except the root
// and replaces the root with an empty table
// of the given width.
func (c *Context[T]) Reset(width int) error {
	if err := c.ready("Reset"); err != nil {
		return err
	}
	if width < 0 || width > MaxWidth || (c.maxWidth != 0 && width > int(c.maxWidth)) {
		return fmt.Errorf("bitt.Context.Reset: width %d: %w", width, bitcode.ErrInvalidParameter)
	}
	root := &c.tables[0]
	for i := range root.entries {
		if root.entries[i].kind == SubTable {
			if err := c.drop(root.entries[i].child); err != nil {
				return err
			}
		}
		root.entries[i] = Entry[T]{}
	}
	c.tables = c.tables[:1]
	mem, err := c.alloc.Resize(root.entries, 1<<width)
	if err != nil {
		return allocErr("Reset", err)
	}
	root.entries = mem
	root.width = uint8(width)
	return nil
}

// Release frees every table of c, children
// before parents. The Context cannot be used
// afterwards. Calling Release more than once
// has no effect.
func (c *Context[T]) Release() error {
	if c.released {
		return nil
	}
	err := c.drop(c.Root())
	c.tables = nil
	c.released = true
	return err
}
