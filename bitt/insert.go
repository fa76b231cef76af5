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
	"encoding/binary"
	"fmt"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/bitio"
	"github.com/SnellerInc/bitcode/ints"
)

// MaxKeyLen is the longest key accepted by
// Insert and Find; use InsertBits and FindBits
// for longer keys.
const MaxKeyLen = 64

func (c *Context[T]) keyReader(op string, r *bitio.Reader, buf *[8]byte, key uint64, n int) error {
	if n < 1 || n > MaxKeyLen {
		return fmt.Errorf("bitt.Context.%s: key length %d: %w", op, n, bitcode.ErrInvalidParameter)
	}
	binary.LittleEndian.PutUint64(buf[:], key)
	return r.Init(buf[:], 0, n)
}

// Insert adds a Data leaf holding v for the
// low n bits of key and returns a reference
// to its base slot.
//
// Insert fails with bitcode.ErrEntryOccupied if
// the key collides with an existing entry, i.e.
// if a leaf is a prefix of key or key is a prefix
// of an existing entry. Child tables created before
// a failure are left in place.
func (c *Context[T]) Insert(key uint64, n int, v T) (Ref, error) {
	var r bitio.Reader
	var buf [8]byte
	if err := c.keyReader("Insert", &r, &buf, key, n); err != nil {
		return Ref{}, err
	}
	return c.insert(&r, Entry[T]{kind: Data, data: v})
}

// InsertBits is like Insert, but the key
// is the first n bits of key.
func (c *Context[T]) InsertBits(key []byte, n int, v T) (Ref, error) {
	var r bitio.Reader
	if err := r.Init(key, 0, n); err != nil {
		return Ref{}, err
	}
	return c.insert(&r, Entry[T]{kind: Data, data: v})
}

// InsertFunc is like Insert, but adds
// a Callback leaf invoking fn with param.
func (c *Context[T]) InsertFunc(key uint64, n int, fn EntryFunc, param any) (Ref, error) {
	if fn == nil {
		return Ref{}, fmt.Errorf("bitt.Context.InsertFunc: %w", bitcode.ErrNullCallback)
	}
	var r bitio.Reader
	var buf [8]byte
	if err := c.keyReader("InsertFunc", &r, &buf, key, n); err != nil {
		return Ref{}, err
	}
	return c.insert(&r, Entry[T]{kind: Callback, fn: fn, param: param})
}

func (c *Context[T]) insert(r *bitio.Reader, leaf Entry[T]) (Ref, error) {
	if err := c.ready("Insert"); err != nil {
		return Ref{}, err
	}
	h := c.Root()
	for {
		t := &c.tables[h]
		w := int(t.width)
		if w == 0 {
			return Ref{}, fmt.Errorf("bitt.Context.Insert: table %d is empty: %w", h, bitcode.ErrInvalidState)
		}
		k := ints.Min(r.Remaining(), w)
		idx, _ := r.Peek(k)
		r.Skip(k)
		if r.Finished() {
			return c.place(h, idx, k, leaf)
		}
		switch e := &t.entries[idx]; e.kind {
		case SubTable:
			h = e.child
		case Unused:
			child, err := c.link(h, idx, uint8(ints.Min(r.Remaining(), int(c.stride))))
			if err != nil {
				return Ref{}, err
			}
			h = child
		default:
			return Ref{}, fmt.Errorf("bitt.Context.Insert: slot %d of table %d holds %s: %w", idx, h, e.kind, bitcode.ErrEntryOccupied)
		}
	}
}

func (c *Context[T]) link(h Handle, idx uint32, w uint8) (Handle, error) {
	child, err := c.newTable(h, idx, w)
	if err != nil {
		return NoTable, err
	}
	// newTable may have moved c.tables
	e := &c.tables[h].entries[idx]
	e.kind = SubTable
	e.child = child
	e.n = c.tables[h].width
	return child, nil
}

func (c *Context[T]) place(h Handle, idx uint32, n int, leaf Entry[T]) (Ref, error) {
	t := &c.tables[h]
	if n < 1 || n > int(t.width) {
		return Ref{}, fmt.Errorf("bitt.Context.Place: %d bits in table of width %d: %w", n, t.width, bitcode.ErrInvalidParameter)
	}
	idx &= ints.Mask[uint32](n)
	step := uint32(1) << n
	for j := idx; j < uint32(len(t.entries)); j += step {
		if k := t.entries[j].kind; k != Unused {
			return Ref{}, fmt.Errorf("bitt.Context.Place: slot %d of table %d holds %s: %w", j, h, k, bitcode.ErrEntryOccupied)
		}
	}
	leaf.n = uint8(n)
	for j := idx; j < uint32(len(t.entries)); j += step {
		t.entries[j] = leaf
	}
	return Ref{owner: c.id, Table: h, Index: idx}, nil
}

// Grow widens table h to width w, replicating
// every entry into the new slots that share its
// low-order index bits. Growing to a width that is
// not larger than the current one does nothing.
//
// Grow fails with bitcode.ErrInvalidState if w
// exceeds the table's maximum width or if the table
// already links to child tables.
func (c *Context[T]) Grow(h Handle, w int) error {
	t, err := c.get("Grow", h)
	if err != nil {
		return err
	}
	old := int(t.width)
	if w <= old {
		return nil
	}
	if w > int(c.limit(t)) {
		return fmt.Errorf("bitt.Context.Grow: width %d exceeds %d: %w", w, c.limit(t), bitcode.ErrInvalidState)
	}
	for i := range t.entries {
		if t.entries[i].kind == SubTable {
			return fmt.Errorf("bitt.Context.Grow: table %d has children: %w", h, bitcode.ErrInvalidState)
		}
	}
	mem, err := c.alloc.Resize(t.entries, 1<<w)
	if err != nil {
		return allocErr("Grow", err)
	}
	low := ints.Mask[uint32](old)
	for j := uint32(1) << old; j < uint32(len(mem)); j++ {
		mem[j] = mem[j&low]
	}
	t.entries = mem
	t.width = uint8(w)
	return nil
}

// Link returns the child table linked from
// slot index of table h, creating a child of
// width w if the slot is unused. It fails with
// bitcode.ErrEntryOccupied if the slot is a leaf.
func (c *Context[T]) Link(h Handle, index uint32, w int) (Handle, error) {
	t, err := c.get("Link", h)
	if err != nil {
		return NoTable, err
	}
	if index >= uint32(len(t.entries)) {
		return NoTable, fmt.Errorf("bitt.Context.Link: index %d in table of width %d: %w", index, t.width, bitcode.ErrInvalidSize)
	}
	if w < 0 || w > MaxWidth {
		return NoTable, fmt.Errorf("bitt.Context.Link: width %d: %w", w, bitcode.ErrInvalidParameter)
	}
	switch e := t.entries[index]; e.kind {
	case SubTable:
		return e.child, nil
	case Unused:
		return c.link(h, index, uint8(w))
	default:
		return NoTable, fmt.Errorf("bitt.Context.Link: slot %d of table %d holds %s: %w", index, h, e.kind, bitcode.ErrEntryOccupied)
	}
}

// Place stores a Data leaf holding v that consumes
// the low n bits of index in table h. Every slot
// matching those bits must be unused.
func (c *Context[T]) Place(h Handle, index uint32, n int, v T) (Ref, error) {
	if _, err := c.get("Place", h); err != nil {
		return Ref{}, err
	}
	return c.place(h, index, n, Entry[T]{kind: Data, data: v})
}

// Find returns a reference to the leaf whose key
// is exactly the low n bits of key.
//
// Find fails with bitcode.ErrNotFound if no such
// leaf exists or the key ends at a child table,
// and with bitcode.ErrInvalidParameter if the key
// continues past a leaf.
func (c *Context[T]) Find(key uint64, n int) (Ref, error) {
	var r bitio.Reader
	var buf [8]byte
	if err := c.keyReader("Find", &r, &buf, key, n); err != nil {
		return Ref{}, err
	}
	return c.find(&r)
}

// FindBits is like Find, but the key
// is the first n bits of key.
func (c *Context[T]) FindBits(key []byte, n int) (Ref, error) {
	var r bitio.Reader
	if err := r.Init(key, 0, n); err != nil {
		return Ref{}, err
	}
	return c.find(&r)
}

func (c *Context[T]) find(r *bitio.Reader) (Ref, error) {
	if err := c.ready("Find"); err != nil {
		return Ref{}, err
	}
	h := c.Root()
	for {
		t := &c.tables[h]
		w := int(t.width)
		if w == 0 {
			return Ref{}, fmt.Errorf("bitt.Context.Find: %w", bitcode.ErrNotFound)
		}
		k := ints.Min(r.Remaining(), w)
		idx, _ := r.Peek(k)
		r.Skip(k)
		e := &t.entries[idx]
		if e.kind == SubTable {
			if r.Finished() {
				return Ref{}, fmt.Errorf("bitt.Context.Find: key ends at table %d: %w", e.child, bitcode.ErrNotFound)
			}
			h = e.child
			continue
		}
		switch {
		case e.kind == Unused:
			return Ref{}, fmt.Errorf("bitt.Context.Find: %w", bitcode.ErrNotFound)
		case !r.Finished():
			return Ref{}, fmt.Errorf("bitt.Context.Find: %d bits left after %s entry: %w", r.Remaining(), e.kind, bitcode.ErrInvalidParameter)
		case int(e.n) < k:
			return Ref{}, fmt.Errorf("bitt.Context.Find: key extends %d-bit leaf: %w", e.n, bitcode.ErrInvalidParameter)
		case int(e.n) > k:
			return Ref{}, fmt.Errorf("bitt.Context.Find: key is a prefix of a %d-bit leaf: %w", e.n, bitcode.ErrNotFound)
		}
		return Ref{owner: c.id, Table: h, Index: idx}, nil
	}
}
