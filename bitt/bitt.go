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

// Package bitt implements a bit-indexed trie.
//
// A trie is a tree of tables. Each table holds
// exactly 1<<width entries and is indexed by the
// next width bits of a key, least significant
// bit first. An entry is either unused, a link
// to a child table, or a leaf. A leaf that
// consumes fewer bits than its table's width
// is replicated into every slot whose low bits
// match its key, so that lookups and decoding
// can always index a table with a full chunk.
//
// Tables are stored in an arena owned by a
// Context and addressed by Handle; the root
// table always has handle 0. Releasing the
// Context releases every table it owns.
package bitt

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/alloc"
)

const (
	// MaxWidth is the widest table a Context will create.
	MaxWidth = 24
	// DefaultStride is the default chunk width.
	DefaultStride = 8
)

// Handle identifies a table within a Context.
type Handle uint32

// NoTable is the parent handle of the root table.
const NoTable = ^Handle(0)

// Kind is the type of an Entry.
type Kind uint8

const (
	// Unused entries have never been assigned.
	Unused Kind = iota
	// SubTable entries link to a child table.
	SubTable
	// Callback entries are leaves carrying an EntryFunc.
	Callback
	// Data entries are leaves carrying a payload.
	Data
)

func (k Kind) String() string {
	switch k {
	case Unused:
		return "unused"
	case SubTable:
		return "subtable"
	case Callback:
		return "callback"
	case Data:
		return "data"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// EntryFunc is invoked by Decode when it
// reaches a Callback entry.
type EntryFunc func(param any, ref Ref) error

// Entry is one slot of a table.
type Entry[T any] struct {
	kind  Kind
	n     uint8 // bits consumed by a leaf within its table
	child Handle
	fn    EntryFunc
	param any
	data  T
}

// Kind returns the type of the entry.
func (e Entry[T]) Kind() Kind { return e.kind }

// IsLeaf returns true for Data and Callback entries.
func (e Entry[T]) IsLeaf() bool { return e.kind == Data || e.kind == Callback }

// Len returns the number of key bits
// a leaf consumes within its table.
func (e Entry[T]) Len() int { return int(e.n) }

// Child returns the linked table of a SubTable entry.
func (e Entry[T]) Child() Handle { return e.child }

// Data returns the payload of a Data entry.
func (e Entry[T]) Data() T { return e.data }

// Callback returns the function and parameter of a Callback entry.
func (e Entry[T]) Callback() (EntryFunc, any) { return e.fn, e.param }

// Ref addresses an entry within a Context.
type Ref struct {
	owner uint64
	Table Handle
	Index uint32
}

type table[T any] struct {
	entries  []Entry[T]
	width    uint8
	maxWidth uint8
	parent   Handle
	index    uint32 // slot in parent
	live     bool
}

// TableInfo describes a table.
type TableInfo struct {
	Width       int
	MaxWidth    int
	Parent      Handle
	ParentIndex uint32
	Len         int
}

var lastID uint64

// Context is an arena of tables forming one trie.
//
// A Context must not be mutated concurrently.
// Once construction is complete, any number of
// goroutines may call Find, Valid, Entry and
// Decode at the same time.
type Context[T any] struct {
	id        uint64
	alloc     alloc.Allocator[Entry[T]]
	tables    []table[T]
	stride    uint8
	rootWidth uint8
	rootSet   bool
	maxWidth  uint8
	released  bool
}

// Option is an optional argument to New.
type Option[T any] func(c *Context[T])

// WithAllocator sets the allocator
// used for table entries.
func WithAllocator[T any](a alloc.Allocator[Entry[T]]) Option[T] {
	return func(c *Context[T]) {
		c.alloc = a
	}
}

// WithStride sets the width of child tables
// created by Insert. The default is DefaultStride.
func WithStride[T any](w int) Option[T] {
	return func(c *Context[T]) {
		c.stride = uint8(w)
		if w < 0 || w > 255 {
			c.stride = 0
		}
	}
}

// WithRootWidth sets the initial width of the
// root table. Zero creates a single-entry root
// that can only be filled through Grow.
// The default is the stride.
func WithRootWidth[T any](w int) Option[T] {
	return func(c *Context[T]) {
		c.rootWidth = uint8(w)
		c.rootSet = true
		if w < 0 || w > MaxWidth {
			c.rootWidth = MaxWidth + 1
		}
	}
}

// WithMaxWidth limits the width of every table.
// Zero means MaxWidth.
func WithMaxWidth[T any](w int) Option[T] {
	return func(c *Context[T]) {
		c.maxWidth = uint8(w)
		if w < 0 || w > MaxWidth {
			c.maxWidth = MaxWidth + 1
		}
	}
}

// New returns a Context with an empty root table.
func New[T any](opts ...Option[T]) (*Context[T], error) {
	c := &Context[T]{
		id:     atomic.AddUint64(&lastID, 1),
		alloc:  alloc.Default[Entry[T]](),
		stride: DefaultStride,
	}
	for i := range opts {
		opts[i](c)
	}
	if !c.rootSet {
		c.rootWidth = c.stride
	}
	if err := alloc.Check(c.alloc); err != nil {
		return nil, fmt.Errorf("bitt.New: %w", err)
	}
	if c.stride == 0 || c.stride > MaxWidth || c.rootWidth > MaxWidth || c.maxWidth > MaxWidth {
		return nil, fmt.Errorf("bitt.New: stride %d, root width %d, max width %d: %w",
			c.stride, c.rootWidth, c.maxWidth, bitcode.ErrInvalidParameter)
	}
	if c.maxWidth != 0 && (c.stride > c.maxWidth || c.rootWidth > c.maxWidth) {
		return nil, fmt.Errorf("bitt.New: width exceeds max width %d: %w", c.maxWidth, bitcode.ErrInvalidParameter)
	}
	if _, err := c.newTable(NoTable, 0, c.rootWidth); err != nil {
		return nil, err
	}
	return c, nil
}

// Stride returns the child table width used by Insert.
func (c *Context[T]) Stride() int { return int(c.stride) }

// MaxWidth returns the table width limit,
// or 0 if only MaxWidth applies.
func (c *Context[T]) MaxWidth() int { return int(c.maxWidth) }

// Root returns the handle of the root table.
func (c *Context[T]) Root() Handle { return 0 }

func (c *Context[T]) limit(t *table[T]) uint8 {
	if t.maxWidth != 0 {
		return t.maxWidth
	}
	return MaxWidth
}

func (c *Context[T]) ready(op string) error {
	if c.released {
		return fmt.Errorf("bitt.Context.%s: context released: %w", op, bitcode.ErrInvalidState)
	}
	return nil
}

func allocErr(op string, err error) error {
	if errors.Is(err, bitcode.ErrInsufficientMemory) ||
		errors.Is(err, bitcode.ErrInvalidAllocator) ||
		errors.Is(err, bitcode.ErrInvalidParameter) {
		return fmt.Errorf("bitt.Context.%s: %w", op, err)
	}
	return fmt.Errorf("bitt.Context.%s: %w: %s", op, bitcode.ErrInsufficientMemory, err)
}

func (c *Context[T]) newTable(parent Handle, index uint32, width uint8) (Handle, error) {
	if width > MaxWidth || (c.maxWidth != 0 && width > c.maxWidth) {
		return NoTable, fmt.Errorf("bitt.Context.newTable: width %d: %w", width, bitcode.ErrInvalidState)
	}
	mem, err := c.alloc.Allocate(1 << width)
	if err != nil {
		return NoTable, allocErr("newTable", err)
	}
	h := Handle(len(c.tables))
	c.tables = append(c.tables, table[T]{
		entries:  mem,
		width:    width,
		maxWidth: c.maxWidth,
		parent:   parent,
		index:    index,
		live:     true,
	})
	return h, nil
}

func (c *Context[T]) get(op string, h Handle) (*table[T], error) {
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if int(h) >= len(c.tables) || !c.tables[h].live {
		return nil, fmt.Errorf("bitt.Context.%s: table %d: %w", op, h, bitcode.ErrUnrelated)
	}
	return &c.tables[h], nil
}

// Table returns a description of table h.
func (c *Context[T]) Table(h Handle) (TableInfo, error) {
	t, err := c.get("Table", h)
	if err != nil {
		return TableInfo{}, err
	}
	return TableInfo{
		Width:       int(t.width),
		MaxWidth:    int(t.maxWidth),
		Parent:      t.parent,
		ParentIndex: t.index,
		Len:         len(t.entries),
	}, nil
}

// Tables returns the handles of every live table.
func (c *Context[T]) Tables() []Handle {
	var out []Handle
	for i := range c.tables {
		if c.tables[i].live {
			out = append(out, Handle(i))
		}
	}
	return out
}

// Entries returns the slots of table h.
// The returned slice must not be modified.
func (c *Context[T]) Entries(h Handle) ([]Entry[T], error) {
	t, err := c.get("Entries", h)
	if err != nil {
		return nil, err
	}
	return t.entries[:len(t.entries):len(t.entries)], nil
}

// WalkFunc is called by Walk for every table.
type WalkFunc[T any] func(h Handle, info TableInfo, entries []Entry[T]) error

// Walk calls fn for every table reachable from
// the root, each parent before its children and
// children in slot order. An error from fn stops
// the walk and is returned.
func (c *Context[T]) Walk(fn WalkFunc[T]) error {
	if err := c.ready("Walk"); err != nil {
		return err
	}
	return c.walk(c.Root(), fn)
}

func (c *Context[T]) walk(h Handle, fn WalkFunc[T]) error {
	info, err := c.Table(h)
	if err != nil {
		return err
	}
	entries, _ := c.Entries(h)
	if err := fn(h, info, entries); err != nil {
		return err
	}
	for i := range entries {
		if entries[i].kind == SubTable {
			if err := c.walk(entries[i].child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
