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

package huff

import (
	"errors"
	"fmt"
	"log"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/alloc"
	"github.com/SnellerInc/bitcode/bitt"
)

// Context owns a set of decoder tables along
// with the allocators backing them, a default
// code list and a default maximum table width.
//
// Closing the Context releases every table
// created through it.
type Context struct {
	alloc     alloc.Allocator[bitt.Entry[Leaf]]
	codeAlloc alloc.Allocator[CodeDesc]
	codes     []CodeDesc
	maxWidth  int
	tables    []*Table
	logger    *log.Logger
	closed    bool
}

// Option is an optional argument to NewContext.
type Option func(c *Context)

// WithAllocator sets the allocator used
// for the entries of every table.
func WithAllocator(a alloc.Allocator[bitt.Entry[Leaf]]) Option {
	return func(c *Context) {
		c.alloc = a
	}
}

// WithCodeAllocator sets the allocator
// used for the default code list.
func WithCodeAllocator(a alloc.Allocator[CodeDesc]) Option {
	return func(c *Context) {
		c.codeAlloc = a
	}
}

// WithMaxWidth sets the default maximum width
// of a table level. Zero means unlimited.
func WithMaxWidth(w int) Option {
	return func(c *Context) {
		c.maxWidth = w
	}
}

// WithLogger is an option that can be
// passed to NewContext to have it log
// diagnostic information. If no logger
// is set, nothing is logged.
func WithLogger(l *log.Logger) Option {
	return func(c *Context) {
		c.logger = l
	}
}

// NewContext returns an empty Context.
func NewContext(opts ...Option) (*Context, error) {
	c := &Context{
		alloc:     alloc.Default[bitt.Entry[Leaf]](),
		codeAlloc: alloc.Default[CodeDesc](),
	}
	for i := range opts {
		opts[i](c)
	}
	if err := alloc.Check(c.alloc); err != nil {
		return nil, fmt.Errorf("huff.NewContext: %w", err)
	}
	if err := alloc.Check(c.codeAlloc); err != nil {
		return nil, fmt.Errorf("huff.NewContext: %w", err)
	}
	if err := checkWidth(c.maxWidth); err != nil {
		return nil, fmt.Errorf("huff.NewContext: %w", err)
	}
	return c, nil
}

func checkWidth(w int) error {
	if w < 0 || w > bitt.MaxWidth {
		return fmt.Errorf("max width %d: %w", w, bitcode.ErrInvalidParameter)
	}
	return nil
}

func (c *Context) errorf(f string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(f, args...)
	}
}

func (c *Context) ready(op string) error {
	if c.closed {
		return fmt.Errorf("huff.Context.%s: context closed: %w", op, bitcode.ErrInvalidState)
	}
	return nil
}

// MaxWidth returns the default maximum table width.
func (c *Context) MaxWidth() int { return c.maxWidth }

// SetMaxWidth sets the default maximum table width
// for tables created afterwards. Zero means unlimited.
func (c *Context) SetMaxWidth(w int) error {
	if err := checkWidth(w); err != nil {
		return fmt.Errorf("huff.Context.SetMaxWidth: %w", err)
	}
	c.maxWidth = w
	return nil
}

// AppendCodes appends descs to the default code
// list used by tables created without codes.
// The descriptors are validated first; on error
// the list is unchanged.
func (c *Context) AppendCodes(descs []CodeDesc) error {
	if err := c.ready("AppendCodes"); err != nil {
		return err
	}
	for i := range descs {
		if _, err := leafFor(&descs[i]); err != nil {
			return fmt.Errorf("huff.Context.AppendCodes: code %d: %w", i, err)
		}
	}
	old := len(c.codes)
	var (
		mem []CodeDesc
		err error
	)
	if c.codes == nil {
		mem, err = c.codeAlloc.Allocate(len(descs))
	} else {
		mem, err = c.codeAlloc.Resize(c.codes, old+len(descs))
	}
	if err != nil {
		if !errors.Is(err, bitcode.ErrInsufficientMemory) {
			err = fmt.Errorf("%w: %s", bitcode.ErrInsufficientMemory, err)
		}
		return fmt.Errorf("huff.Context.AppendCodes: %w", err)
	}
	copy(mem[old:], descs)
	c.codes = mem
	return nil
}

// Codes returns the default code list.
// The returned slice must not be modified.
func (c *Context) Codes() []CodeDesc { return c.codes[:len(c.codes):len(c.codes)] }

// NewTable creates a table whose root level starts
// with the given width and appends descs to it, or
// the default code list if descs is nil. A width of
// zero starts with an empty root that grows as codes
// are added.
//
// If the table cannot be fully initialized, NewTable
// returns the partially built table along with the
// error. The caller may retry with Table.Init or
// drop it with Table.Release; either way it stays
// owned by c until c is closed.
func (c *Context) NewTable(width int, descs []CodeDesc, opts ...TableOption) (*Table, error) {
	if err := c.ready("NewTable"); err != nil {
		return nil, err
	}
	t := &Table{ctx: c}
	for i := range opts {
		opts[i](t)
	}
	c.tables = append(c.tables, t)
	if err := t.Init(width, descs); err != nil {
		c.errorf("huff: table initialization failed (returned for retry): %s", err)
		return t, err
	}
	return t, nil
}

// Close releases every table created by c
// along with the default code list.
// The Context cannot be used afterwards.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	var first error
	for _, t := range c.tables {
		if err := t.Release(); err != nil && first == nil {
			first = err
		}
	}
	c.tables = nil
	if c.codes != nil {
		if err := c.codeAlloc.Release(c.codes); err != nil && first == nil {
			first = err
		}
		c.codes = nil
	}
	type releaseAller interface{ ReleaseAll() }
	if ra, ok := c.alloc.(releaseAller); ok {
		ra.ReleaseAll()
	}
	if ra, ok := c.codeAlloc.(releaseAller); ok {
		ra.ReleaseAll()
	}
	c.closed = true
	return first
}
