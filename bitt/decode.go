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
	"errors"
	"fmt"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/bitio"
	"github.com/SnellerInc/bitcode/ints"
)

// Visitor receives the payload of every
// Data leaf reached by Decode.
// Returning bitcode.Stop ends the scan.
type Visitor[T any] func(v T) error

// Decode decodes the n bits of buf starting
// at bit off as a sequence of keys.
//
// For each key it reaches, Decode calls visit
// with the payload of a Data leaf or invokes
// the function of a Callback leaf. Any error
// other than bitcode.Stop aborts the scan and
// is returned. Decode returns bitcode.ErrNoMoreData
// if the input ends inside a key and
// bitcode.ErrInvalidData if the input does not
// match any key.
func (c *Context[T]) Decode(buf []byte, off, n int, visit Visitor[T]) error {
	var r bitio.Reader
	if err := r.Init(buf, off, n); err != nil {
		return err
	}
	return c.DecodeReader(&r, visit)
}

// DecodeReader is like Decode, but reads keys
// from r until it is finished.
func (c *Context[T]) DecodeReader(r *bitio.Reader, visit Visitor[T]) error {
	if err := c.ready("Decode"); err != nil {
		return err
	}
	start := r.Remaining()
	for !r.Finished() {
		pos := start - r.Remaining()
		ref, e, err := c.Next(r)
		if err != nil {
			return fmt.Errorf("bitt: decode at bit %d: %w", pos, err)
		}
		switch e.kind {
		case Data:
			if visit == nil {
				return fmt.Errorf("bitt: decode at bit %d: no visitor: %w", pos, bitcode.ErrNullCallback)
			}
			err = visit(e.data)
		case Callback:
			if e.fn == nil {
				return fmt.Errorf("bitt: decode at bit %d: %w", pos, bitcode.ErrNullCallback)
			}
			err = e.fn(e.param, ref)
		}
		if err != nil {
			if errors.Is(err, bitcode.Stop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Next consumes the bits of one key from r and
// returns the leaf it resolves to. On error, the
// position of r is unspecified.
func (c *Context[T]) Next(r *bitio.Reader) (Ref, Entry[T], error) {
	h := c.Root()
	for {
		t := &c.tables[h]
		w := int(t.width)
		if w == 0 {
			return Ref{}, Entry[T]{}, fmt.Errorf("table %d is empty: %w", h, bitcode.ErrInvalidState)
		}
		v, got := r.Peek(w)
		e := &t.entries[v]
		switch e.kind {
		case SubTable:
			if got < w {
				return Ref{}, Entry[T]{}, bitcode.ErrNoMoreData
			}
			r.Skip(w)
			if r.Finished() {
				return Ref{}, Entry[T]{}, bitcode.ErrNoMoreData
			}
			h = e.child
		case Unused:
			if got < w {
				return Ref{}, Entry[T]{}, bitcode.ErrNoMoreData
			}
			return Ref{}, Entry[T]{}, bitcode.ErrInvalidData
		default:
			n := int(e.n)
			if n > got {
				return Ref{}, Entry[T]{}, bitcode.ErrNoMoreData
			}
			r.Skip(n)
			return Ref{owner: c.id, Table: h, Index: v & ints.Mask[uint32](n)}, *e, nil
		}
	}
}
