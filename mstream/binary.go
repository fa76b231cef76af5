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

// Package mstream decodes binaries made of several
// independently coded bit streams.
//
// A Binary holds a list of Streams, each of which
// pairs a bit range with the huff.Table used to
// decode it. Binary.DecodeAll hands each stream to a
// Client, which decides whether streams are decoded
// inline or concurrently. Streams 1 through n-1 are
// always launched, and waited for, before stream 0.
package mstream

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/bitio"
	"github.com/SnellerInc/bitcode/huff"
)

// Block is a sub-range of a stream. Offset
// counts bits from the start of the stream
// data, as does the offset of the stream.
type Block struct {
	Offset int
	Length int
}

// Stream is one coded bit range of a Binary.
type Stream struct {
	data   []byte
	off, n int
	table  *huff.Table
	blocks []Block
	binary *Binary
	index  int
}

// Index returns the position of s in its Binary.
func (s *Stream) Index() int { return s.index }

// Range returns the bit offset and
// bit count of the stream data.
func (s *Stream) Range() (off, n int) { return s.off, s.n }

// Data returns the bytes holding the stream.
func (s *Stream) Data() []byte { return s.data }

// Table returns the table decoding s: the table
// given to SetStream, or else the Binary default.
func (s *Stream) Table() *huff.Table {
	if s.table != nil {
		return s.table
	}
	return s.binary.def
}

// Blocks returns the number of blocks in s.
func (s *Stream) Blocks() int { return len(s.blocks) }

func (s *Stream) configured() bool { return s.data != nil }

// Decode decodes every code of s, passing
// one Symbol per decoded leaf to sink.
// A sink returning bitcode.Stop ends the
// decode early without an error.
func (s *Stream) Decode(sink Sink) error {
	return s.decode(-1, s.off, s.n, sink)
}

// DecodeBlock is like Decode but only
// decodes the range of block i.
func (s *Stream) DecodeBlock(i int, sink Sink) error {
	if i < 0 || i >= len(s.blocks) {
		return fmt.Errorf("mstream.Stream.DecodeBlock: block %d of %d: %w", i, len(s.blocks), bitcode.ErrInvalidParameter)
	}
	b := s.blocks[i]
	if b.Length == 0 {
		return fmt.Errorf("mstream.Stream.DecodeBlock: block %d is not set: %w", i, bitcode.ErrInvalidState)
	}
	return s.decode(i, b.Offset, b.Length, sink)
}

func (s *Stream) decode(block, off, n int, sink Sink) error {
	if sink == nil {
		return fmt.Errorf("mstream.Stream.Decode: nil sink: %w", bitcode.ErrInvalidParameter)
	}
	if !s.configured() {
		return fmt.Errorf("mstream.Stream.Decode: stream %d is not set: %w", s.index, bitcode.ErrInvalidState)
	}
	tbl := s.Table()
	if tbl == nil {
		return fmt.Errorf("mstream.Stream.Decode: stream %d has no table: %w", s.index, bitcode.ErrInvalidState)
	}
	var r bitio.Reader
	if err := r.Init(s.data, off, n); err != nil {
		return fmt.Errorf("mstream.Stream.Decode: %w", err)
	}
	err := tbl.DecodeReader(&r, func(l huff.Leaf) error {
		return sink.Emit(Symbol{Stream: s.index, Block: block, Leaf: l})
	})
	if err != nil {
		return fmt.Errorf("mstream.Stream.Decode: stream %d: %w", s.index, err)
	}
	return nil
}

// Binary is an ordered list of streams
// sharing a default decoder table.
//
// A Binary is configured from a single goroutine;
// once configured, DecodeAll may run its streams
// concurrently, since decoding never modifies
// tables or stream data.
type Binary struct {
	streams []*Stream
	def     *huff.Table
	logger  *log.Logger
}

// Option is an optional argument to NewBinary.
type Option func(b *Binary)

// WithLogger is an option that can be
// passed to NewBinary to have it log
// stream launches and failures.
// If no logger is set, nothing is logged.
func WithLogger(l *log.Logger) Option {
	return func(b *Binary) {
		b.logger = l
	}
}

// NewBinary returns a Binary with n unset
// streams and the default table def,
// which may be nil if every stream is
// given its own table.
func NewBinary(def *huff.Table, n int, opts ...Option) (*Binary, error) {
	b := &Binary{def: def}
	for i := range opts {
		opts[i](b)
	}
	if err := b.SetStreamCount(n); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Binary) logf(f string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(f, args...)
	}
}

// Default returns the default table.
func (b *Binary) Default() *huff.Table { return b.def }

// SetDefault sets the default table used by
// streams that were set without a table.
func (b *Binary) SetDefault(t *huff.Table) { b.def = t }

// StreamCount returns the number of streams.
func (b *Binary) StreamCount() int { return len(b.streams) }

// SetStreamCount sets the number of streams.
// Existing streams below n are kept; new
// streams are unset.
func (b *Binary) SetStreamCount(n int) error {
	if n < 1 {
		return fmt.Errorf("mstream.Binary.SetStreamCount: %d streams: %w", n, bitcode.ErrInvalidParameter)
	}
	if n <= len(b.streams) {
		b.streams = b.streams[:n:n]
		return nil
	}
	for i := len(b.streams); i < n; i++ {
		b.streams = append(b.streams, &Stream{binary: b, index: i})
	}
	return nil
}

func (b *Binary) stream(op string, i int) (*Stream, error) {
	if i < 0 || i >= len(b.streams) {
		return nil, fmt.Errorf("mstream.Binary.%s: stream %d of %d: %w", op, i, len(b.streams), bitcode.ErrInvalidParameter)
	}
	return b.streams[i], nil
}

// Stream returns stream i.
func (b *Binary) Stream(i int) (*Stream, error) { return b.stream("Stream", i) }

// SetStream sets stream i to the n bits of data
// starting at bit off, decoded with tbl, or with
// the default table if tbl is nil.
// Any blocks of the stream are dropped.
func (b *Binary) SetStream(i int, data []byte, off, n int, tbl *huff.Table) error {
	s, err := b.stream("SetStream", i)
	if err != nil {
		return err
	}
	if tbl == nil && b.def == nil {
		return fmt.Errorf("mstream.Binary.SetStream: stream %d: no table and no default: %w", i, bitcode.ErrInvalidState)
	}
	var r bitio.Reader
	if err := r.Init(data, off, n); err != nil {
		return fmt.Errorf("mstream.Binary.SetStream: stream %d: %w", i, err)
	}
	s.data = data
	s.off, s.n = off, n
	s.table = tbl
	s.blocks = nil
	return nil
}

// SetBlockCount sets the number of blocks
// of stream s. Existing blocks below n
// are kept; new blocks are unset.
func (b *Binary) SetBlockCount(s, n int) error {
	st, err := b.stream("SetBlockCount", s)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("mstream.Binary.SetBlockCount: %d blocks: %w", n, bitcode.ErrInvalidParameter)
	}
	if !st.configured() {
		return fmt.Errorf("mstream.Binary.SetBlockCount: stream %d is not set: %w", s, bitcode.ErrInvalidState)
	}
	if n <= len(st.blocks) {
		st.blocks = st.blocks[:n:n]
	} else {
		st.blocks = append(st.blocks, make([]Block, n-len(st.blocks))...)
	}
	return nil
}

// SetBlock sets block i of stream s to the n bits
// starting at bit off. The block must lie within
// the range of the stream.
func (b *Binary) SetBlock(s, i, off, n int) error {
	st, err := b.stream("SetBlock", s)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(st.blocks) {
		return fmt.Errorf("mstream.Binary.SetBlock: block %d of %d: %w", i, len(st.blocks), bitcode.ErrInvalidParameter)
	}
	if n <= 0 || off < st.off || off+n > st.off+st.n {
		return fmt.Errorf("mstream.Binary.SetBlock: bits [%d, %d) outside stream [%d, %d): %w",
			off, off+n, st.off, st.off+st.n, bitcode.ErrInvalidParameter)
	}
	st.blocks[i] = Block{Offset: off, Length: n}
	return nil
}

// Block returns block i of stream s.
func (b *Binary) Block(s, i int) (Block, error) {
	st, err := b.stream("Block", s)
	if err != nil {
		return Block{}, err
	}
	if i < 0 || i >= len(st.blocks) {
		return Block{}, fmt.Errorf("mstream.Binary.Block: block %d of %d: %w", i, len(st.blocks), bitcode.ErrInvalidParameter)
	}
	return st.blocks[i], nil
}

// DecodeAll launches the decoding of every stream
// through c, streams 1 through n-1 first in ascending
// order and stream 0 last. If c is a Barrier, its
// Wait method is called after stream n-1 has been
// launched and again after stream 0, so stream 0 does
// not start until the other streams have completed.
// If c is a Notifier, it is told the launch result
// of every stream.
//
// DecodeAll stops at the first failure.
func (b *Binary) DecodeAll(c Client, sink Sink) error {
	if c == nil {
		return fmt.Errorf("mstream.Binary.DecodeAll: nil client: %w", bitcode.ErrInvalidInterface)
	}
	if sink == nil {
		return fmt.Errorf("mstream.Binary.DecodeAll: nil sink: %w", bitcode.ErrInvalidParameter)
	}
	for _, s := range b.streams {
		if !s.configured() {
			return fmt.Errorf("mstream.Binary.DecodeAll: stream %d is not set: %w", s.index, bitcode.ErrInvalidState)
		}
	}
	id := uuid.New().String()
	barrier, _ := c.(Barrier)
	notifier, _ := c.(Notifier)
	launch := func(s *Stream) error {
		b.logf("mstream: request %s: launching stream %d (%d bits)", id, s.index, s.n)
		err := c.Launch(s, sink)
		if notifier != nil {
			notifier.NotifyStatus(s.index, err)
		}
		if err != nil {
			b.logf("mstream: request %s: stream %d: %s", id, s.index, err)
			return fmt.Errorf("mstream.Binary.DecodeAll: stream %d: %w", s.index, err)
		}
		return nil
	}
	wait := func() error {
		if barrier == nil {
			return nil
		}
		if err := barrier.Wait(); err != nil {
			b.logf("mstream: request %s: %s", id, err)
			return fmt.Errorf("mstream.Binary.DecodeAll: %w", err)
		}
		return nil
	}
	// fail reaps streams that are still running
	fail := func(err error) error {
		if werr := wait(); werr != nil {
			return fmt.Errorf("%w (also: %s)", err, werr)
		}
		return err
	}
	for _, s := range b.streams[1:] {
		if err := launch(s); err != nil {
			return fail(err)
		}
	}
	if err := wait(); err != nil {
		return err
	}
	if err := launch(b.streams[0]); err != nil {
		return fail(err)
	}
	return wait()
}
