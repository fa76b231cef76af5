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

package mstream

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/bitio"
	"github.com/SnellerInc/bitcode/huff"
)

// Symbol is one decoded leaf.
type Symbol struct {
	// Stream is the index of the stream.
	Stream int
	// Block is the index of the decoded
	// block, or -1 for a whole stream.
	Block int
	huff.Leaf
}

// Sink receives decoded symbols.
//
// A sink passed to DecodeAll with a
// concurrent Client is called from several
// goroutines at once and must be safe for
// concurrent use.
type Sink interface {
	Emit(sym Symbol) error
}

// SinkFunc is a function implementing Sink.
type SinkFunc func(sym Symbol) error

// Emit implements Sink.Emit
func (f SinkFunc) Emit(sym Symbol) error { return f(sym) }

// Collector is a Sink that keeps the symbols
// of every stream. It is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	streams map[int][]Symbol
}

// Emit implements Sink.Emit
func (c *Collector) Emit(sym Symbol) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streams == nil {
		c.streams = make(map[int][]Symbol)
	}
	c.streams[sym.Stream] = append(c.streams[sym.Stream], sym)
	return nil
}

// Symbols returns the symbols of one stream
// in the order they were decoded.
func (c *Collector) Symbols(stream int) []Symbol {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[stream]
}

// Streams returns the indexes of the streams
// that produced symbols, in ascending order.
func (c *Collector) Streams() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := maps.Keys(c.streams)
	sort.Ints(out)
	return out
}

// Reset drops every collected symbol.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams = nil
}

// BitSink is a Sink that packs decoded values
// into a bit string, writing each value Count
// times. Escapes are passed to OnEscape; without
// it an escape fails with bitcode.ErrInvalidData.
//
// A BitSink is not safe for concurrent use.
type BitSink struct {
	OnEscape func(sym Symbol) error

	w bitio.Writer
}

// Emit implements Sink.Emit
func (b *BitSink) Emit(sym Symbol) error {
	switch sym.Kind {
	case huff.LeafValue:
		b.w.WriteRepeat(sym.Value.Bits, int(sym.Value.Length), int(sym.Count))
		return nil
	case huff.LeafEscape:
		if b.OnEscape == nil {
			return fmt.Errorf("mstream.BitSink: unhandled escape %q: %w", sym.Escape.Name, bitcode.ErrInvalidData)
		}
		return b.OnEscape(sym)
	default:
		return fmt.Errorf("mstream.BitSink: %s leaf: %w", sym.Kind, bitcode.ErrInvalidData)
	}
}

// Len returns the number of bits written.
func (b *BitSink) Len() int { return b.w.Len() }

// Bytes returns the bits written so far,
// padded with zeros to a whole byte.
func (b *BitSink) Bytes() []byte { return b.w.Bytes() }

// Reset empties b.
func (b *BitSink) Reset() { b.w.Reset() }
