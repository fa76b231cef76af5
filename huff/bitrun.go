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

// Package huff builds Huffman decoder tables on
// top of bitt tries and decodes bit streams with them.
//
// A code is a BitRun whose bit 0 is the first
// bit read from the stream. Each code maps to a
// Leaf holding either a value BitRun or an Escape;
// either kind may additionally carry a callback tag.
package huff

import (
	"fmt"
	"strings"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/ints"
)

// MaxCodeLen is the longest code or value, in bits.
const MaxCodeLen = 32

// BitRun is a value together with the number
// of low-order bits of Bits that are significant.
type BitRun struct {
	Bits   uint32
	Length uint8
}

// Run returns the BitRun holding the low n bits of v.
func Run(v uint32, n int) BitRun {
	return BitRun{Bits: v & ints.Mask[uint32](n), Length: uint8(n)}
}

// ParseBitRun parses a string of '0' and '1'
// characters in the order the bits are read.
// The first character becomes bit 0.
func ParseBitRun(s string) (BitRun, error) {
	if len(s) == 0 || len(s) > MaxCodeLen {
		return BitRun{}, fmt.Errorf("huff.ParseBitRun: %d bits: %w", len(s), bitcode.ErrInvalidParameter)
	}
	var b BitRun
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			b.Bits |= 1 << i
		default:
			return BitRun{}, fmt.Errorf("huff.ParseBitRun: %q: %w", s, bitcode.ErrInvalidData)
		}
	}
	b.Length = uint8(len(s))
	return b, nil
}

// MustBitRun is like ParseBitRun but panics on error.
func MustBitRun(s string) BitRun {
	b, err := ParseBitRun(s)
	if err != nil {
		panic(err)
	}
	return b
}

// String returns the bits in read order.
func (b BitRun) String() string {
	var sb strings.Builder
	for i := 0; i < int(b.Length); i++ {
		if b.Bits&(1<<i) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// check validates a BitRun of between
// least and MaxCodeLen bits.
func (b BitRun) check(least int) error {
	if int(b.Length) < least || b.Length > MaxCodeLen {
		return fmt.Errorf("bit run length %d: %w", b.Length, bitcode.ErrInvalidParameter)
	}
	if b.Bits&^ints.Mask[uint32](b.Length) != 0 {
		return fmt.Errorf("bit run %#x wider than %d bits: %w", b.Bits, b.Length, bitcode.ErrInvalidParameter)
	}
	return nil
}

// Escape is an out-of-band signal raised
// instead of a value.
type Escape struct {
	Name string
	Code BitRun
}

// CodeDesc is one row of a code table.
// Exactly one of Value and Escape is set:
// an Escape makes the row an escape,
// otherwise Value is the decoded value.
type CodeDesc struct {
	Code   BitRun
	Value  BitRun
	Count  uint32
	Escape *Escape
}

// LeafKind is the payload type of a Leaf.
type LeafKind uint8

const (
	LeafValue LeafKind = iota + 1
	LeafEscape
)

func (k LeafKind) String() string {
	switch k {
	case LeafValue:
		return "value"
	case LeafEscape:
		return "escape"
	default:
		return fmt.Sprintf("LeafKind(%d)", uint8(k))
	}
}

// Leaf is the entry reached by a complete code.
type Leaf struct {
	Kind   LeafKind
	Value  BitRun  // LeafValue only
	Count  uint32  // repetitions of Value
	Escape *Escape // LeafEscape only
	// Callback is set by Table.SetCallback,
	// independently of Kind.
	Callback bool
	Param    int64
}

// Flags describe an entry.
type Flags uint8

const (
	FlagValue Flags = 1 << iota
	FlagSubTable
	FlagEscape
	FlagCallback
)

func (f Flags) String() string {
	var parts []string
	for _, p := range []struct {
		f    Flags
		name string
	}{
		{FlagValue, "value"},
		{FlagSubTable, "subtable"},
		{FlagEscape, "escape"},
		{FlagCallback, "callback"},
	} {
		if f&p.f != 0 {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "unused"
	}
	return strings.Join(parts, "|")
}

// Flags returns the flags of the leaf.
func (l *Leaf) Flags() Flags {
	var f Flags
	switch l.Kind {
	case LeafValue:
		f = FlagValue
	case LeafEscape:
		f = FlagEscape
	}
	if l.Callback {
		f |= FlagCallback
	}
	return f
}

func leafFor(d *CodeDesc) (Leaf, error) {
	if err := d.Code.check(1); err != nil {
		return Leaf{}, err
	}
	count := d.Count
	if count == 0 {
		count = 1
	}
	if d.Escape != nil {
		if d.Value.Length != 0 {
			return Leaf{}, fmt.Errorf("escape %q also carries a value: %w", d.Escape.Name, bitcode.ErrInvalidParameter)
		}
		return Leaf{Kind: LeafEscape, Escape: d.Escape, Count: count}, nil
	}
	if err := d.Value.check(1); err != nil {
		return Leaf{}, err
	}
	return Leaf{Kind: LeafValue, Value: d.Value, Count: count}, nil
}
