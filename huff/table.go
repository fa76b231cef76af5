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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dchest/siphash"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/bitio"
	"github.com/SnellerInc/bitcode/bitt"
	"github.com/SnellerInc/bitcode/ints"
)

// Table is a Huffman decoder table.
//
// Tables are built by appending codes; every
// level grows to fit the codes routed through
// it, up to the table's maximum width, and codes
// that are longer than a level continue in a
// child level addressed by the bits consumed so far.
//
// A Table must not be modified concurrently or
// while it is being used for decoding. Once built,
// it can be used by any number of concurrent decoders.
type Table struct {
	ctx      *Context
	trie     *bitt.Context[Leaf]
	maxWidth int
	limit    int // effective max width, fixed once the trie exists
	codes    int
	fp       uint64
	released bool
}

// TableOption is an optional argument to Context.NewTable.
type TableOption func(t *Table)

// WithTableMaxWidth sets the maximum width of
// every level of the table, overriding the
// Context default. Zero means the Context default.
func WithTableMaxWidth(w int) TableOption {
	return func(t *Table) {
		t.maxWidth = w
	}
}

// MaxWidth returns the maximum level width in
// effect for t, or zero if levels are unbounded.
// The limit is fixed when the table is first
// initialized; later changes to the Context
// default do not affect it.
func (t *Table) MaxWidth() int {
	if t.trie != nil {
		return t.limit
	}
	if t.maxWidth != 0 {
		return t.maxWidth
	}
	return t.ctx.maxWidth
}

// Len returns the number of codes in t.
func (t *Table) Len() int { return t.codes }

// Trie returns the trie holding the table levels.
func (t *Table) Trie() *bitt.Context[Leaf] { return t.trie }

func (t *Table) ready(op string) error {
	if t.released || t.ctx.closed {
		return fmt.Errorf("huff.Table.%s: table released: %w", op, bitcode.ErrInvalidState)
	}
	if t.trie == nil {
		return fmt.Errorf("huff.Table.%s: table not initialized: %w", op, bitcode.ErrInvalidState)
	}
	return nil
}

// Init discards the contents of t, resets its root
// level to the given width and appends descs, or the
// Context's default code list if descs is nil.
func (t *Table) Init(width int, descs []CodeDesc) error {
	if t.released || t.ctx.closed {
		return fmt.Errorf("huff.Table.Init: table released: %w", bitcode.ErrInvalidState)
	}
	if err := checkWidth(t.maxWidth); err != nil {
		return fmt.Errorf("huff.Table.Init: %w", err)
	}
	limit := t.MaxWidth()
	if width < 0 || width > bitt.MaxWidth || (limit != 0 && width > limit) {
		return fmt.Errorf("huff.Table.Init: width %d with max %d: %w", width, limit, bitcode.ErrInvalidState)
	}
	if t.trie == nil {
		stride := bitt.DefaultStride
		if limit != 0 {
			stride = ints.Min(stride, limit)
		}
		trie, err := bitt.New[Leaf](
			bitt.WithAllocator[Leaf](t.ctx.alloc),
			bitt.WithRootWidth[Leaf](width),
			bitt.WithMaxWidth[Leaf](limit),
			bitt.WithStride[Leaf](stride),
		)
		if err != nil {
			return fmt.Errorf("huff.Table.Init: %w", err)
		}
		t.trie = trie
		t.limit = limit
	} else if err := t.trie.Reset(width); err != nil {
		return fmt.Errorf("huff.Table.Init: %w", err)
	}
	t.codes = 0
	t.fp = 0
	if descs == nil {
		descs = t.ctx.codes
	}
	return t.AppendCodes(descs)
}

// AppendCodes adds every descriptor in descs.
// A descriptor with an Escape becomes an escape
// leaf; any other descriptor becomes a value leaf.
// AppendCodes stops at the first failure; codes
// added before it remain in the table.
func (t *Table) AppendCodes(descs []CodeDesc) error {
	if err := t.ready("AppendCodes"); err != nil {
		return err
	}
	for i := range descs {
		d := &descs[i]
		leaf, err := leafFor(d)
		if err == nil {
			err = t.insert(d.Code, leaf)
		}
		if err != nil {
			return fmt.Errorf("huff.Table.AppendCodes: code %d (%s): %w", i, d.Code, err)
		}
		t.fp = chain(t.fp, d)
		t.codes++
	}
	return nil
}

// AppendValue adds code decoding to value.
func (t *Table) AppendValue(code, value BitRun) error {
	return t.AppendCodes([]CodeDesc{{Code: code, Value: value, Count: 1}})
}

// AppendEscape adds code raising esc.
func (t *Table) AppendEscape(code BitRun, esc *Escape) error {
	if esc == nil {
		return fmt.Errorf("huff.Table.AppendEscape: nil escape: %w", bitcode.ErrInvalidParameter)
	}
	return t.AppendCodes([]CodeDesc{{Code: code, Escape: esc, Count: 1}})
}

// usable returns the width a level should have
// to route rem more bits.
func (t *Table) usable(rem int) int {
	if limit := t.MaxWidth(); limit != 0 && rem > limit {
		return limit
	}
	return rem
}

func (t *Table) insert(code BitRun, leaf Leaf) error {
	h := t.trie.Root()
	bits, rem := code.Bits, int(code.Length)
	for {
		info, err := t.trie.Table(h)
		if err != nil {
			return err
		}
		w := info.Width
		if u := t.usable(rem); u > w {
			if err := t.trie.Grow(h, u); err != nil {
				return err
			}
			w = u
		}
		if rem <= w {
			_, err := t.trie.Place(h, bits, rem, leaf)
			return err
		}
		h, err = t.trie.Link(h, bits&ints.Mask[uint32](w), 0)
		if err != nil {
			return err
		}
		bits >>= uint(w)
		rem -= w
	}
}

func (t *Table) find(op string, code BitRun) (bitt.Ref, Leaf, error) {
	if err := t.ready(op); err != nil {
		return bitt.Ref{}, Leaf{}, err
	}
	if err := code.check(1); err != nil {
		return bitt.Ref{}, Leaf{}, fmt.Errorf("huff.Table.%s: %w", op, err)
	}
	ref, err := t.trie.Find(uint64(code.Bits), int(code.Length))
	if err != nil {
		return bitt.Ref{}, Leaf{}, fmt.Errorf("huff.Table.%s(%s): %w", op, code, err)
	}
	e, err := t.trie.Entry(ref)
	if err != nil {
		return bitt.Ref{}, Leaf{}, err
	}
	return ref, e.Data(), nil
}

// Lookup returns the leaf for code.
func (t *Table) Lookup(code BitRun) (Leaf, error) {
	_, leaf, err := t.find("Lookup", code)
	return leaf, err
}

// SetCallback tags the existing leaf for code
// with a callback parameter. The value or escape
// of the leaf is unchanged.
func (t *Table) SetCallback(code BitRun, param int64) error {
	ref, leaf, err := t.find("SetCallback", code)
	if err != nil {
		return err
	}
	leaf.Callback = true
	leaf.Param = param
	return t.trie.SetData(ref, leaf)
}

// Decode decodes the n bits of buf starting
// at bit off, calling visit with each leaf.
// See bitt.Context.Decode.
func (t *Table) Decode(buf []byte, off, n int, visit func(l Leaf) error) error {
	if err := t.ready("Decode"); err != nil {
		return err
	}
	return t.trie.Decode(buf, off, n, visit)
}

// DecodeReader is like Decode, but decodes
// every remaining bit of r.
func (t *Table) DecodeReader(r *bitio.Reader, visit func(l Leaf) error) error {
	if err := t.ready("Decode"); err != nil {
		return err
	}
	return t.trie.DecodeReader(r, visit)
}

// Release frees the levels of t. Tables are
// normally released all at once by Context.Close.
func (t *Table) Release() error {
	if t.released {
		return nil
	}
	t.released = true
	if t.trie == nil {
		return nil
	}
	return t.trie.Release()
}

// Fingerprint returns a hash of the codes
// appended since the table was initialized.
// It equals Fingerprint of the same codes.
func (t *Table) Fingerprint() uint64 { return t.fp }

const (
	fpk0 = 0x6c3ad6b14ea0f1d7
	fpk1 = 0x2e9a1f7b58c4d03b
)

func chain(fp uint64, d *CodeDesc) uint64 {
	var buf [64]byte
	mem := binary.LittleEndian.AppendUint64(buf[:0], fp)
	mem = binary.LittleEndian.AppendUint32(mem, d.Code.Bits)
	mem = append(mem, d.Code.Length)
	if d.Escape != nil {
		mem = append(mem, 'E')
		mem = binary.LittleEndian.AppendUint32(mem, d.Escape.Code.Bits)
		mem = append(mem, d.Escape.Code.Length)
		mem = append(mem, d.Escape.Name...)
	} else {
		mem = append(mem, 'V')
		mem = binary.LittleEndian.AppendUint32(mem, d.Value.Bits)
		mem = append(mem, d.Value.Length)
		mem = binary.LittleEndian.AppendUint32(mem, d.Count)
	}
	return siphash.Hash(fpk0, fpk1, mem)
}

// Fingerprint returns a hash of descs that
// depends on the order of the descriptors.
func Fingerprint(descs []CodeDesc) uint64 {
	var fp uint64
	for i := range descs {
		fp = chain(fp, &descs[i])
	}
	return fp
}

// Dump writes a description of every level of t to w.
func (t *Table) Dump(w io.Writer) error {
	if err := t.ready("Dump"); err != nil {
		return err
	}
	return t.trie.Walk(func(h bitt.Handle, info bitt.TableInfo, entries []bitt.Entry[Leaf]) error {
		var err error
		if h == t.trie.Root() {
			_, err = fmt.Fprintf(w, "table %d: width %d\n", h, info.Width)
		} else {
			_, err = fmt.Fprintf(w, "table %d: width %d parent %d[%d]\n", h, info.Width, info.Parent, info.ParentIndex)
		}
		if err != nil {
			return err
		}
		for i := range entries {
			if err := dumpEntry(w, uint32(i), &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// FlagsOf returns the flags of a table entry.
func FlagsOf(e *bitt.Entry[Leaf]) Flags {
	switch e.Kind() {
	case bitt.SubTable:
		return FlagSubTable
	case bitt.Data, bitt.Callback:
		l := e.Data()
		return l.Flags()
	default:
		return 0
	}
}

func dumpEntry(w io.Writer, i uint32, e *bitt.Entry[Leaf]) error {
	var err error
	switch e.Kind() {
	case bitt.SubTable:
		_, err = fmt.Fprintf(w, "  %s: %s -> table %d\n", Run(i, e.Len()), FlagsOf(e), e.Child())
	case bitt.Data, bitt.Callback:
		// replicas of a short code are listed once
		if i>>e.Len() != 0 {
			return nil
		}
		l := e.Data()
		switch l.Kind {
		case LeafEscape:
			_, err = fmt.Fprintf(w, "  %s: %s %s", Run(i, e.Len()), FlagsOf(e), l.Escape.Name)
		default:
			_, err = fmt.Fprintf(w, "  %s: %s %s x%d", Run(i, e.Len()), FlagsOf(e), l.Value, l.Count)
		}
		if err == nil && l.Callback {
			_, err = fmt.Fprintf(w, " param=%d", l.Param)
		}
		if err == nil {
			_, err = io.WriteString(w, "\n")
		}
	}
	return err
}
