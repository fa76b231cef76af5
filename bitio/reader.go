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

// Package bitio implements LSB-first bit
// readers and writers over byte buffers.
//
// Bits are numbered from the least significant
// bit of the first byte; a field of n bits read
// from the stream has its first bit in bit 0.
package bitio

import (
	"fmt"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/ints"
)

// MaxFetch is the largest number of bits
// returned by a single Fetch or Peek.
const MaxFetch = 32

// Reader reads bit fields from a bounded
// range of bits within a byte slice.
//
// The zero Reader is finished; use Init or
// NewReader to bind it to a buffer.
type Reader struct {
	data []byte // bytes not yet loaded into acc
	acc  uint64 // pending bits, next bit in bit 0
	nacc int    // valid bits in acc
	left int    // bits remaining in the range
}

// NewReader returns a Reader positioned at
// bit off of data that yields exactly n bits.
func NewReader(data []byte, off, n int) (*Reader, error) {
	r := new(Reader)
	if err := r.Init(data, off, n); err != nil {
		return nil, err
	}
	return r, nil
}

// Init binds r to the n bits of data starting at bit off.
// It fails with bitcode.ErrInvalidParameter if data is
// empty, n is not positive, or the range does not
// lie within data.
func (r *Reader) Init(data []byte, off, n int) error {
	if len(data) == 0 || n <= 0 || off < 0 {
		return fmt.Errorf("bitio.Reader.Init: data=%d bytes off=%d n=%d: %w", len(data), off, n, bitcode.ErrInvalidParameter)
	}
	if n > len(data)*8-off {
		return fmt.Errorf("bitio.Reader.Init: range [%d, +%d) exceeds %d bits: %w", off, n, len(data)*8, bitcode.ErrInvalidParameter)
	}
	data = data[off>>3 : ints.BytesFor(off+n)]
	r.acc, r.nacc = 0, 0
	if sub := off & 7; sub != 0 {
		r.acc = uint64(data[0]) >> sub
		r.nacc = 8 - sub
		data = data[1:]
	}
	r.data = data
	r.left = n
	return nil
}

func (r *Reader) refill() {
	for r.nacc <= 56 && len(r.data) > 0 {
		r.acc |= uint64(r.data[0]) << r.nacc
		r.nacc += 8
		r.data = r.data[1:]
	}
}

// Finished returns true once no bits remain.
func (r *Reader) Finished() bool { return r.left == 0 }

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int { return r.left }

// Peek returns the next min(n, Remaining()) bits
// without consuming them, along with the number
// of bits actually returned. Bits past the end of
// the range read as zero. n must not exceed MaxFetch.
func (r *Reader) Peek(n int) (uint32, int) {
	got := ints.Min(n, r.left)
	if got <= 0 {
		return 0, 0
	}
	if r.nacc < got {
		r.refill()
	}
	return uint32(r.acc & ints.Mask[uint64](got)), got
}

// Skip consumes up to n bits.
func (r *Reader) Skip(n int) {
	n = ints.Min(n, r.left)
	for n > 0 {
		k := ints.Min(n, MaxFetch)
		if r.nacc < k {
			r.refill()
		}
		r.acc >>= uint(k)
		r.nacc -= k
		r.left -= k
		n -= k
	}
}

// Fetch consumes and returns up to n bits,
// where n is between 1 and MaxFetch.
//
// Fewer than n bits are returned when the
// range ends inside the field; callers must
// check the returned count. Fetch returns
// bitcode.ErrNoMoreData if no bits remain.
func (r *Reader) Fetch(n int) (uint32, int, error) {
	if n < 1 || n > MaxFetch {
		return 0, 0, fmt.Errorf("bitio.Reader.Fetch(%d): %w", n, bitcode.ErrInvalidParameter)
	}
	if r.left == 0 {
		return 0, 0, bitcode.ErrNoMoreData
	}
	v, got := r.Peek(n)
	r.Skip(got)
	return v, got, nil
}
