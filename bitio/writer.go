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

package bitio

import (
	"github.com/SnellerInc/bitcode/ints"
)

// Writer packs bit fields into bytes
// in the same order Reader reads them.
// The zero Writer is ready to use.
type Writer struct {
	buf  []byte
	acc  uint64
	nacc int
	n    int
}

// Write appends the low n bits of v.
// n is clamped to [0, MaxFetch].
func (w *Writer) Write(v uint32, n int) {
	n = ints.Clamp(n, 0, MaxFetch)
	w.acc |= uint64(v&ints.Mask[uint32](n)) << w.nacc
	w.nacc += n
	w.n += n
	for w.nacc >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.nacc -= 8
	}
}

// WriteRepeat writes the low n bits of v count times.
func (w *Writer) WriteRepeat(v uint32, n, count int) {
	for i := 0; i < count; i++ {
		w.Write(v, n)
	}
}

// Len returns the number of bits written.
func (w *Writer) Len() int { return w.n }

// Bytes returns a copy of the written bits,
// with the final partial byte zero-padded.
func (w *Writer) Bytes() []byte {
	out := make([]byte, len(w.buf), len(w.buf)+1)
	copy(out, w.buf)
	if w.nacc > 0 {
		out = append(out, byte(w.acc))
	}
	return out
}

// Reset discards everything written so far.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.acc, w.nacc, w.n = 0, 0, 0
}
