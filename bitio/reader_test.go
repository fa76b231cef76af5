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
	"errors"
	"math/rand"
	"testing"

	"github.com/SnellerInc/bitcode"
)

func TestReaderInit(t *testing.T) {
	var r Reader
	if err := r.Init(nil, 0, 8); !errors.Is(err, bitcode.ErrInvalidParameter) {
		t.Errorf("nil data: got %v", err)
	}
	if err := r.Init([]byte{1}, 0, 0); !errors.Is(err, bitcode.ErrInvalidParameter) {
		t.Errorf("zero count: got %v", err)
	}
	if err := r.Init([]byte{1}, 3, 6); !errors.Is(err, bitcode.ErrInvalidParameter) {
		t.Errorf("past end: got %v", err)
	}
	if !r.Finished() {
		t.Error("zero Reader should be finished")
	}
	if err := r.Init([]byte{1}, 3, 5); err != nil {
		t.Fatal(err)
	}
	if r.Remaining() != 5 {
		t.Errorf("Remaining() = %d", r.Remaining())
	}
}

func TestFetchLSBFirst(t *testing.T) {
	// 0b1011_0110, 0b0000_0011
	r, err := NewReader([]byte{0xb6, 0x03}, 0, 16)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		n, got int
		v      uint32
	}{
		{1, 1, 0},
		{2, 2, 3},
		{3, 3, 6},
		{4, 4, 0xe},
		{8, 6, 0},
	}
	for i, w := range want {
		v, got, err := r.Fetch(w.n)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if v != w.v || got != w.got {
			t.Errorf("fetch %d: got (%#x, %d), want (%#x, %d)", i, v, got, w.v, w.got)
		}
	}
	if !r.Finished() {
		t.Fatal("expected reader to be finished")
	}
	if _, _, err := r.Fetch(1); !errors.Is(err, bitcode.ErrNoMoreData) {
		t.Fatalf("fetch past end: %v", err)
	}
}

func TestFetchOffset(t *testing.T) {
	data := []byte{0xff, 0x5a, 0xff}
	// bits 8..15 are 0x5a; start at bit 9 and read 6 bits
	r, err := NewReader(data, 9, 6)
	if err != nil {
		t.Fatal(err)
	}
	v, got, err := r.Fetch(32)
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 || v != (0x5a>>1)&0x3f {
		t.Fatalf("got (%#x, %d)", v, got)
	}
}

func TestFetchBadWidth(t *testing.T) {
	r, _ := NewReader([]byte{0}, 0, 8)
	for _, n := range []int{0, -1, 33} {
		if _, _, err := r.Fetch(n); !errors.Is(err, bitcode.ErrInvalidParameter) {
			t.Errorf("Fetch(%d): %v", n, err)
		}
	}
}

func TestPeekSkip(t *testing.T) {
	r, _ := NewReader([]byte{0x0f, 0xf0}, 0, 16)
	v, got := r.Peek(8)
	if v != 0x0f || got != 8 {
		t.Fatalf("peek: (%#x, %d)", v, got)
	}
	r.Skip(4)
	v, got = r.Peek(8)
	if v != 0x00 || got != 8 {
		t.Fatalf("peek after skip: (%#x, %d)", v, got)
	}
	r.Skip(100)
	if !r.Finished() {
		t.Fatal("skip past end should finish")
	}
	if _, got := r.Peek(4); got != 0 {
		t.Fatalf("peek when finished returned %d bits", got)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	type field struct {
		v uint32
		n int
	}
	rng := rand.New(rand.NewSource(1))
	var w Writer
	var fields []field
	for i := 0; i < 1000; i++ {
		n := 1 + rng.Intn(32)
		v := rng.Uint32()
		if n < 32 {
			v &= 1<<n - 1
		}
		fields = append(fields, field{v, n})
		w.Write(v, n)
	}
	buf := w.Bytes()
	r, err := NewReader(buf, 0, w.Len())
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range fields {
		v, got, err := r.Fetch(f.n)
		if err != nil {
			t.Fatalf("field %d: %v", i, err)
		}
		if got != f.n || v != f.v {
			t.Fatalf("field %d: got (%#x, %d) want (%#x, %d)", i, v, got, f.v, f.n)
		}
	}
	if !r.Finished() {
		t.Fatalf("%d bits left over", r.Remaining())
	}
}

func TestWriterReset(t *testing.T) {
	var w Writer
	w.WriteRepeat(1, 1, 3)
	if w.Len() != 3 {
		t.Fatalf("Len() = %d", w.Len())
	}
	if b := w.Bytes(); len(b) != 1 || b[0] != 0x07 {
		t.Fatalf("Bytes() = %x", b)
	}
	w.Reset()
	if w.Len() != 0 || len(w.Bytes()) != 0 {
		t.Fatal("Reset did not clear the writer")
	}
}

func FuzzReader(f *testing.F) {
	f.Add([]byte{0xde, 0xad, 0xbe, 0xef}, 3, 20, 7)
	f.Fuzz(func(t *testing.T, data []byte, off, n, step int) {
		var r Reader
		if r.Init(data, off, n) != nil {
			return
		}
		if step < 1 || step > MaxFetch {
			step = 1 + (step&0xff)%MaxFetch
		}
		total := 0
		for !r.Finished() {
			_, got, err := r.Fetch(step)
			if err != nil {
				t.Fatal(err)
			}
			if got == 0 || got > step {
				t.Fatalf("fetch returned %d bits for %d", got, step)
			}
			total += got
		}
		if total != n {
			t.Fatalf("read %d bits, want %d", total, n)
		}
	})
}

func BenchmarkFetch(b *testing.B) {
	buf := make([]byte, 4096)
	rand.Read(buf)
	b.SetBytes(int64(len(buf)))
	var r Reader
	for i := 0; i < b.N; i++ {
		r.Init(buf, 0, len(buf)*8)
		for !r.Finished() {
			r.Fetch(11)
		}
	}
}
