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
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/bitio"
	"github.com/SnellerInc/bitcode/huff"
)

const abcCodes = `
0:1:8:0x41
10:1:8:0x42
110:1:8:0x43
111:E:end
`

func abcTable(t testing.TB) *huff.Table {
	t.Helper()
	ctx, err := huff.NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })
	codes, err := huff.ParseCodes([]byte(abcCodes))
	require.NoError(t, err)
	tbl, err := ctx.NewTable(0, codes)
	require.NoError(t, err)
	return tbl
}

var letterCode = map[byte]string{'A': "0", 'B': "10", 'C': "110", '$': "111"}

// encode returns the bits of text using
// the codes of abcTable
func encode(text string) ([]byte, int) {
	var w bitio.Writer
	for i := 0; i < len(text); i++ {
		b := huff.MustBitRun(letterCode[text[i]])
		w.Write(b.Bits, int(b.Length))
	}
	return w.Bytes(), w.Len()
}

func letters(syms []Symbol) string {
	var out []byte
	for _, s := range syms {
		if s.Kind == huff.LeafEscape {
			out = append(out, '$')
			continue
		}
		out = append(out, byte(s.Value.Bits))
	}
	return string(out)
}

func newBinary(t testing.TB, texts ...string) *Binary {
	t.Helper()
	b, err := NewBinary(abcTable(t), len(texts))
	require.NoError(t, err)
	for i, text := range texts {
		data, n := encode(text)
		require.NoError(t, b.SetStream(i, data, 0, n, nil))
	}
	return b
}

// recorder is a Client that decodes inline
// and records the order of calls made to it
type recorder struct {
	calls   []string
	fail    int
	status  map[int]error
	barrier bool
}

func (r *recorder) Launch(s *Stream, sink Sink) error {
	r.calls = append(r.calls, fmt.Sprint(s.Index()))
	if r.fail != 0 && s.Index() == r.fail {
		return fmt.Errorf("launch refused")
	}
	return s.Decode(sink)
}

func (r *recorder) NotifyStatus(stream int, err error) {
	if r.status == nil {
		r.status = make(map[int]error)
	}
	r.status[stream] = err
}

type waitRecorder struct {
	recorder
	waitErr error
}

func (w *waitRecorder) Wait() error {
	w.calls = append(w.calls, "wait")
	return w.waitErr
}

func TestDecodeAllOrder(t *testing.T) {
	b := newBinary(t, "ABC", "BB", "CA")

	var plain recorder
	var c Collector
	require.NoError(t, b.DecodeAll(&plain, &c))
	require.Equal(t, []string{"1", "2", "0"}, plain.calls)
	require.Equal(t, []int{0, 1, 2}, c.Streams())
	require.Equal(t, "ABC", letters(c.Symbols(0)))
	require.Equal(t, "BB", letters(c.Symbols(1)))
	require.Equal(t, "CA", letters(c.Symbols(2)))
	require.Len(t, plain.status, 3)

	var barrier waitRecorder
	c.Reset()
	require.NoError(t, b.DecodeAll(&barrier, &c))
	require.Equal(t, []string{"1", "2", "wait", "0", "wait"}, barrier.calls)

	single := newBinary(t, "A")
	barrier.calls = nil
	require.NoError(t, single.DecodeAll(&barrier, &c))
	require.Equal(t, []string{"wait", "0", "wait"}, barrier.calls)
}

func TestDecodeAllErrors(t *testing.T) {
	b := newBinary(t, "A", "B", "C", "AB")
	var c Collector
	err := b.DecodeAll(nil, &c)
	require.ErrorIs(t, err, bitcode.ErrInvalidInterface)

	r := &waitRecorder{recorder: recorder{fail: 2}}
	err = b.DecodeAll(r, &c)
	require.Error(t, err)
	require.Equal(t, []string{"1", "2", "wait"}, r.calls)
	require.NoError(t, r.status[1])
	require.Error(t, r.status[2])
	require.NotContains(t, r.status, 0)

	// a failing Wait while reaping is reported along with the launch error
	lost := errors.New("worker lost")
	r = &waitRecorder{recorder: recorder{fail: 2}, waitErr: lost}
	err = b.DecodeAll(r, &c)
	require.ErrorContains(t, err, "launch refused")
	require.ErrorContains(t, err, "worker lost")
	require.Equal(t, []string{"1", "2", "wait"}, r.calls)

	require.NoError(t, b.SetStreamCount(5))
	err = b.DecodeAll(SequentialClient{}, &c)
	require.ErrorIs(t, err, bitcode.ErrInvalidState)

	// truncated code in stream 1
	require.NoError(t, b.SetStreamCount(2))
	data, n := encode("AC")
	require.NoError(t, b.SetStream(1, data, 0, n-1, nil))
	err = b.DecodeAll(SequentialClient{}, &c)
	require.ErrorIs(t, err, bitcode.ErrNoMoreData)
}

func TestPoolClient(t *testing.T) {
	texts := []string{"ABCABC", "A", "BBBB", "CCA", "ACAB", "CACB", "BA", "AAAAAAAAAA"}
	b := newBinary(t, texts...)

	var seq Collector
	require.NoError(t, b.DecodeAll(SequentialClient{}, &seq))

	var (
		mu    sync.Mutex
		order []int
		pool  Collector
	)
	sink := SinkFunc(func(sym Symbol) error {
		mu.Lock()
		order = append(order, sym.Stream)
		mu.Unlock()
		return pool.Emit(sym)
	})
	p := NewPoolClient(3)
	for round := 0; round < 2; round++ {
		order = nil
		pool.Reset()
		require.NoError(t, b.DecodeAll(p, sink))
		for i, text := range texts {
			require.Equal(t, text, letters(pool.Symbols(i)))
			require.Equal(t, seq.Symbols(i), pool.Symbols(i))
		}
		first := slices.Index(order, 0)
		require.Equal(t, len(order)-len(texts[0]), first, "stream 0 started before the others finished")
	}
	for i, text := range texts {
		require.Equal(t, int64(2*len(text)), p.Symbols(i))
	}
	require.Zero(t, p.Symbols(100))

	data, n := encode("AC")
	require.NoError(t, b.SetStream(5, data, 0, n-2, nil))
	err := b.DecodeAll(p, sink)
	require.ErrorIs(t, err, bitcode.ErrNoMoreData)
	require.Contains(t, err.Error(), "stream 5")
}

func TestConfiguration(t *testing.T) {
	tbl := abcTable(t)
	_, err := NewBinary(tbl, 0)
	require.ErrorIs(t, err, bitcode.ErrInvalidParameter)

	b, err := NewBinary(nil, 2)
	require.NoError(t, err)
	data, n := encode("ABCA")
	err = b.SetStream(0, data, 0, n, nil)
	require.ErrorIs(t, err, bitcode.ErrInvalidState)
	require.NoError(t, b.SetStream(0, data, 0, n, tbl))
	require.ErrorIs(t, b.SetStream(2, data, 0, n, tbl), bitcode.ErrInvalidParameter)
	require.ErrorIs(t, b.SetStream(1, data, 0, len(data)*8+1, tbl), bitcode.ErrInvalidParameter)
	require.ErrorIs(t, b.SetStream(1, nil, 0, 1, tbl), bitcode.ErrInvalidParameter)
	require.ErrorIs(t, b.SetBlockCount(1, 1), bitcode.ErrInvalidState)

	b.SetDefault(tbl)
	require.NoError(t, b.SetStream(1, data, 1, n-1, nil))
	s, err := b.Stream(1)
	require.NoError(t, err)
	require.Same(t, tbl, s.Table())
	off, cnt := s.Range()
	require.Equal(t, 1, off)
	require.Equal(t, n-1, cnt)

	// "A" "B" "C" "A" starts at bits 0, 1, 3, 6
	require.NoError(t, b.SetBlockCount(0, 2))
	require.NoError(t, b.SetBlock(0, 0, 1, 5))
	require.NoError(t, b.SetBlock(0, 1, 6, 1))
	require.ErrorIs(t, b.SetBlock(0, 1, 6, n), bitcode.ErrInvalidParameter)
	require.ErrorIs(t, b.SetBlock(0, 2, 0, 1), bitcode.ErrInvalidParameter)
	require.ErrorIs(t, b.SetBlock(1, 0, 0, 1), bitcode.ErrInvalidParameter)
	blk, err := b.Block(0, 1)
	require.NoError(t, err)
	require.Equal(t, Block{Offset: 6, Length: 1}, blk)

	s, err = b.Stream(0)
	require.NoError(t, err)
	var c Collector
	require.NoError(t, s.DecodeBlock(0, &c))
	require.Equal(t, "BC", letters(c.Symbols(0)))
	require.Equal(t, 0, c.Symbols(0)[0].Block)
	c.Reset()
	require.NoError(t, s.Decode(&c))
	require.Equal(t, "ABCA", letters(c.Symbols(0)))
	require.Equal(t, -1, c.Symbols(0)[0].Block)
	require.ErrorIs(t, s.DecodeBlock(2, &c), bitcode.ErrInvalidParameter)

	require.NoError(t, b.SetBlockCount(0, 3))
	require.ErrorIs(t, s.DecodeBlock(2, &c), bitcode.ErrInvalidState)
	require.NoError(t, b.SetStreamCount(1))
	require.Equal(t, 1, b.StreamCount())
	require.Equal(t, 3, s.Blocks())
	_, err = b.Stream(1)
	require.ErrorIs(t, err, bitcode.ErrInvalidParameter)
}

func TestSinks(t *testing.T) {
	b := newBinary(t, "AB$CA")
	s, err := b.Stream(0)
	require.NoError(t, err)

	var bits BitSink
	err = s.Decode(&bits)
	require.ErrorIs(t, err, bitcode.ErrInvalidData)
	require.Equal(t, 16, bits.Len())

	var escapes []string
	bits.Reset()
	bits.OnEscape = func(sym Symbol) error {
		escapes = append(escapes, sym.Escape.Name)
		return nil
	}
	require.NoError(t, s.Decode(&bits))
	require.Equal(t, []string{"end"}, escapes)
	require.Equal(t, []byte("ABCA"), bits.Bytes())

	var seen int
	err = s.Decode(SinkFunc(func(sym Symbol) error {
		seen++
		if sym.Kind == huff.LeafEscape {
			return bitcode.Stop
		}
		return nil
	}))
	require.NoError(t, err)
	require.Equal(t, 3, seen)

	boom := errors.New("boom")
	err = s.Decode(SinkFunc(func(Symbol) error { return boom }))
	require.ErrorIs(t, err, boom)
}

func TestRepeatCount(t *testing.T) {
	ctx, err := huff.NewContext()
	require.NoError(t, err)
	defer ctx.Close()
	tbl, err := ctx.NewTable(0, []huff.CodeDesc{
		{Code: huff.MustBitRun("0"), Value: huff.Run(0b101, 3), Count: 3},
		{Code: huff.MustBitRun("1"), Value: huff.Run(0, 1)},
	})
	require.NoError(t, err)
	b, err := NewBinary(tbl, 1)
	require.NoError(t, err)
	require.NoError(t, b.SetStream(0, []byte{0b10}, 0, 2, nil))
	var bits BitSink
	require.NoError(t, b.DecodeAll(SequentialClient{}, &bits))
	require.Equal(t, 10, bits.Len())
	// 101 101 101 0
	require.Equal(t, []byte{0b01101101, 0b01}, bits.Bytes())
}
