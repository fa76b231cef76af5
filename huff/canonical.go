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
	"fmt"
	"math/bits"
	"sort"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/heap"
)

// Canonical assigns canonical prefix codes given
// the code length of every symbol. Symbols with
// length zero get no code. Codes are assigned in
// order of length, then symbol, and are read most
// significant bit first.
//
// Canonical fails with bitcode.ErrInvalidParameter
// if the lengths do not describe a prefix code.
func Canonical(lengths []int) ([]BitRun, error) {
	order := make([]int, 0, len(lengths))
	for sym, l := range lengths {
		if l < 0 || l > MaxCodeLen {
			return nil, fmt.Errorf("huff.Canonical: symbol %d has length %d: %w", sym, l, bitcode.ErrInvalidParameter)
		}
		if l > 0 {
			order = append(order, sym)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return lengths[order[i]] < lengths[order[j]]
	})
	out := make([]BitRun, len(lengths))
	var code uint64
	prev := 0
	for i, sym := range order {
		l := lengths[sym]
		if i > 0 {
			code++
		}
		code <<= uint(l - prev)
		prev = l
		if code >= 1<<l {
			return nil, fmt.Errorf("huff.Canonical: lengths are oversubscribed at symbol %d: %w", sym, bitcode.ErrInvalidParameter)
		}
		rev := bits.Reverse32(uint32(code)) >> (32 - l)
		out[sym] = BitRun{Bits: rev, Length: uint8(l)}
	}
	return out, nil
}

type node struct {
	weight uint64
	depth  int // tie-breaker that keeps trees shallow
	left   int
	right  int
}

// lengths computes Huffman code lengths for freqs
func lengths(freqs []uint32) []int {
	out := make([]int, len(freqs))
	var nodes []node
	var leaves []int
	for sym, f := range freqs {
		if f > 0 {
			nodes = append(nodes, node{weight: uint64(f), left: -1, right: sym})
			leaves = append(leaves, len(nodes)-1)
		}
	}
	switch len(leaves) {
	case 0:
		return out
	case 1:
		out[nodes[0].right] = 1
		return out
	}
	h := heap.New(append([]int(nil), leaves...), func(x, y int) bool {
		if nodes[x].weight != nodes[y].weight {
			return nodes[x].weight < nodes[y].weight
		}
		return nodes[x].depth < nodes[y].depth
	})
	for h.Len() > 1 {
		a := h.Pop()
		b := h.Pop()
		d := nodes[a].depth
		if nodes[b].depth > d {
			d = nodes[b].depth
		}
		nodes = append(nodes, node{weight: nodes[a].weight + nodes[b].weight, depth: d + 1, left: a, right: b})
		h.Push(len(nodes) - 1)
	}
	var walk func(n, depth int)
	walk = func(n, depth int) {
		if nodes[n].left < 0 {
			out[nodes[n].right] = depth
			return
		}
		walk(nodes[n].left, depth+1)
		walk(nodes[n].right, depth+1)
	}
	walk(h.Pop(), 0)
	return out
}

// FromFrequencies builds a decoder code list for the
// symbols 0..len(freqs)-1 from their frequencies, with
// no code longer than maxLen bits. Symbols with zero
// frequency get no code. Each symbol decodes to a
// value of its index, as wide as the largest index.
func FromFrequencies(freqs []uint32, maxLen int) ([]CodeDesc, error) {
	if maxLen < 1 || maxLen > MaxCodeLen {
		return nil, fmt.Errorf("huff.FromFrequencies: max length %d: %w", maxLen, bitcode.ErrInvalidParameter)
	}
	used := 0
	for _, f := range freqs {
		if f > 0 {
			used++
		}
	}
	if used == 0 || used > 1<<maxLen {
		return nil, fmt.Errorf("huff.FromFrequencies: %d symbols for %d-bit codes: %w", used, maxLen, bitcode.ErrInvalidParameter)
	}
	scaled := append([]uint32(nil), freqs...)
	var lens []int
	for {
		lens = lengths(scaled)
		longest := 0
		for _, l := range lens {
			if l > longest {
				longest = l
			}
		}
		if longest <= maxLen {
			break
		}
		// flatten the distribution until the tree fits
		for i, f := range scaled {
			if f > 1 {
				scaled[i] = (f + 1) / 2
			}
		}
	}
	codes, err := Canonical(lens)
	if err != nil {
		return nil, err
	}
	width := bits.Len(uint(len(freqs) - 1))
	if width == 0 {
		width = 1
	}
	var out []CodeDesc
	for sym, c := range codes {
		if c.Length == 0 {
			continue
		}
		out = append(out, CodeDesc{Code: c, Value: Run(uint32(sym), width), Count: 1})
	}
	return out, nil
}
