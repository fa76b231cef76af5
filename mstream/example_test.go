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

package mstream_test

import (
	"fmt"

	"github.com/SnellerInc/bitcode/huff"
	"github.com/SnellerInc/bitcode/mstream"
)

func ExampleBinary_DecodeAll() {
	ctx, _ := huff.NewContext()
	defer ctx.Close()
	codes, _ := huff.ParseCodes([]byte("0:1:8:0x41\n10:1:8:0x42\n11:1:8:0x43\n"))
	tbl, _ := ctx.NewTable(0, codes)

	b, _ := mstream.NewBinary(tbl, 2)
	// bits 0,1,0,1,1,0 and 1,1,0
	b.SetStream(0, []byte{0b011010}, 0, 6, nil)
	b.SetStream(1, []byte{0b011}, 0, 3, nil)

	sink := mstream.SinkFunc(func(sym mstream.Symbol) error {
		fmt.Printf("stream %d: %c\n", sym.Stream, rune(sym.Value.Bits))
		return nil
	})
	if err := b.DecodeAll(mstream.SequentialClient{}, sink); err != nil {
		fmt.Println(err)
	}
	// Output:
	// stream 1: C
	// stream 1: A
	// stream 0: A
	// stream 0: B
	// stream 0: C
	// stream 0: A
}
