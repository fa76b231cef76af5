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

// Package bitcode implements decoding of
// variable-length bit codes through
// multi-level bit-indexed tables.
//
// The sub-packages are layered as follows:
//
//	bitio   - LSB-first bit reader and writer
//	alloc   - pluggable storage allocators
//	bitt    - generic bit trie (arena of power-of-two tables)
//	huff    - Huffman decoder tables built on bitt
//	mstream - streams, blocks and multi-stream binaries
//
// Every package reports failures using the
// sentinel errors declared here, wrapped with
// additional context; use errors.Is to test for them.
package bitcode

import (
	"errors"
)

var (
	// ErrInvalidParameter is returned when an argument
	// is missing, zero or out of range.
	ErrInvalidParameter = errors.New("bitcode: invalid parameter")
	// ErrInvalidState is returned when a size limit
	// would be violated or an object is used before
	// it has been initialized (or after it was released).
	ErrInvalidState = errors.New("bitcode: invalid state")
	// ErrEntryOccupied is returned when an insertion
	// collides with an existing entry.
	ErrEntryOccupied = errors.New("bitcode: entry already occupied")
	// ErrNoMoreData is returned when the input
	// ends in the middle of a field or code.
	ErrNoMoreData = errors.New("bitcode: no more data")
	// ErrInvalidData is returned when input bits
	// do not resolve to any known code, or when a
	// code string contains characters other than 0 and 1.
	ErrInvalidData = errors.New("bitcode: invalid data")
	// ErrInsufficientMemory is returned when an allocator fails.
	ErrInsufficientMemory = errors.New("bitcode: insufficient memory")
	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = errors.New("bitcode: not found")
	// ErrUnrelated is returned when an entry reference
	// does not belong to the context it is used with.
	ErrUnrelated = errors.New("bitcode: unrelated reference")
	// ErrInvalidAllocator is returned when an allocator
	// is missing one of its operations.
	ErrInvalidAllocator = errors.New("bitcode: invalid allocator")
	// ErrInvalidInterface is returned when a required
	// client capability is missing.
	ErrInvalidInterface = errors.New("bitcode: invalid interface")
	// ErrFormatNotSupported is returned for unrecognized
	// table file names and malformed table text.
	ErrFormatNotSupported = errors.New("bitcode: format not supported")
	// ErrNullCallback is returned when a callback
	// entry is reached that has no function attached.
	ErrNullCallback = errors.New("bitcode: null callback")
	// ErrInvalidSize is returned when an entry index
	// lies outside of its table.
	ErrInvalidSize = errors.New("bitcode: invalid size")
)

// Stop can be returned from a decode visitor
// to end the scan early. The scan then returns nil.
var Stop = errors.New("bitcode: stop")
