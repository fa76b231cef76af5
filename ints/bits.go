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

package ints

import (
	"math/bits"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Mask returns a value with the low n bits set.
// n greater than or equal to the width of T yields all ones.
func Mask[T constraints.Unsigned, K constraints.Integer](n K) T {
	var zero T
	if uintptr(n) >= unsafe.Sizeof(zero)*8 {
		return ^zero
	}
	return (T(1) << uintptr(n)) - 1
}

// IsPow2 returns true if x is a non-zero power of two.
func IsPow2[T constraints.Unsigned](x T) bool {
	return x != 0 && x&(x-1) == 0
}

// Log2 returns floor(log2(x)) for x > 0 and 0 for x == 0.
func Log2[T constraints.Unsigned](x T) int {
	if x == 0 {
		return 0
	}
	return bits.Len64(uint64(x)) - 1
}

// NextPow2 returns the smallest power of two
// that is greater than or equal to x.
// NextPow2(0) is 1.
func NextPow2[T constraints.Unsigned](x T) T {
	if x <= 1 {
		return 1
	}
	return T(1) << bits.Len64(uint64(x-1))
}

// BytesFor returns the number of bytes
// needed to hold n bits.
func BytesFor[T constraints.Integer](n T) T {
	return (n + 7) >> 3
}
