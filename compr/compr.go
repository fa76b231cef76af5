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

// Package compr wraps the third-party compression
// libraries accepted for code table files.
package compr

import (
	"path"
	"runtime"
	"strings"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Codec is a compression algorithm.
type Codec interface {
	// Name is the name of the algorithm.
	Name() string
	// Ext is the file name extension, including the dot.
	Ext() string
	// Compress appends the compressed
	// contents of src to dst.
	Compress(src, dst []byte) []byte
	// Decompress appends the decompressed
	// contents of src to dst.
	//
	// It must be safe to make multiple
	// calls to Decompress simultaneously
	// from different goroutines.
	Decompress(src, dst []byte) ([]byte, error)
}

var (
	zstdDecoder *zstd.Decoder
	zstdEncoder *zstd.Encoder
)

func init() {
	z, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = z
	e, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	zstdEncoder = e
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }
func (zstdCodec) Ext() string  { return ".zst" }

func (zstdCodec) Compress(src, dst []byte) []byte {
	return zstdEncoder.EncodeAll(src, dst)
}

func (zstdCodec) Decompress(src, dst []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(src, dst)
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }
func (s2Codec) Ext() string  { return ".s2" }

func (s2Codec) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

func (s2Codec) Decompress(src, dst []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return dst, err
	}
	if len(dst) == 0 {
		return s2.Decode(make([]byte, n), src)
	}
	got, err := s2.Decode(make([]byte, n), src)
	if err != nil {
		return dst, err
	}
	return append(dst, got...), nil
}

var codecs = []Codec{zstdCodec{}, s2Codec{}}

// Compression selects a codec by name.
// It returns nil for unknown names.
func Compression(name string) Codec {
	for _, c := range codecs {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Detect returns the codec matching the extension
// of name along with name stripped of that extension.
// If name has no compression extension, Detect
// returns nil and name unchanged.
func Detect(name string) (Codec, string) {
	ext := path.Ext(name)
	for _, c := range codecs {
		if strings.EqualFold(ext, c.Ext()) {
			return c, strings.TrimSuffix(name, ext)
		}
	}
	return nil, name
}
