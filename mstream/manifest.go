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
	"fmt"
	"io/fs"
	"sort"

	"golang.org/x/exp/maps"
	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/huff"
)

// Manifest describes a Binary: the code tables
// it uses and the layout of its streams.
//
// An example manifest:
//
//	maxWidth: 8
//	default: main
//	tables:
//	  main: tables/main.txt
//	  lengths: tables/lengths.txt.zst
//	streams:
//	  - file: body.bin
//	  - file: body.bin
//	    offset: 1024
//	    bits: 300
//	    table: lengths
//	    blocks:
//	      - {offset: 1024, bits: 100}
type Manifest struct {
	// MaxWidth is the maximum width of a
	// table level; zero leaves the default
	// of the huff.Context in effect.
	MaxWidth int `json:"maxWidth,omitempty"`
	// Default names the default table.
	Default string `json:"default,omitempty"`
	// Tables maps table names to table files.
	Tables map[string]string `json:"tables"`
	// Streams lists the streams in order.
	Streams []StreamSpec `json:"streams"`
}

// StreamSpec describes one stream of a Manifest.
type StreamSpec struct {
	// File is the file holding the stream data.
	File string `json:"file"`
	// Offset is the first bit of the stream.
	Offset int `json:"offset,omitempty"`
	// Bits is the length of the stream; zero
	// means the rest of the file, including the
	// zero padding of its last byte, which decodes
	// as symbols if a code consists of zero bits.
	Bits int `json:"bits,omitempty"`
	// Table names the table decoding the
	// stream; empty means the default table.
	Table string `json:"table,omitempty"`
	// Blocks lists the blocks of the stream.
	Blocks []BlockSpec `json:"blocks,omitempty"`
}

// BlockSpec describes one block of a stream.
type BlockSpec struct {
	Offset int `json:"offset"`
	Bits   int `json:"bits"`
}

// ParseManifest parses a YAML manifest.
// Unknown fields are rejected.
func ParseManifest(src []byte) (*Manifest, error) {
	m := new(Manifest)
	if err := yaml.UnmarshalStrict(src, m); err != nil {
		return nil, fmt.Errorf("mstream.ParseManifest: %s: %w", err, bitcode.ErrInvalidData)
	}
	if err := m.check(); err != nil {
		return nil, fmt.Errorf("mstream.ParseManifest: %w", err)
	}
	return m, nil
}

// LoadManifest reads and parses the manifest name from fsys.
func LoadManifest(fsys fs.FS, name string) (*Manifest, error) {
	src, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return ParseManifest(src)
}

func (m *Manifest) check() error {
	if len(m.Streams) == 0 {
		return fmt.Errorf("no streams: %w", bitcode.ErrInvalidParameter)
	}
	if m.MaxWidth < 0 {
		return fmt.Errorf("max width %d: %w", m.MaxWidth, bitcode.ErrInvalidParameter)
	}
	if _, ok := m.Tables[m.Default]; m.Default != "" && !ok {
		return fmt.Errorf("default table %q: %w", m.Default, bitcode.ErrNotFound)
	}
	for i := range m.Streams {
		s := &m.Streams[i]
		if s.File == "" {
			return fmt.Errorf("stream %d has no file: %w", i, bitcode.ErrInvalidParameter)
		}
		if s.Table == "" && m.Default == "" {
			return fmt.Errorf("stream %d has no table and there is no default: %w", i, bitcode.ErrInvalidState)
		}
		if _, ok := m.Tables[s.Table]; s.Table != "" && !ok {
			return fmt.Errorf("stream %d: table %q: %w", i, s.Table, bitcode.ErrNotFound)
		}
	}
	return nil
}

// TableNames returns the names of the
// tables of m in lexical order.
func (m *Manifest) TableNames() []string {
	names := maps.Keys(m.Tables)
	sort.Strings(names)
	return names
}

// Build loads the tables and stream data named by
// m from fsys and returns the configured Binary.
// Tables are created in ctx; table files with
// the same codes in the same order share one
// table, whatever the file format.
func (m *Manifest) Build(fsys fs.FS, ctx *huff.Context, opts ...Option) (*Binary, error) {
	if err := m.check(); err != nil {
		return nil, fmt.Errorf("mstream.Manifest.Build: %w", err)
	}
	b, err := NewBinary(nil, len(m.Streams), opts...)
	if err != nil {
		return nil, err
	}
	var topts []huff.TableOption
	if m.MaxWidth != 0 {
		topts = append(topts, huff.WithTableMaxWidth(m.MaxWidth))
	}
	byCodes := make(map[uint64]*huff.Table)
	tables := make(map[string]*huff.Table, len(m.Tables))
	for _, name := range m.TableNames() {
		file := m.Tables[name]
		src, err := huff.LoadFS(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("mstream.Manifest.Build: table %q: %w", name, err)
		}
		fp := huff.Fingerprint(src.Codes)
		if t, ok := byCodes[fp]; ok {
			b.logf("mstream: table %q (%s) shares codes %016x", name, file, fp)
			tables[name] = t
			continue
		}
		t, err := ctx.NewTable(0, src.Codes, topts...)
		if err != nil {
			return nil, fmt.Errorf("mstream.Manifest.Build: table %q: %w", name, err)
		}
		b.logf("mstream: loaded table %q from %s: %d codes, etag %s", name, file, t.Len(), src.ETag)
		byCodes[fp] = t
		tables[name] = t
	}
	if m.Default != "" {
		b.SetDefault(tables[m.Default])
	}
	files := make(map[string][]byte)
	for i := range m.Streams {
		s := &m.Streams[i]
		data, ok := files[s.File]
		if !ok {
			data, err = fs.ReadFile(fsys, s.File)
			if err != nil {
				return nil, fmt.Errorf("mstream.Manifest.Build: stream %d: %w", i, err)
			}
			files[s.File] = data
		}
		n := s.Bits
		if n == 0 {
			n = len(data)*8 - s.Offset
		}
		if err := b.SetStream(i, data, s.Offset, n, tables[s.Table]); err != nil {
			return nil, fmt.Errorf("mstream.Manifest.Build: %w", err)
		}
		if len(s.Blocks) == 0 {
			continue
		}
		if err := b.SetBlockCount(i, len(s.Blocks)); err != nil {
			return nil, fmt.Errorf("mstream.Manifest.Build: %w", err)
		}
		for j, blk := range s.Blocks {
			if err := b.SetBlock(i, j, blk.Offset, blk.Bits); err != nil {
				return nil, fmt.Errorf("mstream.Manifest.Build: %w", err)
			}
		}
	}
	return b, nil
}
