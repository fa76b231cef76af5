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
	"encoding/base32"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/compr"
)

// Source is a code table loaded from a file.
type Source struct {
	// Name is the file name the table was loaded from.
	Name string
	// ETag identifies the raw file contents.
	ETag string
	// Codes are the parsed descriptors.
	Codes []CodeDesc
}

func etag(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return "b2sum:" + base32.StdEncoding.EncodeToString(sum[:])
}

// Decode parses the contents of a table file. The
// format is selected by the extension of name: ".txt"
// files hold text as accepted by ParseCodes, optionally
// followed by ".zst" or ".s2" for compressed text.
// Other names fail with bitcode.ErrFormatNotSupported.
func Decode(name string, raw []byte) (*Source, error) {
	c, rest := compr.Detect(name)
	if !strings.EqualFold(path.Ext(rest), ".txt") {
		return nil, fmt.Errorf("huff.Decode: %s: %w", name, bitcode.ErrFormatNotSupported)
	}
	text := raw
	if c != nil {
		var err error
		text, err = c.Decompress(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("huff.Decode: %s: %s: %w", name, err, bitcode.ErrInvalidData)
		}
	}
	codes, err := ParseCodes(text)
	if err != nil {
		return nil, fmt.Errorf("huff.Decode: %s: %w", name, err)
	}
	return &Source{Name: name, ETag: etag(raw), Codes: codes}, nil
}

// Load reads a table file from r.
// See Decode for the accepted formats.
func Load(r io.Reader, name string) (*Source, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(name, raw)
}

// LoadFS reads the table file name from fsys.
func LoadFS(fsys fs.FS, name string) (*Source, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return Decode(name, raw)
}
