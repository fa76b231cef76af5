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
	"bytes"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/SnellerInc/bitcode"
	"github.com/SnellerInc/bitcode/compr"
)

const abcText = `// test table
0 : 1 : 8 : 0x41
10:2:0x42        /* value width is inferred */
110:E
111:e:eob
1110
  :1
  :4:0o7
`

func TestParseCodes(t *testing.T) {
	descs, err := ParseCodes([]byte(abcText))
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 5 {
		t.Fatalf("got %d descriptors", len(descs))
	}
	if d := descs[0]; d.Code != MustBitRun("0") || d.Value != Run(0x41, 8) || d.Count != 1 {
		t.Errorf("descriptor 0: %+v", d)
	}
	if d := descs[1]; d.Value != Run(0x42, 7) || d.Count != 2 {
		t.Errorf("descriptor 1: %+v", d)
	}
	if d := descs[2]; d.Escape == nil || d.Escape.Name != "110" || d.Escape.Code != MustBitRun("110") {
		t.Errorf("descriptor 2: %+v", d)
	}
	if d := descs[3]; d.Escape == nil || d.Escape.Name != "eob" {
		t.Errorf("descriptor 3: %+v", d)
	}
	if d := descs[4]; d.Code != MustBitRun("1110") || d.Value != Run(7, 4) {
		t.Errorf("descriptor 4: %+v", d)
	}

	c := newContext(t)
	tbl, err := c.NewTable(0, descs[:4])
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendCodes(descs[4:]); !errors.Is(err, bitcode.ErrEntryOccupied) {
		t.Fatalf("1110 should collide with 111: %v", err)
	}
	if tbl.Len() != 4 {
		t.Fatalf("Len() = %d", tbl.Len())
	}
}

func TestParseErrors(t *testing.T) {
	testcases := []struct {
		src       string
		line, col int
	}{
		{"2:1:1", 1, 1},
		{"0:1", 1, 4},
		{"0:1:0xzz", 1, 5},
		{"0:1:33:1", 1, 5},
		{"0:1:2:7", 1, 7},
		{"0:1:8:1 junk", 1, 9},
		{"0:1:8:1\n\n1:x", 3, 3},
		{"0:1:1:1\n/* open", 2, 1},
		{"0:E:", 1, 5},
		{strings.Repeat("1", 33) + ":1:1", 1, 1},
	}
	for _, tc := range testcases {
		descs, err := ParseCodes([]byte(tc.src))
		if descs != nil {
			t.Errorf("%q: returned descriptors on error", tc.src)
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("%q: got %v", tc.src, err)
			continue
		}
		if !errors.Is(err, bitcode.ErrFormatNotSupported) {
			t.Errorf("%q: does not wrap ErrFormatNotSupported", tc.src)
		}
		if se.Line != tc.line || se.Col != tc.col {
			t.Errorf("%q: error at %d:%d, want %d:%d (%s)", tc.src, se.Line, se.Col, tc.line, tc.col, se.Msg)
		}
	}
}

func TestFormatCodes(t *testing.T) {
	descs, err := ParseCodes([]byte(abcText))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := FormatCodes(&buf, descs); err != nil {
		t.Fatal(err)
	}
	want := "0:1:8:0x41\n10:2:7:0x42\n110:E:110\n111:E:eob\n1110:1:4:0x7\n"
	if buf.String() != want {
		t.Fatalf("got\n%s", buf.String())
	}
	again, err := ParseCodes(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if Fingerprint(again) != Fingerprint(descs) {
		t.Fatal("formatted codes parse differently")
	}
	bad := []CodeDesc{{Code: MustBitRun("1"), Escape: &Escape{Name: "two words"}}}
	if err := FormatCodes(&buf, bad); !errors.Is(err, bitcode.ErrInvalidParameter) {
		t.Fatalf("bad name: %v", err)
	}
}

func TestLoad(t *testing.T) {
	text := []byte(abcText)
	fsys := fstest.MapFS{
		"abc.txt":      {Data: text},
		"abc.TXT.zst":  {Data: compr.Compression("zstd").Compress(text, nil)},
		"abc.txt.s2":   {Data: compr.Compression("s2").Compress(text, nil)},
		"abc.bin":      {Data: text},
		"bad.txt.zst":  {Data: []byte("not zstd")},
		"syntax.txt":   {Data: []byte("0:x")},
		"abc.json.zst": {Data: compr.Compression("zstd").Compress(text, nil)},
	}
	var tags []string
	for _, name := range []string{"abc.txt", "abc.TXT.zst", "abc.txt.s2"} {
		src, err := LoadFS(fsys, name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if src.Name != name || len(src.Codes) != 5 || !strings.HasPrefix(src.ETag, "b2sum:") {
			t.Fatalf("%s: %+v", name, src)
		}
		tags = append(tags, src.ETag)
	}
	if tags[0] == tags[1] || tags[1] == tags[2] {
		t.Fatal("etags of different files should differ")
	}
	again, err := Load(bytes.NewReader(text), "other.txt")
	if err != nil {
		t.Fatal(err)
	}
	if again.ETag != tags[0] {
		t.Fatal("etag depends on more than the contents")
	}
	for name, want := range map[string]error{
		"abc.bin":      bitcode.ErrFormatNotSupported,
		"abc.json.zst": bitcode.ErrFormatNotSupported,
		"bad.txt.zst":  bitcode.ErrInvalidData,
		"syntax.txt":   bitcode.ErrFormatNotSupported,
		"missing.txt":  fs.ErrNotExist,
	} {
		if _, err := LoadFS(fsys, name); !errors.Is(err, want) {
			t.Errorf("%s: got %v, want %v", name, err, want)
		}
	}
}

func FuzzParseCodes(f *testing.F) {
	f.Add([]byte(abcText))
	f.Add([]byte("0:e\n1:0x10:0b1\n"))
	f.Add([]byte("/* */ 01 : 2 : 3 : 0d4 // x"))
	f.Fuzz(func(t *testing.T, src []byte) {
		descs, err := ParseCodes(src)
		if err != nil {
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("error %v is not a *SyntaxError", err)
			}
			return
		}
		var buf bytes.Buffer
		if err := FormatCodes(&buf, descs); err != nil {
			t.Fatal(err)
		}
		again, err := ParseCodes(buf.Bytes())
		if err != nil {
			t.Fatalf("reparsing %q: %v", buf.String(), err)
		}
		if Fingerprint(again) != Fingerprint(descs) {
			t.Fatalf("%q formats as %q", src, buf.String())
		}
	})
}
