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

package compr

import (
	"bytes"
	"testing"
)

func TestCodecs(t *testing.T) {
	ctl := bytes.Repeat([]byte("0101:1:8:0x41\n"), 500)
	for _, name := range []string{"zstd", "s2"} {
		c := Compression(name)
		if c == nil {
			t.Fatalf("no codec %q", name)
		}
		if c.Name() != name {
			t.Fatalf("bad codec name %q", c.Name())
		}
		cmp := c.Compress(ctl, nil)
		if len(cmp) >= len(ctl) {
			t.Errorf("%s: %d bytes compressed to %d", name, len(ctl), len(cmp))
		}
		out, err := c.Decompress(cmp, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(out, ctl) {
			t.Fatalf("%s: mismatch", name)
		}
		// appending to an existing prefix
		out, err = c.Decompress(cmp, []byte("prefix"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(out, []byte("prefix")) || !bytes.Equal(out[6:], ctl) {
			t.Fatalf("%s: mismatch with prefix", name)
		}
	}
	if Compression("lz4") != nil {
		t.Fatal("unexpected codec for lz4")
	}
}

func TestDetect(t *testing.T) {
	testcases := []struct {
		in, codec, rest string
	}{
		{"codes.txt", "", "codes.txt"},
		{"codes.txt.zst", "zstd", "codes.txt"},
		{"dir/codes.txt.S2", "s2", "dir/codes.txt"},
		{"codes", "", "codes"},
	}
	for _, tc := range testcases {
		c, rest := Detect(tc.in)
		name := ""
		if c != nil {
			name = c.Name()
		}
		if name != tc.codec || rest != tc.rest {
			t.Errorf("Detect(%q) = %q, %q; want %q, %q", tc.in, name, rest, tc.codec, tc.rest)
		}
	}
}
