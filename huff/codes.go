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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/SnellerInc/bitcode"
)

// SyntaxError describes a malformed code table.
// It wraps bitcode.ErrFormatNotSupported.
type SyntaxError struct {
	Line, Col int
	Msg       string
}

func (s *SyntaxError) Error() string {
	return fmt.Sprintf("huff: line %d col %d: %s", s.Line, s.Col, s.Msg)
}

func (s *SyntaxError) Unwrap() error { return bitcode.ErrFormatNotSupported }

type parser struct {
	src       []byte
	pos       int
	line, col int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) advance() {
	if p.src[p.pos] == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	p.pos++
}

func (p *parser) errorf(f string, args ...any) error {
	return &SyntaxError{Line: p.line, Col: p.col, Msg: fmt.Sprintf(f, args...)}
}

func isNewline(c byte) bool { return c == '\n' || c == '\r' }

// skip skips blanks and comments, and
// newlines as well if nl is set
func (p *parser) skip(nl bool) error {
	for !p.eof() {
		c := p.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			p.advance()
		case isNewline(c):
			if !nl {
				return nil
			}
			p.advance()
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for !p.eof() && !isNewline(p.peek()) {
				p.advance()
			}
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
			line, col := p.line, p.col
			p.advance()
			p.advance()
			for {
				if p.eof() {
					return &SyntaxError{Line: line, Col: col, Msg: "unterminated comment"}
				}
				if p.peek() == '*' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/' {
					p.advance()
					p.advance()
					break
				}
				p.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

// more reports whether another field follows,
// looking past blanks, comments and newlines;
// the position is only moved if it does
func (p *parser) more() (bool, error) {
	save := *p
	if err := p.skip(true); err != nil {
		return false, err
	}
	if p.peek() == ':' {
		p.advance()
		return true, p.skip(true)
	}
	*p = save
	return false, nil
}

func (p *parser) expect(c byte) error {
	if err := p.skip(true); err != nil {
		return err
	}
	if p.peek() != c {
		if p.eof() {
			return p.errorf("expected %q, found end of input", c)
		}
		return p.errorf("expected %q, found %q", c, p.peek())
	}
	p.advance()
	return p.skip(true)
}

func (p *parser) word(ok func(c byte) bool) string {
	start := p.pos
	for !p.eof() && ok(p.peek()) {
		p.advance()
	}
	return string(p.src[start:p.pos])
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isName(c byte) bool { return isAlnum(c) || c == '.' || c == '-' }

func (p *parser) number(what string) (uint64, error) {
	line, col := p.line, p.col
	s := p.word(isAlnum)
	if s == "" {
		return 0, p.errorf("expected %s", what)
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base, s = 16, s[2:]
		case 'o', 'O':
			base, s = 8, s[2:]
		case 'b', 'B':
			base, s = 2, s[2:]
		case 'd', 'D':
			base, s = 10, s[2:]
		}
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf("bad %s %q", what, s)}
	}
	return v, nil
}

func (p *parser) number32(what string) (uint32, error) {
	line, col := p.line, p.col
	v, err := p.number(what)
	if err != nil {
		return 0, err
	}
	if v > 0xffffffff {
		return 0, &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf("%s %d out of range", what, v)}
	}
	return uint32(v), nil
}

func (p *parser) entry() (CodeDesc, error) {
	var d CodeDesc
	line, col := p.line, p.col
	bits := p.word(func(c byte) bool { return c == '0' || c == '1' })
	if bits == "" {
		return d, p.errorf("expected code bits, found %q", p.peek())
	}
	if len(bits) > MaxCodeLen {
		return d, &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf("code of %d bits is longer than %d", len(bits), MaxCodeLen)}
	}
	d.Code = MustBitRun(bits)
	if err := p.expect(':'); err != nil {
		return d, err
	}
	if c := p.peek(); (c == 'E' || c == 'e') && !isName(peekAt(p, 1)) {
		p.advance()
		esc := &Escape{Name: bits, Code: d.Code}
		ok, err := p.more()
		if err != nil {
			return d, err
		}
		if ok {
			if esc.Name = p.word(isName); esc.Name == "" {
				return d, p.errorf("expected escape name")
			}
		}
		d.Escape = esc
		d.Count = 1
		return d, nil
	}
	var err error
	if d.Count, err = p.number32("count"); err != nil {
		return d, err
	}
	if err := p.expect(':'); err != nil {
		return d, err
	}
	vline, vcol := p.line, p.col
	first, err := p.number32("value")
	if err != nil {
		return d, err
	}
	ok, err := p.more()
	if err != nil {
		return d, err
	}
	if !ok {
		// no explicit value length
		d.Value = BitRun{Bits: first, Length: uint8(bitsLen(first))}
		return d, nil
	}
	if first < 1 || first > MaxCodeLen {
		return d, &SyntaxError{Line: vline, Col: vcol, Msg: fmt.Sprintf("value length %d out of range", first)}
	}
	vline, vcol = p.line, p.col
	v, err := p.number32("value")
	if err != nil {
		return d, err
	}
	d.Value = BitRun{Bits: v, Length: uint8(first)}
	if d.Value.check(1) != nil {
		return d, &SyntaxError{Line: vline, Col: vcol, Msg: fmt.Sprintf("value %#x does not fit in %d bits", v, first)}
	}
	return d, nil
}

func peekAt(p *parser, off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func bitsLen(v uint32) int {
	n := 1
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// ParseCodes parses a code table, one entry per line:
//
//	<bits>:<count>[:<value-length>]:<value>
//	<bits>:E[:<name>]
//
// where bits is a string of '0' and '1' in read
// order and the numbers are decimal or prefixed
// with 0x, 0o, 0b or 0d. Blanks, newlines and
// comments may appear between fields. Without a
// value length, the value is as wide as its highest
// set bit. Escapes without a name are named after
// their code.
//
// On a syntax error, ParseCodes returns a
// *SyntaxError and no descriptors.
func ParseCodes(src []byte) ([]CodeDesc, error) {
	p := &parser{src: src, line: 1, col: 1}
	var out []CodeDesc
	for {
		if err := p.skip(true); err != nil {
			return nil, err
		}
		if p.eof() {
			return out, nil
		}
		d, err := p.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		if err := p.skip(false); err != nil {
			return nil, err
		}
		if !p.eof() && !isNewline(p.peek()) {
			return nil, p.errorf("expected end of line, found %q", p.peek())
		}
	}
}

// FormatCodes writes descs in the form read by ParseCodes.
func FormatCodes(w io.Writer, descs []CodeDesc) error {
	bw := bufio.NewWriter(w)
	for i := range descs {
		d := &descs[i]
		if d.Escape != nil {
			name := d.Escape.Name
			if name == "" || strings.IndexFunc(name, func(r rune) bool { return r > 0x7f || !isName(byte(r)) }) >= 0 {
				return fmt.Errorf("huff.FormatCodes: escape name %q: %w", name, bitcode.ErrInvalidParameter)
			}
			fmt.Fprintf(bw, "%s:E:%s\n", d.Code, name)
			continue
		}
		fmt.Fprintf(bw, "%s:%d:%d:%#x\n", d.Code, d.Count, d.Value.Length, d.Value.Bits)
	}
	return bw.Flush()
}
