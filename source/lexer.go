// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package source

import (
	"strings"

	"github.com/charmbracelet/log"
)

// Kind classifies a logical line.
type Kind int

const (
	Blank Kind = iota
	Code
	Directive
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case Code:
		return "code"
	case Directive:
		return "directive"
	}
	return "blank"
}

// LogicalLine is one logical line: one or more physical lines folded by
// continuations, with comments stripped and whitespace runs merged.
// CodeLines lists the physical lines that contributed non-blank text;
// those are the countable lines for attribution.
type LogicalLine struct {
	Kind      Kind
	Text      string
	StartLine int
	EndLine   int
	CodeLines []int
}

// Options selects the lexing rules.
type Options struct {
	Language Language
	// OpenMP makes Fortran "!$" sentinel lines live instead of comments.
	OpenMP bool
}

// LogicalLines splits f into classified logical lines.
func LogicalLines(f *File, opts Options) []LogicalLine {
	switch opts.Language {
	case LangFortranFree:
		return fortranFreeLines(f, opts.OpenMP)
	case LangFortranFixed:
		return fortranFixedLines(f, opts.OpenMP)
	default:
		return cLines(f, false)
	}
}

// mergedLine accumulates characters of a line while collapsing
// whitespace runs into a single space.
type mergedLine struct {
	parts         []byte
	trailingSpace bool
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\v', '\f':
		return true
	}
	return false
}

func (m *mergedLine) addChar(c byte) {
	if isSpaceByte(c) {
		m.addSpace()
		return
	}
	m.parts = append(m.parts, c)
	m.trailingSpace = false
}

func (m *mergedLine) addSpace() {
	if !m.trailingSpace {
		m.parts = append(m.parts, ' ')
		m.trailingSpace = true
	}
}

func (m *mergedLine) addRaw(c byte) {
	m.parts = append(m.parts, c)
	m.trailingSpace = false
}

func (m *mergedLine) join(other *mergedLine) {
	if len(other.parts) == 0 {
		return
	}
	if other.parts[0] == ' ' && m.trailingSpace {
		m.parts = append(m.parts, other.parts[1:]...)
	} else {
		m.parts = append(m.parts, other.parts...)
	}
	m.trailingSpace = other.trailingSpace
}

func (m *mergedLine) category() Kind {
	s := m.parts
	if len(s) == 0 || (len(s) == 1 && s[0] == ' ') {
		return Blank
	}
	if s[0] == '#' || (s[0] == ' ' && s[1] == '#') {
		return Directive
	}
	return Code
}

func (m *mergedLine) flush() string {
	s := strings.TrimSpace(string(m.parts))
	m.reset()
	return s
}

func (m *mergedLine) reset() {
	m.parts = m.parts[:0]
	m.trailingSpace = false
}

// C cleaner states.
const (
	stTop = iota
	stDirective
	stDoubleQuote
	stSingleQuote
	stFoundSlash
	stBlockComment
	stBlockCommentStar
	stEscape
	stLineComment
)

// cCleaner strips comments from C/C++ source while tracking string and
// comment state across physical lines. directivesOnly leaves
// non-directive lines untouched apart from whitespace merging, for use
// as the first stage of Fortran lexing.
type cCleaner struct {
	state          []int
	out            *mergedLine
	directivesOnly bool
}

func newCCleaner(out *mergedLine, directivesOnly bool) *cCleaner {
	return &cCleaner{state: []int{stTop}, out: out, directivesOnly: directivesOnly}
}

func (c *cCleaner) top() int { return c.state[len(c.state)-1] }

func (c *cCleaner) push(s int) { c.state = append(c.state, s) }

func (c *cCleaner) pop() { c.state = c.state[:len(c.state)-1] }

// logicalNewline resets per-line state at the end of a logical line.
func (c *cCleaner) logicalNewline() {
	switch c.top() {
	case stLineComment:
		c.state = []int{stTop}
		c.out.addSpace()
	case stFoundSlash:
		c.state = []int{stTop}
		c.out.addRaw('/')
	case stSingleQuote, stDoubleQuote:
		// Unterminated literal at end of line.
		c.state = []int{stTop}
	case stBlockCommentStar:
		c.pop()
	case stDirective:
		c.state = []int{stTop}
	}
}

func (c *cCleaner) processLine(line string) {
	for pos := 0; pos < len(line); pos++ {
		ch := line[pos]
		switch c.top() {
		case stTop:
			switch {
			case ch == '\\':
				c.push(stEscape)
				c.out.addRaw(ch)
			case ch == '/' && !c.directivesOnly:
				c.push(stFoundSlash)
			case ch == '"' && !c.directivesOnly:
				c.push(stDoubleQuote)
				c.out.addRaw(ch)
			case ch == '\'' && !c.directivesOnly:
				c.push(stSingleQuote)
				c.out.addRaw(ch)
			case ch == '#' && c.out.category() == Blank:
				c.push(stDirective)
				c.out.addRaw(ch)
			default:
				c.out.addChar(ch)
			}
		case stDirective:
			switch ch {
			case '\\':
				c.push(stEscape)
				c.out.addRaw(ch)
			case '/':
				c.push(stFoundSlash)
			case '"':
				c.push(stDoubleQuote)
				c.out.addRaw(ch)
			case '\'':
				c.push(stSingleQuote)
				c.out.addRaw(ch)
			default:
				c.out.addChar(ch)
			}
		case stDoubleQuote:
			switch ch {
			case '\\':
				c.push(stEscape)
				c.out.addRaw(ch)
			case '"':
				c.pop()
				c.out.addRaw(ch)
			default:
				c.out.addRaw(ch)
			}
		case stSingleQuote:
			switch ch {
			case '\\':
				c.push(stEscape)
				c.out.addRaw(ch)
			case '\'':
				c.pop()
				c.out.addRaw(ch)
			default:
				c.out.addRaw(ch)
			}
		case stFoundSlash:
			switch ch {
			case '/':
				c.pop()
				c.push(stLineComment)
			case '*':
				c.pop()
				c.push(stBlockComment)
			default:
				c.pop()
				c.out.addChar('/')
				pos--
			}
		case stBlockComment:
			if ch == '*' {
				c.push(stBlockCommentStar)
			}
		case stBlockCommentStar:
			switch ch {
			case '/':
				c.pop()
				c.pop()
				c.out.addSpace()
			case '*':
			default:
				c.pop()
			}
		case stEscape:
			c.out.addRaw(ch)
			c.pop()
		case stLineComment:
			return
		}
	}
}

// cLines folds continuations and comments into logical lines.
func cLines(f *File, directivesOnly bool) []LogicalLine {
	var out []LogicalLine
	phys := &mergedLine{}
	cleaner := newCCleaner(phys, directivesOnly)
	logical := &mergedLine{}
	start := 1
	var codeLines []int

	flush := func(end int) {
		kind := logical.category()
		if kind != Blank {
			out = append(out, LogicalLine{
				Kind:      kind,
				Text:      logical.flush(),
				StartLine: start,
				EndLine:   end,
				CodeLines: codeLines,
			})
		} else {
			logical.reset()
		}
		start = end + 1
		codeLines = nil
	}

	for i, raw := range f.Lines {
		n := i + 1
		phys.reset()
		line := raw
		continued := strings.HasSuffix(line, "\\")
		if continued {
			line = line[:len(line)-1]
			if n == f.NumLines() {
				log.Warnf("%s:%d: backslash continuation at end of file", f.Path, n)
				continued = false
			}
		}
		cleaner.processLine(line)
		if continued && cleaner.top() == stLineComment {
			// A // comment ends at the physical line; its trailing
			// backslash is comment text, not a splice.
			continued = false
		}
		if !continued {
			cleaner.logicalNewline()
		}
		if phys.category() != Blank {
			codeLines = append(codeLines, n)
		}
		logical.join(phys)
		if !continued {
			flush(n)
		}
	}
	if logical.category() != Blank {
		flush(f.NumLines())
	}
	if cleaner.top() != stTop {
		log.Warnf("%s: unterminated comment or literal at end of file", f.Path)
	}
	return out
}
