// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package source

import "strings"

// Fortran cleaner states.
const (
	ftTop = iota
	ftDoubleQuote
	ftSingleQuote
	ftEscape
	ftVerifyContinue
	ftContinueFromSOL
)

// fortranCleaner strips Fortran comments and folds '&' continuations.
// It runs after cpp directive extraction, so it never sees directives.
type fortranCleaner struct {
	state  []int
	out    *mergedLine
	openmp bool
	// pending holds '&' and trailing blanks until we know whether they
	// start a continuation or are literal text.
	pending []byte
}

func newFortranCleaner(out *mergedLine, openmp bool) *fortranCleaner {
	return &fortranCleaner{state: []int{ftTop}, out: out, openmp: openmp}
}

func (fc *fortranCleaner) top() int { return fc.state[len(fc.state)-1] }

func (fc *fortranCleaner) push(s int) { fc.state = append(fc.state, s) }

func (fc *fortranCleaner) pop() { fc.state = fc.state[:len(fc.state)-1] }

// continuing reports whether the next line continues the current
// logical line.
func (fc *fortranCleaner) continuing() bool { return fc.top() == ftContinueFromSOL }

// bang handles a '!' at rest. An OpenMP sentinel ("!$", "!$omp", …) is
// kept as live text when openmp mode is on; anything else is a comment
// running to the end of the line.
func (fc *fortranCleaner) bang(rest string) {
	i := 0
	for i < len(rest) && isAlphaByte(rest[i]) {
		i++
	}
	if i < len(rest) && rest[i] == '$' && fc.openmp {
		fc.out.addRaw('!')
		for j := 0; j <= i; j++ {
			fc.out.addRaw(rest[j])
		}
		for j := i + 1; j < len(rest); j++ {
			fc.out.addRaw(rest[j])
		}
	}
}

func isAlphaByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (fc *fortranCleaner) processLine(line string) {
	for pos := 0; pos < len(line); pos++ {
		ch := line[pos]
		switch fc.top() {
		case ftTop:
			switch ch {
			case '\\':
				fc.push(ftEscape)
				fc.out.addRaw(ch)
			case '!':
				fc.bang(line[pos+1:])
				return
			case '&':
				fc.pending = append(fc.pending[:0], '&')
				fc.push(ftVerifyContinue)
			case '"':
				fc.push(ftDoubleQuote)
				fc.out.addRaw(ch)
			case '\'':
				fc.push(ftSingleQuote)
				fc.out.addRaw(ch)
			default:
				fc.out.addChar(ch)
			}
		case ftContinueFromSOL:
			switch {
			case isSpaceByte(ch):
				fc.out.addSpace()
			case ch == '&':
				fc.pop()
			case ch == '!':
				fc.bang(line[pos+1:])
				return
			default:
				fc.pop()
				pos--
			}
		case ftDoubleQuote:
			switch ch {
			case '\\':
				fc.push(ftEscape)
				fc.out.addRaw(ch)
			case '"':
				fc.pop()
				fc.out.addRaw(ch)
			case '&':
				fc.pending = append(fc.pending[:0], '&')
				fc.push(ftVerifyContinue)
			default:
				fc.out.addRaw(ch)
			}
		case ftSingleQuote:
			switch ch {
			case '\\':
				fc.push(ftEscape)
				fc.out.addRaw(ch)
			case '\'':
				fc.pop()
				fc.out.addRaw(ch)
			case '&':
				fc.pending = append(fc.pending[:0], '&')
				fc.push(ftVerifyContinue)
			default:
				fc.out.addRaw(ch)
			}
		case ftEscape:
			fc.out.addRaw(ch)
			fc.pop()
		case ftVerifyContinue:
			switch {
			case ch == '!' && fc.state[len(fc.state)-2] == ftTop:
				fc.bang(line[pos+1:])
				return
			case isSpaceByte(ch):
				fc.pending = append(fc.pending, ch)
			default:
				// Not a continuation: the '&' and blanks were literal.
				for _, p := range fc.pending {
					fc.out.addRaw(p)
				}
				fc.pending = fc.pending[:0]
				fc.pop()
				pos--
			}
		}
	}
	if fc.top() == ftVerifyContinue {
		// Line ended in '&': continuation. The pending text is dropped.
		fc.pending = fc.pending[:0]
		fc.state[len(fc.state)-1] = ftContinueFromSOL
	}
}

// fortranFreeLines lexes free-form Fortran: cpp directives first, then
// '!' comments and trailing-'&' continuations.
func fortranFreeLines(f *File, openmp bool) []LogicalLine {
	groups := cLines(f, true)
	var out []LogicalLine
	phys := &mergedLine{}
	fc := newFortranCleaner(phys, openmp)
	logical := &mergedLine{}
	start := 0
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
		start = 0
		codeLines = nil
	}

	lastEnd := 0
	for _, g := range groups {
		if g.Kind == Directive {
			if start != 0 {
				flush(lastEnd)
			}
			out = append(out, g)
			continue
		}
		if start == 0 {
			start = g.StartLine
		}
		phys.reset()
		fc.processLine(g.Text)
		if phys.category() != Blank {
			codeLines = append(codeLines, g.CodeLines...)
		}
		logical.join(phys)
		lastEnd = g.EndLine
		if !fc.continuing() {
			flush(g.EndLine)
		}
	}
	if start != 0 {
		flush(lastEnd)
	}
	return out
}

// fortranFixedLines lexes fixed-form Fortran directly from physical
// lines: column 1 comment markers, column 6 continuations, statement
// text in columns 7-72. cpp directives ('#' as the first non-blank
// character) are extracted with the usual backslash continuation rules.
func fortranFixedLines(f *File, openmp bool) []LogicalLine {
	var out []LogicalLine
	logical := &mergedLine{}
	start := 0
	lastEnd := 0
	var codeLines []int

	flush := func() {
		if start == 0 {
			return
		}
		kind := logical.category()
		if kind != Blank {
			out = append(out, LogicalLine{
				Kind:      kind,
				Text:      logical.flush(),
				StartLine: start,
				EndLine:   lastEnd,
				CodeLines: codeLines,
			})
		} else {
			logical.reset()
		}
		start = 0
		codeLines = nil
	}

	// Directive accumulation with backslash continuations.
	dirBuf := &mergedLine{}
	dirCleaner := newCCleaner(dirBuf, false)
	dirStart := 0
	var dirLines []int
	inDirective := false

	flushDirective := func(end int) {
		dirCleaner.logicalNewline()
		out = append(out, LogicalLine{
			Kind:      Directive,
			Text:      dirBuf.flush(),
			StartLine: dirStart,
			EndLine:   end,
			CodeLines: dirLines,
		})
		dirCleaner.state = []int{stTop}
		dirStart = 0
		dirLines = nil
		inDirective = false
	}

	for i, raw := range f.Lines {
		n := i + 1
		if inDirective || strings.HasPrefix(strings.TrimLeft(raw, " \t"), "#") {
			if !inDirective {
				flush()
				inDirective = true
				dirStart = n
			}
			dirLines = append(dirLines, n)
			line := raw
			continued := strings.HasSuffix(line, "\\")
			if continued {
				line = line[:len(line)-1]
			}
			dirCleaner.processLine(line)
			if !continued {
				flushDirective(n)
			}
			continue
		}

		text, class := fixedFormLine(raw, openmp)
		switch class {
		case fixedComment, fixedBlank:
			// Comments may sit between a statement and its continuation.
			continue
		case fixedContinuation:
			if start == 0 {
				start = n
			}
			if strings.TrimSpace(text) != "" {
				codeLines = append(codeLines, n)
			}
			appendFixed(logical, text)
			lastEnd = n
		case fixedStatement:
			flush()
			start = n
			if strings.TrimSpace(text) != "" {
				codeLines = append(codeLines, n)
			}
			appendFixed(logical, text)
			lastEnd = n
		}
	}
	flush()
	return out
}

type fixedClass int

const (
	fixedBlank fixedClass = iota
	fixedComment
	fixedStatement
	fixedContinuation
)

// fixedFormLine classifies one fixed-form physical line and returns its
// statement text with inline comments stripped.
func fixedFormLine(raw string, openmp bool) (string, fixedClass) {
	if strings.TrimSpace(raw) == "" {
		return "", fixedBlank
	}
	switch raw[0] {
	case 'C', 'c', '*', '!':
		if openmp && len(raw) > 1 && raw[1] == '$' {
			// Sentinel line: statement or continuation per column 6.
			if len(raw) >= 6 && raw[5] != ' ' && raw[5] != '0' {
				return stripFixedComment(clipColumns(raw)), fixedContinuation
			}
			return stripFixedComment(clipColumns(raw)), fixedStatement
		}
		return "", fixedComment
	}
	if len(raw) >= 6 && raw[5] != ' ' && raw[5] != '0' && strings.TrimSpace(raw[:5]) == "" {
		return stripFixedComment(clipColumns(raw)), fixedContinuation
	}
	return stripFixedComment(clipColumns(raw)), fixedStatement
}

// clipColumns drops the label field and anything past column 72.
func clipColumns(raw string) string {
	if len(raw) > 72 {
		raw = raw[:72]
	}
	if len(raw) <= 6 {
		return ""
	}
	return raw[6:]
}

// stripFixedComment removes a trailing '!' comment outside quotes.
// Doubled quotes escape themselves inside their own delimiter.
func stripFixedComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case quote != 0 && ch == quote:
			if i+1 < len(s) && s[i+1] == quote {
				i++
				continue
			}
			quote = 0
		case quote == 0 && (ch == '\'' || ch == '"'):
			quote = ch
		case quote == 0 && ch == '!':
			return s[:i]
		}
	}
	return s
}

func appendFixed(m *mergedLine, text string) {
	if len(m.parts) > 0 {
		m.addSpace()
	}
	for i := 0; i < len(text); i++ {
		m.addChar(text[i])
	}
}
