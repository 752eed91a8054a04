// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package preprocessor decides which source lines survive preprocessing
// under a given platform configuration. It covers directive parsing,
// macro expansion, #if evaluation, specialization tree building and the
// per-platform walk that attributes lines to platforms.
package preprocessor

import "strings"

// TokenKind discriminates preprocessing tokens.
type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenString
	TokenChar
	TokenPunct
	TokenPlacemarker
	TokenOther
)

// Token is one preprocessing token. The hide set carries the macro
// names forbidden from re-expansion; once a name enters a token's hide
// set it never leaves.
type Token struct {
	Kind      TokenKind
	Spell     string
	PrevWhite bool
	Line      int
	hide      map[string]struct{}
}

// Hidden reports whether name is in the token's hide set.
func (t Token) Hidden(name string) bool {
	_, ok := t.hide[name]
	return ok
}

// withHide returns a copy of t whose hide set additionally contains the
// given names. The original hide set is never mutated; sets are shared
// between tokens until grown.
func (t Token) withHide(names ...string) Token {
	add := 0
	for _, n := range names {
		if !t.Hidden(n) {
			add++
		}
	}
	if add == 0 {
		return t
	}
	h := make(map[string]struct{}, len(t.hide)+add)
	for n := range t.hide {
		h[n] = struct{}{}
	}
	for _, n := range names {
		h[n] = struct{}{}
	}
	t.hide = h
	return t
}

// hideUnion returns a copy of t hiding every name hidden by either t
// or o.
func (t Token) hideUnion(o Token) Token {
	var names []string
	for n := range o.hide {
		names = append(names, n)
	}
	return t.withHide(names...)
}

func ident(spell string) Token {
	return Token{Kind: TokenIdent, Spell: spell}
}

func punct(spell string) Token {
	return Token{Kind: TokenPunct, Spell: spell}
}

func number(spell string) Token {
	return Token{Kind: TokenNumber, Spell: spell}
}

// multi-character punctuators recognized by the pp lexer, longest
// first.
var punctuators = []string{
	"<<=", ">>=", "...",
	"<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "##",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "->",
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Tokenize splits the text of one logical line into preprocessing
// tokens. The input has already had comments stripped and whitespace
// merged by the source lexer.
func Tokenize(s string, line int) []Token {
	var toks []Token
	prevWhite := false
	pos := 0
	for pos < len(s) {
		c := s[pos]
		if isSpace(c) {
			prevWhite = true
			pos++
			continue
		}
		start := pos
		var kind TokenKind
		switch {
		case isDigit(c) || (c == '.' && pos+1 < len(s) && isDigit(s[pos+1])):
			kind = TokenNumber
			pos = scanNumber(s, pos)
		case isIdentStart(c):
			kind = TokenIdent
			for pos < len(s) && isIdentCont(s[pos]) {
				pos++
			}
		case c == '"':
			kind = TokenString
			pos = scanQuoted(s, pos, '"')
		case c == '\'':
			kind = TokenChar
			pos = scanQuoted(s, pos, '\'')
		default:
			kind = TokenPunct
			pos = scanPunct(s, pos)
		}
		toks = append(toks, Token{
			Kind:      kind,
			Spell:     s[start:pos],
			PrevWhite: prevWhite,
			Line:      line,
		})
		prevWhite = false
	}
	return toks
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\v', '\f':
		return true
	}
	return false
}

// scanNumber consumes a pp-number: digits, letters, underscores,
// periods and sign-bearing exponents.
func scanNumber(s string, pos int) int {
	pos++
	for pos < len(s) {
		c := s[pos]
		switch {
		case pos+1 < len(s) && (c == 'e' || c == 'E' || c == 'p' || c == 'P') &&
			(s[pos+1] == '+' || s[pos+1] == '-'):
			pos += 2
		case isIdentCont(c) || c == '.':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// scanQuoted consumes a string or character literal; an unterminated
// literal runs to the end of the line.
func scanQuoted(s string, pos int, quote byte) int {
	pos++
	for pos < len(s) {
		switch s[pos] {
		case '\\':
			pos += 2
			continue
		case quote:
			return pos + 1
		}
		pos++
	}
	return pos
}

func scanPunct(s string, pos int) int {
	for _, p := range punctuators {
		if strings.HasPrefix(s[pos:], p) {
			return pos + len(p)
		}
	}
	return pos + 1
}

// spelling reconstructs the source text of a token sequence,
// reinserting single spaces where the original had whitespace.
func spelling(toks []Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if t.Kind == TokenPlacemarker {
			continue
		}
		if t.PrevWhite && i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Spell)
	}
	return sb.String()
}
