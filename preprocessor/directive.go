// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package preprocessor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// DirectiveKind identifies a preprocessor directive.
type DirectiveKind int

const (
	DirUnknown DirectiveKind = iota
	DirNull
	DirIf
	DirIfdef
	DirIfndef
	DirElif
	DirElse
	DirEndif
	DirDefine
	DirUndef
	DirInclude
	DirError
	DirWarning
	DirPragma
	DirLine
)

var directiveNames = map[string]DirectiveKind{
	"if":      DirIf,
	"ifdef":   DirIfdef,
	"ifndef":  DirIfndef,
	"elif":    DirElif,
	"else":    DirElse,
	"endif":   DirEndif,
	"define":  DirDefine,
	"undef":   DirUndef,
	"include": DirInclude,
	"error":   DirError,
	"warning": DirWarning,
	"warn":    DirWarning, // GCC accepts both spellings
	"pragma":  DirPragma,
	"line":    DirLine,
}

// Directive is one parsed directive line: its kind, name and the
// tokens after the name.
type Directive struct {
	Kind   DirectiveKind
	Name   string
	Tokens []Token
	Line   int
}

// ParseDirective splits the text of a directive logical line. The text
// starts with '#' after whitespace merging.
func ParseDirective(text string, line int) Directive {
	toks := Tokenize(text, line)
	if len(toks) == 0 || toks[0].Spell != "#" {
		return Directive{Kind: DirUnknown, Line: line}
	}
	toks = toks[1:]
	if len(toks) == 0 {
		return Directive{Kind: DirNull, Line: line}
	}
	if toks[0].Kind != TokenIdent {
		return Directive{Kind: DirUnknown, Name: toks[0].Spell, Tokens: toks[1:], Line: line}
	}
	kind, ok := directiveNames[toks[0].Spell]
	if !ok {
		kind = DirUnknown
	}
	return Directive{Kind: kind, Name: toks[0].Spell, Tokens: toks[1:], Line: line}
}

// parseDefineDirective builds the macro defined by a #define line.
func parseDefineDirective(d Directive) (*Macro, error) {
	toks := d.Tokens
	if len(toks) == 0 || toks[0].Kind != TokenIdent {
		return nil, fmt.Errorf("#define requires an identifier")
	}
	m := &Macro{Name: toks[0].Spell}
	rest := toks[1:]
	// A parameter list only counts when the '(' touches the name.
	if len(rest) > 0 && rest[0].Spell == "(" && !rest[0].PrevWhite {
		closing := -1
		for i, tok := range rest {
			if tok.Spell == ")" {
				closing = i
				break
			}
		}
		if closing < 0 {
			return nil, fmt.Errorf("#define %s: unterminated parameter list", m.Name)
		}
		params, vaName, bad := parseParams(rest[1 : closing+1])
		if bad {
			return nil, fmt.Errorf("#define %s: malformed parameter list", m.Name)
		}
		m.Function = true
		m.Params = params
		m.Variadic = vaName != ""
		m.VaName = vaName
		rest = rest[closing+1:]
	}
	m.Replacement = append([]Token(nil), rest...)
	if len(m.Replacement) > 0 {
		m.Replacement[0].PrevWhite = false
		first := m.Replacement[0].Spell
		last := m.Replacement[len(m.Replacement)-1].Spell
		if first == "##" || last == "##" {
			return nil, fmt.Errorf("#define %s: '##' at boundary of replacement", m.Name)
		}
	}
	return m, nil
}

// IncludePath is a resolved #include argument.
type IncludePath struct {
	Path   string
	System bool
}

// parseIncludePath interprets the tokens of an #include argument as a
// quoted or angle-bracket path. ok is false for computed includes that
// still need macro expansion.
func parseIncludePath(toks []Token) (IncludePath, bool) {
	if len(toks) == 0 {
		return IncludePath{}, false
	}
	if toks[0].Kind == TokenString {
		path := strings.Trim(toks[0].Spell, `"`)
		if path == "" {
			return IncludePath{}, false
		}
		return IncludePath{Path: path}, true
	}
	if toks[0].Spell == "<" {
		var sb strings.Builder
		for _, tok := range toks[1:] {
			if tok.Spell == ">" {
				if sb.Len() == 0 {
					return IncludePath{}, false
				}
				return IncludePath{Path: sb.String(), System: true}, true
			}
			sb.WriteString(tok.Spell)
		}
	}
	return IncludePath{}, false
}

// undefName extracts the identifier of an #undef directive.
func undefName(d Directive) (string, bool) {
	if len(d.Tokens) == 0 || d.Tokens[0].Kind != TokenIdent {
		log.Warnf("line %d: #undef requires an identifier", d.Line)
		return "", false
	}
	if len(d.Tokens) > 1 {
		log.Warnf("line %d: extra tokens after #undef %s", d.Line, d.Tokens[0].Spell)
	}
	return d.Tokens[0].Spell, true
}

// conditionTokens returns the controlling expression of a conditional
// directive. #ifdef X and #ifndef X become defined(X) and !defined(X).
func conditionTokens(d Directive) []Token {
	switch d.Kind {
	case DirIfdef, DirIfndef:
		if len(d.Tokens) == 0 || d.Tokens[0].Kind != TokenIdent {
			log.Warnf("line %d: #%s requires an identifier", d.Line, d.Name)
			return []Token{number("0")}
		}
		toks := []Token{ident("defined"), punct("("), d.Tokens[0], punct(")")}
		if d.Kind == DirIfndef {
			toks = append([]Token{punct("!")}, toks...)
		}
		return toks
	default:
		return d.Tokens
	}
}
