// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package preprocessor

import (
	"strings"

	"github.com/charmbracelet/log"
)

// Macro is one macro definition.
type Macro struct {
	Name        string
	Function    bool
	Params      []string
	Variadic    bool
	VaName      string // variadic catcher, "__VA_ARGS__" unless named (GNU "args...")
	Replacement []Token
}

// sameDefinition reports whether two definitions are identical, which
// makes a redefinition legal and silent.
func (m *Macro) sameDefinition(o *Macro) bool {
	if m.Function != o.Function || m.Variadic != o.Variadic ||
		len(m.Params) != len(o.Params) || len(m.Replacement) != len(o.Replacement) {
		return false
	}
	for i := range m.Params {
		if m.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range m.Replacement {
		if m.Replacement[i].Spell != o.Replacement[i].Spell {
			return false
		}
	}
	return true
}

// paramIndex returns the parameter position of name, or -1.
func (m *Macro) paramIndex(name string) int {
	for i, p := range m.Params {
		if p == name {
			return i
		}
	}
	if m.Variadic && name == m.VaName {
		return len(m.Params)
	}
	return -1
}

// MacroTable maps identifiers to macro definitions. The namespace is
// flat; Clone is cheap (copy-on-write) so every platform walk can start
// from the same baseline without touching the others' state.
type MacroTable struct {
	defs   map[string]*Macro
	shared bool
}

// NewMacroTable returns an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{defs: make(map[string]*Macro)}
}

// Clone returns a table with the same definitions. Both tables keep
// sharing storage until one of them mutates.
func (t *MacroTable) Clone() *MacroTable {
	t.shared = true
	return &MacroTable{defs: t.defs, shared: true}
}

func (t *MacroTable) mutable() {
	if !t.shared {
		return
	}
	defs := make(map[string]*Macro, len(t.defs))
	for k, v := range t.defs {
		defs[k] = v
	}
	t.defs = defs
	t.shared = false
}

// Define inserts a definition. An identical redefinition is silent;
// a differing one warns and replaces.
func (t *MacroTable) Define(m *Macro) {
	if old, ok := t.defs[m.Name]; ok {
		if old.sameDefinition(m) {
			return
		}
		log.Warnf("macro %s redefined with a different body", m.Name)
	}
	t.mutable()
	t.defs[m.Name] = m
}

// Undef removes a definition; removing an absent name is legal and
// silent.
func (t *MacroTable) Undef(name string) {
	if _, ok := t.defs[name]; !ok {
		return
	}
	t.mutable()
	delete(t.defs, name)
}

// Lookup returns the definition of name, or nil.
func (t *MacroTable) Lookup(name string) *Macro {
	return t.defs[name]
}

// IsDefined reports whether name is defined.
func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.defs[name]
	return ok
}

// expandSteps bounds the expansion loop. Hide sets already guarantee
// termination; the bound catches pathological blowup in token volume.
const expandSteps = 1 << 17

// Expand rescans toks, replacing macro invocations until none remain
// expandable. Malformed invocations degrade to the unexpanded token
// with a warning.
func (t *MacroTable) Expand(toks []Token) []Token {
	ts := append([]Token(nil), toks...)
	out := make([]Token, 0, len(toks))
	steps := 0
	for len(ts) > 0 {
		steps++
		if steps > expandSteps {
			log.Warnf("macro expansion too large near %q; left unexpanded", ts[0].Spell)
			out = append(out, ts...)
			break
		}
		tok := ts[0]
		if tok.Kind != TokenIdent || tok.Hidden(tok.Spell) {
			out = append(out, tok)
			ts = ts[1:]
			continue
		}
		m := t.Lookup(tok.Spell)
		if m == nil {
			out = append(out, tok)
			ts = ts[1:]
			continue
		}
		if !m.Function {
			rep := t.substituteObject(m, tok)
			ts = append(rep, ts[1:]...)
			continue
		}
		if len(ts) < 2 || ts[1].Spell != "(" {
			// A function-like macro name without arguments is not an
			// invocation.
			out = append(out, tok)
			ts = ts[1:]
			continue
		}
		args, rest, ok := collectArgs(ts[2:])
		if !ok {
			log.Warnf("unterminated invocation of macro %s", m.Name)
			out = append(out, tok)
			ts = ts[1:]
			continue
		}
		args, ok = m.arityAdjust(args)
		if !ok {
			log.Warnf("macro %s invoked with wrong number of arguments", m.Name)
			out = append(out, tok)
			ts = ts[1:]
			continue
		}
		rep := t.substituteFunction(m, tok, args)
		ts = append(rep, rest...)
	}
	return out
}

// collectArgs splits the tokens after '(' into comma-separated
// arguments with balanced parenthesis matching. It returns the
// arguments, the tokens after the closing ')', and whether the
// invocation was terminated.
func collectArgs(ts []Token) ([][]Token, []Token, bool) {
	var args [][]Token
	var cur []Token
	depth := 1
	for i, tok := range ts {
		switch tok.Spell {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				args = append(args, cur)
				return args, ts[i+1:], true
			}
		case ",":
			if depth == 1 {
				args = append(args, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, tok)
	}
	return nil, nil, false
}

// arityAdjust folds surplus arguments of a variadic invocation into
// __VA_ARGS__ and checks the argument count.
func (m *Macro) arityAdjust(args [][]Token) ([][]Token, bool) {
	want := len(m.Params)
	if m.Variadic {
		if len(args) < want {
			return nil, false
		}
		tail := args[want:]
		var va []Token
		for i, a := range tail {
			if i > 0 {
				va = append(va, punct(","))
			}
			va = append(va, a...)
		}
		args = append(args[:want:want], va)
		return args, true
	}
	if len(args) == want {
		return args, true
	}
	// f() parses as one empty argument even for zero parameters.
	if want == 0 && len(args) == 1 && len(args[0]) == 0 {
		return args[:0], true
	}
	return nil, false
}

// substituteObject yields the replacement of an object-like macro,
// hiding the macro's name in every produced token.
func (t *MacroTable) substituteObject(m *Macro, invocation Token) []Token {
	rep := concatPass(m, m.Replacement, nil, nil)
	out := make([]Token, 0, len(rep))
	for i, tok := range rep {
		if tok.Kind == TokenPlacemarker {
			continue
		}
		tok = tok.hideUnion(invocation).withHide(m.Name)
		if len(out) == 0 && i == 0 {
			tok.PrevWhite = invocation.PrevWhite
		}
		out = append(out, tok)
	}
	return out
}

// substituteFunction substitutes arguments into a function-like
// macro's replacement, honouring # and ##, then hides the macro name
// in every produced token.
func (t *MacroTable) substituteFunction(m *Macro, invocation Token, args [][]Token) []Token {
	// Arguments are fully expanded once, except where they abut # or ##.
	expanded := make([][]Token, len(args))
	for i, a := range args {
		expanded[i] = t.Expand(a)
	}
	rep := concatPass(m, m.Replacement, args, expanded)

	var subst []Token
	for _, tok := range rep {
		if tok.fromConcat() {
			subst = append(subst, tok)
			continue
		}
		if idx := m.argIndex(tok); idx >= 0 {
			exp := expanded[idx]
			if len(exp) > 0 {
				first := exp[0]
				first.PrevWhite = tok.PrevWhite
				subst = append(subst, first)
				subst = append(subst, exp[1:]...)
			}
			continue
		}
		subst = append(subst, tok)
	}

	out := make([]Token, 0, len(subst))
	for _, tok := range subst {
		if tok.Kind == TokenPlacemarker {
			continue
		}
		tok = tok.hideUnion(invocation).withHide(m.Name)
		if len(out) == 0 {
			tok.PrevWhite = invocation.PrevWhite
		}
		out = append(out, tok)
	}
	return out
}

// argIndex resolves tok to an argument position, or -1.
func (m *Macro) argIndex(tok Token) int {
	if tok.Kind != TokenIdent {
		return -1
	}
	idx := m.paramIndex(tok.Spell)
	if idx >= len(m.Params)+vaSlot(m) {
		return -1
	}
	return idx
}

func vaSlot(m *Macro) int {
	if m.Variadic {
		return 1
	}
	return 0
}

// concatMark tags tokens produced by # or ## so the later parameter
// substitution pass leaves them alone.
const concatMark = "\x00concat"

func (t Token) fromConcat() bool { return t.Hidden(concatMark) }

func markConcat(t Token) Token { return t.withHide(concatMark) }

// concatPass resolves # stringize and ## concatenation over a
// replacement list. Operands that name parameters use the raw
// (unexpanded) argument tokens. args may be nil for object-like
// macros.
func concatPass(m *Macro, rep []Token, args, expanded [][]Token) []Token {
	var out []Token
	for i := 0; i < len(rep); i++ {
		tok := rep[i]
		switch {
		case tok.Spell == "#" && args != nil && i+1 < len(rep):
			next := rep[i+1]
			idx := m.argIndex(next)
			if idx < 0 {
				log.Warnf("'#' is not followed by a macro parameter in %s", m.Name)
				out = append(out, tok)
				continue
			}
			s := stringize(args[idx])
			s.PrevWhite = tok.PrevWhite
			out = append(out, markConcat(s))
			i++
		case tok.Spell == "##" && i+1 < len(rep):
			if len(out) == 0 {
				log.Warnf("'##' at start of replacement of %s", m.Name)
				continue
			}
			left := out[:len(out)-1]
			lhs := []Token{out[len(out)-1]}
			if !lhs[0].fromConcat() {
				if idx := m.argIndex(lhs[0]); idx >= 0 && args != nil {
					lhs = rawArg(args[idx], lhs[0])
				}
			}
			next := rep[i+1]
			rhs := []Token{next}
			if idx := m.argIndex(next); idx >= 0 && args != nil {
				rhs = rawArg(args[idx], next)
			}
			out = append(left, glue(m, lhs, rhs)...)
			i++
		default:
			out = append(out, tok)
		}
	}
	return out
}

// rawArg returns the unexpanded argument tokens, or a placemarker for
// an empty argument.
func rawArg(arg []Token, param Token) []Token {
	if len(arg) == 0 {
		return []Token{{Kind: TokenPlacemarker, PrevWhite: param.PrevWhite}}
	}
	out := append([]Token(nil), arg...)
	out[0].PrevWhite = param.PrevWhite
	for i := range out {
		out[i] = markConcat(out[i])
	}
	return out
}

// glue concatenates the last token of lhs with the first of rhs. A
// placemarker operand yields the other side; a paste that does not form
// a single pp-token emits both tokens with a warning.
func glue(m *Macro, lhs, rhs []Token) []Token {
	var out []Token
	out = append(out, lhs[:len(lhs)-1]...)
	l := lhs[len(lhs)-1]
	r := rhs[0]
	switch {
	case l.Kind == TokenPlacemarker && r.Kind == TokenPlacemarker:
		out = append(out, l)
	case l.Kind == TokenPlacemarker:
		out = append(out, markConcat(r))
	case r.Kind == TokenPlacemarker:
		out = append(out, markConcat(l))
	default:
		pasted := Tokenize(l.Spell+r.Spell, l.Line)
		if len(pasted) == 1 {
			p := pasted[0]
			p.PrevWhite = l.PrevWhite
			out = append(out, markConcat(p))
		} else {
			log.Warnf("pasting %q and %q does not give a valid token in %s", l.Spell, r.Spell, m.Name)
			out = append(out, markConcat(l), markConcat(r))
		}
	}
	out = append(out, rhs[1:]...)
	return out
}

// stringize yields the string literal for the source spelling of arg.
func stringize(arg []Token) Token {
	var sb strings.Builder
	sb.WriteByte('"')
	for i, t := range arg {
		if t.Kind == TokenPlacemarker {
			continue
		}
		if t.PrevWhite && i > 0 {
			sb.WriteByte(' ')
		}
		if t.Kind == TokenString || t.Kind == TokenChar {
			for j := 0; j < len(t.Spell); j++ {
				if t.Spell[j] == '"' || t.Spell[j] == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteByte(t.Spell[j])
			}
			continue
		}
		sb.WriteString(t.Spell)
	}
	sb.WriteByte('"')
	return Token{Kind: TokenString, Spell: sb.String()}
}

// ParseMacroDefinition builds a macro from a command-line style
// "NAME", "NAME=VALUE" or "NAME(args)=VALUE" definition string. A bare
// name defines it as 1.
func ParseMacroDefinition(def string) *Macro {
	name, value, ok := splitDefine(def)
	toks := Tokenize(name, 0)
	if len(toks) == 0 || toks[0].Kind != TokenIdent {
		log.Warnf("ignoring malformed definition %q", def)
		return nil
	}
	m := &Macro{Name: toks[0].Spell}
	rest := toks[1:]
	if len(rest) > 0 && rest[0].Spell == "(" && !rest[0].PrevWhite {
		params, vaName, perr := parseParams(rest[1:])
		if perr {
			log.Warnf("ignoring malformed definition %q", def)
			return nil
		}
		m.Function = true
		m.Params = params
		m.Variadic = vaName != ""
		m.VaName = vaName
	}
	if !ok {
		m.Replacement = []Token{number("1")}
	} else {
		m.Replacement = Tokenize(value, 0)
	}
	return m
}

func splitDefine(def string) (name, value string, ok bool) {
	if i := strings.IndexByte(def, '='); i >= 0 {
		return def[:i], def[i+1:], true
	}
	return def, "", false
}

// parseParams reads a parameter list after '(' up to the matching ')'.
// vaName is "" for a non-variadic macro, "__VA_ARGS__" for a trailing
// "...", or the parameter's own name for the GNU "args..." form.
func parseParams(ts []Token) (params []string, vaName string, bad bool) {
	expectName := true
	for _, tok := range ts {
		switch {
		case tok.Spell == ")":
			return params, vaName, false
		case tok.Spell == ",":
			expectName = true
		case tok.Spell == "...":
			if len(params) > 0 && !expectName {
				// Named variadic: the preceding parameter is the catcher.
				vaName = params[len(params)-1]
				params = params[:len(params)-1]
			} else {
				vaName = "__VA_ARGS__"
			}
		case tok.Kind == TokenIdent && expectName:
			params = append(params, tok.Spell)
			expectName = false
		default:
			return nil, "", true
		}
	}
	return nil, "", true
}
