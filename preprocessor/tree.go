// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package preprocessor

import (
	"github.com/charmbracelet/log"

	"go.chromium.org/infra/codebase/cbi/source"
)

// Node is a specialization tree node. The concrete types are FileNode,
// IfGroup, CodeRange, IncludeNode, DefineNode, UndefNode, PragmaNode
// and DiagNode.
type Node interface {
	node()
}

// FileNode is the root of one file's specialization tree.
type FileNode struct {
	Path     string
	Children []Node
	// TotalLines is the physical line count; SLOC the countable lines.
	TotalLines int
	SLOC       int
	// Guard is the include-guard macro when the whole file is wrapped
	// in #ifndef Guard / #define Guard / ... / #endif.
	Guard string
}

// CodeRange is a run of contiguous code lines between directives.
type CodeRange struct {
	StartLine int
	EndLine   int
	// Lines are the countable physical lines of the range.
	Lines []int
}

// Branch is one alternative of an IfGroup.
type Branch struct {
	// Cond is nil for #else.
	Cond []Token
	Line int
	Body []Node
}

// IfGroup is a #if/#elif/#else/#endif construct. At most one branch is
// live per walk.
type IfGroup struct {
	Branches []*Branch
}

// IncludeNode is an #include site. Computed includes keep their
// argument tokens for expansion at walk time.
type IncludeNode struct {
	Path     IncludePath
	Computed []Token
	Line     int
}

// DefineNode applies a macro definition during the walk.
type DefineNode struct {
	Macro *Macro
	Line  int
}

// UndefNode removes a macro definition during the walk.
type UndefNode struct {
	Name string
	Line int
}

// PragmaNode is a #pragma directive; only "once" is interpreted.
type PragmaNode struct {
	Tokens []Token
	Line   int
}

// DiagNode is an #error or #warning directive, recorded as a
// diagnostic when its branch is live.
type DiagNode struct {
	Warning bool
	Text    string
	Line    int
}

func (*FileNode) node()    {}
func (*CodeRange) node()   {}
func (*IfGroup) node()     {}
func (*IncludeNode) node() {}
func (*DefineNode) node()  {}
func (*UndefNode) node()   {}
func (*PragmaNode) node()  {}
func (*DiagNode) node()    {}

// BuildTree parses the classified logical lines of one file into its
// specialization tree. The tree is purely syntactic: macro state and
// include resolution are applied by the per-platform walk, so one tree
// serves every platform.
func BuildTree(f *source.File, lines []source.LogicalLine) *FileNode {
	root := &FileNode{Path: f.Path, TotalLines: f.NumLines()}
	b := &treeBuilder{path: f.Path, root: root}
	for _, ll := range lines {
		switch ll.Kind {
		case source.Code:
			b.code(ll)
			root.SLOC += len(ll.CodeLines)
		case source.Directive:
			b.directive(ll)
		}
	}
	b.flushCode()
	if len(b.open) > 0 {
		log.Warnf("%s: %d unterminated #if block(s) at end of file", f.Path, len(b.open))
	}
	root.Guard = detectGuard(root)
	return root
}

type openGroup struct {
	group  *IfGroup
	branch *Branch
}

type treeBuilder struct {
	path    string
	root    *FileNode
	open    []openGroup
	pending *CodeRange
}

// body returns the node list currently receiving children.
func (b *treeBuilder) body() *[]Node {
	if len(b.open) == 0 {
		return &b.root.Children
	}
	return &b.open[len(b.open)-1].branch.Body
}

func (b *treeBuilder) append(n Node) {
	body := b.body()
	*body = append(*body, n)
}

func (b *treeBuilder) code(ll source.LogicalLine) {
	if b.pending == nil {
		b.pending = &CodeRange{StartLine: ll.StartLine}
	}
	b.pending.EndLine = ll.EndLine
	b.pending.Lines = append(b.pending.Lines, ll.CodeLines...)
}

func (b *treeBuilder) flushCode() {
	if b.pending == nil {
		return
	}
	b.append(b.pending)
	b.pending = nil
}

func (b *treeBuilder) directive(ll source.LogicalLine) {
	b.flushCode()
	d := ParseDirective(ll.Text, ll.StartLine)
	switch d.Kind {
	case DirNull:
	case DirIf, DirIfdef, DirIfndef:
		br := &Branch{Cond: conditionTokens(d), Line: d.Line}
		g := &IfGroup{Branches: []*Branch{br}}
		b.append(g)
		b.open = append(b.open, openGroup{group: g, branch: br})
	case DirElif:
		if len(b.open) == 0 {
			log.Warnf("%s:%d: #elif without #if", b.path, d.Line)
			return
		}
		top := &b.open[len(b.open)-1]
		br := &Branch{Cond: conditionTokens(d), Line: d.Line}
		top.group.Branches = append(top.group.Branches, br)
		top.branch = br
	case DirElse:
		if len(b.open) == 0 {
			log.Warnf("%s:%d: #else without #if", b.path, d.Line)
			return
		}
		top := &b.open[len(b.open)-1]
		br := &Branch{Line: d.Line}
		top.group.Branches = append(top.group.Branches, br)
		top.branch = br
	case DirEndif:
		if len(b.open) == 0 {
			log.Warnf("%s:%d: #endif without #if", b.path, d.Line)
			return
		}
		b.open = b.open[:len(b.open)-1]
	case DirDefine:
		m, err := parseDefineDirective(d)
		if err != nil {
			log.Warnf("%s:%d: %v", b.path, d.Line, err)
			return
		}
		b.append(&DefineNode{Macro: m, Line: d.Line})
	case DirUndef:
		name, ok := undefName(d)
		if !ok {
			return
		}
		b.append(&UndefNode{Name: name, Line: d.Line})
	case DirInclude:
		n := &IncludeNode{Line: d.Line}
		if p, ok := parseIncludePath(d.Tokens); ok {
			n.Path = p
		} else {
			n.Computed = append([]Token(nil), d.Tokens...)
		}
		b.append(n)
	case DirError:
		b.append(&DiagNode{Text: spelling(d.Tokens), Line: d.Line})
	case DirWarning:
		b.append(&DiagNode{Warning: true, Text: spelling(d.Tokens), Line: d.Line})
	case DirPragma:
		b.append(&PragmaNode{Tokens: d.Tokens, Line: d.Line})
	case DirLine:
		// #line does not affect attribution; physical numbering is kept.
	default:
		log.Warnf("%s:%d: unrecognized directive #%s", b.path, d.Line, d.Name)
	}
}

// detectGuard recognizes the classic external include guard: the
// file's only child is an #ifndef X group whose body starts by
// defining X. A later include with X defined can then skip the file
// without re-reading it.
func detectGuard(root *FileNode) string {
	if len(root.Children) != 1 {
		return ""
	}
	g, ok := root.Children[0].(*IfGroup)
	if !ok || len(g.Branches) != 1 {
		return ""
	}
	br := g.Branches[0]
	name, ok := guardCondName(br.Cond)
	if !ok {
		return ""
	}
	for _, child := range br.Body {
		if def, ok := child.(*DefineNode); ok {
			if def.Macro.Name == name && !def.Macro.Function {
				return name
			}
			return ""
		}
		// Anything before the #define disqualifies the pattern.
		return ""
	}
	return ""
}

// guardCondName matches !defined(X) / !defined X condition shapes.
func guardCondName(cond []Token) (string, bool) {
	if len(cond) < 3 || cond[0].Spell != "!" || cond[1].Spell != "defined" {
		return "", false
	}
	rest := cond[2:]
	if rest[0].Spell == "(" {
		if len(rest) == 3 && rest[1].Kind == TokenIdent && rest[2].Spell == ")" {
			return rest[1].Spell, true
		}
		return "", false
	}
	if len(rest) == 1 && rest[0].Kind == TokenIdent {
		return rest[0].Spell, true
	}
	return "", false
}
