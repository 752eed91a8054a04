// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package preprocessor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/codebase/cbi/source"
)

func buildFromString(t *testing.T, path, content string) *FileNode {
	t.Helper()
	f := source.NewFile(path, content)
	lang := source.Classify(path, nil)
	return BuildTree(f, source.LogicalLines(f, source.Options{Language: lang}))
}

func TestBuildTreeCodeRanges(t *testing.T) {
	tree := buildFromString(t, "a.c", `int a;
int b;

int c;
#define X 1
int d;
`)
	if len(tree.Children) != 3 {
		t.Fatalf("got %d children; want 3 (code, define, code)", len(tree.Children))
	}
	cr, ok := tree.Children[0].(*CodeRange)
	if !ok {
		t.Fatalf("child 0 is %T; want *CodeRange", tree.Children[0])
	}
	// Blank lines break nothing: adjacent code merges into one range.
	if diff := cmp.Diff([]int{1, 2, 4}, cr.Lines); diff != "" {
		t.Errorf("first range lines: diff -want +got:\n%s", diff)
	}
	if _, ok := tree.Children[1].(*DefineNode); !ok {
		t.Errorf("child 1 is %T; want *DefineNode", tree.Children[1])
	}
	cr2, ok := tree.Children[2].(*CodeRange)
	if !ok {
		t.Fatalf("child 2 is %T; want *CodeRange", tree.Children[2])
	}
	if diff := cmp.Diff([]int{6}, cr2.Lines); diff != "" {
		t.Errorf("second range lines: diff -want +got:\n%s", diff)
	}
	if tree.SLOC != 4 {
		t.Errorf("SLOC=%d; want 4", tree.SLOC)
	}
}

func TestBuildTreeEveryCodeLineInExactlyOneRange(t *testing.T) {
	content := `int top;
#if defined(A)
int a1;
int a2;
#elif defined(B)
int b1;
#else
int e1;
#endif
int bottom;
`
	tree := buildFromString(t, "a.c", content)
	seen := map[int]int{}
	var visit func(nodes []Node)
	visit = func(nodes []Node) {
		for _, n := range nodes {
			switch n := n.(type) {
			case *CodeRange:
				for _, line := range n.Lines {
					seen[line]++
				}
			case *IfGroup:
				for _, br := range n.Branches {
					visit(br.Body)
				}
			}
		}
	}
	visit(tree.Children)
	want := map[int]int{1: 1, 3: 1, 4: 1, 6: 1, 8: 1, 10: 1}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("code line coverage: diff -want +got:\n%s", diff)
	}
}

func TestBuildTreeIfGroupShape(t *testing.T) {
	tree := buildFromString(t, "a.c", `#if A
one
#elif B
two
#else
three
#endif
`)
	if len(tree.Children) != 1 {
		t.Fatalf("got %d children; want 1", len(tree.Children))
	}
	g, ok := tree.Children[0].(*IfGroup)
	if !ok {
		t.Fatalf("child is %T; want *IfGroup", tree.Children[0])
	}
	if len(g.Branches) != 3 {
		t.Fatalf("got %d branches; want 3", len(g.Branches))
	}
	if g.Branches[0].Cond == nil || g.Branches[1].Cond == nil {
		t.Errorf("#if/#elif branches must carry conditions")
	}
	if g.Branches[2].Cond != nil {
		t.Errorf("#else branch must not carry a condition")
	}
}

func TestBuildTreeNesting(t *testing.T) {
	tree := buildFromString(t, "a.c", `#ifdef OUTER
#ifdef INNER
deep
#endif
#endif
`)
	outer := tree.Children[0].(*IfGroup)
	inner, ok := outer.Branches[0].Body[0].(*IfGroup)
	if !ok {
		t.Fatalf("inner node is %T; want *IfGroup", outer.Branches[0].Body[0])
	}
	if len(inner.Branches[0].Body) != 1 {
		t.Errorf("inner branch has %d nodes; want 1", len(inner.Branches[0].Body))
	}
}

func TestBuildTreeUnmatchedDirectives(t *testing.T) {
	// Unmatched #endif / #else are warned and ignored, never fatal.
	tree := buildFromString(t, "a.c", `#endif
#else
int x;
`)
	if len(tree.Children) != 1 {
		t.Fatalf("got %d children; want 1", len(tree.Children))
	}
	if _, ok := tree.Children[0].(*CodeRange); !ok {
		t.Errorf("child is %T; want *CodeRange", tree.Children[0])
	}
}

func TestDetectGuard(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "classic-guard",
			content: `#ifndef FOO_H
#define FOO_H
int foo();
#endif
`,
			want: "FOO_H",
		},
		{
			name: "guard-with-comments",
			content: `// header
#ifndef FOO_H
#define FOO_H
int foo();
#endif
// trailer
`,
			want: "FOO_H",
		},
		{
			name: "if-not-defined-form",
			content: `#if !defined(FOO_H)
#define FOO_H
int foo();
#endif
`,
			want: "FOO_H",
		},
		{
			name: "trailing-code-disqualifies",
			content: `#ifndef FOO_H
#define FOO_H
#endif
int outside;
`,
			want: "",
		},
		{
			name: "mismatched-macro-disqualifies",
			content: `#ifndef FOO_H
#define OTHER
#endif
`,
			want: "",
		},
		{
			name: "code-before-define-disqualifies",
			content: `#ifndef FOO_H
int early;
#define FOO_H
#endif
`,
			want: "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tree := buildFromString(t, "foo.h", tc.content)
			if tree.Guard != tc.want {
				t.Errorf("Guard=%q; want %q", tree.Guard, tc.want)
			}
		})
	}
}
