// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package source

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// summary flattens logical lines for compact comparison.
type summary struct {
	Kind  string
	Text  string
	Start int
	End   int
	Code  []int
}

func summarize(lines []LogicalLine) []summary {
	var out []summary
	for _, l := range lines {
		out = append(out, summary{
			Kind:  l.Kind.String(),
			Text:  l.Text,
			Start: l.StartLine,
			End:   l.EndLine,
			Code:  l.CodeLines,
		})
	}
	return out
}

func lex(content string, opts Options) []summary {
	return summarize(LogicalLines(NewFile("test", content), opts))
}

func TestLogicalLinesC(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		want    []summary
	}{
		{
			name:    "simple-code",
			content: "int a;\nint b;\n",
			want: []summary{
				{Kind: "code", Text: "int a;", Start: 1, End: 1, Code: []int{1}},
				{Kind: "code", Text: "int b;", Start: 2, End: 2, Code: []int{2}},
			},
		},
		{
			name:    "directive",
			content: "  #  define X 1\n",
			want: []summary{
				{Kind: "directive", Text: "# define X 1", Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "blank-lines-dropped",
			content: "\n   \n\t\n",
			want:    nil,
		},
		{
			name:    "line-comment-only",
			content: "// nothing here\n",
			want:    nil,
		},
		{
			name:    "code-with-trailing-comment",
			content: "x = 1; // set x\n",
			want: []summary{
				{Kind: "code", Text: "x = 1;", Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "block-comment-inline",
			content: "a /* mid */ b;\n",
			want: []summary{
				{Kind: "code", Text: "a b;", Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "block-comment-spans-lines",
			content: "before; /* one\ntwo\nthree */ after;\n",
			want: []summary{
				{Kind: "code", Text: "before;", Start: 1, End: 1, Code: []int{1}},
				{Kind: "code", Text: "after;", Start: 3, End: 3, Code: []int{3}},
			},
		},
		{
			name:    "directive-continuation",
			content: "#define X \\\n  1\nint y;\n",
			want: []summary{
				{Kind: "directive", Text: "#define X 1", Start: 1, End: 2, Code: []int{1, 2}},
				{Kind: "code", Text: "int y;", Start: 3, End: 3, Code: []int{3}},
			},
		},
		{
			name:    "code-continuation",
			content: "int a = 1 + \\\n  2;\n",
			want: []summary{
				{Kind: "code", Text: "int a = 1 + 2;", Start: 1, End: 2, Code: []int{1, 2}},
			},
		},
		{
			name:    "comment-hides-directive",
			content: "/* #define X 1 */\n",
			want:    nil,
		},
		{
			name:    "string-hides-comment",
			content: "s = \"// not a comment\";\n",
			want: []summary{
				{Kind: "code", Text: "s = \"// not a comment\";", Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "string-hides-directive",
			content: "s = \"#if 0\";\n",
			want: []summary{
				{Kind: "code", Text: "s = \"#if 0\";", Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "line-comment-ends-at-physical-line",
			content: "a; // comment \\\nb;\n",
			want: []summary{
				{Kind: "code", Text: "a;", Start: 1, End: 1, Code: []int{1}},
				{Kind: "code", Text: "b;", Start: 2, End: 2, Code: []int{2}},
			},
		},
		{
			name:    "escaped-quote-in-string",
			content: `s = "a \" b";` + "\n",
			want: []summary{
				{Kind: "code", Text: `s = "a \" b";`, Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "whitespace-merged",
			content: "int\t\t  a;\n",
			want: []summary{
				{Kind: "code", Text: "int a;", Start: 1, End: 1, Code: []int{1}},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := lex(tc.content, Options{Language: LangC})
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("LogicalLines: diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestLogicalLinesFortranFree(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		opts    Options
		want    []summary
	}{
		{
			name:    "comment",
			content: "! a comment\nx = 1\n",
			opts:    Options{Language: LangFortranFree},
			want: []summary{
				{Kind: "code", Text: "x = 1", Start: 2, End: 2, Code: []int{2}},
			},
		},
		{
			name:    "continuation",
			content: "x = 1 + &\n    2\n",
			opts:    Options{Language: LangFortranFree},
			want: []summary{
				{Kind: "code", Text: "x = 1 + 2", Start: 1, End: 2, Code: []int{1, 2}},
			},
		},
		{
			name:    "continuation-with-leading-amp",
			content: "x = 1 + &\n  & 2\n",
			opts:    Options{Language: LangFortranFree},
			want: []summary{
				{Kind: "code", Text: "x = 1 + 2", Start: 1, End: 2, Code: []int{1, 2}},
			},
		},
		{
			name:    "trailing-comment",
			content: "x = 1 ! set x\n",
			opts:    Options{Language: LangFortranFree},
			want: []summary{
				{Kind: "code", Text: "x = 1", Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "bang-in-string",
			content: "s = 'a!b'\n",
			opts:    Options{Language: LangFortranFree},
			want: []summary{
				{Kind: "code", Text: "s = 'a!b'", Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "directive",
			content: "#ifdef GPU\ny = 2\n#endif\n",
			opts:    Options{Language: LangFortranFree},
			want: []summary{
				{Kind: "directive", Text: "#ifdef GPU", Start: 1, End: 1, Code: []int{1}},
				{Kind: "code", Text: "y = 2", Start: 2, End: 2, Code: []int{2}},
				{Kind: "directive", Text: "#endif", Start: 3, End: 3, Code: []int{3}},
			},
		},
		{
			name:    "omp-sentinel-off",
			content: "!$omp parallel\n",
			opts:    Options{Language: LangFortranFree},
			want:    nil,
		},
		{
			name:    "omp-sentinel-on",
			content: "!$omp parallel\n",
			opts:    Options{Language: LangFortranFree, OpenMP: true},
			want: []summary{
				{Kind: "code", Text: "!$omp parallel", Start: 1, End: 1, Code: []int{1}},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := lex(tc.content, tc.opts)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("LogicalLines: diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestLogicalLinesFortranFixed(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		opts    Options
		want    []summary
	}{
		{
			name:    "comment-column-one",
			content: "C a comment\n      x = 1\n",
			opts:    Options{Language: LangFortranFixed},
			want: []summary{
				{Kind: "code", Text: "x = 1", Start: 2, End: 2, Code: []int{2}},
			},
		},
		{
			name:    "continuation-column-six",
			content: "      x = 1\n     & + 2\n",
			opts:    Options{Language: LangFortranFixed},
			want: []summary{
				{Kind: "code", Text: "x = 1 + 2", Start: 1, End: 2, Code: []int{1, 2}},
			},
		},
		{
			name:    "directive",
			content: "#ifdef GPU\n      y = 2\n#endif\n",
			opts:    Options{Language: LangFortranFixed},
			want: []summary{
				{Kind: "directive", Text: "#ifdef GPU", Start: 1, End: 1, Code: []int{1}},
				{Kind: "code", Text: "y = 2", Start: 2, End: 2, Code: []int{2}},
				{Kind: "directive", Text: "#endif", Start: 3, End: 3, Code: []int{3}},
			},
		},
		{
			name:    "inline-comment",
			content: "      x = 1 ! note\n",
			opts:    Options{Language: LangFortranFixed},
			want: []summary{
				{Kind: "code", Text: "x = 1", Start: 1, End: 1, Code: []int{1}},
			},
		},
		{
			name:    "star-comment",
			content: "* comment\n",
			opts:    Options{Language: LangFortranFixed},
			want:    nil,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := lex(tc.content, tc.opts)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("LogicalLines: diff -want +got:\n%s", diff)
			}
		})
	}
}
