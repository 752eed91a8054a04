// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewFile(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "lf",
			content: "a\nb\n",
			want:    []string{"a", "b"},
		},
		{
			name:    "crlf",
			content: "a\r\nb\r\n",
			want:    []string{"a", "b"},
		},
		{
			name:    "bare-cr",
			content: "a\rb\r",
			want:    []string{"a", "b"},
		},
		{
			name:    "no-trailing-newline",
			content: "a\nb",
			want:    []string{"a", "b"},
		},
		{
			name:    "invalid-utf8-replaced",
			content: "a\xffb\n",
			want:    []string{"a�b"},
		},
		{
			name:    "empty",
			content: "",
			want:    []string{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFile("test", tc.content)
			if diff := cmp.Diff(tc.want, f.Lines, cmp.Transformer("nilToEmpty", func(in []string) []string {
				if in == nil {
					return []string{}
				}
				return in
			})); diff != "" {
				t.Errorf("NewFile lines: diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestReadFileRefusesEscapingSymlink(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	outside, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	secret := filepath.Join(outside, "secret.h")
	if err := os.WriteFile(secret, []byte("int s;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "link.h")
	if err := os.Symlink(secret, link); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadFile(context.Background(), root, link); err == nil {
		t.Errorf("ReadFile followed a symlink escaping the root")
	}
	// Without a configured root the link is followed.
	if _, err := ReadFile(context.Background(), "", link); err != nil {
		t.Errorf("ReadFile without root: %v", err)
	}
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		path string
		want Language
	}{
		{path: "a.c", want: LangC},
		{path: "a.h", want: LangC},
		{path: "a.cpp", want: LangCxx},
		{path: "a.cu", want: LangCxx},
		{path: "a.f90", want: LangFortranFree},
		{path: "a.F90", want: LangFortranFree},
		{path: "a.f", want: LangFortranFixed},
		{path: "a.FOR", want: LangFortranFixed},
		{path: "a.s", want: LangAsm},
		{path: "a.txt", want: LangUnknown},
	} {
		if got := Classify(tc.path, nil); got != tc.want {
			t.Errorf("Classify(%q)=%v; want %v", tc.path, got, tc.want)
		}
	}
	overrides := map[string]Language{".f90": LangFortranFixed}
	if got := Classify("a.f90", overrides); got != LangFortranFixed {
		t.Errorf("Classify with override=%v; want fortran-fixed", got)
	}
}
