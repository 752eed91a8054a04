// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cmdline string
		want    []string
		wantErr bool
	}{
		{
			name:    "simple",
			cmdline: "gcc -c foo.c",
			want:    []string{"gcc", "-c", "foo.c"},
		},
		{
			name:    "extra-whitespace",
			cmdline: "  gcc \t -c   foo.c ",
			want:    []string{"gcc", "-c", "foo.c"},
		},
		{
			name:    "double-quotes",
			cmdline: `gcc "-DMSG=\"hi\"" -c foo.c`,
			want:    []string{"gcc", `-DMSG="hi"`, "-c", "foo.c"},
		},
		{
			name:    "single-quotes",
			cmdline: "gcc '-DMSG=hello world' -c foo.c",
			want:    []string{"gcc", "-DMSG=hello world", "-c", "foo.c"},
		},
		{
			name:    "escaped-space",
			cmdline: `gcc -I/path/with\ space -c foo.c`,
			want:    []string{"gcc", "-I/path/with space", "-c", "foo.c"},
		},
		{
			name:    "quotes-join-words",
			cmdline: `gcc -D"A B"C -c foo.c`,
			want:    []string{"gcc", "-DA BC", "-c", "foo.c"},
		},
		{
			name:    "pipe-rejected",
			cmdline: "gcc -c foo.c | tee log",
			wantErr: true,
		},
		{
			name:    "env-override-rejected",
			cmdline: "CC=gcc gcc -c foo.c",
			wantErr: true,
		},
		{
			name:    "unterminated-quote",
			cmdline: `gcc "-DX -c foo.c`,
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Split(tc.cmdline)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Split(%q)=%v; want error", tc.cmdline, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split(%q): %v", tc.cmdline, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Split(%q): diff -want +got:\n%s", tc.cmdline, diff)
			}
		})
	}
}
