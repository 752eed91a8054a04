// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compilers

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func parseOne(t *testing.T, reg *Registry, argv ...string) *TranslationUnit {
	t.Helper()
	tus, err := reg.Parse(context.Background(), argv)
	if err != nil {
		t.Fatalf("Parse(%v): %v", argv, err)
	}
	if len(tus) != 1 {
		t.Fatalf("Parse(%v) returned %d translation units; want 1", argv, len(tus))
	}
	return tus[0]
}

func TestParseOpenMPCommandLine(t *testing.T) {
	reg := NewRegistry()
	tu := parseOne(t, reg, "/usr/bin/c++", "-fopenmp", "-DFOO=3", "-I./inc", "-c", "f.cpp")

	if tu.File != "f.cpp" {
		t.Errorf("File=%q; want f.cpp", tu.File)
	}
	wantDefines := []string{"FOO=3", "_OPENMP=201511"}
	if diff := cmp.Diff(wantDefines, tu.Defines); diff != "" {
		t.Errorf("Defines: diff -want +got:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"./inc"}, tu.IncludePaths); diff != "" {
		t.Errorf("IncludePaths: diff -want +got:\n%s", diff)
	}
	if !tu.HasMode("openmp") {
		t.Errorf("Modes=%v; want openmp active", tu.Modes)
	}
}

func TestParseFlagForms(t *testing.T) {
	reg := NewRegistry()
	for _, tc := range []struct {
		name string
		argv []string
		want []string
	}{
		{
			name: "attached",
			argv: []string{"gcc", "-DA=1", "-c", "f.c"},
			want: []string{"A=1"},
		},
		{
			name: "separate",
			argv: []string{"gcc", "-D", "A=1", "-c", "f.c"},
			want: []string{"A=1"},
		},
		{
			name: "bare-name",
			argv: []string{"gcc", "-DA", "-c", "f.c"},
			want: []string{"A"},
		},
		{
			name: "undef-removes",
			argv: []string{"gcc", "-DA=1", "-DB=2", "-UA", "-c", "f.c"},
			want: []string{"B=2"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tu := parseOne(t, reg, tc.argv...)
			if diff := cmp.Diff(tc.want, tu.Defines); diff != "" {
				t.Errorf("Defines: diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestParseIncludeOrderPreserved(t *testing.T) {
	reg := NewRegistry()
	tu := parseOne(t, reg, "clang", "-Ia", "-isystem", "b", "-Ic", "f.c")
	if diff := cmp.Diff([]string{"a", "b", "c"}, tu.IncludePaths); diff != "" {
		t.Errorf("IncludePaths: diff -want +got:\n%s", diff)
	}
}

func TestParseForcedInclude(t *testing.T) {
	reg := NewRegistry()
	tu := parseOne(t, reg, "gcc", "-include", "pre.h", "f.c")
	if diff := cmp.Diff([]string{"pre.h"}, tu.IncludeFiles); diff != "" {
		t.Errorf("IncludeFiles: diff -want +got:\n%s", diff)
	}
}

func TestParseSyclPass(t *testing.T) {
	reg := NewRegistry()
	tu := parseOne(t, reg, "icpx", "-fsycl", "-c", "f.cpp")
	if !tu.HasMode("sycl") {
		t.Fatalf("Modes=%v; want sycl", tu.Modes)
	}
	if diff := cmp.Diff([]string{"sycl-spir64"}, tu.Passes); diff != "" {
		t.Errorf("Passes: diff -want +got:\n%s", diff)
	}
	found := false
	for _, d := range tu.Defines {
		if d == "__SYCL_DEVICE_ONLY__=1" {
			found = true
		}
	}
	if !found {
		t.Errorf("Defines=%v; want the sycl-spir64 pass contribution", tu.Defines)
	}
}

func TestParseSyclPassInactiveWithoutMode(t *testing.T) {
	reg := NewRegistry()
	tu := parseOne(t, reg, "icpx", "-c", "f.cpp")
	if len(tu.Passes) != 0 {
		t.Errorf("Passes=%v; want none without -fsycl", tu.Passes)
	}
}

func TestParseUnknownFlagsIgnored(t *testing.T) {
	reg := NewRegistry()
	tu := parseOne(t, reg, "gcc", "-funknown-thing", "--weird=1", "-O3", "f.c")
	if len(tu.Defines) != 0 || len(tu.IncludePaths) != 0 {
		t.Errorf("unknown flags contributed configuration: %+v", tu)
	}
}

func TestParseUnknownCompilerFallsBack(t *testing.T) {
	reg := NewRegistry()
	tu := parseOne(t, reg, "/opt/vendor/magic-cc", "-DX=1", "f.c")
	if diff := cmp.Diff([]string{"X=1"}, tu.Defines); diff != "" {
		t.Errorf("Defines: diff -want +got:\n%s", diff)
	}
}

func TestParseMultipleSources(t *testing.T) {
	reg := NewRegistry()
	tus, err := reg.Parse(context.Background(), []string{"gcc", "-DX", "a.c", "b.c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tus) != 2 || tus[0].File != "a.c" || tus[1].File != "b.c" {
		t.Errorf("got %d units; want a.c and b.c", len(tus))
	}
}

func TestParseFortranFormOverride(t *testing.T) {
	reg := NewRegistry()
	tu := parseOne(t, reg, "gfortran", "-ffixed-form", "-c", "f.f90")
	if !tu.FixedForm {
		t.Errorf("FixedForm=false; want true")
	}
}

func TestLoadConfigAddsCompiler(t *testing.T) {
	reg := NewRegistry()
	err := reg.LoadConfig(`
[compiler.vendorcc]
[[compiler.vendorcc.parser]]
flags = ["-D"]
action = "append"
dest = "defines"
[[compiler.vendorcc.parser]]
flags = ["-mp"]
action = "append_const"
dest = "modes"
const = "openmp"
[[compiler.vendorcc.modes]]
name = "openmp"
defines = ["_OPENMP=199810"]
`)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	tu := parseOne(t, reg, "vendorcc", "-mp", "-DX=2", "f.c")
	if diff := cmp.Diff([]string{"X=2", "_OPENMP=199810"}, tu.Defines); diff != "" {
		t.Errorf("Defines: diff -want +got:\n%s", diff)
	}
}

func TestLoadConfigExtendsDefault(t *testing.T) {
	reg := NewRegistry()
	err := reg.LoadConfig(`
[[compiler.gnu.parser]]
flags = ["-vendor-mode"]
action = "append_const"
dest = "modes"
const = "vendor"
[[compiler.gnu.modes]]
name = "vendor"
defines = ["VENDOR=1"]
`)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	tu := parseOne(t, reg, "gcc", "-vendor-mode", "f.c")
	if diff := cmp.Diff([]string{"VENDOR=1"}, tu.Defines); diff != "" {
		t.Errorf("Defines: diff -want +got:\n%s", diff)
	}
}

func TestLoadConfigAlias(t *testing.T) {
	reg := NewRegistry()
	if err := reg.LoadConfig("[compiler.mycc]\nalias_of = \"clang\"\n"); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	tu := parseOne(t, reg, "mycc", "-fopenmp", "f.c")
	if !tu.HasMode("openmp") {
		t.Errorf("alias did not resolve to clang")
	}
}

func TestAliasCycleDetected(t *testing.T) {
	reg := NewRegistry()
	cfg := "[compiler.a]\nalias_of = \"b\"\n[compiler.b]\nalias_of = \"a\"\n"
	if err := reg.LoadConfig(cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := reg.Parse(context.Background(), []string{"a", "f.c"}); err == nil {
		t.Errorf("Parse through an alias cycle succeeded; want error")
	}
}

func TestStoreSplit(t *testing.T) {
	reg := NewRegistry()
	err := reg.LoadConfig(`
[compiler.splitcc]
[[compiler.splitcc.parser]]
flags = ["-targets"]
action = "store_split"
dest = "modes"
sep = ","
format = "mode-$value"
`)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	tu := parseOne(t, reg, "splitcc", "-targets", "a,b", "f.c")
	if diff := cmp.Diff([]string{"mode-a", "mode-b"}, tu.Modes); diff != "" {
		t.Errorf("Modes: diff -want +got:\n%s", diff)
	}
}
