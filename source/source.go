// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package source reads source files and splits them into classified
// logical lines for the preprocessor.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// File is a source file as an indexable array of physical lines.
// Line numbers are one-based everywhere.
type File struct {
	Path  string
	Lines []string
}

// NumLines returns the number of physical lines in the file.
func (f *File) NumLines() int {
	return len(f.Lines)
}

// Line returns the text of physical line n (one-based).
func (f *File) Line(n int) string {
	return f.Lines[n-1]
}

// ReadFile reads path as UTF-8 with replacement of invalid sequences
// and splits it into physical lines. CRLF and CR line endings are
// normalized to LF. When root is non-empty, a symlink that resolves
// outside root is refused.
func ReadFile(ctx context.Context, root, path string) (*File, error) {
	if root != "" {
		fi, err := os.Lstat(path)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil, fmt.Errorf("source: %w", err)
			}
			rel, err := filepath.Rel(root, target)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return nil, fmt.Errorf("source: symlink %s escapes root %s", path, root)
			}
		}
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return NewFile(path, string(buf)), nil
}

// NewFile builds a File from in-memory content, applying the same
// decoding rules as ReadFile.
func NewFile(path, content string) *File {
	content = strings.ToValidUTF8(content, "�")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	// A trailing newline is not an extra physical line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return &File{Path: path, Lines: lines}
}

// Language identifies the lexing rules for a file.
type Language int

const (
	LangUnknown Language = iota
	LangC
	LangCxx
	LangFortranFree
	LangFortranFixed
	LangAsm
)

// String returns the language name used in logs and configs.
func (l Language) String() string {
	switch l {
	case LangC:
		return "c"
	case LangCxx:
		return "c++"
	case LangFortranFree:
		return "fortran-free"
	case LangFortranFixed:
		return "fortran-fixed"
	case LangAsm:
		return "asm"
	}
	return "unknown"
}

var extLanguages = map[string]Language{
	".c": LangC, ".h": LangC,
	".c++": LangCxx, ".cxx": LangCxx, ".cpp": LangCxx, ".cc": LangCxx,
	".hpp": LangCxx, ".hxx": LangCxx, ".h++": LangCxx, ".hh": LangCxx,
	".inc": LangCxx, ".inl": LangCxx, ".tcc": LangCxx, ".icc": LangCxx,
	".ipp": LangCxx, ".cu": LangCxx, ".cuh": LangCxx, ".cl": LangCxx,
	".f90": LangFortranFree, ".F90": LangFortranFree,
	".f": LangFortranFixed, ".ftn": LangFortranFixed, ".fpp": LangFortranFixed,
	".F": LangFortranFixed, ".FOR": LangFortranFixed, ".FTN": LangFortranFixed,
	".FPP": LangFortranFixed, ".for": LangFortranFixed,
	".s": LangAsm, ".S": LangAsm, ".asm": LangAsm,
}

// Classify determines the language of path from its extension.
// overrides maps extensions (with leading dot) to a forced language and
// may be nil.
func Classify(path string, overrides map[string]Language) Language {
	ext := filepath.Ext(path)
	if lang, ok := overrides[ext]; ok {
		return lang
	}
	// Case-sensitive first: .F90 vs .f90 matter for Fortran.
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	if lang, ok := extLanguages[strings.ToLower(ext)]; ok {
		return lang
	}
	log.Debugf("unknown language for %s", path)
	return LangUnknown
}
