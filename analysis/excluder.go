// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Excluder matches files against gitignore-style pathspecs rooted at
// the analysis root directory.
type Excluder struct {
	root     string
	patterns []glob.Glob
}

// NewExcluder compiles the exclude patterns. A pattern without a slash
// matches in any directory; a pattern with one is anchored at the
// root. A trailing slash excludes a whole directory.
func NewExcluder(root string, patterns []string) (*Excluder, error) {
	e := &Excluder{root: root}
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if strings.HasSuffix(pat, "/") {
			pat += "**"
		}
		pat = strings.TrimPrefix(pat, "/")
		if !strings.Contains(strings.TrimSuffix(pat, "/**"), "/") {
			// An unanchored pattern matches in any directory.
			pat = "{" + pat + ",**/" + pat + "}"
		}
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: bad exclude pattern %q: %v", ErrConfig, pat, err)
		}
		e.patterns = append(e.patterns, g)
	}
	return e, nil
}

// Match reports whether path is excluded. Paths outside the root
// directory are always excluded from attribution.
func (e *Excluder) Match(path string) bool {
	rel, err := filepath.Rel(e.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, g := range e.patterns {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
