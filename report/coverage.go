// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"encoding/json"
	"io"
	"path/filepath"
	"sort"

	"go.chromium.org/infra/codebase/cbi/analysis"
)

// CoverageEntry is one file of a coverage report: the countable lines
// the compilation actually reaches.
type CoverageEntry struct {
	File      string `json:"file"`
	Lines     []int  `json:"lines"`
	TotalSLOC int    `json:"total_sloc"`
}

// CoverageJSON writes the coverage of an analysed compilation database
// as JSON, one entry per file, paths relative to the analysis root.
func CoverageJSON(w io.Writer, res *analysis.Result) error {
	perFile := make(map[string][]int)
	res.SetMap.ForEach(func(file string, line int, platforms []string) {
		perFile[file] = append(perFile[file], line)
	})
	var entries []CoverageEntry
	for file, stats := range res.FileStats {
		lines := perFile[file]
		sort.Ints(lines)
		rel := file
		if r, err := filepath.Rel(res.RootDir, file); err == nil {
			rel = r
		}
		entries = append(entries, CoverageEntry{
			File:      filepath.ToSlash(rel),
			Lines:     lines,
			TotalSLOC: stats.SLOC,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].File < entries[j].File })
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
