// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package report renders the line-to-platforms setmap into the
// user-facing reports: summary, clustering distances, per-file
// breakdowns, duplicate detection and the directory tree view.
package report

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/codebase/cbi/analysis"
)

// lineKey identifies a physical line across files.
type lineKey struct {
	file string
	line int
}

// platformLines collects, per platform, the set of lines it reaches.
func platformLines(res *analysis.Result) map[string]map[lineKey]struct{} {
	sets := make(map[string]map[lineKey]struct{}, len(res.Platforms))
	for _, p := range res.Platforms {
		sets[p] = make(map[lineKey]struct{})
	}
	res.SetMap.ForEach(func(file string, line int, platforms []string) {
		for _, p := range platforms {
			if set, ok := sets[p]; ok {
				set[lineKey{file, line}] = struct{}{}
			}
		}
	})
	return sets
}

// setCounts tallies lines per exact platform set. The empty-set bucket
// holds countable lines no platform reaches.
func setCounts(res *analysis.Result) map[string]int {
	counts := make(map[string]int)
	attributed := make(map[string]int)
	res.SetMap.ForEach(func(file string, line int, platforms []string) {
		counts[strings.Join(platforms, " ")]++
		attributed[file]++
	})
	unmapped := 0
	for file, stats := range res.FileStats {
		unmapped += stats.SLOC - attributed[file]
	}
	if unmapped > 0 {
		counts[""] = unmapped
	}
	return counts
}

// distance is the pairwise specialization distance 1 - |A∩B| / |A∪B|.
// Two platforms with no code at all are at distance 0.
func distance(a, b map[lineKey]struct{}) float64 {
	inter, union := 0, len(b)
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return 1 - float64(inter)/float64(union)
}

// Divergence is the code divergence of the analysed code base: the
// mean pairwise distance between platforms.
func Divergence(res *analysis.Result) float64 {
	sets := platformLines(res)
	var total float64
	pairs := 0
	for i, a := range res.Platforms {
		for _, b := range res.Platforms[i+1:] {
			total += distance(sets[a], sets[b])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

// Summary writes the platform-set table with line counts and shares.
func Summary(w io.Writer, res *analysis.Result) {
	counts := setCounts(res)
	total := 0
	for _, n := range counts {
		total += n
	}
	var keys []string
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintf(w, "Summary\n")
	fmt.Fprintf(w, "%-40s %12s %8s\n", "Platform set", "LOC", "% LOC")
	for _, k := range keys {
		label := "{}"
		if k != "" {
			label = "{ " + k + " }"
		}
		share := 0.0
		if total > 0 {
			share = 100 * float64(counts[k]) / float64(total)
		}
		fmt.Fprintf(w, "%-40s %12d %7.2f%%\n", label, counts[k], share)
	}
	fmt.Fprintf(w, "Code Divergence: %.2f\n", Divergence(res))
	fmt.Fprintf(w, "Unique Platforms: %d\n", len(res.Platforms))
	fmt.Fprintf(w, "Total SLOC: %d\n", total)
}

// Clustering writes the pairwise distance matrix. Dendrogram rendering
// is left to external tooling over these distances.
func Clustering(w io.Writer, res *analysis.Result) {
	sets := platformLines(res)
	fmt.Fprintf(w, "Distances\n")
	fmt.Fprintf(w, "%-20s", "")
	for _, p := range res.Platforms {
		fmt.Fprintf(w, " %12s", p)
	}
	fmt.Fprintln(w)
	for _, a := range res.Platforms {
		fmt.Fprintf(w, "%-20s", a)
		for _, b := range res.Platforms {
			fmt.Fprintf(w, " %12.2f", distance(sets[a], sets[b]))
		}
		fmt.Fprintln(w)
	}
}

// Files writes the per-file breakdown: countable lines and the share
// reached by each platform.
func Files(w io.Writer, res *analysis.Result) {
	perFile := make(map[string]map[string]int)
	res.SetMap.ForEach(func(file string, line int, platforms []string) {
		counts, ok := perFile[file]
		if !ok {
			counts = make(map[string]int)
			perFile[file] = counts
		}
		for _, p := range platforms {
			counts[p]++
		}
	})
	var files []string
	for f := range res.FileStats {
		files = append(files, f)
	}
	sort.Strings(files)

	fmt.Fprintf(w, "Files\n")
	fmt.Fprintf(w, "%-60s %8s", "File", "SLOC")
	for _, p := range res.Platforms {
		fmt.Fprintf(w, " %12s", p)
	}
	fmt.Fprintln(w)
	for _, f := range files {
		stats := res.FileStats[f]
		rel := f
		if r, err := filepath.Rel(res.RootDir, f); err == nil {
			rel = r
		}
		fmt.Fprintf(w, "%-60s %8d", rel, stats.SLOC)
		for _, p := range res.Platforms {
			share := 0.0
			if stats.SLOC > 0 {
				share = 100 * float64(perFile[f][p]) / float64(stats.SLOC)
			}
			fmt.Fprintf(w, " %11.1f%%", share)
		}
		fmt.Fprintln(w)
	}
}

// Duplicates writes groups of analysed files with identical contents,
// the usual residue of per-platform source forks.
func Duplicates(w io.Writer, res *analysis.Result) {
	groups := make(map[[sha256.Size]byte][]string)
	for f := range res.FileStats {
		buf, err := os.ReadFile(f)
		if err != nil {
			log.Warnf("duplicates: %v", err)
			continue
		}
		sum := sha256.Sum256(buf)
		groups[sum] = append(groups[sum], f)
	}
	var dups [][]string
	for _, files := range groups {
		if len(files) > 1 {
			sort.Strings(files)
			dups = append(dups, files)
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i][0] < dups[j][0] })

	fmt.Fprintf(w, "Duplicates\n")
	if len(dups) == 0 {
		fmt.Fprintf(w, "No duplicate files found.\n")
		return
	}
	for _, files := range dups {
		fmt.Fprintf(w, "Identical contents:\n")
		for _, f := range files {
			rel := f
			if r, err := filepath.Rel(res.RootDir, f); err == nil {
				rel = r
			}
			fmt.Fprintf(w, "  %s\n", rel)
		}
	}
}
