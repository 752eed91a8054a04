// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"go.chromium.org/infra/codebase/cbi/analysis"
)

// TreeOptions alter the directory tree view.
type TreeOptions struct {
	// Prune omits sub-trees where every platform reaches every
	// attributed line. Countable lines that no platform reaches are not
	// taken into account.
	Prune bool
	// MaxLevel limits the printed depth; 0 means unlimited.
	MaxLevel int
}

type treeNode struct {
	name     string
	children map[string]*treeNode
	// sloc counts countable lines; perSet counts lines per exact
	// platform set.
	sloc   int
	perSet map[string]int
}

func newTreeNode(name string) *treeNode {
	return &treeNode{name: name, children: make(map[string]*treeNode), perSet: make(map[string]int)}
}

func (n *treeNode) child(name string) *treeNode {
	c, ok := n.children[name]
	if !ok {
		c = newTreeNode(name)
		n.children[name] = c
	}
	return c
}

// specialized reports whether any attributed line below n misses at
// least one platform. Lines no platform reaches are not in perSet and
// do not count.
func (n *treeNode) specialized(allPlatforms string) bool {
	for set, count := range n.perSet {
		if set != allPlatforms && count > 0 {
			return true
		}
	}
	for _, c := range n.children {
		if c.specialized(allPlatforms) {
			return true
		}
	}
	return false
}

// Tree writes a directory tree annotated with per-node countable-line
// counts and how many of those lines every platform reaches.
func Tree(w io.Writer, res *analysis.Result, opts TreeOptions) {
	root := newTreeNode(".")

	perFile := make(map[string]map[string]int)
	res.SetMap.ForEach(func(file string, line int, platforms []string) {
		counts, ok := perFile[file]
		if !ok {
			counts = make(map[string]int)
			perFile[file] = counts
		}
		counts[strings.Join(platforms, " ")]++
	})
	for file, stats := range res.FileStats {
		rel, err := filepath.Rel(res.RootDir, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		node := root
		parts := strings.Split(filepath.ToSlash(rel), "/")
		for _, part := range parts {
			node.sloc += stats.SLOC
			for set, count := range perFile[file] {
				node.perSet[set] += count
			}
			node = node.child(part)
		}
		node.sloc += stats.SLOC
		for set, count := range perFile[file] {
			node.perSet[set] += count
		}
	}

	allPlatforms := strings.Join(res.Platforms, " ")
	fmt.Fprintf(w, "%s [%s]\n", res.RootDir, nodeLabel(root, allPlatforms))
	printTree(w, root, "", 1, allPlatforms, opts)
}

func nodeLabel(n *treeNode, allPlatforms string) string {
	shared := n.perSet[allPlatforms]
	return fmt.Sprintf("%d lines, %d shared by all platforms", n.sloc, shared)
}

func printTree(w io.Writer, n *treeNode, prefix string, level int, allPlatforms string, opts TreeOptions) {
	if opts.MaxLevel > 0 && level > opts.MaxLevel {
		return
	}
	var names []string
	for name, c := range n.children {
		if opts.Prune && !c.specialized(allPlatforms) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		c := n.children[name]
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(names)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		fmt.Fprintf(w, "%s%s%s [%s]\n", prefix, connector, name, nodeLabel(c, allPlatforms))
		printTree(w, c, childPrefix, level+1, allPlatforms, opts)
	}
}
