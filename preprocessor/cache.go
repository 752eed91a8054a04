// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package preprocessor

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"go.chromium.org/infra/codebase/cbi/source"
)

// treeCacheSize bounds the number of cached file trees. Trees are
// small; the bound mostly guards against pathological generated
// headers.
const treeCacheSize = 1 << 14

// TreeCache builds and shares specialization trees. Trees are
// syntactic, so one entry serves every platform; entries are read-only
// after insertion and safe to share between walks.
type TreeCache struct {
	root  string
	trees *lru.Cache[string, *FileNode]
}

// NewTreeCache returns a cache rooted at the analysis root directory.
func NewTreeCache(root string) *TreeCache {
	trees, err := lru.New[string, *FileNode](treeCacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &TreeCache{root: root, trees: trees}
}

// Tree returns the specialization tree of path, building it on first
// use. The lexing options are part of the cache key: the same header
// lexed as C and as Fortran yields distinct trees.
func (c *TreeCache) Tree(ctx context.Context, path string, opts source.Options) (*FileNode, error) {
	key := fmt.Sprintf("%s\x00%s\x00%t", path, opts.Language, opts.OpenMP)
	if tree, ok := c.trees.Get(key); ok {
		return tree, nil
	}
	f, err := source.ReadFile(ctx, c.root, path)
	if err != nil {
		return nil, err
	}
	tree := BuildTree(f, source.LogicalLines(f, opts))
	c.trees.Add(key, tree)
	return tree, nil
}
