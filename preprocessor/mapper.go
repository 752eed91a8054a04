// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package preprocessor

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/codebase/cbi/source"
)

// Error kinds reported by the walk. All of them downgrade to warnings;
// the setmap stays consistent.
var (
	ErrIncludeNotFound = errors.New("include not found")
	ErrGuardCycle      = errors.New("include cycle without guard")
)

// setmapShards spreads the write-heavy setmap over independent locks.
const setmapShards = 16

// SetMap maps each physical line to the set of platforms whose
// compilation reaches it. Inserts are idempotent; reads must not run
// concurrently with writes.
type SetMap struct {
	shards [setmapShards]setShard
}

type setShard struct {
	mu sync.Mutex
	m  map[string]map[int]map[string]struct{}
}

// NewSetMap returns an empty SetMap.
func NewSetMap() *SetMap {
	s := &SetMap{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]map[int]map[string]struct{})
	}
	return s
}

func (s *SetMap) shard(file string) *setShard {
	h := fnv.New32a()
	h.Write([]byte(file))
	return &s.shards[h.Sum32()%setmapShards]
}

// Insert records that platform reaches the given line of file.
func (s *SetMap) Insert(file string, line int, platform string) {
	sh := s.shard(file)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	lines, ok := sh.m[file]
	if !ok {
		lines = make(map[int]map[string]struct{})
		sh.m[file] = lines
	}
	set, ok := lines[line]
	if !ok {
		set = make(map[string]struct{})
		lines[line] = set
	}
	set[platform] = struct{}{}
}

// Platforms returns the sorted platform set of one line, or nil.
func (s *SetMap) Platforms(file string, line int) []string {
	sh := s.shard(file)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set := sh.m[file][line]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Files returns the sorted files with at least one attributed line.
func (s *SetMap) Files() []string {
	var out []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for f := range sh.m {
			out = append(out, f)
		}
		sh.mu.Unlock()
	}
	sort.Strings(out)
	return out
}

// ForEach calls fn for every attributed line with its sorted platform
// set. Iteration order is sorted by file then line.
func (s *SetMap) ForEach(fn func(file string, line int, platforms []string)) {
	for _, file := range s.Files() {
		sh := s.shard(file)
		sh.mu.Lock()
		lines := make([]int, 0, len(sh.m[file]))
		for n := range sh.m[file] {
			lines = append(lines, n)
		}
		sh.mu.Unlock()
		sort.Ints(lines)
		for _, n := range lines {
			fn(file, n, s.Platforms(file, n))
		}
	}
}

// Diagnostic is an #error or #warning reached by a live branch.
type Diagnostic struct {
	File     string
	Line     int
	Platform string
	Warning  bool
	Text     string
}

// WalkConfig configures one (translation unit, platform) walk.
type WalkConfig struct {
	Platform     string
	RootDir      string
	File         string
	Defines      []string
	IncludePaths []string
	IncludeFiles []string
	// OpenMP selects live "!$" sentinels in Fortran sources.
	OpenMP bool
	// LangOverrides forces a language per file extension.
	LangOverrides map[string]source.Language
	// Excluded suppresses line attribution for matching files. The
	// walk still descends into them: their macro edits are visible to
	// the rest of the translation unit.
	Excluded func(path string) bool
}

// WalkResult carries what one walk observed beyond the setmap.
type WalkResult struct {
	Diagnostics []Diagnostic
	// Visited maps every file reached by the walk to its tree.
	Visited map[string]*FileNode
}

// walker threads the per-walk state: the macro table, the stack of
// open includes and the pragma-once skip set. It is strictly
// single-threaded; concurrency lives one level up, across walks.
type walker struct {
	cache    *TreeCache
	setmap   *SetMap
	cfg      WalkConfig
	table    *MacroTable
	lang     source.Language
	stack    []string
	skipOnce map[string]struct{}
	result   *WalkResult
}

// WalkTranslationUnit maps one translation unit under one platform
// configuration, accumulating line attributions into setmap. Construct
// faults degrade to warnings; only a main file that cannot be read or
// whose language is unsupported is an error.
func WalkTranslationUnit(ctx context.Context, cache *TreeCache, setmap *SetMap, cfg WalkConfig) (*WalkResult, error) {
	w := &walker{
		cache:    cache,
		setmap:   setmap,
		cfg:      cfg,
		table:    NewMacroTable(),
		skipOnce: make(map[string]struct{}),
		result:   &WalkResult{Visited: make(map[string]*FileNode)},
	}
	for _, def := range cfg.Defines {
		if m := ParseMacroDefinition(def); m != nil {
			w.table.Define(m)
		}
	}
	w.lang = source.Classify(cfg.File, cfg.LangOverrides)
	if w.lang == source.LangUnknown {
		return nil, fmt.Errorf("unsupported language for %s", cfg.File)
	}

	// Forced includes run before the main file, mutating the macro
	// state the way -include does.
	for _, inc := range cfg.IncludeFiles {
		path, ok := w.search(IncludePath{Path: inc}, filepath.Dir(cfg.File))
		if !ok {
			log.Warnf("forced include %q not found: %v", inc, ErrIncludeNotFound)
			continue
		}
		w.enterFile(ctx, path)
	}

	tree, err := w.tree(ctx, cfg.File)
	if err != nil {
		return nil, err
	}
	w.walkFile(ctx, tree)
	return w.result, nil
}

func (w *walker) tree(ctx context.Context, path string) (*FileNode, error) {
	opts := source.Options{Language: w.lang, OpenMP: w.cfg.OpenMP}
	tree, err := w.cache.Tree(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	w.result.Visited[path] = tree
	return tree, nil
}

func (w *walker) currentFile() string {
	return w.stack[len(w.stack)-1]
}

func (w *walker) walkFile(ctx context.Context, tree *FileNode) {
	w.stack = append(w.stack, tree.Path)
	w.walkBody(ctx, tree.Children)
	w.stack = w.stack[:len(w.stack)-1]
}

func (w *walker) walkBody(ctx context.Context, body []Node) {
	for _, n := range body {
		w.walkNode(ctx, n)
	}
}

func (w *walker) walkNode(ctx context.Context, n Node) {
	switch n := n.(type) {
	case *CodeRange:
		file := w.currentFile()
		if w.cfg.Excluded != nil && w.cfg.Excluded(file) {
			return
		}
		for _, line := range n.Lines {
			w.setmap.Insert(file, line, w.cfg.Platform)
		}
	case *IfGroup:
		// Branch conditions are evaluated in order against the current
		// macro state; after the first true one, later conditions are
		// not evaluated at all.
		for _, br := range n.Branches {
			live := true
			if br.Cond != nil {
				var err error
				live, err = EvalCondition(br.Cond, w.table)
				if err != nil {
					log.Warnf("%s:%d: %v", w.currentFile(), br.Line, err)
					live = false
				}
			}
			if live {
				w.walkBody(ctx, br.Body)
				break
			}
		}
	case *DefineNode:
		w.table.Define(n.Macro)
	case *UndefNode:
		w.table.Undef(n.Name)
	case *IncludeNode:
		w.include(ctx, n)
	case *PragmaNode:
		if len(n.Tokens) > 0 && n.Tokens[0].Spell == "once" {
			w.skipOnce[w.currentFile()] = struct{}{}
		}
	case *DiagNode:
		d := Diagnostic{
			File:     w.currentFile(),
			Line:     n.Line,
			Platform: w.cfg.Platform,
			Warning:  n.Warning,
			Text:     n.Text,
		}
		w.result.Diagnostics = append(w.result.Diagnostics, d)
		if n.Warning {
			log.Warnf("%s:%d: #warning %s [%s]", d.File, d.Line, d.Text, d.Platform)
		} else {
			log.Warnf("%s:%d: #error %s [%s]", d.File, d.Line, d.Text, d.Platform)
		}
	}
}

func (w *walker) include(ctx context.Context, n *IncludeNode) {
	p := n.Path
	if n.Computed != nil {
		expanded := w.table.Expand(n.Computed)
		var ok bool
		p, ok = parseIncludePath(expanded)
		if !ok {
			log.Warnf("%s:%d: cannot resolve computed include %q", w.currentFile(), n.Line, spelling(n.Computed))
			return
		}
	}
	path, ok := w.search(p, filepath.Dir(w.currentFile()))
	if !ok {
		kind := "user include"
		if p.System {
			kind = "system include"
		}
		log.Warnf("%s:%d: %s '%s' not found: %v", w.currentFile(), n.Line, kind, p.Path, ErrIncludeNotFound)
		return
	}
	w.enterFile(ctx, path)
}

// search resolves an include path: the including file's directory first
// for quoted includes, then the -I paths in order. The first match
// wins.
func (w *walker) search(p IncludePath, fromDir string) (string, bool) {
	var dirs []string
	if !p.System {
		dirs = append(dirs, fromDir)
	}
	dirs = append(dirs, w.cfg.IncludePaths...)
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(w.cfg.RootDir, dir)
		}
		candidate := filepath.Join(dir, p.Path)
		if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
			return resolved, true
		}
	}
	return "", false
}

// enterFile walks an included file with the macro state at the include
// site. Include guards, #pragma once and self-include cycles elide the
// sub-tree.
func (w *walker) enterFile(ctx context.Context, path string) {
	for _, open := range w.stack {
		if open == path {
			log.Warnf("%s includes itself without a guard: %v", path, ErrGuardCycle)
			return
		}
	}
	if _, ok := w.skipOnce[path]; ok {
		return
	}
	tree, err := w.tree(ctx, path)
	if err != nil {
		// An unreadable include degrades to a warning, like a missing
		// one.
		log.Warnf("skipping unreadable include %s: %v", path, err)
		return
	}
	if tree.Guard != "" && w.table.IsDefined(tree.Guard) {
		return
	}
	w.walkFile(ctx, tree)
}
