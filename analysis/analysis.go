// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package analysis orchestrates a code base investigation: it loads
// the analysis TOML, resolves each platform's compilation database,
// and drives the per-platform preprocessor walks that build the
// line-to-platforms setmap.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/codebase/cbi/compdb"
	"go.chromium.org/infra/codebase/cbi/compilers"
	"go.chromium.org/infra/codebase/cbi/preprocessor"
	"go.chromium.org/infra/codebase/cbi/runtimex"
	"go.chromium.org/infra/codebase/cbi/source"
	"go.chromium.org/infra/codebase/cbi/sync/semaphore"
)

// ErrConfig marks a malformed or inconsistent analysis configuration.
// It aborts the run.
var ErrConfig = errors.New("invalid analysis configuration")

// Config is the analysis TOML file.
type Config struct {
	Codebase CodebaseConfig            `toml:"codebase"`
	Platform map[string]PlatformConfig `toml:"platform"`
}

// CodebaseConfig is the [codebase] table.
type CodebaseConfig struct {
	Exclude []string `toml:"exclude"`
}

// PlatformConfig is one [platform.NAME] table.
type PlatformConfig struct {
	Commands string `toml:"commands"`
}

// Options alter a run beyond the analysis file.
type Options struct {
	// Platforms restricts the analysis to the named platforms. Naming
	// a platform absent from the analysis file is an error.
	Platforms []string
	// Exclude appends patterns to codebase.exclude.
	Exclude []string
}

// FileStats carries per-file line totals observed during the walks.
type FileStats struct {
	TotalLines int
	SLOC       int
}

// Result is the aggregate outcome of an analysis run.
type Result struct {
	RootDir     string
	Platforms   []string
	SetMap      *preprocessor.SetMap
	Diagnostics []preprocessor.Diagnostic
	FileStats   map[string]FileStats
}

// LoadConfig reads and validates an analysis file. The returned root
// directory is the directory holding the file; all relative paths
// resolve against it.
func LoadConfig(ctx context.Context, path string) (*Config, string, error) {
	if !strings.HasSuffix(path, ".toml") {
		return nil, "", fmt.Errorf("%w: %s is not a .toml file", ErrConfig, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrConfig, err)
	}
	var cfg Config
	meta, err := toml.DecodeFile(abs, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("analysis: %w", err)
		}
		return nil, "", fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warnf("%s: unrecognized keys: %v", path, undecoded)
	}
	if len(cfg.Platform) == 0 {
		return nil, "", fmt.Errorf("%w: %s defines no [platform.NAME] tables", ErrConfig, path)
	}
	for name, p := range cfg.Platform {
		if p.Commands == "" {
			return nil, "", fmt.Errorf("%w: platform %q has no commands path", ErrConfig, name)
		}
	}
	return &cfg, filepath.Dir(abs), nil
}

// selectPlatforms applies the -p filter, sorted for determinism.
func selectPlatforms(cfg *Config, requested []string) ([]string, error) {
	var names []string
	if len(requested) == 0 {
		for name := range cfg.Platform {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	for _, name := range requested {
		if _, ok := cfg.Platform[name]; !ok {
			return nil, fmt.Errorf("%w: platform %q is not defined in the analysis file", ErrConfig, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// compilerRegistry loads the shipped compiler specs plus the optional
// .cbi/config overrides under root.
func compilerRegistry(root string) (*compilers.Registry, error) {
	reg := compilers.NewRegistry()
	data, err := os.ReadFile(filepath.Join(root, ".cbi", "config"))
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("analysis: %w", err)
	}
	if err := reg.LoadConfig(string(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return reg, nil
}

// unit is one scheduled (platform, translation unit) walk.
type unit struct {
	platform string
	cfg      preprocessor.WalkConfig
}

// Run performs the full analysis described by the file at cfgPath.
func Run(ctx context.Context, cfgPath string, opts Options) (*Result, error) {
	cfg, root, err := LoadConfig(ctx, cfgPath)
	if err != nil {
		return nil, err
	}
	platforms, err := selectPlatforms(cfg, opts.Platforms)
	if err != nil {
		return nil, err
	}
	reg, err := compilerRegistry(root)
	if err != nil {
		return nil, err
	}
	excluder, err := NewExcluder(root, append(append([]string(nil), cfg.Codebase.Exclude...), opts.Exclude...))
	if err != nil {
		return nil, err
	}

	var units []unit
	kept := platforms[:0]
	for _, name := range platforms {
		dbPath := cfg.Platform[name].Commands
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(root, dbPath)
		}
		entries, err := compdb.Load(ctx, dbPath)
		if err != nil {
			if errors.Is(err, compdb.ErrCompdb) {
				// A malformed database loses its platform, not the run.
				log.Errorf("dropping platform %s: %v", name, err)
				continue
			}
			return nil, fmt.Errorf("platform %s: %w", name, err)
		}
		us, err := platformUnits(ctx, name, root, reg, entries, excluder)
		if err != nil {
			log.Errorf("dropping platform %s: %v", name, err)
			continue
		}
		kept = append(kept, name)
		units = append(units, us...)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no usable platforms", ErrConfig)
	}

	return executeWalks(ctx, root, kept, units, excluder)
}

// RunCompdb analyses a bare compilation database as a single
// "coverage" platform. srcDir, when non-empty, overrides the root
// directory used for attribution.
func RunCompdb(ctx context.Context, dbPath, srcDir string, exclude []string) (*Result, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	root := filepath.Dir(abs)
	if srcDir != "" {
		root, err = filepath.Abs(srcDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	reg, err := compilerRegistry(root)
	if err != nil {
		return nil, err
	}
	excluder, err := NewExcluder(root, exclude)
	if err != nil {
		return nil, err
	}
	entries, err := compdb.Load(ctx, abs)
	if err != nil {
		return nil, err
	}
	units, err := platformUnits(ctx, "coverage", root, reg, entries, excluder)
	if err != nil {
		return nil, err
	}
	return executeWalks(ctx, root, []string{"coverage"}, units, excluder)
}

// executeWalks fans the scheduled walks out over the CPUs and
// aggregates their results.
func executeWalks(ctx context.Context, root string, platforms []string, units []unit, excluder *Excluder) (*Result, error) {
	res := &Result{
		RootDir:   root,
		Platforms: platforms,
		SetMap:    preprocessor.NewSetMap(),
		FileStats: make(map[string]FileStats),
	}
	cache := preprocessor.NewTreeCache(root)

	// Walks are independent across translation units and platforms;
	// within one walk the preprocessor is strictly sequential. The
	// semaphore keeps the fan-out at the CPU count.
	sema := semaphore.New("analysis-walk", runtimex.NumCPU())
	var mu sync.Mutex
	seenDiag := make(map[preprocessor.Diagnostic]bool)
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range units {
		g.Go(func() error {
			return sema.Do(gctx, func(ctx context.Context) error {
				wr, err := preprocessor.WalkTranslationUnit(ctx, cache, res.SetMap, u.cfg)
				if err != nil {
					// An unreadable source file skips the unit, not
					// the run.
					log.Warnf("skipping %s [%s]: %v", u.cfg.File, u.platform, err)
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for _, d := range wr.Diagnostics {
					if !seenDiag[d] {
						seenDiag[d] = true
						res.Diagnostics = append(res.Diagnostics, d)
					}
				}
				for path, tree := range wr.Visited {
					if excluder.Match(path) {
						continue
					}
					res.FileStats[path] = FileStats{TotalLines: tree.TotalLines, SLOC: tree.SLOC}
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(res.Diagnostics, func(i, j int) bool {
		a, b := res.Diagnostics[i], res.Diagnostics[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Platform < b.Platform
	})
	return res, nil
}

// platformUnits expands one platform's compilation database into walk
// configurations.
func platformUnits(ctx context.Context, name, root string, reg *compilers.Registry, entries []compdb.Entry, excluder *Excluder) ([]unit, error) {
	var units []unit
	for _, e := range entries {
		argv, err := e.Argv()
		if err != nil {
			return nil, err
		}
		tus, err := reg.Parse(ctx, argv)
		if err != nil {
			return nil, err
		}
		for _, tu := range tus {
			file := tu.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(e.Directory, file)
			}
			if excluder.Match(file) {
				log.Debugf("excluding %s; matches an exclude pattern", file)
				continue
			}
			if _, err := os.Stat(file); err != nil {
				// Databases routinely name generated files that exist
				// only after a build.
				log.Warnf("couldn't find file %s; ignoring it", file)
				continue
			}
			paths := make([]string, 0, len(tu.IncludePaths))
			for _, p := range tu.IncludePaths {
				if !filepath.IsAbs(p) {
					p = filepath.Join(e.Directory, p)
				}
				paths = append(paths, p)
			}
			units = append(units, unit{
				platform: name,
				cfg: preprocessor.WalkConfig{
					Platform:      name,
					RootDir:       e.Directory,
					File:          file,
					Defines:       tu.Defines,
					IncludePaths:  paths,
					IncludeFiles:  tu.IncludeFiles,
					OpenMP:        tu.HasMode("openmp"),
					LangOverrides: langOverrides(tu),
					Excluded:      excluder.Match,
				},
			})
		}
	}
	return units, nil
}

// langOverrides maps Fortran layout flags onto forced languages for
// every Fortran extension.
func langOverrides(tu *compilers.TranslationUnit) map[string]source.Language {
	if !tu.FixedForm && !tu.FreeForm {
		return nil
	}
	lang := source.LangFortranFree
	if tu.FixedForm {
		lang = source.LangFortranFixed
	}
	out := make(map[string]source.Language)
	for _, ext := range []string{".f", ".for", ".ftn", ".fpp", ".f90", ".f95", ".f03", ".f08"} {
		out[ext] = lang
		out[strings.ToUpper(ext)] = lang
	}
	return out
}
