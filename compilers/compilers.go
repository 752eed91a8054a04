// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compilers emulates compiler command lines: it turns an argv
// vector into the predefined macros, include paths and forced includes
// that configure a translation unit, driven by per-compiler
// specifications.
package compilers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Action is one of the closed set of argument actions a parser rule
// may perform. Dynamic behavior is deliberately not supported.
type Action string

const (
	StoreConst  Action = "store_const"
	AppendConst Action = "append_const"
	Store       Action = "store"
	Append      Action = "append"
	StoreSplit  Action = "store_split"
	StoreTrue   Action = "store_true"
	StoreFalse  Action = "store_false"
)

// Rule matches command line flags and routes their values into a
// destination bucket.
type Rule struct {
	Flags  []string `toml:"flags"`
	Action Action   `toml:"action"`
	Dest   string   `toml:"dest"`
	Const  string   `toml:"const"`
	// Sep and Format apply to store_split: the value is split on Sep
	// and each piece formatted through Format ("$value" expands to the
	// piece).
	Sep    string `toml:"sep"`
	Format string `toml:"format"`
	// Override makes later occurrences replace earlier ones.
	Override bool `toml:"override"`
}

// Mode is a named group of configuration contributed when a parser
// rule turns it on (e.g. "openmp").
type Mode struct {
	Name         string   `toml:"name"`
	Defines      []string `toml:"defines"`
	IncludePaths []string `toml:"include_paths"`
	IncludeFiles []string `toml:"include_files"`
}

// Pass is like a Mode but gated on a set of active modes (e.g. a
// "sycl-spir64" device pass requiring mode "sycl").
type Pass struct {
	Name         string   `toml:"name"`
	Modes        []string `toml:"modes"`
	Defines      []string `toml:"defines"`
	IncludePaths []string `toml:"include_paths"`
	IncludeFiles []string `toml:"include_files"`
}

// Spec describes one compiler, or aliases another.
type Spec struct {
	AliasOf string   `toml:"alias_of"`
	Options []string `toml:"options"`
	Parser  []Rule   `toml:"parser"`
	Modes   []Mode   `toml:"modes"`
	Passes  []Pass   `toml:"passes"`
}

// TranslationUnit is the emulator output for one source file of one
// command.
type TranslationUnit struct {
	File         string
	Defines      []string
	IncludePaths []string
	IncludeFiles []string
	Modes        []string
	Passes       []string
	// FixedForm / FreeForm record Fortran layout overrides from flags
	// such as -ffixed-form.
	FixedForm bool
	FreeForm  bool
}

// Registry holds the known compiler specifications: the shipped
// defaults plus any user overrides.
type Registry struct {
	specs map[string]*Spec
}

// NewRegistry returns a registry with the shipped default
// specifications.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]*Spec)}
	for name, spec := range defaultSpecs() {
		r.specs[name] = spec
	}
	return r
}

// userConfig mirrors the [compiler.NAME] tables of .cbi/config.
type userConfig struct {
	Compiler map[string]*Spec `toml:"compiler"`
}

// LoadConfig merges user compiler definitions from a .cbi/config TOML
// file. User tables are additive over the shipped defaults: parser
// rules, modes and passes append; alias_of replaces.
func (r *Registry) LoadConfig(data string) error {
	var cfg userConfig
	if _, err := toml.Decode(data, &cfg); err != nil {
		return fmt.Errorf("compilers: malformed config: %w", err)
	}
	for name, user := range cfg.Compiler {
		base, ok := r.specs[name]
		if !ok || user.AliasOf != "" {
			r.specs[name] = user
			continue
		}
		base.Options = append(base.Options, user.Options...)
		base.Parser = append(base.Parser, user.Parser...)
		base.Modes = append(base.Modes, user.Modes...)
		base.Passes = append(base.Passes, user.Passes...)
	}
	return nil
}

// resolve follows alias_of chains with cycle detection.
func (r *Registry) resolve(name string) (*Spec, error) {
	seen := make(map[string]bool)
	for {
		if seen[name] {
			return nil, fmt.Errorf("compilers: alias cycle at %q", name)
		}
		seen[name] = true
		spec, ok := r.specs[name]
		if !ok {
			return nil, nil
		}
		if spec.AliasOf == "" {
			return spec, nil
		}
		name = spec.AliasOf
	}
}

var sourceExtensions = map[string]bool{
	".c": true, ".cc": true, ".cxx": true, ".cpp": true, ".c++": true,
	".cu": true, ".cl": true, ".m": true, ".mm": true,
	".f": true, ".for": true, ".ftn": true, ".fpp": true,
	".f90": true, ".f95": true, ".f03": true, ".f08": true,
	".s": true, ".S": true, ".asm": true,
}

func isSourceFile(arg string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(arg))]
}

// buckets accumulates rule destinations during a parse.
type buckets struct {
	lists map[string][]string
	bools map[string]bool
}

func (b *buckets) put(rule Rule, value string) {
	switch rule.Action {
	case StoreTrue:
		b.bools[rule.Dest] = true
		return
	case StoreFalse:
		b.bools[rule.Dest] = false
		return
	}
	if rule.Override || rule.Action == Store || rule.Action == StoreConst {
		b.lists[rule.Dest] = b.lists[rule.Dest][:0]
	}
	switch rule.Action {
	case StoreConst, AppendConst:
		b.lists[rule.Dest] = append(b.lists[rule.Dest], rule.Const)
	case Store, Append:
		b.lists[rule.Dest] = append(b.lists[rule.Dest], value)
	case StoreSplit:
		sep := rule.Sep
		if sep == "" {
			sep = ","
		}
		for _, piece := range strings.Split(value, sep) {
			if rule.Format != "" {
				piece = strings.ReplaceAll(rule.Format, "$value", piece)
			}
			b.lists[rule.Dest] = append(b.lists[rule.Dest], piece)
		}
	}
}

func (rule Rule) takesValue() bool {
	return rule.Action == Store || rule.Action == Append || rule.Action == StoreSplit
}

// matchRules finds the rule triggered by arg. Exact flag matches win
// over attached-value matches; among attached matches the longest flag
// wins, so -include is never mistaken for -I with a value.
func matchRules(rules []Rule, arg string) (rule Rule, value string, needsNext, ok bool) {
	for _, r := range rules {
		for _, flag := range r.Flags {
			if arg == flag {
				return r, "", r.takesValue(), true
			}
		}
	}
	bestLen := 0
	for _, r := range rules {
		if !r.takesValue() {
			continue
		}
		for _, flag := range r.Flags {
			if !strings.HasPrefix(arg, flag) || len(flag) <= bestLen {
				continue
			}
			rest := arg[len(flag):]
			switch {
			case strings.HasPrefix(rest, "="):
				rule, value, ok = r, rest[1:], true
				bestLen = len(flag)
			case !strings.HasPrefix(flag, "--"):
				// Short flags accept attached values without '='.
				rule, value, ok = r, rest, true
				bestLen = len(flag)
			}
		}
	}
	return rule, value, false, ok
}

// Parse emulates one compiler invocation. argv[0] selects the
// specification by basename; unknown compilers fall back to generic
// gcc-style parsing, and unrecognized flags are silently ignored so
// unknown toolchains can still be analysed. One TranslationUnit is
// returned per source file on the command line.
func (r *Registry) Parse(ctx context.Context, argv []string) ([]*TranslationUnit, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("compilers: empty command")
	}
	name := filepath.Base(argv[0])
	name = strings.TrimSuffix(name, ".exe")
	spec, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		log.Debugf("no specification for compiler %q; using gnu defaults", name)
		spec, err = r.resolve("gnu")
		if err != nil || spec == nil {
			return nil, fmt.Errorf("compilers: missing gnu fallback: %w", err)
		}
	}

	args := append(append([]string(nil), spec.Options...), argv[1:]...)
	b := &buckets{lists: make(map[string][]string), bools: make(map[string]bool)}
	var files []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			if isSourceFile(arg) {
				files = append(files, arg)
			}
			continue
		}
		rule, value, needsNext, ok := matchRules(spec.Parser, arg)
		if !ok {
			continue
		}
		if needsNext {
			if i+1 >= len(args) {
				log.Warnf("flag %q is missing its argument", arg)
				continue
			}
			i++
			value = args[i]
		}
		b.put(rule, value)
	}

	modes := b.lists["modes"]
	defines := append([]string(nil), b.lists["defines"]...)
	for _, undef := range b.lists["undefines"] {
		kept := defines[:0]
		for _, d := range defines {
			if name, _, _ := strings.Cut(d, "="); name != undef {
				kept = append(kept, d)
			}
		}
		defines = kept
	}
	includePaths := append([]string(nil), b.lists["include_paths"]...)
	includeFiles := append([]string(nil), b.lists["include_files"]...)
	var passes []string
	for _, mode := range modes {
		for _, m := range spec.Modes {
			if m.Name != mode {
				continue
			}
			defines = append(defines, m.Defines...)
			includePaths = append(includePaths, m.IncludePaths...)
			includeFiles = append(includeFiles, m.IncludeFiles...)
		}
	}
	for _, p := range spec.Passes {
		if !modesActive(modes, p.Modes) {
			continue
		}
		passes = append(passes, p.Name)
		defines = append(defines, p.Defines...)
		includePaths = append(includePaths, p.IncludePaths...)
		includeFiles = append(includeFiles, p.IncludeFiles...)
	}

	var tus []*TranslationUnit
	for _, file := range files {
		tus = append(tus, &TranslationUnit{
			File:         file,
			Defines:      defines,
			IncludePaths: includePaths,
			IncludeFiles: includeFiles,
			Modes:        modes,
			Passes:       passes,
			FixedForm:    b.bools["fixed_form"],
			FreeForm:     b.bools["free_form"],
		})
	}
	return tus, nil
}

func modesActive(active, required []string) bool {
	for _, want := range required {
		found := false
		for _, m := range active {
			if m == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(required) > 0
}

// HasMode reports whether the translation unit activated mode.
func (tu *TranslationUnit) HasMode(mode string) bool {
	for _, m := range tu.Modes {
		if m == mode {
			return true
		}
	}
	return false
}
