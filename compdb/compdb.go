// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compdb loads JSON compilation databases.
package compdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"go.chromium.org/infra/codebase/cbi/toolsupport/shutil"
)

// ErrCompdb marks a malformed compilation database. It is fatal for
// the platform that referenced the database.
var ErrCompdb = errors.New("invalid compilation database")

// Entry is one compilation database record.
type Entry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// Argv returns the entry's command as an argv vector.
func (e Entry) Argv() ([]string, error) {
	if len(e.Arguments) > 0 {
		return e.Arguments, nil
	}
	argv, err := shutil.Split(e.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompdb, e.File, err)
	}
	return argv, nil
}

// AbsFile returns the entry's source path resolved against its
// directory.
func (e Entry) AbsFile() string {
	if filepath.IsAbs(e.File) {
		return filepath.Clean(e.File)
	}
	return filepath.Join(e.Directory, e.File)
}

const schemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "directory": {"type": "string"},
      "file": {"type": "string"},
      "command": {"type": "string"},
      "arguments": {"type": "array", "items": {"type": "string"}},
      "output": {"type": "string"}
    },
    "required": ["directory", "file"],
    "anyOf": [
      {"required": ["command"]},
      {"required": ["arguments"]}
    ]
  }
}`

var schema = jsonschema.MustCompileString("compile_commands.json", schemaJSON)

// Load reads and validates a compilation database. Entries naming the
// same file are deduplicated, last wins.
func Load(ctx context.Context, path string) ([]Entry, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compdb: %w", err)
	}
	var raw any
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompdb, path, err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompdb, path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(buf, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompdb, path, err)
	}
	for _, e := range entries {
		if !filepath.IsAbs(e.Directory) {
			return nil, fmt.Errorf("%w: %s: directory %q is not absolute", ErrCompdb, path, e.Directory)
		}
	}

	// Deduplicate by file, last entry wins, preserving first-seen
	// order.
	index := make(map[string]int)
	var out []Entry
	for _, e := range entries {
		key := e.AbsFile()
		if i, ok := index[key]; ok {
			log.Debugf("compdb: duplicate entry for %s; keeping the later one", strings.TrimSpace(key))
			out[i] = e
			continue
		}
		index[key] = len(out)
		out = append(out, e)
	}
	return out, nil
}
