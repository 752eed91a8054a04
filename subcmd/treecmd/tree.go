// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package treecmd is the tree subcommand: a directory tree view of
// platform specialization.
package treecmd

import (
	"context"
	"fmt"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/codebase/cbi/analysis"
	"go.chromium.org/infra/codebase/cbi/report"
	"go.chromium.org/infra/codebase/cbi/subcmd/analyze"
	"go.chromium.org/infra/codebase/cbi/subcmd/flagutil"
)

const usage = `tree [-x PATTERN]... [-p PLATFORM]... [--prune] [-L N] <analysis.toml>

Prints the analysed code base as a directory tree, annotating every
node with its line counts and how many lines all platforms share.
`

// Cmd returns the Command for the tree subcommand.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "tree [-x PATTERN]... [-p PLATFORM]... [--prune] [-L N] <analysis.toml>",
		ShortDesc: "show specialization as a directory tree",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	verbose   flagutil.CountFlag
	quiet     flagutil.CountFlag
	exclude   flagutil.MultiFlag
	platforms flagutil.MultiFlag
	prune     bool
	maxLevel  int
}

func (c *run) init() {
	c.Flags.Var(&c.verbose, "v", "increase verbosity (repeatable)")
	c.Flags.Var(&c.quiet, "q", "decrease verbosity (repeatable)")
	c.Flags.Var(&c.exclude, "x", "additional exclude pattern (repeatable)")
	c.Flags.Var(&c.platforms, "p", "restrict analysis to this platform (repeatable)")
	c.Flags.BoolVar(&c.prune, "prune", false, "omit unspecialized sub-trees")
	c.Flags.IntVar(&c.maxLevel, "L", 0, "limit the tree depth to N levels")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if err := c.run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one analysis file, got %d arguments", len(args))
	}
	analyze.SetLogLevel(int(c.verbose), int(c.quiet))

	res, err := analysis.Run(ctx, args[0], analysis.Options{
		Platforms: c.platforms,
		Exclude:   c.exclude,
	})
	if err != nil {
		return err
	}
	report.Tree(os.Stdout, res, report.TreeOptions{Prune: c.prune, MaxLevel: c.maxLevel})
	return nil
}
