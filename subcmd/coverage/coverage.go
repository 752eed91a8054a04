// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package coverage is the coverage subcommand: it computes which lines
// of a compilation database's sources are actually compiled.
package coverage

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

const usage = `coverage compute [-S SRC] [-x PATTERN]... [-o OUT] <compile_commands.json>

Computes the lines reached when compiling the given compilation
database and writes them as JSON to stdout or OUT.
`

// Cmd returns the Command for the coverage subcommand.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "coverage compute [-S SRC] [-x PATTERN]... [-o OUT] <compile_commands.json>",
		ShortDesc: "compute compiled-line coverage of a compilation database",
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

	verbose flagutil.CountFlag
	quiet   flagutil.CountFlag
	exclude flagutil.MultiFlag
	srcDir  string
	output  string
}

func (c *run) init() {
	c.Flags.Var(&c.verbose, "v", "increase verbosity (repeatable)")
	c.Flags.Var(&c.quiet, "q", "decrease verbosity (repeatable)")
	c.Flags.Var(&c.exclude, "x", "exclude pattern (repeatable)")
	c.Flags.StringVar(&c.srcDir, "S", "", "source root directory (default: the database's directory)")
	c.Flags.StringVar(&c.output, "o", "", "write the JSON report to this file instead of stdout")
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
	if len(args) != 2 || args[0] != "compute" {
		return fmt.Errorf("usage: %s", usage)
	}
	analyze.SetLogLevel(int(c.verbose), int(c.quiet))

	res, err := analysis.RunCompdb(ctx, args[1], c.srcDir, c.exclude)
	if err != nil {
		return err
	}
	out := os.Stdout
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return report.CoverageJSON(out, res)
}
