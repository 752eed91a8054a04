// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package analyze is the analyze subcommand: it runs the full
// code-base investigation described by an analysis file and prints the
// selected reports.
package analyze

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/codebase/cbi/analysis"
	"go.chromium.org/infra/codebase/cbi/report"
	"go.chromium.org/infra/codebase/cbi/subcmd/flagutil"
)

const usage = `analyze [-v|-q]... [-R REPORT]... [-x PATTERN]... [-p PLATFORM]... <analysis.toml>

Measures how the code base described by <analysis.toml> is specialized
for the configured platforms, and prints the requested reports.

 -R may be summary, clustering, duplicates, files or all (the default).
 -x appends gitignore-style patterns to codebase.exclude.
 -p restricts the analysis to the named platforms.
`

// Cmd returns the Command for the analyze subcommand.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "analyze [-v|-q]... [-R REPORT]... [-x PATTERN]... [-p PLATFORM]... <analysis.toml>",
		ShortDesc: "analyze platform specialization of a code base",
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
	reports   flagutil.ChoiceFlag
	exclude   flagutil.MultiFlag
	platforms flagutil.MultiFlag
}

func (c *run) init() {
	c.reports.Choices = []string{"summary", "clustering", "duplicates", "files", "all"}
	c.Flags.Var(&c.verbose, "v", "increase verbosity (repeatable)")
	c.Flags.Var(&c.quiet, "q", "decrease verbosity (repeatable)")
	c.Flags.Var(&c.reports, "R", "report to generate (repeatable; default all)")
	c.Flags.Var(&c.exclude, "x", "additional exclude pattern (repeatable)")
	c.Flags.Var(&c.platforms, "p", "restrict analysis to this platform (repeatable)")
}

// SetLogLevel translates -v/-q counts into the logger level.
func SetLogLevel(verbose, quiet int) {
	switch {
	case quiet > 0:
		log.SetLevel(log.ErrorLevel)
	case verbose > 0:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.WarnLevel)
	}
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
	SetLogLevel(int(c.verbose), int(c.quiet))

	res, err := analysis.Run(ctx, args[0], analysis.Options{
		Platforms: c.platforms,
		Exclude:   c.exclude,
	})
	if err != nil {
		return err
	}

	reports := c.reports.Values
	if len(reports) == 0 {
		reports = []string{"all"}
	}
	selected := make(map[string]bool)
	for _, r := range reports {
		if r == "all" {
			for _, name := range []string{"summary", "clustering", "duplicates", "files"} {
				selected[name] = true
			}
			continue
		}
		selected[r] = true
	}
	for _, name := range []string{"summary", "clustering", "duplicates", "files"} {
		if !selected[name] {
			continue
		}
		switch name {
		case "summary":
			report.Summary(os.Stdout, res)
		case "clustering":
			report.Clustering(os.Stdout, res)
		case "duplicates":
			report.Duplicates(os.Stdout, res)
		case "files":
			report.Files(os.Stdout, res)
		}
		fmt.Println()
	}
	return nil
}
