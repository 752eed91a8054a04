// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/codebase/cbi/subcmd/analyze"
	"go.chromium.org/infra/codebase/cbi/subcmd/coverage"
	"go.chromium.org/infra/codebase/cbi/subcmd/treecmd"
)

// cbi is the Code Base Investigator: it measures how a multi-platform
// code base uses preprocessor specialization.

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "cbi",
		Title: "Code Base Investigator",
		Commands: []*subcommands.Command{
			subcommands.CmdHelp,
			analyze.Cmd(),
			treecmd.Cmd(),
			coverage.Cmd(),
		},
	}
}

func main() {
	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Fatalf("panic: %v\n%s", r, buf)
		}
	}()

	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n  %s <subcommand> [flags] ...\nRun %s help for details.\n", os.Args[0], os.Args[0], os.Args[0])
		os.Exit(1)
	}
	os.Exit(subcommands.Run(getApplication(), nil))
}
