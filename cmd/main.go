// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"
)

type CommonArgs struct {
	DataDir    string `arg:"required" help:"Directory to store data"`
	ConfigFile string `help:"Path to the server config file; defaults to <datadir>/devicelab.toml"`
}

func (c CommonArgs) configPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	return filepath.Join(c.DataDir, "devicelab.toml")
}

type rootArgs struct {
	CommonArgs
	Serve       *ServeCmd       `arg:"subcommand:serve" help:"Run the orchestration server"`
	ImportSuite *ImportSuiteCmd `arg:"subcommand:import-suite" help:"Import a YAML suite definition into the store"`
}

func main() {
	args := rootArgs{}
	p := arg.MustParse(&args)

	var err error
	switch {
	case args.Serve != nil:
		err = args.Serve.Run(args.CommonArgs)
	case args.ImportSuite != nil:
		err = args.ImportSuite.Run(args.CommonArgs)
	default:
		p.Fail("missing required subcommand")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
