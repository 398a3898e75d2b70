// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package suites

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
	"github.com/testforge/devicelab/cli/subcommands"
)

var SuitesCmd = &cobra.Command{
	Use:   "suites",
	Short: "Manage test suites",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all test suites",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.CtxGetApi(cmd.Context())
		suites, err := client.Suites().List()
		cobra.CheckErr(err)
		table := subcommands.NewTableWriter([]string{"UUID", "NAME", "PLATFORM", "CREATED"})
		for _, s := range suites {
			table.AddRow(s.Uuid, s.Name, s.Platform, s.CreatedAt.Time().Format(time.RFC3339))
		}
		table.Render()
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a YAML suite definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read suite file: %w", err)
		}
		client := api.CtxGetApi(cmd.Context())
		suite, err := client.Suites().Import(data)
		cobra.CheckErr(err)
		fmt.Printf("Imported suite %s (%s)\n", suite.Name, suite.Uuid)
		return nil
	},
}

var casesCmd = &cobra.Command{
	Use:   "cases <suite-uuid>",
	Short: "List the test cases of a suite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.CtxGetApi(cmd.Context())
		cases, err := client.Suites().Cases(args[0])
		cobra.CheckErr(err)
		table := subcommands.NewTableWriter([]string{"UUID", "NAME", "TIMEOUT", "TAGS"})
		for _, c := range cases {
			table.AddRow(c.Uuid, c.Name, c.Timeout().String(), joinTags(c.Tags))
		}
		table.Render()
		return nil
	},
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	out := tags[0]
	for _, t := range tags[1:] {
		out += "," + t
	}
	return out
}

func init() {
	SuitesCmd.AddCommand(listCmd)
	SuitesCmd.AddCommand(importCmd)
	SuitesCmd.AddCommand(casesCmd)
}
