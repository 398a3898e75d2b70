// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package runs

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
	"github.com/testforge/devicelab/cli/subcommands"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent test runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client := api.CtxGetApi(cmd.Context())
		return listRuns(client.Runs(), limit)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <uuid>",
	Short: "Cancel a pending or running test run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.CtxGetApi(cmd.Context())
		return client.Runs().Cancel(args[0])
	},
}

func init() {
	RunsCmd.AddCommand(listCmd)
	RunsCmd.AddCommand(cancelCmd)
	listCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
}

func listRuns(rapi api.RunsApi, limit int) error {
	runs, err := rapi.List(limit)
	cobra.CheckErr(err)

	table := subcommands.NewTableWriter([]string{"UUID", "SUITE", "DEVICE", "STATUS", "PASS", "FAIL", "CREATED"})
	for _, r := range runs {
		table.AddRow(r.Uuid, r.SuiteUuid, r.DeviceUuid, r.Status, r.Passed, r.Failed,
			r.CreatedAt.Time().Format(time.RFC3339))
	}
	table.Render()
	return nil
}
