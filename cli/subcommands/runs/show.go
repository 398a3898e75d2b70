// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package runs

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
	"github.com/testforge/devicelab/cli/subcommands"
)

var showCmd = &cobra.Command{
	Use:   "show <uuid>",
	Short: "Show a run and its per-case results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.CtxGetApi(cmd.Context())
		return showRun(client.Runs(), args[0])
	},
}

func init() {
	RunsCmd.AddCommand(showCmd)
}

func showRun(rapi api.RunsApi, uuid string) error {
	detail, err := rapi.Get(uuid)
	cobra.CheckErr(err)

	run := detail.Run
	fmt.Printf("UUID:       %s\n", run.Uuid)
	fmt.Printf("Suite:      %s\n", run.SuiteUuid)
	fmt.Printf("Device:     %s\n", run.DeviceUuid)
	fmt.Printf("Status:     %s\n", run.Status)
	fmt.Printf("Passed:     %d\n", run.Passed)
	fmt.Printf("Failed:     %d\n", run.Failed)
	fmt.Printf("Skipped:    %d\n", run.Skipped)
	if run.Error != "" {
		fmt.Printf("Error:      %s\n", run.Error)
	}
	if run.StartedAt != nil {
		fmt.Printf("Started:    %s\n", run.StartedAt.Time().Format(time.RFC3339))
	}
	if run.CompletedAt != nil {
		fmt.Printf("Completed:  %s\n", run.CompletedAt.Time().Format(time.RFC3339))
	}

	if len(detail.Results) == 0 {
		return nil
	}
	fmt.Println()
	table := subcommands.NewTableWriter([]string{"CASE", "STATUS", "DURATION", "RETRIES", "ERROR"})
	for _, r := range detail.Results {
		table.AddRow(r.CaseUuid, r.Status,
			(time.Duration(r.DurationMs) * time.Millisecond).String(), r.Retries, r.ErrorMessage)
	}
	table.Render()
	return nil
}
