// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package tests

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
	"github.com/testforge/devicelab/cli/subcommands"
)

var TestsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Inspect execution history and plan batches",
}

var flakyCmd = &cobra.Command{
	Use:   "flaky",
	Short: "List test cases currently flagged as flaky",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.CtxGetApi(cmd.Context())
		flaky, err := client.History().Flaky()
		cobra.CheckErr(err)
		table := subcommands.NewTableWriter([]string{"TEST CASE", "SAMPLES"})
		for _, f := range flaky {
			table.AddRow(f.TestCaseId, f.Samples)
		}
		table.Render()
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate execution history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.CtxGetApi(cmd.Context())
		stats, err := client.History().Stats()
		cobra.CheckErr(err)
		fmt.Printf("Tracked cases:  %d\n", stats.TrackedCases)
		fmt.Printf("Total samples:  %d\n", stats.TotalSamples)
		fmt.Printf("Flaky cases:    %d\n", stats.FlakyCases)
		fmt.Printf("Mean:           %s\n", stats.Mean)
		fmt.Printf("Median:         %s\n", stats.Median)
		fmt.Printf("P95:            %s\n", stats.P95)
		fmt.Printf("Min:            %s\n", stats.Min)
		fmt.Printf("Max:            %s\n", stats.Max)
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <case-uuid>...",
	Short: "Plan execution batches for a set of test cases",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, _ := cmd.Flags().GetString("strategy")
		workers, _ := cmd.Flags().GetInt("workers")
		client := api.CtxGetApi(cmd.Context())
		plan, err := client.History().PlanBatches(api.PlanBatchesRequest{
			TestCaseIds:   args,
			Strategy:      strategy,
			TargetWorkers: workers,
		})
		cobra.CheckErr(err)

		fmt.Printf("Strategy: %s\n\n", plan.Strategy)
		table := subcommands.NewTableWriter([]string{"BATCH", "CASES", "ESTIMATED", "CONCURRENCY"})
		for i, b := range plan.Batches {
			table.AddRow(i+1, strings.Join(b.TestCaseIds, "\n"), b.EstimatedDuration.String(), b.MaxConcurrency)
		}
		table.Render()
		return nil
	},
}

func init() {
	TestsCmd.AddCommand(flakyCmd)
	TestsCmd.AddCommand(statsCmd)
	TestsCmd.AddCommand(planCmd)
	planCmd.Flags().String("strategy", "", "Batch strategy: DURATION_BALANCED, DURATION_CLUSTERED, TAG_BASED, FLAKY_ISOLATED, or HYBRID")
	planCmd.Flags().Int("workers", 0, "Target number of parallel workers")
}
