// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package runs

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
	"github.com/testforge/devicelab/core"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <suite-uuid> <device-uuid>",
	Short: "Create a test run and enqueue it for execution",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		isolation, _ := cmd.Flags().GetString("isolation")
		retries, _ := cmd.Flags().GetInt("retries")
		retryDelay, _ := cmd.Flags().GetDuration("retry-delay")
		backoff, _ := cmd.Flags().GetBool("retry-backoff")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		priority, _ := cmd.Flags().GetInt("priority")
		delay, _ := cmd.Flags().GetDuration("delay")

		strategy, err := core.ParseIsolationStrategy(isolation)
		if err != nil {
			return err
		}

		client := api.CtxGetApi(cmd.Context())
		run, err := client.Runs().Create(api.CreateRunRequest{
			SuiteUuid:  args[0],
			DeviceUuid: args[1],
			Spec: core.RunSpec{
				Isolation:    strategy,
				MaxRetries:   retries,
				RetryDelayMs: retryDelay.Milliseconds(),
				RetryBackoff: backoff,
				TimeoutMs:    timeout.Milliseconds(),
				Tags:         tags,
			},
			Priority: priority,
			DelayMs:  delay.Milliseconds(),
		})
		cobra.CheckErr(err)
		fmt.Printf("Enqueued run %s\n", run.Uuid)
		return nil
	},
}

func init() {
	RunsCmd.AddCommand(enqueueCmd)
	enqueueCmd.Flags().String("isolation", "", "Isolation strategy: FULL_ISOLATION, SESSION_REUSE, or DEVICE_ISOLATION")
	enqueueCmd.Flags().Int("retries", 0, "Extra attempts for failing test cases")
	enqueueCmd.Flags().Duration("retry-delay", time.Second, "Pause before each retry")
	enqueueCmd.Flags().Bool("retry-backoff", false, "Grow the retry pause with the attempt number")
	enqueueCmd.Flags().Duration("timeout", 0, "Override the per-case timeout")
	enqueueCmd.Flags().StringSlice("tags", nil, "Only run cases carrying at least one of these tags")
	enqueueCmd.Flags().Int("priority", 0, "Queue priority; higher runs first")
	enqueueCmd.Flags().Duration("delay", 0, "Hold the run back for this long before dispatch")
}
