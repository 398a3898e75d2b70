// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package queue

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
)

var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and control the job queue",
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-state job counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.CtxGetApi(cmd.Context())
		stats, err := client.Queue().Stats()
		cobra.CheckErr(err)
		fmt.Printf("Waiting:    %d\n", stats.Waiting)
		fmt.Printf("Delayed:    %d\n", stats.Delayed)
		fmt.Printf("Active:     %d\n", stats.Active)
		fmt.Printf("Completed:  %d\n", stats.Completed)
		fmt.Printf("Failed:     %d\n", stats.Failed)
		fmt.Printf("Paused:     %d\n", stats.Paused)
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop dispatching new jobs; active jobs finish",
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.CtxGetApi(cmd.Context()).Queue().Pause()
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume dispatching jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.CtxGetApi(cmd.Context()).Queue().Resume()
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old terminal jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		grace, _ := cmd.Flags().GetDuration("grace")
		limit, _ := cmd.Flags().GetInt("limit")
		jobType, _ := cmd.Flags().GetString("type")
		client := api.CtxGetApi(cmd.Context())
		removed, err := client.Queue().Clean(api.CleanRequest{
			GraceMs: grace.Milliseconds(),
			Limit:   limit,
			Type:    jobType,
		})
		cobra.CheckErr(err)
		fmt.Printf("Removed %d jobs\n", removed)
		return nil
	},
}

func init() {
	QueueCmd.AddCommand(statsCmd)
	QueueCmd.AddCommand(pauseCmd)
	QueueCmd.AddCommand(resumeCmd)
	QueueCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Duration("grace", 24*time.Hour, "Only remove jobs older than this")
	cleanCmd.Flags().Int("limit", 1000, "Maximum number of jobs to remove")
	cleanCmd.Flags().String("type", "", "Only remove jobs in this state (completed or failed)")
}
