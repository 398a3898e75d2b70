// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package devices

import (
	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
	"github.com/testforge/devicelab/cli/subcommands"
)

var statusCmd = &cobra.Command{
	Use:   "set-status <uuid> <status>",
	Short: "Change a device's pool status",
	Long:  `Move a device between AVAILABLE, OFFLINE, and MAINTENANCE`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api := api.CtxGetApi(cmd.Context())
		return api.Devices().SetStatus(args[0], args[1])
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live device sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		api := api.CtxGetApi(cmd.Context())
		return listSessions(api.Devices())
	},
}

func init() {
	DevicesCmd.AddCommand(statusCmd)
	DevicesCmd.AddCommand(sessionsCmd)
}

func listSessions(dapi api.DeviceApi) error {
	sessions, err := dapi.Sessions()
	cobra.CheckErr(err)

	table := subcommands.NewTableWriter([]string{"SESSION", "DEVICE", "STATUS", "TESTS", "LAST ACTIVITY"})
	for _, s := range sessions {
		table.AddRow(s.SessionID, s.DeviceID, string(s.Status), s.TestCount,
			s.LastActivityAt.Format("2006-01-02 15:04:05"))
	}
	table.Render()
	return nil
}
