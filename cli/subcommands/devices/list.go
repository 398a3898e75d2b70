// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package devices

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
	"github.com/testforge/devicelab/cli/subcommands"
	"github.com/testforge/devicelab/storage"
)

var allColumns = []string{
	"uuid",
	"name",
	"platform",
	"os-version",
	"status",
	"emulator",
	"last-seen",
	"created-at",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all devices",
	Long:  `List all devices known to the server`,
	RunE: func(cmd *cobra.Command, args []string) error {
		columns, _ := cmd.Flags().GetString("columns")
		api := api.CtxGetApi(cmd.Context())
		return listDevices(api.Devices(), columns)
	},
}

func init() {
	colmnsStr := strings.Join(allColumns, ",")
	DevicesCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("columns", "", "uuid,name,platform,status",
		"Comma-separated list of columns to display (available: "+colmnsStr+")")
}

func listDevices(dapi api.DeviceApi, columnsStr string) error {
	devices, err := dapi.List()
	cobra.CheckErr(err)

	columns := strings.Split(columnsStr, ",")
	for i, col := range columns {
		columns[i] = strings.TrimSpace(col)
		if slices.Index(allColumns, col) < 0 {
			return fmt.Errorf("invalid column: %s", col)
		}
	}

	headers := make([]string, 0, len(columns))
	for _, col := range columns {
		headers = append(headers, strings.ToUpper(strings.ReplaceAll(col, "-", " ")))
	}
	table := subcommands.NewTableWriter(headers)

	for _, device := range devices {
		row := make([]any, 0, len(columns))
		for _, col := range columns {
			row = append(row, getColumnValue(&device, col))
		}
		table.AddRow(row...)
	}

	table.Render()
	return nil
}

func getColumnValue(device *storage.Device, column string) string {
	switch column {
	case "uuid":
		return device.Uuid
	case "name":
		return device.Name
	case "platform":
		return device.Platform
	case "os-version":
		return device.OsVersion
	case "status":
		return device.Status
	case "emulator":
		if device.IsEmulator {
			return "true"
		}
		return "false"
	case "last-seen":
		if device.LastSeen > 0 {
			return time.Unix(int64(device.LastSeen), 0).Format("2006-01-02 15:04:05")
		}
		return "-"
	case "created-at":
		if device.CreatedAt > 0 {
			return time.Unix(int64(device.CreatedAt), 0).Format("2006-01-02 15:04:05")
		}
		return "-"
	default:
		return ""
	}
}
