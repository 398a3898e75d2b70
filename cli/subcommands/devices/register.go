// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
)

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a new device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		osVersion, _ := cmd.Flags().GetString("os-version")
		emulator, _ := cmd.Flags().GetBool("emulator")
		api := api.CtxGetApi(cmd.Context())
		return registerDevice(api.Devices(), args[0], platform, osVersion, emulator)
	},
}

func init() {
	DevicesCmd.AddCommand(registerCmd)
	registerCmd.Flags().String("platform", "", "Device platform, e.g. android or ios")
	registerCmd.Flags().String("os-version", "", "Operating system version")
	registerCmd.Flags().Bool("emulator", false, "Mark the device as an emulator")
	cobra.CheckErr(registerCmd.MarkFlagRequired("platform"))
}

func registerDevice(dapi api.DeviceApi, name, platform, osVersion string, emulator bool) error {
	device, err := dapi.Register(api.RegisterDeviceRequest{
		Name:       name,
		Platform:   platform,
		OsVersion:  osVersion,
		IsEmulator: emulator,
	})
	cobra.CheckErr(err)
	fmt.Printf("Registered device %s (%s)\n", device.Name, device.Uuid)
	return nil
}
