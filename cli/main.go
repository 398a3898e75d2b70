// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/testforge/devicelab/cli/api"
	"github.com/testforge/devicelab/cli/config"
	"github.com/testforge/devicelab/cli/subcommands/devices"
	"github.com/testforge/devicelab/cli/subcommands/queue"
	"github.com/testforge/devicelab/cli/subcommands/runs"
	"github.com/testforge/devicelab/cli/subcommands/suites"
	"github.com/testforge/devicelab/cli/subcommands/tests"
)

var rootCmd = &cobra.Command{
	Use:   "dlcli",
	Short: "A command line interface to the devicelab server",
	Long: `dlcli is a command-line interface for managing devices, test suites,
runs, and the job queue of a devicelab server.

Configuration is stored in $HOME/.config/dlcli.yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		contextName, err := cmd.Flags().GetString("context")
		if err != nil {
			return fmt.Errorf("failed to get context flag: %w", err)
		}

		appctx, err := cfg.GetContext(contextName)
		if err != nil {
			return fmt.Errorf("failed to get current context: %w", err)
		}

		client := api.NewClient(*appctx)

		ctx := context.WithValue(cmd.Context(), api.ContextKey, client)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("context", "c", "", "Specify the context to use from the configuration file")
	rootCmd.AddCommand(devices.DevicesCmd)
	rootCmd.AddCommand(runs.RunsCmd)
	rootCmd.AddCommand(queue.QueueCmd)
	rootCmd.AddCommand(suites.SuitesCmd)
	rootCmd.AddCommand(tests.TestsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
