// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package runs

import (
	"github.com/spf13/cobra"
)

var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage test runs",
}
