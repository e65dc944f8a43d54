// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m1labs/subnetvm/consts"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("%s %s\n", consts.Name, consts.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
