// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "subnetvm",
	Short: "Block state engine node and client",
	Long:  `Runs the block state engine with its JSON-RPC API, or queries a running instance.`,
}

func init() {
	rootCmd.PersistentFlags().String("endpoint", "http://127.0.0.1:9650", "JSON-RPC endpoint of a running instance")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
