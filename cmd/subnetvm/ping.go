// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m1labs/subnetvm/api/jsonrpc"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping the endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		endpoint, err := cmd.Flags().GetString("endpoint")
		if err != nil {
			return err
		}
		client := jsonrpc.NewClient(endpoint)

		success, err := client.Ping(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to ping: %w", err)
		}
		fmt.Printf("ping succeeded: %t\n", success)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
