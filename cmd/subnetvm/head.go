// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m1labs/subnetvm/api/jsonrpc"
)

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Show the last accepted block and current preference",
	RunE: func(cmd *cobra.Command, _ []string) error {
		endpoint, err := cmd.Flags().GetString("endpoint")
		if err != nil {
			return err
		}
		client := jsonrpc.NewClient(endpoint)

		blkID, height, err := client.LastAccepted(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch last accepted block: %w", err)
		}
		preference, err := client.Preference(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch preference: %w", err)
		}
		fmt.Printf("last accepted: %s@%d\n", blkID, height)
		fmt.Printf("preference:    %s\n", preference)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(headCmd)
}
