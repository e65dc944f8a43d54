// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/spf13/cobra"

	"github.com/m1labs/subnetvm/api/jsonrpc"
)

var blockCmd = &cobra.Command{
	Use:   "block [id]",
	Short: "Fetch a block by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, err := cmd.Flags().GetString("endpoint")
		if err != nil {
			return err
		}
		blkID, err := ids.FromString(args[0])
		if err != nil {
			return fmt.Errorf("failed to parse block ID: %w", err)
		}
		client := jsonrpc.NewClient(endpoint)

		blk, err := client.GetBlock(cmd.Context(), blkID)
		if err != nil {
			return fmt.Errorf("failed to fetch block: %w", err)
		}
		fmt.Printf("block:     %s\n", blk.GetID())
		fmt.Printf("parent:    %s\n", blk.GetParent())
		fmt.Printf("height:    %d\n", blk.GetHeight())
		fmt.Printf("timestamp: %d\n", blk.GetTimestamp())
		fmt.Printf("status:    %s\n", blk.GetStatus())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blockCmd)
}
