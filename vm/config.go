// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

type Config struct {
	// AcceptedBlockCacheSize bounds how many recently accepted blocks are
	// served from memory instead of the database.
	AcceptedBlockCacheSize int `json:"acceptedBlockCacheSize"`
}

func NewDefaultConfig() Config {
	return Config{
		AcceptedBlockCacheSize: 128,
	}
}
