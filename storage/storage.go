// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage opens the disk-backed block store.
package storage

import (
	"github.com/ava-labs/avalanchego/api/metrics"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/corruptabledb"

	"github.com/m1labs/subnetvm/pebble"
	"github.com/m1labs/subnetvm/utils"
)

const blockDBNamespace = "blockdb"

// New opens (or creates) the block database under [chainDataDir], registers
// its metrics on [gatherer], and wraps it so a detected corruption poisons
// all further operations instead of serving bad data.
func New(cfg pebble.Config, chainDataDir string, gatherer metrics.MultiGatherer) (database.Database, error) {
	path, err := utils.InitSubDirectory(chainDataDir, blockDBNamespace)
	if err != nil {
		return nil, err
	}

	db, registry, err := pebble.New(path, cfg)
	if err != nil {
		return nil, err
	}

	if err := gatherer.Register(blockDBNamespace, registry); err != nil {
		return nil, err
	}

	return corruptabledb.New(db), nil
}
