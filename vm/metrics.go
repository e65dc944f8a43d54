// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	blockVerify metric.Averager
	blockAccept metric.Averager
	blockReject metric.Averager
}

func newMetrics(registry prometheus.Registerer) (*metrics, error) {
	blockVerify, err := metric.NewAverager(
		"",
		"vm_block_verify",
		"time spent verifying blocks",
		registry,
	)
	if err != nil {
		return nil, err
	}
	blockAccept, err := metric.NewAverager(
		"",
		"vm_block_accept",
		"time spent accepting blocks",
		registry,
	)
	if err != nil {
		return nil, err
	}
	blockReject, err := metric.NewAverager(
		"",
		"vm_block_reject",
		"time spent rejecting blocks",
		registry,
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		blockVerify: blockVerify,
		blockAccept: blockAccept,
		blockReject: blockReject,
	}, nil
}
