// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	blocksVerified prometheus.Counter
	blocksAccepted prometheus.Counter
	blocksRejected prometheus.Counter

	getBlock metric.Averager
}

func newMetrics(registry prometheus.Registerer) (*metrics, error) {
	getBlock, err := metric.NewAverager(
		"",
		"state_get_block",
		"time spent fetching blocks",
		registry,
	)
	if err != nil {
		return nil, err
	}

	m := &metrics{
		blocksVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "state_blocks_verified",
			Help: "number of blocks that passed verification",
		}),
		blocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "state_blocks_accepted",
			Help: "number of blocks accepted",
		}),
		blocksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "state_blocks_rejected",
			Help: "number of blocks rejected",
		}),
		getBlock: getBlock,
	}

	errs := wrappers.Errs{}
	errs.Add(
		registry.Register(m.blocksVerified),
		registry.Register(m.blocksAccepted),
		registry.Register(m.blocksRejected),
	)
	return m, errs.Err
}
