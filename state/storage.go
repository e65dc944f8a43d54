// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
)

var errInvalidEnvelopeStatus = errors.New("invalid envelope status")

const (
	// blockStatusPrefix namespaces block envelopes so other key classes can
	// share the store without collision.
	blockStatusPrefix byte = 0x0

	// delimiter separates the namespace tag from the ID bytes. IDs are
	// fixed-length, so this is for human-readable debugging only.
	delimiter byte = '/'
)

var lastAcceptedKey = []byte("last_accepted_block")

// blockStatusKey returns 'blockStatusPrefix' + 'delimiter' + [blkID].
func blockStatusKey(blkID ids.ID) []byte {
	k := make([]byte, 2+ids.IDLen)
	k[0] = blockStatusPrefix
	k[1] = delimiter
	copy(k[2:], blkID[:])
	return k
}

// blockEnvelope pairs a block's bytes with its status. It is the only form
// ever written to the durable store; blocks are never persisted without a
// status. The encoding is self-describing JSON so that a reader from another
// version rejects unknown status tags instead of defaulting.
type blockEnvelope struct {
	BlockBytes []byte         `json:"block_bytes"`
	Status     choices.Status `json:"status"`
}

func (e *blockEnvelope) encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block envelope: %w", err)
	}
	return b, nil
}

func parseEnvelope(b []byte) (*blockEnvelope, error) {
	env := new(blockEnvelope)
	if err := json.Unmarshal(b, env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block envelope: %w", err)
	}
	switch env.Status {
	case choices.Processing, choices.Accepted, choices.Rejected:
		return env, nil
	default:
		// Unknown is a valid choices.Status but never a persisted one.
		return nil, fmt.Errorf("%w: %s", errInvalidEnvelopeStatus, env.Status)
	}
}
