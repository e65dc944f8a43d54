// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
)

// Block is the unit tracked by the state manager. Implementations own their
// codec; the state manager treats the bytes as opaque and only requires that
// ParseBlock(GetBytes()) round-trips exactly.
//
// The status field is mutated exclusively by the state manager. Callers must
// not race two finality calls for the same ID.
type Block interface {
	GetID() ids.ID
	GetParent() ids.ID
	GetHeight() uint64
	// GetTimestamp returns the block time in seconds since the Unix epoch.
	GetTimestamp() int64
	GetBytes() []byte
	GetStatus() choices.Status
	SetStatus(choices.Status)
}

// Parser decodes a block from its byte representation.
type Parser[T Block] interface {
	ParseBlock(context.Context, []byte) (T, error)
}
