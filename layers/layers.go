// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package layers declares the capability contracts of the multi-stage block
// pipeline. Each layer is a pure interface over its own transaction, block,
// change-set, and commitment types; this package carries no control logic.
// The state engine may back the execution layer but does not implement any
// of these contracts itself.
package layers

import "context"

// Sequencer receives transactions and hands them to the next layer.
type Sequencer[T any, TID comparable] interface {
	// ReceiveTransaction ingests [tx] and forwards it internally.
	ReceiveTransaction(ctx context.Context, tx T) error
	// GetTransaction returns a previously received transaction, or false if
	// it is unknown.
	GetTransaction(ctx context.Context, txID TID) (T, bool, error)
}

// Proposer assembles transactions into candidate blocks.
type Proposer[T any, B any, BID comparable] interface {
	// GetNextTransaction pulls the next transaction from the previous layer,
	// returning false when none is pending.
	GetNextTransaction(ctx context.Context) (T, bool, error)
	// BuildBlock constructs a block from pending transactions.
	BuildBlock(ctx context.Context) (B, error)
	// SendBlock hands a constructed block to the next layer.
	SendBlock(ctx context.Context, blk B) error
	// GetBlock returns a constructed and sent block, or false if unknown.
	GetBlock(ctx context.Context, blkID BID) (B, bool, error)
}

// DataAvailability relays blocks to wherever the execution layer retrieves
// them from.
type DataAvailability[B any, BID comparable] interface {
	GetNextBlock(ctx context.Context) (B, bool, error)
	SendBlock(ctx context.Context, blk B) error
	GetBlock(ctx context.Context, blkID BID) (B, bool, error)
}

// Execution runs blocks and emits change sets toward storage.
type Execution[B any, BID comparable, C any] interface {
	GetNextBlock(ctx context.Context) (B, bool, error)
	// ExecuteBlock runs [blk] and produces the resulting change set.
	ExecuteBlock(ctx context.Context, blk B) (C, error)
	// SendChangeSet hands a change set to the storage layer.
	SendChangeSet(ctx context.Context, changeSet C) error
	GetBlock(ctx context.Context, blkID BID) (B, bool, error)
}

// Storage applies change sets and serves state reads.
type Storage[B any, BID comparable, C any, E any, A comparable] interface {
	GetNextChangeSet(ctx context.Context) (C, bool, error)
	// DeriveState applies [changeSet] to the backing state.
	DeriveState(ctx context.Context, changeSet C) error
	// GetStateEntry returns the entry at [addr], or false if absent.
	GetStateEntry(ctx context.Context, addr A) (E, bool, error)
	// GetChangeSet returns the applied change set for [blkID], or false if
	// unknown.
	GetChangeSet(ctx context.Context, blkID BID) (C, bool, error)
}

// Settlement builds and applies commitments over executed blocks.
type Settlement[B any, BID comparable, CM any] interface {
	GetNextBlock(ctx context.Context) (B, bool, error)
	BuildCommitment(ctx context.Context) (CM, error)
	ApplyCommitment(ctx context.Context, commitment CM) error
}

// Messaging relays messages between layers.
type Messaging[M any] interface {
	SendMessage(ctx context.Context, msg M) error
	ReceiveMessage(ctx context.Context, msg M) error
}
