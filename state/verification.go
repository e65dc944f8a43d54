// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

// VerificationStatus is the closed set of outcomes a verification attempt
// can produce. Only environment-level failures (store unavailable, corrupt
// envelope, missing parent) use the error channel.
type VerificationStatus uint8

const (
	Unknown VerificationStatus = iota
	// Verified means the block may be inserted into the verified table.
	Verified
	// Genesis is returned for the trusted height-0 block with an empty
	// parent; it bypasses all other checks.
	Genesis
	// AlreadyAdded means the block is already tracked, in memory or on disk.
	AlreadyAdded
	// InvalidBlockHeight means the block's height is not parent.height + 1.
	InvalidBlockHeight
	// TimestampGreaterThanParent means the block's timestamp regressed from
	// its parent's.
	TimestampGreaterThanParent
	// TimestampGreaterThanLocal means the block is timestamped an hour or
	// more ahead of this node's clock.
	TimestampGreaterThanLocal
)

func (s VerificationStatus) String() string {
	switch s {
	case Verified:
		return "Verified"
	case Genesis:
		return "Genesis"
	case AlreadyAdded:
		return "AlreadyAdded"
	case InvalidBlockHeight:
		return "InvalidBlockHeight"
	case TimestampGreaterThanParent:
		return "TimestampGreaterThanParent"
	case TimestampGreaterThanLocal:
		return "TimestampGreaterThanLocal"
	default:
		return "Unknown"
	}
}
