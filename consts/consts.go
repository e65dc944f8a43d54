// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consts

const (
	Name    = "subnetvm"
	Version = "v0.0.1"

	IDLen     = 32
	ByteLen   = 1
	IntLen    = 4
	Uint64Len = 8
	Int64Len  = 8

	// NetworkSizeLimit bounds how many bytes a single block (and therefore a
	// single envelope payload) may occupy on the wire.
	NetworkSizeLimit = 2_097_152 // 2 MiB
)
