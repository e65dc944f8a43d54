// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/m1labs/subnetvm/chain"
	"github.com/m1labs/subnetvm/state"
)

func newTestVM(t *testing.T, db database.Database) *VM {
	vm, err := New(logging.NoLog{}, trace.Noop, prometheus.NewRegistry(), db, NewDefaultConfig())
	require.NoError(t, err)
	return vm
}

func newInitializedVM(t *testing.T, db database.Database) (*VM, *chain.StatelessBlock) {
	r := require.New(t)
	genesis, err := chain.NewGenesisBlock(1, []byte("genesis"))
	r.NoError(err)

	vm := newTestVM(t, db)
	r.NoError(vm.Initialize(context.Background(), genesis.GetBytes()))
	return vm, genesis
}

func TestInitializeGenesis(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	vm, genesis := newInitializedVM(t, memdb.New())

	lastAcceptedID, err := vm.LastAcceptedID(ctx)
	r.NoError(err)
	r.Equal(genesis.GetID(), lastAcceptedID)
	r.Equal(genesis.GetID(), vm.Preference())

	blk, err := vm.GetBlock(ctx, genesis.GetID())
	r.NoError(err)
	r.Equal(choices.Accepted, blk.GetStatus())
}

func TestInitializeRestart(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	db := memdb.New()

	vm, genesis := newInitializedVM(t, db)

	child, err := chain.NewBlock(genesis, 2, []byte("child"))
	r.NoError(err)
	status, err := vm.VerifyBlock(ctx, child)
	r.NoError(err)
	r.Equal(state.Verified, status)
	r.NoError(vm.AcceptBlock(ctx, child))

	// A new VM over the same database resumes from the persisted head
	// instead of re-accepting genesis.
	restarted := newTestVM(t, db)
	r.NoError(restarted.Initialize(ctx, genesis.GetBytes()))

	lastAcceptedID, err := restarted.LastAcceptedID(ctx)
	r.NoError(err)
	r.Equal(child.GetID(), lastAcceptedID)
	r.Equal(child.GetID(), restarted.Preference())

	// The verified table does not survive restarts.
	r.False(restarted.HasVerified(child.GetID()))
}

func TestVerifyAcceptFlow(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	vm, genesis := newInitializedVM(t, memdb.New())

	child, err := chain.NewBlock(genesis, 2, []byte("child"))
	r.NoError(err)

	status, err := vm.VerifyBlock(ctx, child)
	r.NoError(err)
	r.Equal(state.Verified, status)
	r.True(vm.HasVerified(child.GetID()))

	// Re-verification is idempotent while the block is pinned.
	status, err = vm.VerifyBlock(ctx, child)
	r.NoError(err)
	r.Equal(state.AlreadyAdded, status)

	r.NoError(vm.AcceptBlock(ctx, child))
	r.False(vm.HasVerified(child.GetID()))

	head, err := vm.LastAccepted(ctx)
	r.NoError(err)
	r.Equal(child.GetID(), head.GetID())
	r.Equal(choices.Accepted, head.GetStatus())
}

func TestRejectFlow(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	vm, genesis := newInitializedVM(t, memdb.New())

	child, err := chain.NewBlock(genesis, 2, []byte("child"))
	r.NoError(err)

	status, err := vm.VerifyBlock(ctx, child)
	r.NoError(err)
	r.Equal(state.Verified, status)

	r.NoError(vm.RejectBlock(ctx, child))
	r.False(vm.HasVerified(child.GetID()))

	blk, err := vm.GetBlock(ctx, child.GetID())
	r.NoError(err)
	r.Equal(choices.Rejected, blk.GetStatus())

	lastAcceptedID, err := vm.LastAcceptedID(ctx)
	r.NoError(err)
	r.Equal(genesis.GetID(), lastAcceptedID)
}

func TestVerifyOrphan(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	vm, _ := newInitializedVM(t, memdb.New())

	orphanParent, err := chain.NewGenesisBlock(5, []byte("other chain"))
	r.NoError(err)
	orphan, err := chain.NewBlock(orphanParent, 6, nil)
	r.NoError(err)

	_, err = vm.VerifyBlock(ctx, orphan)
	r.ErrorIs(err, database.ErrNotFound)
}

func TestParseBlockRoundTrip(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	vm, genesis := newInitializedVM(t, memdb.New())

	parsed, err := vm.ParseBlock(ctx, genesis.GetBytes())
	r.NoError(err)
	r.Equal(genesis.GetID(), parsed.GetID())
}

func TestSetPreferenceRecordsUnknownID(t *testing.T) {
	r := require.New(t)

	vm, _ := newInitializedVM(t, memdb.New())

	blkID := ids.GenerateTestID()
	vm.SetPreference(blkID)
	r.Equal(blkID, vm.Preference())
}
