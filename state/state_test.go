// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testBlockLen = ids.IDLen + 2*8

type testBlock struct {
	parent    ids.ID
	height    uint64
	timestamp int64
	status    choices.Status
}

func (b *testBlock) GetID() ids.ID {
	return hashing.ComputeHash256Array(b.GetBytes())
}
func (b *testBlock) GetParent() ids.ID               { return b.parent }
func (b *testBlock) GetHeight() uint64               { return b.height }
func (b *testBlock) GetTimestamp() int64             { return b.timestamp }
func (b *testBlock) GetStatus() choices.Status       { return b.status }
func (b *testBlock) SetStatus(status choices.Status) { b.status = status }

func (b *testBlock) GetBytes() []byte {
	buf := make([]byte, 0, testBlockLen)
	buf = append(buf, b.parent[:]...)
	buf = binary.BigEndian.AppendUint64(buf, b.height)
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.timestamp))
	return buf
}

type testParser struct{}

func (*testParser) ParseBlock(_ context.Context, b []byte) (*testBlock, error) {
	if len(b) != testBlockLen {
		return nil, fmt.Errorf("unexpected block length: %d", len(b))
	}
	blk := &testBlock{
		parent:    ids.ID(b[:ids.IDLen]),
		height:    binary.BigEndian.Uint64(b[ids.IDLen:]),
		timestamp: int64(binary.BigEndian.Uint64(b[ids.IDLen+8:])),
	}
	return blk, nil
}

func newTestState(t *testing.T, db database.Database) *State[*testBlock] {
	s, err := New[*testBlock](logging.NoLog{}, prometheus.NewRegistry(), &testParser{}, db)
	require.NoError(t, err)
	return s
}

// newTestChain returns a genesis block and a valid child, with the genesis
// already accepted so the child has a resolvable parent.
func newTestChain(t *testing.T, s *State[*testBlock]) (*testBlock, *testBlock) {
	r := require.New(t)
	ctx := context.Background()

	genesis := &testBlock{parent: ids.Empty, height: 0, timestamp: 1}
	status, err := s.Verify(ctx, genesis)
	r.NoError(err)
	r.Equal(Genesis, status)
	r.NoError(s.Accept(ctx, genesis))

	child := &testBlock{parent: genesis.GetID(), height: 1, timestamp: 2}
	return genesis, child
}

func TestVerifyGenesis(t *testing.T) {
	r := require.New(t)
	s := newTestState(t, memdb.New())

	// The genesis block is trusted unconditionally, even with an absurd
	// timestamp.
	genesis := &testBlock{
		parent:    ids.Empty,
		height:    0,
		timestamp: time.Now().Add(24 * time.Hour).Unix(),
	}
	status, err := s.Verify(context.Background(), genesis)
	r.NoError(err)
	r.Equal(Genesis, status)
}

func TestVerifyBlock(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		block func(parent *testBlock) *testBlock
		want  VerificationStatus
	}{
		{
			name: "valid child",
			block: func(parent *testBlock) *testBlock {
				return &testBlock{parent: parent.GetID(), height: 1, timestamp: 2}
			},
			want: Verified,
		},
		{
			name: "height not parent+1",
			block: func(parent *testBlock) *testBlock {
				return &testBlock{parent: parent.GetID(), height: 5, timestamp: 2}
			},
			want: InvalidBlockHeight,
		},
		{
			name: "timestamp regressed from parent",
			block: func(parent *testBlock) *testBlock {
				return &testBlock{parent: parent.GetID(), height: 1, timestamp: 0}
			},
			want: TimestampGreaterThanParent,
		},
		{
			name: "timestamp an hour ahead of local clock",
			block: func(parent *testBlock) *testBlock {
				return &testBlock{
					parent:    parent.GetID(),
					height:    1,
					timestamp: now.Add(FutureBound).Unix(),
				}
			},
			want: TimestampGreaterThanLocal,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := require.New(t)
			ctx := context.Background()
			s := newTestState(t, memdb.New())
			s.clk.Set(now)

			genesis, _ := newTestChain(t, s)
			status, err := s.Verify(ctx, test.block(genesis))
			r.NoError(err)
			r.Equal(test.want, status)
		})
	}
}

func TestVerifyMissingParent(t *testing.T) {
	r := require.New(t)
	s := newTestState(t, memdb.New())

	orphan := &testBlock{parent: ids.GenerateTestID(), height: 7, timestamp: 2}
	_, err := s.Verify(context.Background(), orphan)
	r.ErrorIs(err, database.ErrNotFound)
}

func TestVerifyIdempotent(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s := newTestState(t, memdb.New())

	_, child := newTestChain(t, s)

	// Verification has no side effects, so re-verifying an unfinalized block
	// reports Verified again.
	for i := 0; i < 2; i++ {
		status, err := s.Verify(ctx, child)
		r.NoError(err)
		r.Equal(Verified, status)
	}

	s.AddVerified(child)
	status, err := s.Verify(ctx, child)
	r.NoError(err)
	r.Equal(AlreadyAdded, status)

	r.NoError(s.Accept(ctx, child))
	status, err = s.Verify(ctx, child)
	r.NoError(err)
	r.Equal(AlreadyAdded, status)
}

func TestAcceptBlock(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s := newTestState(t, memdb.New())

	_, child := newTestChain(t, s)
	s.AddVerified(child)
	r.True(s.HasVerified(child.GetID()))

	r.NoError(s.Accept(ctx, child))

	blk, err := s.GetBlock(ctx, child.GetID())
	r.NoError(err)
	r.Equal(choices.Accepted, blk.GetStatus())
	r.Equal(child.GetID(), blk.GetID())

	lastAccepted, err := s.GetLastAccepted(ctx)
	r.NoError(err)
	r.Equal(child.GetID(), lastAccepted)
	r.False(s.HasVerified(child.GetID()))
}

func TestRejectBlock(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s := newTestState(t, memdb.New())

	genesis, child := newTestChain(t, s)
	s.AddVerified(child)

	r.NoError(s.Reject(ctx, child))

	// Rejected blocks stay readable with their terminal status.
	blk, err := s.GetBlock(ctx, child.GetID())
	r.NoError(err)
	r.Equal(choices.Rejected, blk.GetStatus())

	// The last accepted pointer is untouched by rejection.
	lastAccepted, err := s.GetLastAccepted(ctx)
	r.NoError(err)
	r.Equal(genesis.GetID(), lastAccepted)
	r.False(s.HasVerified(child.GetID()))
}

func TestRejectAfterAccept(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s := newTestState(t, memdb.New())

	_, child := newTestChain(t, s)
	s.AddVerified(child)
	r.NoError(s.Accept(ctx, child))

	err := s.Reject(ctx, child)
	r.ErrorIs(err, ErrConflictingBlockStatus)

	// The stored envelope still carries Accepted.
	blk, err := s.GetBlock(ctx, child.GetID())
	r.NoError(err)
	r.Equal(choices.Accepted, blk.GetStatus())

	// Re-finalizing with the same status is an idempotent rewrite.
	r.NoError(s.Accept(ctx, child))
}

func TestAcceptAfterReject(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s := newTestState(t, memdb.New())

	genesis, child := newTestChain(t, s)
	s.AddVerified(child)
	r.NoError(s.Reject(ctx, child))

	err := s.Accept(ctx, child)
	r.ErrorIs(err, ErrConflictingBlockStatus)

	lastAccepted, err := s.GetLastAccepted(ctx)
	r.NoError(err)
	r.Equal(genesis.GetID(), lastAccepted)
}

// faultyDB fails Put for a single key, simulating a store fault between the
// envelope write and the pointer update.
type faultyDB struct {
	database.Database
	failKey []byte
	err     error
}

func (db *faultyDB) Put(key []byte, value []byte) error {
	if db.failKey != nil && bytes.Equal(key, db.failKey) {
		return db.err
	}
	return db.Database.Put(key, value)
}

func TestAcceptPointerUpdateFault(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	errPointer := errors.New("pointer write failed")
	db := &faultyDB{Database: memdb.New()}
	s := newTestState(t, db)

	genesis, child := newTestChain(t, s)
	s.AddVerified(child)

	// Fail only the last-accepted pointer update.
	db.failKey = lastAcceptedKey
	db.err = errPointer

	err := s.Accept(ctx, child)
	r.ErrorIs(err, errPointer)

	// The block is durably stored but not yet the recognized head, and it
	// must stay visible in the verified table for the retry.
	r.True(s.HasVerified(child.GetID()))
	blk, err := s.GetBlock(ctx, child.GetID())
	r.NoError(err)
	r.Equal(child.GetID(), blk.GetID())

	lastAccepted, err := s.GetLastAccepted(ctx)
	r.NoError(err)
	r.Equal(genesis.GetID(), lastAccepted)

	// The fault clears and the caller re-drives the accept.
	db.failKey = nil
	r.NoError(s.Accept(ctx, child))

	lastAccepted, err = s.GetLastAccepted(ctx)
	r.NoError(err)
	r.Equal(child.GetID(), lastAccepted)
	r.False(s.HasVerified(child.GetID()))
}

func TestGetBlockPrefersVerifiedTable(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s := newTestState(t, memdb.New())

	_, child := newTestChain(t, s)

	// The block is only in the verified table, so a successful fetch proves
	// the table is consulted before the store.
	s.AddVerified(child)

	blk, err := s.GetBlock(ctx, child.GetID())
	r.NoError(err)
	r.Equal(child.GetID(), blk.GetID())
	r.Equal(choices.Processing, blk.GetStatus())

	// The caller gets a snapshot, not the table-resident instance.
	r.NotSame(child, blk)
}

func TestGetBlockMissing(t *testing.T) {
	r := require.New(t)
	s := newTestState(t, memdb.New())

	_, err := s.GetBlock(context.Background(), ids.GenerateTestID())
	r.ErrorIs(err, database.ErrNotFound)
}

func TestLastAcceptedFresh(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s := newTestState(t, memdb.New())

	// "Never accepted anything" is an empty ID, not an error.
	has, err := s.HasLastAccepted(ctx)
	r.NoError(err)
	r.False(has)

	lastAccepted, err := s.GetLastAccepted(ctx)
	r.NoError(err)
	r.Equal(ids.Empty, lastAccepted)
}

func TestSetPreference(t *testing.T) {
	r := require.New(t)
	s := newTestState(t, memdb.New())

	r.Equal(ids.Empty, s.Preference())

	// Preference is a pure recorder: unknown IDs are accepted and later
	// calls overwrite unconditionally.
	blkID := ids.GenerateTestID()
	s.SetPreference(blkID)
	r.Equal(blkID, s.Preference())

	other := ids.GenerateTestID()
	s.SetPreference(other)
	r.Equal(other, s.Preference())
}

func TestConcurrentGetDuringFinalization(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s := newTestState(t, memdb.New())

	_, child := newTestChain(t, s)
	s.AddVerified(child)
	childID := child.GetID()

	// A block fetched before finalization begins stays a stable snapshot
	// even while Accept rewrites the resident block's status.
	held, err := s.GetBlock(ctx, childID)
	r.NoError(err)

	// During Accept there is a window where the block exists both on disk
	// and in the verified table. Readers must resolve it throughout and may
	// only ever observe the pre- or post-finalization status.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				blk, err := s.GetBlock(ctx, childID)
				r.NoError(err)
				r.Equal(childID, blk.GetID())
				r.Contains(
					[]choices.Status{choices.Processing, choices.Accepted},
					blk.GetStatus(),
				)
				r.Equal(choices.Processing, held.GetStatus())
			}
		}()
	}
	r.NoError(s.Accept(ctx, child))
	wg.Wait()
}
