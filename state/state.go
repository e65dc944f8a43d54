// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state tracks blocks through verification, acceptance, and
// rejection for a subnet VM. Verified-but-unfinalized blocks live in an
// in-memory table; finalized blocks are written to the injected database
// wrapped in an envelope that records their terminal status.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/utils"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// FutureBound is how far ahead of this node's clock a block's timestamp may
// be before verification reports [TimestampGreaterThanLocal].
const FutureBound = time.Hour

var ErrConflictingBlockStatus = errors.New("block already finalized with a conflicting status")

// State owns the block lifecycle for the VM. The verified table and the
// database handle are independently lockable: readers of one never serialize
// behind writers of the other. The two are not jointly atomic, so a
// concurrent GetBlock during Accept/Reject may observe either the in-memory
// or the durable copy; both carry the same content. Blocks returned by
// GetBlock are private snapshots, so a reader is never exposed to a
// finalization mutating the status of a table-resident block.
type State[T Block] struct {
	log     logging.Logger
	metrics *metrics
	parser  Parser[T]
	clk     mockable.Clock

	verifiedLock sync.RWMutex
	// verifiedBlocks holds every block that passed verification but is not
	// yet accepted or rejected. It is rebuilt empty on restart; the
	// consensus engine re-verifies anything that was in flight.
	verifiedBlocks map[ids.ID]T

	dbLock sync.RWMutex
	db     database.Database

	preferredLock sync.RWMutex
	preferred     ids.ID
}

func New[T Block](
	log logging.Logger,
	registry prometheus.Registerer,
	parser Parser[T],
	db database.Database,
) (*State[T], error) {
	metrics, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}
	return &State[T]{
		log:            log,
		metrics:        metrics,
		parser:         parser,
		verifiedBlocks: make(map[ids.ID]T),
		db:             db,
	}, nil
}

// Verify checks [blk] against its parent and the local clock. It performs no
// writes; on [Verified] or [Genesis] the caller inserts the block into the
// verified table. A missing parent is an error, not a status: the consensus
// engine must never verify orphans.
func (s *State[T]) Verify(ctx context.Context, blk T) (VerificationStatus, error) {
	if blk.GetHeight() == 0 && blk.GetParent() == ids.Empty {
		s.metrics.blocksVerified.Inc()
		return Genesis, nil
	}

	if _, err := s.GetBlock(ctx, blk.GetID()); err == nil {
		return AlreadyAdded, nil
	}

	parent, err := s.GetBlock(ctx, blk.GetParent())
	if err != nil {
		return Unknown, fmt.Errorf("failed to fetch parent block %s: %w", blk.GetParent(), err)
	}

	if parent.GetHeight() != blk.GetHeight()-1 {
		return InvalidBlockHeight, nil
	}
	if parent.GetTimestamp() > blk.GetTimestamp() {
		return TimestampGreaterThanParent, nil
	}
	if blk.GetTimestamp() >= s.clk.Time().Add(FutureBound).Unix() {
		return TimestampGreaterThanLocal, nil
	}

	s.metrics.blocksVerified.Inc()
	return Verified, nil
}

// Accept finalizes [blk] as accepted. The envelope write and the
// last-accepted pointer update are both durable before the verified table
// entry is dropped. If the pointer update fails after the envelope write,
// the entry is kept so the block stays visible and the caller can retry.
func (s *State[T]) Accept(ctx context.Context, blk T) error {
	blkID := blk.GetID()
	if err := s.checkFinalized(blkID, choices.Accepted); err != nil {
		return err
	}

	s.setStatus(blk, choices.Accepted)
	if err := s.WriteBlock(ctx, blk); err != nil {
		return err
	}
	if err := s.SetLastAccepted(ctx, blkID); err != nil {
		return err
	}
	s.RemoveVerified(blkID)

	s.metrics.blocksAccepted.Inc()
	s.log.Debug("accepted block",
		zap.Stringer("blkID", blkID),
		zap.Uint64("height", blk.GetHeight()),
	)
	return nil
}

// Reject finalizes [blk] as rejected. Rejected blocks are retained in the
// durable store for auditability; the last-accepted pointer is untouched.
func (s *State[T]) Reject(ctx context.Context, blk T) error {
	blkID := blk.GetID()
	if err := s.checkFinalized(blkID, choices.Rejected); err != nil {
		return err
	}

	s.setStatus(blk, choices.Rejected)
	if err := s.WriteBlock(ctx, blk); err != nil {
		return err
	}
	s.RemoveVerified(blkID)

	s.metrics.blocksRejected.Inc()
	s.log.Debug("rejected block",
		zap.Stringer("blkID", blkID),
		zap.Uint64("height", blk.GetHeight()),
	)
	return nil
}

// setStatus mutates [blk]'s status under the verified-table lock. The block
// may still be resident in the table while readers snapshot it, so the write
// must serialize with those reads.
func (s *State[T]) setStatus(blk T, st choices.Status) {
	s.verifiedLock.Lock()
	defer s.verifiedLock.Unlock()
	blk.SetStatus(st)
}

// checkFinalized guards against overwriting one terminal status with the
// other. Re-finalizing with the same status is an idempotent rewrite.
func (s *State[T]) checkFinalized(blkID ids.ID, attempted choices.Status) error {
	s.dbLock.RLock()
	envBytes, err := s.db.Get(blockStatusKey(blkID))
	s.dbLock.RUnlock()
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get block %s: %w", blkID, err)
	}
	env, err := parseEnvelope(envBytes)
	if err != nil {
		return err
	}
	if env.Status != attempted {
		return fmt.Errorf("%w: stored %s, attempted %s", ErrConflictingBlockStatus, env.Status, attempted)
	}
	return nil
}

// GetBlock returns block [blkID], preferring the verified table so hot,
// unfinalized blocks skip the database round trip. On a miss it decodes the
// stored envelope and applies the stored status to the parsed block. Either
// way the returned block is a snapshot owned by the caller, never the
// table-resident instance whose status finalization mutates.
func (s *State[T]) GetBlock(ctx context.Context, blkID ids.ID) (T, error) {
	start := time.Now()
	defer func() {
		s.metrics.getBlock.Observe(float64(time.Since(start)))
	}()

	s.verifiedLock.RLock()
	if blk, exists := s.verifiedBlocks[blkID]; exists {
		blkBytes := blk.GetBytes()
		status := blk.GetStatus()
		s.verifiedLock.RUnlock()

		cp, err := s.parser.ParseBlock(ctx, blkBytes)
		if err != nil {
			return utils.Zero[T](), fmt.Errorf("failed to parse block %s: %w", blkID, err)
		}
		cp.SetStatus(status)
		return cp, nil
	}
	s.verifiedLock.RUnlock()

	s.dbLock.RLock()
	envBytes, err := s.db.Get(blockStatusKey(blkID))
	s.dbLock.RUnlock()
	if err != nil {
		return utils.Zero[T](), err
	}

	env, err := parseEnvelope(envBytes)
	if err != nil {
		return utils.Zero[T](), err
	}
	blk, err := s.parser.ParseBlock(ctx, env.BlockBytes)
	if err != nil {
		return utils.Zero[T](), fmt.Errorf("failed to parse stored block %s: %w", blkID, err)
	}
	blk.SetStatus(env.Status)
	return blk, nil
}

// WriteBlock persists [blk] under its status key with its current status.
func (s *State[T]) WriteBlock(_ context.Context, blk T) error {
	env := blockEnvelope{
		BlockBytes: blk.GetBytes(),
		Status:     blk.GetStatus(),
	}
	envBytes, err := env.encode()
	if err != nil {
		return err
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if err := s.db.Put(blockStatusKey(blk.GetID()), envBytes); err != nil {
		return fmt.Errorf("failed to put block %s: %w", blk.GetID(), err)
	}
	return nil
}

// AddVerified inserts [blk] into the verified table.
func (s *State[T]) AddVerified(blk T) {
	s.verifiedLock.Lock()
	defer s.verifiedLock.Unlock()
	s.verifiedBlocks[blk.GetID()] = blk
}

// RemoveVerified drops [blkID] from the verified table.
func (s *State[T]) RemoveVerified(blkID ids.ID) {
	s.verifiedLock.Lock()
	defer s.verifiedLock.Unlock()
	delete(s.verifiedBlocks, blkID)
}

// HasVerified reports whether [blkID] is in the verified table.
func (s *State[T]) HasVerified(blkID ids.ID) bool {
	s.verifiedLock.RLock()
	defer s.verifiedLock.RUnlock()
	_, exists := s.verifiedBlocks[blkID]
	return exists
}

// SetLastAccepted persists [blkID] as the last accepted block.
func (s *State[T]) SetLastAccepted(_ context.Context, blkID ids.ID) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if err := s.db.Put(lastAcceptedKey, blkID[:]); err != nil {
		return fmt.Errorf("failed to put last accepted block: %w", err)
	}
	return nil
}

// HasLastAccepted reports whether any block has ever been accepted.
func (s *State[T]) HasLastAccepted(_ context.Context) (bool, error) {
	s.dbLock.RLock()
	defer s.dbLock.RUnlock()
	return s.db.Has(lastAcceptedKey)
}

// GetLastAccepted returns the last accepted block's ID. A missing pointer
// means nothing has been accepted yet and returns [ids.Empty]; every other
// store fault propagates.
func (s *State[T]) GetLastAccepted(_ context.Context) (ids.ID, error) {
	s.dbLock.RLock()
	idBytes, err := s.db.Get(lastAcceptedKey)
	s.dbLock.RUnlock()
	if errors.Is(err, database.ErrNotFound) {
		return ids.Empty, nil
	}
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to get last accepted block: %w", err)
	}
	return ids.ToID(idBytes)
}

// SetPreference records the consensus engine's current preference. The ID is
// not validated; preference is advisory and never gates finality.
func (s *State[T]) SetPreference(blkID ids.ID) {
	s.preferredLock.Lock()
	defer s.preferredLock.Unlock()
	s.preferred = blkID
}

// Preference returns the last recorded preference, or [ids.Empty] if none
// has been set.
func (s *State[T]) Preference() ids.ID {
	s.preferredLock.RLock()
	defer s.preferredLock.RUnlock()
	return s.preferred
}
