// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vm is the consensus-engine-facing surface of the state engine. It
// owns a state.State, answers head and status queries, and applies the
// engine's accept/reject/preference decisions. It does not vote, does not
// pick the preferred branch, and does not execute transactions.
package vm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/m1labs/subnetvm/chain"
	"github.com/m1labs/subnetvm/state"
)

var ErrInvalidGenesisBlock = errors.New("genesis block failed verification")

type VM struct {
	config  Config
	log     logging.Logger
	tracer  trace.Tracer
	metrics *metrics

	state  *state.State[*chain.StatelessBlock]
	parser *chain.Parser

	acceptedBlocks *cache.LRU[ids.ID, *chain.StatelessBlock]
}

func New(
	log logging.Logger,
	tracer trace.Tracer,
	registry prometheus.Registerer,
	db database.Database,
	config Config,
) (*VM, error) {
	metrics, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}
	parser := chain.NewParser()
	st, err := state.New[*chain.StatelessBlock](log, registry, parser, db)
	if err != nil {
		return nil, err
	}

	return &VM{
		config:         config,
		log:            log,
		tracer:         tracer,
		metrics:        metrics,
		state:          st,
		parser:         parser,
		acceptedBlocks: &cache.LRU[ids.ID, *chain.StatelessBlock]{Size: config.AcceptedBlockCacheSize},
	}, nil
}

// Initialize bootstraps the chain. On first start the genesis block is
// accepted; on restart the head is reloaded from the store. Either way the
// preference starts at the last accepted block.
func (vm *VM) Initialize(ctx context.Context, genesisBytes []byte) error {
	ctx, span := vm.tracer.Start(ctx, "VM.Initialize")
	defer span.End()

	has, err := vm.state.HasLastAccepted(ctx)
	if err != nil {
		return err
	}

	if !has {
		genesis, err := chain.ParseBlock(genesisBytes, choices.Processing)
		if err != nil {
			return fmt.Errorf("failed to parse genesis block: %w", err)
		}
		status, err := vm.state.Verify(ctx, genesis)
		if err != nil {
			return err
		}
		if status != state.Genesis {
			return fmt.Errorf("%w: %s", ErrInvalidGenesisBlock, status)
		}
		if err := vm.state.Accept(ctx, genesis); err != nil {
			return err
		}
		vm.log.Info("initialized from genesis",
			zap.Stringer("blkID", genesis.GetID()),
		)
	}

	lastAcceptedID, err := vm.state.GetLastAccepted(ctx)
	if err != nil {
		return err
	}
	vm.state.SetPreference(lastAcceptedID)
	vm.log.Info("initialized chain",
		zap.Stringer("lastAccepted", lastAcceptedID),
	)
	return nil
}

// VerifyBlock checks [blk] and, when it passes, pins it in the verified
// table so it stays visible until the engine finalizes it.
func (vm *VM) VerifyBlock(ctx context.Context, blk *chain.StatelessBlock) (state.VerificationStatus, error) {
	start := time.Now()
	defer func() {
		vm.metrics.blockVerify.Observe(float64(time.Since(start)))
	}()

	ctx, span := vm.tracer.Start(
		ctx, "VM.VerifyBlock",
		oteltrace.WithAttributes(
			attribute.Int("size", len(blk.GetBytes())),
			attribute.Int64("height", int64(blk.GetHeight())),
		),
	)
	defer span.End()

	status, err := vm.state.Verify(ctx, blk)
	if err != nil {
		vm.log.Warn("verification failed",
			zap.Uint64("height", blk.GetHeight()),
			zap.Stringer("blkID", blk.GetID()),
			zap.Error(err),
		)
		return status, err
	}

	switch status {
	case state.Verified, state.Genesis:
		vm.state.AddVerified(blk)
		vm.log.Debug("verified block",
			zap.Stringer("blk", blk),
			zap.Stringer("status", status),
		)
	case state.AlreadyAdded:
		vm.log.Debug("skipped re-verification of known block",
			zap.Stringer("blk", blk),
		)
	default:
		vm.log.Warn("block not verified",
			zap.Stringer("blk", blk),
			zap.Stringer("status", status),
		)
	}
	return status, nil
}

// AcceptBlock finalizes [blk] as accepted and makes it the recognized head.
func (vm *VM) AcceptBlock(ctx context.Context, blk *chain.StatelessBlock) error {
	start := time.Now()
	defer func() {
		vm.metrics.blockAccept.Observe(float64(time.Since(start)))
	}()

	ctx, span := vm.tracer.Start(ctx, "VM.AcceptBlock")
	defer span.End()

	if err := vm.state.Accept(ctx, blk); err != nil {
		return err
	}
	vm.acceptedBlocks.Put(blk.GetID(), blk)
	return nil
}

// RejectBlock finalizes [blk] as rejected.
func (vm *VM) RejectBlock(ctx context.Context, blk *chain.StatelessBlock) error {
	start := time.Now()
	defer func() {
		vm.metrics.blockReject.Observe(float64(time.Since(start)))
	}()

	ctx, span := vm.tracer.Start(ctx, "VM.RejectBlock")
	defer span.End()

	return vm.state.Reject(ctx, blk)
}

// GetBlock returns [blkID] from the verified table, the accepted cache, or
// the durable store, in that order.
func (vm *VM) GetBlock(ctx context.Context, blkID ids.ID) (*chain.StatelessBlock, error) {
	ctx, span := vm.tracer.Start(ctx, "VM.GetBlock")
	defer span.End()

	if vm.state.HasVerified(blkID) {
		return vm.state.GetBlock(ctx, blkID)
	}
	if blk, ok := vm.acceptedBlocks.Get(blkID); ok {
		return blk, nil
	}
	return vm.state.GetBlock(ctx, blkID)
}

// ParseBlock decodes [source] into a processing block.
func (vm *VM) ParseBlock(ctx context.Context, source []byte) (*chain.StatelessBlock, error) {
	_, span := vm.tracer.Start(ctx, "VM.ParseBlock")
	defer span.End()

	return chain.ParseBlock(source, choices.Processing)
}

// LastAccepted returns the current head block.
func (vm *VM) LastAccepted(ctx context.Context) (*chain.StatelessBlock, error) {
	ctx, span := vm.tracer.Start(ctx, "VM.LastAccepted")
	defer span.End()

	blkID, err := vm.state.GetLastAccepted(ctx)
	if err != nil {
		return nil, err
	}
	if blkID == ids.Empty {
		return nil, database.ErrNotFound
	}
	return vm.GetBlock(ctx, blkID)
}

// LastAcceptedID returns the head block's ID, or [ids.Empty] if no block has
// ever been accepted.
func (vm *VM) LastAcceptedID(ctx context.Context) (ids.ID, error) {
	return vm.state.GetLastAccepted(ctx)
}

// HasVerified reports whether [blkID] is verified but not yet finalized.
func (vm *VM) HasVerified(blkID ids.ID) bool {
	return vm.state.HasVerified(blkID)
}

// SetPreference records the engine's preferred head.
func (vm *VM) SetPreference(blkID ids.ID) {
	vm.state.SetPreference(blkID)
}

// Preference returns the engine's current preferred head.
func (vm *VM) Preference() ids.ID {
	return vm.state.Preference()
}

// Logger exposes the VM's logger to API handlers.
func (vm *VM) Logger() logging.Logger {
	return vm.log
}
