// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package jsonrpc exposes the read-only chain surface over JSON-RPC: head
// queries, block fetches, and verified-set membership. Lifecycle decisions
// stay with the consensus engine and are not reachable from here.
package jsonrpc

import (
	"context"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/m1labs/subnetvm/api"
	"github.com/m1labs/subnetvm/chain"
)

const Endpoint = "/coreapi"

// VM is the slice of the VM the JSON-RPC service needs.
type VM interface {
	GetBlock(ctx context.Context, blkID ids.ID) (*chain.StatelessBlock, error)
	LastAccepted(ctx context.Context) (*chain.StatelessBlock, error)
	LastAcceptedID(ctx context.Context) (ids.ID, error)
	HasVerified(blkID ids.ID) bool
	Preference() ids.ID
	Logger() logging.Logger
}

func NewHandler(vm VM) (api.Handler, error) {
	handler, err := api.NewJSONRPCHandler(api.Name, NewJSONRPCServer(vm))
	if err != nil {
		return api.Handler{}, err
	}
	return api.Handler{
		Path:    Endpoint,
		Handler: handler,
	}, nil
}

type JSONRPCServer struct {
	vm VM
}

func NewJSONRPCServer(vm VM) *JSONRPCServer {
	return &JSONRPCServer{vm}
}

type PingReply struct {
	Success bool `json:"success"`
}

func (j *JSONRPCServer) Ping(_ *http.Request, _ *struct{}, reply *PingReply) error {
	j.vm.Logger().Info("ping")
	reply.Success = true
	return nil
}

type GetBlockArgs struct {
	BlockID ids.ID `json:"blockId"`
}

type GetBlockReply struct {
	BlockBytes []byte         `json:"blockBytes"`
	Height     uint64         `json:"height"`
	Timestamp  int64          `json:"timestamp"`
	ParentID   ids.ID         `json:"parentId"`
	Status     choices.Status `json:"status"`
}

func (j *JSONRPCServer) GetBlock(req *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	blk, err := j.vm.GetBlock(req.Context(), args.BlockID)
	if err != nil {
		return err
	}
	reply.BlockBytes = blk.GetBytes()
	reply.Height = blk.GetHeight()
	reply.Timestamp = blk.GetTimestamp()
	reply.ParentID = blk.GetParent()
	reply.Status = blk.GetStatus()
	return nil
}

type LastAcceptedReply struct {
	BlockID ids.ID `json:"blockId"`
	Height  uint64 `json:"height"`
}

func (j *JSONRPCServer) LastAccepted(req *http.Request, _ *struct{}, reply *LastAcceptedReply) error {
	blk, err := j.vm.LastAccepted(req.Context())
	if err != nil {
		return err
	}
	reply.BlockID = blk.GetID()
	reply.Height = blk.GetHeight()
	return nil
}

type PreferenceReply struct {
	BlockID ids.ID `json:"blockId"`
}

func (j *JSONRPCServer) Preference(_ *http.Request, _ *struct{}, reply *PreferenceReply) error {
	reply.BlockID = j.vm.Preference()
	return nil
}

type HasVerifiedArgs struct {
	BlockID ids.ID `json:"blockId"`
}

type HasVerifiedReply struct {
	Verified bool `json:"verified"`
}

func (j *JSONRPCServer) HasVerified(_ *http.Request, args *HasVerifiedArgs, reply *HasVerifiedReply) error {
	reply.Verified = j.vm.HasVerified(args.BlockID)
	return nil
}
