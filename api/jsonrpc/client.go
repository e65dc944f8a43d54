// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jsonrpc

import (
	"context"
	"strings"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/m1labs/subnetvm/api"
	"github.com/m1labs/subnetvm/chain"
)

type Client struct {
	requester rpc.EndpointRequester
}

func NewClient(uri string) *Client {
	uri = strings.TrimSuffix(uri, "/")
	uri += Endpoint
	return &Client{
		requester: rpc.NewEndpointRequester(uri),
	}
}

func (c *Client) Ping(ctx context.Context) (bool, error) {
	resp := new(PingReply)
	err := c.requester.SendRequest(ctx,
		api.Name+".ping",
		nil,
		resp,
	)
	return resp.Success, err
}

// GetBlock fetches and decodes block [blkID], tagged with its stored status.
func (c *Client) GetBlock(ctx context.Context, blkID ids.ID) (*chain.StatelessBlock, error) {
	resp := new(GetBlockReply)
	err := c.requester.SendRequest(ctx,
		api.Name+".getBlock",
		&GetBlockArgs{BlockID: blkID},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return chain.ParseBlock(resp.BlockBytes, resp.Status)
}

func (c *Client) LastAccepted(ctx context.Context) (ids.ID, uint64, error) {
	resp := new(LastAcceptedReply)
	err := c.requester.SendRequest(ctx,
		api.Name+".lastAccepted",
		nil,
		resp,
	)
	return resp.BlockID, resp.Height, err
}

func (c *Client) Preference(ctx context.Context) (ids.ID, error) {
	resp := new(PreferenceReply)
	err := c.requester.SendRequest(ctx,
		api.Name+".preference",
		nil,
		resp,
	)
	return resp.BlockID, err
}

func (c *Client) HasVerified(ctx context.Context, blkID ids.ID) (bool, error) {
	resp := new(HasVerifiedReply)
	err := c.requester.SendRequest(ctx,
		api.Name+".hasVerified",
		&HasVerifiedArgs{BlockID: blkID},
		resp,
	)
	return resp.Verified, err
}
