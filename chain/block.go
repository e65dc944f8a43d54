// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"

	"github.com/m1labs/subnetvm/codec"
	"github.com/m1labs/subnetvm/consts"
	"github.com/m1labs/subnetvm/state"
	"github.com/m1labs/subnetvm/utils"
)

var (
	ErrInvalidObject = errors.New("invalid object")

	_ state.Block                   = (*StatelessBlock)(nil)
	_ state.Parser[*StatelessBlock] = (*Parser)(nil)
)

// StatefulBlock is the wire content of a block: parent linkage, height,
// timestamp, and the opaque payload the execution layer hands us.
type StatefulBlock struct {
	Prnt   ids.ID `json:"parent"`
	Hght   uint64 `json:"height"`
	Tmstmp int64  `json:"timestamp"`
	Data   []byte `json:"data"`
}

func (b *StatefulBlock) Marshal() ([]byte, error) {
	size := consts.IDLen + consts.Uint64Len + consts.Int64Len +
		consts.IntLen + len(b.Data)

	p := codec.NewWriter(size, consts.NetworkSizeLimit)
	p.PackID(b.Prnt)
	p.PackUint64(b.Hght)
	p.PackInt64(b.Tmstmp)
	p.PackBytes(b.Data)

	bytes := p.Bytes()
	if err := p.Err(); err != nil {
		return nil, err
	}
	return bytes, nil
}

func UnmarshalBlock(raw []byte) (*StatefulBlock, error) {
	var (
		p = codec.NewReader(raw, consts.NetworkSizeLimit)
		b StatefulBlock
	)

	// The genesis block has an empty parent and height/timestamp zero, so no
	// field is required here.
	p.UnpackID(false, &b.Prnt)
	b.Hght = p.UnpackUint64(false)
	b.Tmstmp = p.UnpackInt64(false)
	p.UnpackBytes(consts.NetworkSizeLimit, false, &b.Data)

	if err := p.Err(); err != nil {
		return nil, err
	}
	if !p.Empty() {
		return nil, fmt.Errorf("%w: remaining=%d", ErrInvalidObject, len(raw)-p.Offset())
	}
	return &b, nil
}

// StatelessBlock carries a StatefulBlock together with everything derived
// from its bytes: the content ID, the cached encoding, and the status the
// state manager has assigned so far.
type StatelessBlock struct {
	*StatefulBlock `json:"block"`

	id    ids.ID
	st    choices.Status
	t     time.Time
	bytes []byte
}

// NewGenesisBlock builds the trusted height-0 block with an empty parent.
func NewGenesisBlock(tmstmp int64, data []byte) (*StatelessBlock, error) {
	return buildBlock(&StatefulBlock{
		Prnt:   ids.Empty,
		Hght:   0,
		Tmstmp: tmstmp,
		Data:   data,
	})
}

// NewBlock builds a child of [parent] at the next height.
func NewBlock(parent *StatelessBlock, tmstmp int64, data []byte) (*StatelessBlock, error) {
	return buildBlock(&StatefulBlock{
		Prnt:   parent.GetID(),
		Hght:   parent.GetHeight() + 1,
		Tmstmp: tmstmp,
		Data:   data,
	})
}

func buildBlock(sb *StatefulBlock) (*StatelessBlock, error) {
	bytes, err := sb.Marshal()
	if err != nil {
		return nil, err
	}
	return &StatelessBlock{
		StatefulBlock: sb,
		id:            utils.ToID(bytes),
		st:            choices.Processing,
		t:             time.Unix(sb.Tmstmp, 0),
		bytes:         bytes,
	}, nil
}

// ParseBlock decodes [source] and tags the result with [status].
func ParseBlock(source []byte, status choices.Status) (*StatelessBlock, error) {
	sb, err := UnmarshalBlock(source)
	if err != nil {
		return nil, err
	}
	return &StatelessBlock{
		StatefulBlock: sb,
		id:            utils.ToID(source),
		st:            status,
		t:             time.Unix(sb.Tmstmp, 0),
		bytes:         source,
	}, nil
}

func (b *StatelessBlock) GetID() ids.ID       { return b.id }
func (b *StatelessBlock) GetParent() ids.ID   { return b.Prnt }
func (b *StatelessBlock) GetHeight() uint64   { return b.Hght }
func (b *StatelessBlock) GetTimestamp() int64 { return b.Tmstmp }
func (b *StatelessBlock) GetBytes() []byte    { return b.bytes }

func (b *StatelessBlock) GetStatus() choices.Status   { return b.st }
func (b *StatelessBlock) SetStatus(st choices.Status) { b.st = st }

// Time returns the block timestamp as wall-clock time.
func (b *StatelessBlock) Time() time.Time { return b.t }

// implements "fmt.Stringer"
func (b *StatelessBlock) String() string {
	return fmt.Sprintf("%s@%d", b.id, b.Hght)
}

// Parser decodes stored block bytes. Parsed blocks come back as Processing;
// the state manager overwrites the status from the stored envelope.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (*Parser) ParseBlock(_ context.Context, source []byte) (*StatelessBlock, error) {
	return ParseBlock(source, choices.Processing)
}
