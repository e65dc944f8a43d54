// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trace

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/trace"
	"github.com/stretchr/testify/require"
)

func TestTracerDisabled(t *testing.T) {
	r := require.New(t)

	tracer, err := New(&Config{Enabled: false, AppName: "subnetvm"})
	r.NoError(err)
	r.Equal(trace.Noop, tracer)

	ctx, span := tracer.Start(context.Background(), "test")
	r.NotNil(ctx)
	r.False(span.IsRecording())
	span.End()

	r.NoError(tracer.Close())
}

func TestTracerEnabled(t *testing.T) {
	r := require.New(t)

	tracer, err := New(&Config{
		Enabled:         true,
		TraceSampleRate: 1,
		AppName:         "subnetvm",
		Agent:           "test",
		Version:         "v0.0.1",
	})
	r.NoError(err)

	_, span := tracer.Start(context.Background(), "test")
	r.True(span.IsRecording())

	// No span is ended, so Close has nothing to flush to the (absent)
	// collector.
	r.NoError(tracer.Close())
}

func TestTracerSampleRateZero(t *testing.T) {
	r := require.New(t)

	tracer, err := New(&Config{
		Enabled:         true,
		TraceSampleRate: 0,
		AppName:         "subnetvm",
	})
	r.NoError(err)

	_, span := tracer.Start(context.Background(), "test")
	r.False(span.IsRecording())
	span.End()

	r.NoError(tracer.Close())
}
