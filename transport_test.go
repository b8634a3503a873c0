// Copyright 2026 The go-pixtendl Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pixtendl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixtend-community/go-pixtendl/internal/frame"
)

func TestMockTransport_DefaultIdleFrame(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	resp, err := mock.Exchange(make([]byte, frame.Len))
	require.NoError(t, err)

	snap, err := decodeInput(resp)
	require.NoError(t, err)
	assert.True(t, snap.Run())
	assert.Equal(t, byte(frame.ModelL), snap.Model())
}

func TestMockTransport_QueuedResponsesInOrder(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	first := IdleInputFrame()
	first[frame.InFirmware] = 7
	SealInputFrame(first)
	mock.QueueResponse(first)

	resp, err := mock.Exchange(nil)
	require.NoError(t, err)
	assert.Equal(t, byte(7), resp[frame.InFirmware])

	// Queue drained: back to the idle default.
	resp, err = mock.Exchange(nil)
	require.NoError(t, err)
	assert.Equal(t, byte(1), resp[frame.InFirmware])
}

func TestMockTransport_ErrorInjectionIsOneShot(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetError(ErrTransportTimeout)

	_, err := mock.Exchange(nil)
	require.ErrorIs(t, err, ErrTransportTimeout)

	_, err = mock.Exchange(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Exchanges())
}

func TestMockTransport_HandlerSeesOutgoingFrame(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetHandler(func(out []byte) ([]byte, error) {
		resp := IdleInputFrame()
		resp[frame.InDigitalIn] = out[frame.OutDigitalOut] // loopback
		SealInputFrame(resp)
		return resp, nil
	})

	out := make([]byte, frame.Len)
	out[frame.OutDigitalOut] = 0xA5
	resp, err := mock.Exchange(out)
	require.NoError(t, err)
	assert.Equal(t, byte(0xA5), resp[frame.InDigitalIn])
	assert.Equal(t, out, mock.LastOutput())
}

func TestMockTransport_ClosedRejectsExchanges(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	require.True(t, mock.IsConnected())
	require.NoError(t, mock.Close())
	require.False(t, mock.IsConnected())

	_, err := mock.Exchange(nil)
	require.ErrorIs(t, err, ErrTransportClosed)
	require.ErrorIs(t, mock.WriteDAC([]byte{0, 0}), ErrTransportClosed)

	mock.Reset()
	_, err = mock.Exchange(nil)
	require.NoError(t, err)
}

func TestMockTransport_ContextCancellation(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.ExchangeContext(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)

	mock.SetDelay(time.Second)
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = mock.ExchangeContext(ctx, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransportWithRetry_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetError(NewTimeoutError("Exchange", "mock"))

	wrapped := NewTransportWithRetry(mock, &RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})

	resp, err := wrapped.Exchange(make([]byte, frame.Len))
	require.NoError(t, err)
	require.Len(t, resp, frame.Len)
	assert.Equal(t, 2, mock.Exchanges(), "one failure plus one retry")
}

func TestTransportWithRetry_GivesUpOnPermanentErrors(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	require.NoError(t, mock.Close())

	wrapped := NewTransportWithRetry(mock, &RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})

	_, err := wrapped.Exchange(nil)
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.Equal(t, 1, mock.Exchanges(), "permanent errors must not be retried")
}

func TestTransportWithRetry_ForwardsDACPort(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	wrapped := NewTransportWithRetry(mock, nil)

	require.NoError(t, wrapped.WriteDAC([]byte{0x98, 0x84}))
	require.Len(t, mock.DACWrites(), 1)

	assert.Equal(t, TransportMock, wrapped.Type())
	assert.True(t, wrapped.IsConnected())
}

func TestRetryWithConfig_HonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, &RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond},
		func() error {
			calls++
			return NewTimeoutError("Exchange", "test")
		})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
