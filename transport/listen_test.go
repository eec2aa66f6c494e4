// Copyright 2024 The Altsock Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTCPListener(t *testing.T) {
	ln, err := (&TCPListener{}).ListenStream(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		done <- conn.Close()
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, <-done)
}

func TestFuncStreamListener(t *testing.T) {
	expectedErr := errors.New("fake error")
	listener := FuncStreamListener(func(ctx context.Context, localAddr string) (net.Listener, error) {
		require.Equal(t, ":80", localAddr)
		return nil, expectedErr
	})
	_, err := listener.ListenStream(context.Background(), ":80")
	require.Equal(t, expectedErr, err)
}
