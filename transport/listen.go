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
	"net"
)

// StreamListener provides a way to accept incoming stream connections on a local address.
type StreamListener interface {
	// ListenStream starts listening on `localAddr`.
	// `localAddr` has the form "host:port". The host may be empty to listen on all interfaces.
	ListenStream(ctx context.Context, localAddr string) (net.Listener, error)
}

// FuncStreamListener is a [StreamListener] that provides the ListenStream function as a value.
type FuncStreamListener func(ctx context.Context, localAddr string) (net.Listener, error)

// ListenStream implements [StreamListener].
func (f FuncStreamListener) ListenStream(ctx context.Context, localAddr string) (net.Listener, error) {
	return f(ctx, localAddr)
}

// TCPListener is a [StreamListener] that listens with the standard [net.ListenConfig].
type TCPListener struct {
	// Config specifies the listen options.
	Config net.ListenConfig
}

var _ StreamListener = (*TCPListener)(nil)

// ListenStream implements [StreamListener].
func (l *TCPListener) ListenStream(ctx context.Context, localAddr string) (net.Listener, error) {
	return l.Config.Listen(ctx, "tcp", localAddr)
}
