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

// Package shadowsocks provides a [transport.StreamDialer] that tunnels stream
// connections through a Shadowsocks proxy. The cipher machinery comes from
// github.com/shadowsocks/go-shadowsocks2.
package shadowsocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/shadowsocks/go-shadowsocks2/core"
	"github.com/shadowsocks/go-shadowsocks2/socks"

	"github.com/altsock/altsock/transport"
)

// StreamDialer is a [transport.StreamDialer] that encrypts connections to a
// Shadowsocks server, which relays them to the dialed destination.
type StreamDialer struct {
	endpoint transport.StreamEndpoint
	cipher   core.Cipher
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [StreamDialer] that routes connections through the
// Shadowsocks server at the given endpoint. cipherName selects the AEAD
// cipher (for example "chacha20-ietf-poly1305") and secret is the shared
// password the key is derived from.
func NewStreamDialer(endpoint transport.StreamEndpoint, cipherName, secret string) (*StreamDialer, error) {
	if endpoint == nil {
		return nil, errors.New("argument endpoint must not be nil")
	}
	cipher, err := core.PickCipher(cipherName, nil, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher %q: %w", cipherName, err)
	}
	return &StreamDialer{endpoint: endpoint, cipher: cipher}, nil
}

// DialStream implements [transport.StreamDialer]. It connects to the proxy
// endpoint, then writes the destination address in the Shadowsocks target
// header over the encrypted stream.
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	target := socks.ParseAddr(remoteAddr)
	if target == nil {
		return nil, fmt.Errorf("failed to parse target address %q", remoteAddr)
	}
	proxyConn, err := d.endpoint.ConnectStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not connect to Shadowsocks server: %w", err)
	}
	ssConn := d.cipher.StreamConn(proxyConn)
	if _, err := ssConn.Write(target); err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("failed to write target address: %w", err)
	}
	// Reads and writes go through the cipher; half-close still acts on the
	// underlying proxy connection.
	return transport.WrapConn(proxyConn, ssConn, ssConn), nil
}
