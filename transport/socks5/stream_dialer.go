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

package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/altsock/altsock/transport"
)

// Credentials for SOCKS5 username/password authentication (RFC 1929).
// A nil credentials value means no authentication.
type credentials struct {
	username []byte
	password []byte
}

// StreamDialer is a [transport.StreamDialer] that routes connections through
// a SOCKS5 proxy. The proxy endpoint is externally owned configuration: the
// dialer only borrows it and never tears it down.
type StreamDialer struct {
	proxyEndpoint transport.StreamEndpoint
	cred          *credentials
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [StreamDialer] that routes connections to a SOCKS5
// proxy listening at the given [transport.StreamEndpoint].
func NewStreamDialer(endpoint transport.StreamEndpoint) (*StreamDialer, error) {
	if endpoint == nil {
		return nil, errors.New("argument endpoint must not be nil")
	}
	return &StreamDialer{proxyEndpoint: endpoint}, nil
}

// SetCredentials enables username/password authentication on the dialer.
// Both fields must be 1 to 255 bytes long.
func (d *StreamDialer) SetCredentials(username, password []byte) error {
	if len(username) == 0 || len(username) > 255 {
		return errors.New("username must be 1 to 255 bytes")
	}
	if len(password) == 0 || len(password) > 255 {
		return errors.New("password must be 1 to 255 bytes")
	}
	d.cred = &credentials{username: username, password: password}
	return nil
}

// DialStream implements [transport.StreamDialer] using SOCKS5.
// It sends the method selection, the credentials (when authentication is
// configured), and the connect request in a single write to save a roundtrip.
// If the server responds with a SOCKS error, the returned error is a
// [ReplyCode] that can be matched with [errors.Is].
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	proxyConn, err := d.proxyEndpoint.ConnectStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not connect to SOCKS5 proxy: %w", err)
	}
	dialSuccess := false
	defer func() {
		if !dialSuccess {
			proxyConn.Close()
		}
	}()

	// Worst-case request size:
	// 3 (version + method count + one method)
	// + 1 (auth version) + 1 + 255 (username) + 1 + 255 (password)
	// + 4 (version + command + reserved + address type) + 1 + 255 + 2 (domain address and port)
	var buffer [3 + 513 + 262]byte
	var b []byte

	if d.cred == nil {
		// VER = 5, NMETHODS = 1, METHODS = 0 (no auth).
		b = append(buffer[:0], 5, 1, authMethodNoAuth)
	} else {
		// VER = 5, NMETHODS = 1, METHODS = 2 (username/password), then the
		// RFC 1929 request: VER = 1, ULEN, UNAME, PLEN, PASSWD.
		b = append(buffer[:0], 5, 1, authMethodUserPass)
		b = append(b, 1)
		b = append(b, byte(len(d.cred.username)))
		b = append(b, d.cred.username...)
		b = append(b, byte(len(d.cred.password)))
		b = append(b, d.cred.password...)
	}

	// Connect request: VER = 5, CMD = 1 (connect), RSV = 0, DST.ADDR, DST.PORT.
	b = append(b, 5, 1, 0)
	b, err = appendAddress(b, remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode SOCKS5 address: %w", err)
	}
	if _, err := proxyConn.Write(b); err != nil {
		return nil, fmt.Errorf("failed to write combined SOCKS5 request: %w", err)
	}

	// Method selection response: VER, METHOD.
	if _, err := io.ReadFull(proxyConn, buffer[:2]); err != nil {
		return nil, fmt.Errorf("failed to read method server response: %w", err)
	}
	if buffer[0] != 5 {
		return nil, errVersion
	}
	switch buffer[1] {
	case authMethodNoAuth:
		// Nothing more to do.
	case authMethodUserPass:
		// Authentication response: VER = 1, STATUS = 0 on success.
		if _, err := io.ReadFull(proxyConn, buffer[:2]); err != nil {
			return nil, fmt.Errorf("failed to read authentication response: %w", err)
		}
		if buffer[0] != 1 {
			return nil, fmt.Errorf("invalid authentication version %v, expected 1", buffer[0])
		}
		if buffer[1] != 0 {
			return nil, fmt.Errorf("authentication failed: status %v", buffer[1])
		}
	default:
		return nil, fmt.Errorf("unsupported authentication method %v", buffer[1])
	}

	// Connect response: VER, REP, RSV, ATYP, BND.ADDR, BND.PORT.
	if _, err := io.ReadFull(proxyConn, buffer[:4]); err != nil {
		return nil, fmt.Errorf("failed to read connect server response: %w", err)
	}
	if buffer[0] != 5 {
		return nil, errVersion
	}
	if buffer[1] != 0 {
		return nil, ReplyCode(buffer[1])
	}
	bndLen, err := addrLen(buffer[3])
	if err != nil {
		return nil, fmt.Errorf("invalid address in connect response: %w", err)
	}
	if buffer[3] == addrTypeDomainName {
		if _, err := io.ReadFull(proxyConn, buffer[:1]); err != nil {
			return nil, fmt.Errorf("failed to read bound address length: %w", err)
		}
		bndLen = int(buffer[0])
	}
	// The bound address and port are read and discarded.
	if _, err := io.ReadFull(proxyConn, buffer[:bndLen+2]); err != nil {
		return nil, fmt.Errorf("failed to read bound address: %w", err)
	}

	dialSuccess = true
	return proxyConn, nil
}
