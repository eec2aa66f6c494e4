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

package config

import (
	"context"
	"encoding/base64"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gosocks5 "github.com/things-go/go-socks5"

	"github.com/altsock/altsock/transport/policy"
)

func TestDefaultTablePlainPort(t *testing.T) {
	table, err := NewTable(Config{})
	require.NoError(t, err)

	b, err := table.Select(policy.Key{Host: "1.2.3.4", Port: 80})
	require.NoError(t, err)
	require.Nil(t, b.Context(), "plain binding must carry no context")
	require.NoError(t, b.Release())
}

func TestDefaultTableSecurePort(t *testing.T) {
	table, err := NewTable(Config{})
	require.NoError(t, err)

	b, err := table.Select(policy.Key{Host: "1.2.3.4", Port: 443})
	require.NoError(t, err)
	secureCtx, ok := b.Context().(*SecureContext)
	require.True(t, ok, "secure binding must carry an owned secure context")
	require.False(t, secureCtx.Released())

	// Exactly one release frees the context; reuse is flagged, not forwarded.
	require.NoError(t, b.Release())
	require.True(t, secureCtx.Released())
	require.ErrorIs(t, b.Release(), policy.ErrReleased)
}

func TestSecureContextsNotShared(t *testing.T) {
	table, err := NewTable(Config{})
	require.NoError(t, err)

	b1, err := table.Select(policy.Key{Host: "1.2.3.4", Port: 443})
	require.NoError(t, err)
	b2, err := table.Select(policy.Key{Host: "1.2.3.4", Port: 443})
	require.NoError(t, err)
	require.NotSame(t, b1.Context(), b2.Context())
	require.NoError(t, b1.Release())
	require.NoError(t, b2.Release())
}

func TestDefaultTableNoMatch(t *testing.T) {
	table, err := NewTable(Config{})
	require.NoError(t, err)

	b, err := table.Select(policy.Key{Host: "1.2.3.4", Port: 22})
	require.ErrorIs(t, err, policy.ErrNoMatch)
	require.Nil(t, b)
}

func TestDefaultTableListen(t *testing.T) {
	table, err := NewTable(Config{})
	require.NoError(t, err)

	// Listening keys route to plain TCP regardless of port.
	for _, port := range []int{80, 443, 22} {
		b, err := table.Select(policy.Key{Port: port})
		require.NoError(t, err, "port %d", port)
		require.Nil(t, b.Context(), "port %d", port)
	}

	b, err := table.Select(policy.Key{Port: 0})
	require.NoError(t, err)
	ln, err := b.Listen(context.Background())
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}

func TestProxyModeCapturesConnectKeys(t *testing.T) {
	table, err := NewTable(Config{ProxyURL: "socks5://proxy.example.com:1080"})
	require.NoError(t, err)

	// Proxy mode routes every connect key through the tunnel, including
	// ports that would otherwise be plain or secure.
	for _, port := range []int{80, 443, 8080} {
		b, err := table.Select(policy.Key{Host: "5.6.7.8", Port: port})
		require.NoError(t, err, "port %d", port)
		endpoint, ok := b.Context().(*ProxyEndpoint)
		require.True(t, ok, "port %d", port)
		require.Equal(t, "socks5", endpoint.Scheme)
		require.Equal(t, "proxy.example.com:1080", endpoint.Address)
		// The endpoint is borrowed: release must not tear it down.
		require.NoError(t, b.Release())
		require.Equal(t, "proxy.example.com:1080", endpoint.Address)
	}

	// Listen intents stay local even in proxy mode.
	b, err := table.Select(policy.Key{Port: 80})
	require.NoError(t, err)
	require.Nil(t, b.Context())
}

func TestProxyURLParsing(t *testing.T) {
	for _, badURL := range []string{
		"socks5://",                 // no host
		"http://proxy.example.com",  // unsupported scheme
		"ss://notbase64!@host:8388", // bad cipher info
	} {
		_, err := NewTable(Config{ProxyURL: badURL})
		require.Error(t, err, "URL %q", badURL)
	}

	cipherInfo := base64.URLEncoding.WithPadding(base64.NoPadding).
		EncodeToString([]byte("chacha20-ietf-poly1305:secret"))
	table, err := NewTable(Config{ProxyURL: "ss://" + cipherInfo + "@host:8388"})
	require.NoError(t, err)
	b, err := table.Select(policy.Key{Host: "1.2.3.4", Port: 80})
	require.NoError(t, err)
	endpoint := b.Context().(*ProxyEndpoint)
	require.Equal(t, "ss", endpoint.Scheme)
	require.Equal(t, "host:8388", endpoint.Address)
}

func TestCustomPorts(t *testing.T) {
	table, err := NewTable(Config{PlainPorts: []int{8080}, SecurePorts: []int{8443}})
	require.NoError(t, err)

	b, err := table.Select(policy.Key{Host: "1.2.3.4", Port: 8080})
	require.NoError(t, err)
	require.Nil(t, b.Context())

	b, err = table.Select(policy.Key{Host: "1.2.3.4", Port: 8443})
	require.NoError(t, err)
	require.IsType(t, (*SecureContext)(nil), b.Context())
	require.NoError(t, b.Release())

	_, err = table.Select(policy.Key{Host: "1.2.3.4", Port: 80})
	require.ErrorIs(t, err, policy.ErrNoMatch)
}

// TestProxyModeEndToEnd selects through a table in proxy mode and exchanges
// data with a loopback destination via a real SOCKS5 server.
func TestProxyModeEndToEnd(t *testing.T) {
	echoListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer echoListener.Close()
	go func() {
		conn, err := echoListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	proxyListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer proxyListener.Close()
	go gosocks5.NewServer().Serve(proxyListener)

	table, err := NewTable(Config{ProxyURL: "socks5://" + proxyListener.Addr().String()})
	require.NoError(t, err)

	echoHost, echoPortStr, err := net.SplitHostPort(echoListener.Addr().String())
	require.NoError(t, err)
	echoPort, err := strconv.Atoi(echoPortStr)
	require.NoError(t, err)

	b, err := table.Select(policy.Key{Host: echoHost, Port: echoPort})
	require.NoError(t, err)
	conn, err := b.Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), buf)
}
