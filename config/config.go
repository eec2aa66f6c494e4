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

/*
Package config assembles [policy.Table] rule sets from a declarative
configuration.

The table built by [NewTable] implements the production selection policy:

  - When a proxy is configured, every outgoing connection routes through it,
    with the proxy endpoint as the binding's borrowed context.
  - Otherwise, connections to a plain port use direct TCP with no context,
    and connections to a secure port use TLS with a freshly built secure
    context that the binding owns.
  - Listen intents always use plain TCP, regardless of port.

Selection keys that match none of the above yield [policy.ErrNoMatch].
*/
package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/altsock/altsock/transport"
	"github.com/altsock/altsock/transport/policy"
	"github.com/altsock/altsock/transport/shadowsocks"
	"github.com/altsock/altsock/transport/socks5"
	"github.com/altsock/altsock/transport/tls"
)

// Config declares the selection policy to build a [policy.Table] from.
type Config struct {
	// ProxyURL enables proxy mode. Supported schemes:
	//
	//	socks5://[USER:PASS@]HOST:PORT
	//	ss://BASE64(CIPHER:SECRET)@HOST:PORT
	//
	// When empty, connections go out directly.
	ProxyURL string
	// PlainPorts are the destination ports dialed with direct TCP.
	// Defaults to {80}.
	PlainPorts []int
	// SecurePorts are the destination ports dialed with TLS.
	// Defaults to {443}.
	SecurePorts []int
	// TLSOptions configure the TLS client used for secure ports.
	TLSOptions []tls.ClientOption
}

// ProxyEndpoint describes the relay that proxied bindings route through.
// It is externally-owned configuration: bindings borrow it and the registry
// never frees it.
type ProxyEndpoint struct {
	// Scheme of the proxy protocol, "socks5" or "ss".
	Scheme string
	// Address of the relay, in "host:port" form.
	Address string
}

// NewTable builds the policy table for cfg. The table is immutable and safe
// to share across concurrent connection attempts.
func NewTable(cfg Config) (*policy.Table, error) {
	plainPorts := cfg.PlainPorts
	if len(plainPorts) == 0 {
		plainPorts = []int{80}
	}
	securePorts := cfg.SecurePorts
	if len(securePorts) == 0 {
		securePorts = []int{443}
	}

	base := &transport.TCPDialer{}
	var rules []policy.Rule

	if cfg.ProxyURL != "" {
		proxyDialer, endpoint, err := newProxyDialer(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		rules = append(rules, policy.Rule{
			Match: policy.MatchConnect,
			Bind: func(key policy.Key) (*policy.Binding, error) {
				return policy.NewDialBinding(key, proxyDialer, endpoint)
			},
		})
	}

	rules = append(rules,
		policy.Rule{
			Match: policy.All(policy.MatchConnect, policy.MatchPort(plainPorts...)),
			Bind: func(key policy.Key) (*policy.Binding, error) {
				return policy.NewDialBinding(key, base, nil)
			},
		},
		policy.Rule{
			Match: policy.All(policy.MatchConnect, policy.MatchPort(securePorts...)),
			Bind: func(key policy.Key) (*policy.Binding, error) {
				secureCtx := newSecureContext(cfg.TLSOptions)
				dialer, err := tls.NewStreamDialer(base, secureCtx.clientOptions()...)
				if err != nil {
					secureCtx.Release()
					return nil, err
				}
				return policy.NewDialBinding(key, dialer, secureCtx)
			},
		},
		policy.Rule{
			Match: policy.MatchListen,
			Bind: func(key policy.Key) (*policy.Binding, error) {
				return policy.NewListenBinding(key, &transport.TCPListener{})
			},
		},
	)

	return policy.NewTable(rules...)
}

// newProxyDialer parses proxyURL and returns the tunnel dialer together with
// the endpoint descriptor used as the borrowed binding context.
func newProxyDialer(proxyURL string) (transport.StreamDialer, *ProxyEndpoint, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse proxy URL: %w", err)
	}
	if u.Host == "" {
		return nil, nil, fmt.Errorf("proxy URL %q has no host", proxyURL)
	}
	endpoint := &ProxyEndpoint{Scheme: strings.ToLower(u.Scheme), Address: u.Host}
	proxyTCP := &transport.TCPEndpoint{Address: u.Host}

	switch endpoint.Scheme {
	case "socks5":
		dialer, err := socks5.NewStreamDialer(proxyTCP)
		if err != nil {
			return nil, nil, err
		}
		if u.User != nil {
			password, _ := u.User.Password()
			if err := dialer.SetCredentials([]byte(u.User.Username()), []byte(password)); err != nil {
				return nil, nil, fmt.Errorf("invalid SOCKS5 credentials: %w", err)
			}
		}
		return dialer, endpoint, nil

	case "ss":
		cipherInfo, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(u.User.String())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode cipher info: %w", err)
		}
		cipherName, secret, found := strings.Cut(string(cipherInfo), ":")
		if !found {
			return nil, nil, fmt.Errorf("invalid cipher info: no ':' separator")
		}
		dialer, err := shadowsocks.NewStreamDialer(proxyTCP, cipherName, secret)
		if err != nil {
			return nil, nil, err
		}
		return dialer, endpoint, nil

	default:
		return nil, nil, fmt.Errorf("proxy scheme %q is not supported", u.Scheme)
	}
}
