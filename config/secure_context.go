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
	stdtls "crypto/tls"
	"sync/atomic"

	"github.com/altsock/altsock/transport/policy"
	"github.com/altsock/altsock/transport/tls"
)

// sessionCacheSize bounds the per-binding TLS session cache.
const sessionCacheSize = 8

// SecureContext is the owned context paired with secure-port bindings. It
// holds the TLS client parameters and a private session cache, built fresh
// for each binding so no two connection attempts share session state.
//
// SecureContext records its own released state: the first Release tears it
// down, and any further Release reports [policy.ErrReleased] instead of
// touching the resource again.
type SecureContext struct {
	options  []tls.ClientOption
	cache    stdtls.ClientSessionCache
	released atomic.Bool
}

var _ policy.Releaser = (*SecureContext)(nil)

func newSecureContext(options []tls.ClientOption) *SecureContext {
	return &SecureContext{
		options: options,
		cache:   stdtls.NewLRUClientSessionCache(sessionCacheSize),
	}
}

// clientOptions returns the TLS options for the context, with the private
// session cache appended last so it cannot be overridden.
func (c *SecureContext) clientOptions() []tls.ClientOption {
	return append(append([]tls.ClientOption(nil), c.options...), tls.WithSessionCache(c.cache))
}

// Release implements [policy.Releaser]. It drops the session cache and the
// client parameters so cached tickets and key material become unreachable.
func (c *SecureContext) Release() error {
	if c.released.Swap(true) {
		return policy.ErrReleased
	}
	c.cache = nil
	c.options = nil
	return nil
}

// Released reports whether the context was already torn down.
func (c *SecureContext) Released() bool {
	return c.released.Load()
}
