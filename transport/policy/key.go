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

package policy

import (
	"net"
	"strconv"
)

// Key identifies one connection attempt for rule matching.
//
// Host is the destination host (domain name or IP address). An empty Host
// means the attempt is passive: the caller intends to listen on Port rather
// than connect to it.
type Key struct {
	Host string
	Port int
}

// Listening reports whether the key describes a listen intent instead of a
// connect intent.
func (k Key) Listening() bool {
	return k.Host == ""
}

// Address returns the "host:port" form of the key. For listening keys the
// host part is empty, which makes it a valid local address for listeners.
func (k Key) Address() string {
	return net.JoinHostPort(k.Host, strconv.Itoa(k.Port))
}

// String returns a human-readable description of the key.
func (k Key) String() string {
	if k.Listening() {
		return "listen on " + k.Address()
	}
	return "connect to " + k.Address()
}
