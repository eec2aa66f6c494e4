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

// Package socks5 provides a [transport.StreamDialer] that tunnels stream
// connections through a SOCKS5 proxy, per [RFC 1928] and [RFC 1929].
//
// [RFC 1928]: https://datatracker.ietf.org/doc/html/rfc1928
// [RFC 1929]: https://datatracker.ietf.org/doc/html/rfc1929
package socks5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ReplyCode is the error number in the REP field of a SOCKS5 server response.
type ReplyCode byte

// SOCKS5 reply codes, as enumerated in https://datatracker.ietf.org/doc/html/rfc1928#section-6.
const (
	ErrGeneralServerFailure          = ReplyCode(0x01)
	ErrConnectionNotAllowedByRuleset = ReplyCode(0x02)
	ErrNetworkUnreachable            = ReplyCode(0x03)
	ErrHostUnreachable               = ReplyCode(0x04)
	ErrConnectionRefused             = ReplyCode(0x05)
	ErrTTLExpired                    = ReplyCode(0x06)
	ErrCommandNotSupported           = ReplyCode(0x07)
	ErrAddressTypeNotSupported       = ReplyCode(0x08)
)

var _ error = ReplyCode(0)

// Error returns a human-readable description of the reply code, per the RFC.
func (e ReplyCode) Error() string {
	switch e {
	case ErrGeneralServerFailure:
		return "general SOCKS server failure"
	case ErrConnectionNotAllowedByRuleset:
		return "connection not allowed by ruleset"
	case ErrNetworkUnreachable:
		return "network unreachable"
	case ErrHostUnreachable:
		return "host unreachable"
	case ErrConnectionRefused:
		return "connection refused"
	case ErrTTLExpired:
		return "TTL expired"
	case ErrCommandNotSupported:
		return "command not supported"
	case ErrAddressTypeNotSupported:
		return "address type not supported"
	default:
		return "reply code " + strconv.Itoa(int(e))
	}
}

// SOCKS5 authentication methods, per https://datatracker.ietf.org/doc/html/rfc1928#section-3.
const (
	authMethodNoAuth   = 0x00
	authMethodUserPass = 0x02
)

// SOCKS5 address types, per https://datatracker.ietf.org/doc/html/rfc1928#section-5.
const (
	addrTypeIPv4       = 0x01
	addrTypeDomainName = 0x03
	addrTypeIPv6       = 0x04
)

// appendAddress adds address to b in the SOCKS5 wire format:
//
//	+------+----------+----------+
//	| ATYP | DST.ADDR | DST.PORT |
//	+------+----------+----------+
//	|  1   | Variable |    2     |
//	+------+----------+----------+
func appendAddress(b []byte, address string) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	portNum, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			b = append(b, addrTypeIPv4)
			b = append(b, ip4...)
		} else {
			b = append(b, addrTypeIPv6)
			b = append(b, ip.To16()...)
		}
	} else {
		if len(host) > 255 {
			return nil, fmt.Errorf("domain name length = %v is over 255", len(host))
		}
		b = append(b, addrTypeDomainName)
		b = append(b, byte(len(host)))
		b = append(b, host...)
	}
	return binary.BigEndian.AppendUint16(b, uint16(portNum)), nil
}

// addrLen returns the length of the fixed-size part of an address of the
// given type, or an error for unknown types. Domain names carry an extra
// length byte that the caller reads separately.
func addrLen(addrType byte) (int, error) {
	switch addrType {
	case addrTypeIPv4:
		return 4, nil
	case addrTypeIPv6:
		return 16, nil
	case addrTypeDomainName:
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown address type %#x", addrType)
	}
}

var errVersion = errors.New("invalid protocol version, expected 5")
