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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/altsock/altsock/transport"
)

var errDialNotExpected = errors.New("dial not expected in this test")

func neverDialer(t *testing.T) transport.StreamDialer {
	return transport.FuncStreamDialer(func(ctx context.Context, addr string) (transport.StreamConn, error) {
		t.Helper()
		t.Errorf("unexpected dial of %v", addr)
		return nil, errDialNotExpected
	})
}

func dialRule(t *testing.T, match func(Key) bool, bindingContext Context) Rule {
	return Rule{
		Match: match,
		Bind: func(key Key) (*Binding, error) {
			return NewDialBinding(key, neverDialer(t), bindingContext)
		},
	}
}

func TestSelectFirstMatchWins(t *testing.T) {
	table, err := NewTable(
		dialRule(t, All(MatchConnect, MatchPort(80)), "first"),
		dialRule(t, MatchConnect, "second"),
	)
	require.NoError(t, err)

	b, err := table.Select(Key{Host: "example.com", Port: 80})
	require.NoError(t, err)
	require.Equal(t, "first", b.Context())

	b, err = table.Select(Key{Host: "example.com", Port: 8080})
	require.NoError(t, err)
	require.Equal(t, "second", b.Context())
}

func TestSelectNoMatch(t *testing.T) {
	table, err := NewTable(dialRule(t, All(MatchConnect, MatchPort(80)), nil))
	require.NoError(t, err)

	b, err := table.Select(Key{Host: "example.com", Port: 22})
	require.ErrorIs(t, err, ErrNoMatch)
	require.Nil(t, b)
}

func TestSelectEmptyTable(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)
	_, err = table.Select(Key{Host: "example.com", Port: 80})
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestSelectFactoryFailureReturnsNoBinding(t *testing.T) {
	errBuild := errors.New("key material unavailable")
	table, err := NewTable(Rule{
		Match: MatchAll,
		Bind: func(key Key) (*Binding, error) {
			return nil, errBuild
		},
	})
	require.NoError(t, err)

	b, err := table.Select(Key{Host: "example.com", Port: 443})
	require.ErrorIs(t, err, errBuild)
	require.Nil(t, b)
}

func TestNewTableRejectsIncompleteRules(t *testing.T) {
	_, err := NewTable(Rule{Match: MatchAll})
	require.Error(t, err)
	_, err = NewTable(Rule{Bind: func(key Key) (*Binding, error) { return nil, nil }})
	require.Error(t, err)
}

func TestListenKeysRouteToListenRule(t *testing.T) {
	listener := &transport.TCPListener{}
	table, err := NewTable(
		dialRule(t, All(MatchConnect, MatchPort(80)), nil),
		Rule{
			Match: MatchListen,
			Bind: func(key Key) (*Binding, error) {
				return NewListenBinding(key, listener)
			},
		},
	)
	require.NoError(t, err)

	// Any port routes to the listen rule when the host is absent.
	for _, port := range []int{80, 443, 8080} {
		b, err := table.Select(Key{Port: port})
		require.NoError(t, err, "port %d", port)
		require.Nil(t, b.Context(), "port %d", port)
		require.True(t, b.Key().Listening(), "port %d", port)
	}
}

func TestSelectConcurrent(t *testing.T) {
	table, err := NewTable(dialRule(t, MatchConnect, nil))
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				b, err := table.Select(Key{Host: "example.com", Port: 80})
				if err != nil || b == nil {
					t.Error("concurrent select failed")
					return
				}
				if err := b.Release(); err != nil {
					t.Error("release failed")
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
