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
	"net"
	"sync/atomic"

	"github.com/altsock/altsock/transport"
)

var (
	// ErrConsumed is returned when a binding's constructor is invoked more than once.
	ErrConsumed = errors.New("binding was already consumed")
	// ErrReleased is returned when a binding is used or released after Release.
	ErrReleased = errors.New("binding was already released")
)

// Context is opaque auxiliary data a transport constructor needs, such as a
// security configuration or a proxy endpoint descriptor.
//
// A Context that implements [Releaser] is owned by its binding and is freed
// by [Binding.Release]. Any other value is borrowed: the registry never
// frees it.
type Context any

// Releaser is implemented by owned contexts that hold resources requiring
// explicit teardown.
type Releaser interface {
	Release() error
}

// Binding lifecycle states.
const (
	// stateSelected: produced by Select, constructor not invoked yet.
	stateSelected int32 = iota
	// stateBound: constructor succeeded; context ownership moved to the transport.
	stateBound
	// stateFailed: constructor failed; the binding still owns its context.
	stateFailed
	// stateReleased: Release was called; terminal.
	stateReleased
)

// Binding is a deferred choice of transport construction strategy: a
// constructor paired with the context it needs. A binding is produced by
// [Table.Select], is consumed at most once, and must be released with
// [Binding.Release] if its transport is never successfully constructed.
//
// The constructor and context are paired at creation and never split: the
// context is exactly what the bound constructor expects.
//
// A Binding tracks its own lifecycle state, so a second Release reports
// [ErrReleased] instead of corrupting the underlying resource.
type Binding struct {
	key      Key
	dialer   transport.StreamDialer
	listener transport.StreamListener
	context  Context
	state    atomic.Int32
}

// NewDialBinding returns a binding for a connect key whose constructor dials
// with the given dialer. bindingContext may be nil when the constructor
// needs no auxiliary data.
func NewDialBinding(key Key, dialer transport.StreamDialer, bindingContext Context) (*Binding, error) {
	if key.Listening() {
		return nil, errors.New("dial binding requires a connect key")
	}
	if dialer == nil {
		return nil, errors.New("dialer must not be nil")
	}
	return &Binding{key: key, dialer: dialer, context: bindingContext}, nil
}

// NewListenBinding returns a binding for a listening key whose constructor
// opens a listener with the given listener strategy.
func NewListenBinding(key Key, listener transport.StreamListener) (*Binding, error) {
	if !key.Listening() {
		return nil, errors.New("listen binding requires a listening key")
	}
	if listener == nil {
		return nil, errors.New("listener must not be nil")
	}
	return &Binding{key: key, listener: listener}, nil
}

// Key returns the selection key the binding was produced for.
func (b *Binding) Key() Key {
	return b.key
}

// Context returns the auxiliary data paired with the binding's constructor,
// or nil if the constructor needs none. Callers must not free it directly;
// that is what [Binding.Release] is for.
func (b *Binding) Context() Context {
	return b.context
}

// Connect invokes the bound constructor to establish the connection the
// binding was selected for. It may be called at most once. On success the
// context's ownership moves to the returned transport; on failure the
// binding keeps ownership and the caller must call [Binding.Release].
func (b *Binding) Connect(ctx context.Context) (transport.StreamConn, error) {
	if b.dialer == nil {
		return nil, errors.New("binding does not support connecting")
	}
	if !b.state.CompareAndSwap(stateSelected, stateBound) {
		return nil, b.stateErr()
	}
	conn, err := b.dialer.DialStream(ctx, b.key.Address())
	if err != nil {
		b.state.Store(stateFailed)
		return nil, err
	}
	return conn, nil
}

// Listen invokes the bound constructor to open the listener the binding was
// selected for. It may be called at most once. The same ownership rules as
// [Binding.Connect] apply.
func (b *Binding) Listen(ctx context.Context) (net.Listener, error) {
	if b.listener == nil {
		return nil, errors.New("binding does not support listening")
	}
	if !b.state.CompareAndSwap(stateSelected, stateBound) {
		return nil, b.stateErr()
	}
	ln, err := b.listener.ListenStream(ctx, b.key.Address())
	if err != nil {
		b.state.Store(stateFailed)
		return nil, err
	}
	return ln, nil
}

// Release frees the binding's owned context, if any. Call it exactly once
// when the binding is discarded without a successful construction, or after
// the transport that took over the context is itself torn down.
//
// Releasing a borrowed or absent context is a no-op. Releasing twice returns
// [ErrReleased] and does not touch the resource again.
func (b *Binding) Release() error {
	if b.state.Swap(stateReleased) == stateReleased {
		return ErrReleased
	}
	if r, ok := b.context.(Releaser); ok {
		return r.Release()
	}
	return nil
}

func (b *Binding) stateErr() error {
	if b.state.Load() == stateReleased {
		return ErrReleased
	}
	return ErrConsumed
}
