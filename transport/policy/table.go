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
Package policy implements ordered, first-match selection of transport
constructors for connection attempts.

A [Table] maps a [Key] (destination host and port, or a listen intent when
the host is absent) to a [Binding]: the transport constructor to use for
that attempt plus whatever auxiliary context the constructor needs. The
connection layer asks the table with [Table.Select] before each attempt,
invokes the binding once via [Binding.Connect] or [Binding.Listen], and
calls [Binding.Release] when the binding is discarded without a successful
construction.

The table is immutable after construction, so concurrent connection
attempts may share one table without locking. Each binding, on the other
hand, belongs to exactly one attempt.
*/
package policy

import (
	"errors"
	"fmt"
)

// ErrNoMatch is returned by [Table.Select] when no rule applies to the key.
// The caller must treat it as "do not attempt this connection"; it is not
// retryable.
var ErrNoMatch = errors.New("no rule matches the selection key")

// Rule maps keys it matches to a binding factory.
type Rule struct {
	// Match reports whether the rule applies to key. It must not mutate
	// shared state: it may run concurrently with other selections.
	Match func(key Key) bool
	// Bind builds the binding for key, allocating the binding's context
	// eagerly if the constructor needs one. On error it must leave no
	// partially-allocated resource behind.
	Bind func(key Key) (*Binding, error)
}

// Table is an ordered, first-match rule set. It is read-only after
// [NewTable] and safe for concurrent use.
type Table struct {
	rules []Rule
}

// NewTable builds a table from rules, evaluated in the given order.
func NewTable(rules ...Rule) (*Table, error) {
	for i, r := range rules {
		if r.Match == nil {
			return nil, fmt.Errorf("rule %d has no Match function", i)
		}
		if r.Bind == nil {
			return nil, fmt.Errorf("rule %d has no Bind function", i)
		}
	}
	return &Table{rules: append([]Rule(nil), rules...)}, nil
}

// Select evaluates the rules in order and returns the binding of the first
// rule that matches key. It returns [ErrNoMatch] when no rule applies.
//
// If the matching rule's factory fails (for example, building a secure
// context fails), Select returns that error, no binding, and owns nothing.
//
// Building a secure context may block on key-material loading; Select makes
// no suspension guarantees beyond what the rule factories do.
func (t *Table) Select(key Key) (*Binding, error) {
	for _, r := range t.rules {
		if !r.Match(key) {
			continue
		}
		binding, err := r.Bind(key)
		if err != nil {
			return nil, fmt.Errorf("failed to bind %v: %w", key, err)
		}
		return binding, nil
	}
	return nil, ErrNoMatch
}
