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

// MatchAll matches every key.
func MatchAll(Key) bool {
	return true
}

// MatchListen matches listening keys only.
func MatchListen(k Key) bool {
	return k.Listening()
}

// MatchConnect matches connect keys only.
func MatchConnect(k Key) bool {
	return !k.Listening()
}

// MatchPort returns a predicate that matches keys with one of the given ports.
func MatchPort(ports ...int) func(Key) bool {
	return func(k Key) bool {
		for _, p := range ports {
			if k.Port == p {
				return true
			}
		}
		return false
	}
}

// All composes predicates, requiring every one of them to match.
func All(predicates ...func(Key) bool) func(Key) bool {
	return func(k Key) bool {
		for _, p := range predicates {
			if !p(k) {
				return false
			}
		}
		return true
	}
}
