// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package delegation

import (
	"iter"
	"strings"
)

// NoResponse is the result of aggregating a stream that produced no text
// fragments at all.
const NoResponse = "(no response received)"

// Aggregate folds a streaming fragment sequence into a single result string.
// Fragments are concatenated in arrival order with no separator; any
// fragmentation the remote chose is reproduced exactly. Empty fragments are
// skipped. If the stream closes without producing any text, the result is
// NoResponse so callers can always distinguish "nothing arrived" from an
// empty answer.
//
// The first error in the sequence aborts aggregation; fragments already
// collected are discarded.
func Aggregate(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	var got bool

	for fragment, err := range seq {
		if err != nil {
			return "", err
		}
		if fragment == "" {
			continue
		}
		sb.WriteString(fragment)
		got = true
	}

	if !got {
		return NoResponse, nil
	}
	return sb.String(), nil
}
