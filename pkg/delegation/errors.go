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
	"fmt"
	"time"
)

// DiscoveryError means the executor's capability card could not be fetched or
// parsed. It is fatal to the enclosing call and is never retried here.
type DiscoveryError struct {
	Endpoint string
	Err      error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("capability discovery failed for %s: %v", e.Endpoint, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// TimeoutError means no terminal event (sync) or no further fragment (stream)
// arrived within the call deadline.
type TimeoutError struct {
	Op       string
	Deadline time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	if e.Deadline > 0 {
		return fmt.Sprintf("%s timed out after %v", e.Op, e.Deadline)
	}
	return fmt.Sprintf("%s timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// TransportError is a connection-level failure (refused, reset, DNS) or a
// protocol-level rejection from the remote endpoint.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
