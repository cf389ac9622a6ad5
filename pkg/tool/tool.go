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

// Package tool defines interfaces for tools an orchestrating model can invoke.
//
// Tools expose a name, a description, and a JSON schema, and execute either
// synchronously (CallableTool) or incrementally (StreamingTool). The tool
// boundary is deliberately lossy: results and failures alike flow back as
// model-readable content, so the caller never has to unwind a Go error chain.
package tool

import (
	"context"
	"iter"
)

// Tool is the base interface every tool implements.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description of what the tool
	// does. Used by models to decide when to invoke it.
	Description() string
}

// CallableTool extends Tool with blocking execution.
type CallableTool interface {
	Tool

	// Call executes the tool with the given arguments and blocks until
	// completion. Execution failures are reported inside the result map,
	// not as a Go error; the error return is reserved for invalid
	// invocations (bad arguments).
	Call(ctx context.Context, args map[string]any) (map[string]any, error)

	// Schema returns the JSON schema for the tool's parameters.
	// Returns nil if the tool takes no parameters.
	Schema() map[string]any
}

// StreamingTool extends Tool with incremental output. Each yielded Result is
// one chunk; the final chunk has Streaming set to false.
type StreamingTool interface {
	Tool

	// CallStreaming executes the tool and yields results as they arrive.
	CallStreaming(ctx context.Context, args map[string]any) iter.Seq2[*Result, error]

	// Schema returns the JSON schema for the tool's parameters.
	Schema() map[string]any
}

// Result is one unit of tool output.
type Result struct {
	// Content is the output content, typically a string.
	Content any

	// Streaming marks an intermediate chunk; false means final.
	Streaming bool

	// Error carries an execution failure as text. Set on the final result
	// only.
	Error string

	// Metadata contains optional additional data about this result.
	Metadata map[string]any
}
