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

// Package delegatetool exposes remote task delegation as a callable tool.
//
// The tool hands a freeform request to a remote executor over the A2A
// protocol and returns whatever came back as text. Its boundary is lossy on
// purpose: delegation failures are rendered into the result string instead of
// propagating as Go errors, so the invoking model always receives something
// it can read and react to.
//
// Each invocation builds a fresh delegation client, which means a fresh
// session identifier and a fresh capability discovery per call.
package delegatetool

import (
	"context"
	"fmt"
	"iter"

	"github.com/kadirpekel/relay/pkg/delegation"
	"github.com/kadirpekel/relay/pkg/tool"
)

// DefaultName is the tool name advertised to the model when Config.Name is
// empty.
const DefaultName = "perform_action"

// Config holds the configuration for a delegate tool.
type Config struct {
	// Name overrides the advertised tool name. Default: "perform_action".
	Name string

	// Description overrides the advertised tool description.
	Description string

	// Delegation configures the underlying client: executor URL, timeout,
	// auth. BaseURL is required.
	Delegation delegation.Config

	// Streaming selects streaming dispatch with aggregation instead of a
	// single synchronous exchange. The tool result is identical in shape
	// either way.
	Streaming bool
}

type delegateTool struct {
	cfg Config
}

// New creates a tool that delegates requests to the configured executor.
func New(cfg Config) (tool.CallableTool, error) {
	if cfg.Delegation.BaseURL == "" {
		return nil, fmt.Errorf("executor base URL is required")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Description == "" {
		cfg.Description = "Delegate a task to a remote agent and return its response"
	}
	return &delegateTool{cfg: cfg}, nil
}

func (t *delegateTool) Name() string {
	return t.cfg.Name
}

func (t *delegateTool) Description() string {
	return t.cfg.Description
}

// Schema declares a single required "request" string parameter.
func (t *delegateTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"description": "The task or request to delegate to the remote agent",
			},
		},
		"required": []string{"request"},
	}
}

// Call delegates the request and returns the response text under "result".
// Delegation failures do not surface as errors: they are rendered into the
// result text so the model can see what went wrong. The error return fires
// only on invalid arguments.
func (t *delegateTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	request, ok := args["request"].(string)
	if !ok {
		return nil, fmt.Errorf("request parameter must be a string")
	}

	output, err := t.delegate(ctx, request)
	if err != nil {
		output = failureText(err)
	}

	return map[string]any{
		"result": output,
	}, nil
}

// CallStreaming delegates the request and yields response fragments as they
// arrive. Failures terminate the stream with a final result carrying the
// failure text, mirroring Call's lossy boundary.
func (t *delegateTool) CallStreaming(ctx context.Context, args map[string]any) iter.Seq2[*tool.Result, error] {
	return func(yield func(*tool.Result, error) bool) {
		request, ok := args["request"].(string)
		if !ok {
			yield(nil, fmt.Errorf("request parameter must be a string"))
			return
		}

		client, err := delegation.NewClient(t.cfg.Delegation)
		if err != nil {
			yield(&tool.Result{Content: failureText(err), Error: err.Error()}, nil)
			return
		}

		for fragment, err := range client.SendStreaming(ctx, request) {
			if err != nil {
				yield(&tool.Result{Content: failureText(err), Error: err.Error()}, nil)
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(&tool.Result{Content: fragment, Streaming: true}, nil) {
				return
			}
		}

		yield(&tool.Result{Content: ""}, nil)
	}
}

// delegate runs one delegation call in the configured mode. A fresh client
// per call keeps sessions uncorrelated between invocations.
func (t *delegateTool) delegate(ctx context.Context, request string) (string, error) {
	client, err := delegation.NewClient(t.cfg.Delegation)
	if err != nil {
		return "", err
	}

	if t.cfg.Streaming {
		return delegation.Aggregate(client.SendStreaming(ctx, request))
	}
	return client.SendSync(ctx, request)
}

// failureText renders a delegation failure for model consumption.
func failureText(err error) string {
	return fmt.Sprintf("Delegation failed: %v", err)
}

// Verify interface compliance
var (
	_ tool.CallableTool  = (*delegateTool)(nil)
	_ tool.StreamingTool = (*delegateTool)(nil)
)
