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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
)

// A2A JSON-RPC method names (A2A spec section 7).
const (
	methodMessageSend   = "message/send"
	methodMessageStream = "message/stream"
)

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope. Result is kept raw so the
// classifier can discriminate the event shape itself.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// transport dispatches A2A JSON-RPC requests against one resolved endpoint.
// Built once per delegation call; the per-call headers (session correlation,
// auth) ride on the http.Client's RoundTripper so discovery and dispatch
// carry them uniformly.
type transport struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
}

func (t *transport) newRequest(ctx context.Context, method string, params *a2a.MessageSendParams) (*http.Request, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// send dispatches in non-streaming mode and returns the single raw result
// event that terminates the exchange.
func (t *transport) send(ctx context.Context, params *a2a.MessageSendParams) (json.RawMessage, error) {
	req, err := t.newRequest(ctx, methodMessageSend, params)
	if err != nil {
		return nil, &TransportError{Op: "message send", Err: err}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, t.wrapErr(ctx, "message send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{
			Op:  "message send",
			Err: fmt.Errorf("%s - %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, t.wrapErr(ctx, "message send", fmt.Errorf("failed to decode response: %w", err))
	}
	if rpcResp.Error != nil {
		return nil, &TransportError{Op: "message send", Err: rpcResp.Error}
	}

	return rpcResp.Result, nil
}

// stream dispatches in streaming mode and returns the raw event sequence, one
// element per SSE event, in send order. The sequence ends when the remote
// closes the stream; it is finite and non-restartable.
func (t *transport) stream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		req, err := t.newRequest(ctx, methodMessageStream, params)
		if err != nil {
			yield(nil, &TransportError{Op: "message stream", Err: err})
			return
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			yield(nil, t.wrapErr(ctx, "message stream", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			yield(nil, &TransportError{
				Op:  "message stream",
				Err: fmt.Errorf("%s - %s", resp.Status, strings.TrimSpace(string(body))),
			})
			return
		}

		// SSE framing: "data:" lines accumulate until a blank line
		// dispatches the event. Field names other than data are ignored.
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var data strings.Builder
		flush := func() bool {
			if data.Len() == 0 {
				return true
			}
			payload := data.String()
			data.Reset()

			var rpcResp rpcResponse
			if err := json.Unmarshal([]byte(payload), &rpcResp); err != nil {
				// Not a JSON-RPC envelope; surface the payload as-is
				// and let the classifier degrade it to opaque.
				return yield(json.RawMessage(payload), nil)
			}
			if rpcResp.Error != nil {
				yield(nil, &TransportError{Op: "message stream", Err: rpcResp.Error})
				return false
			}
			return yield(rpcResp.Result, nil)
		}

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "data:"):
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			case line == "":
				if !flush() {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, t.wrapErr(ctx, "message stream", err))
			return
		}

		// Stream closed without a trailing blank line; dispatch what is
		// buffered.
		flush()
	}
}

// wrapErr maps a raw transport failure to the error taxonomy: deadline
// expiries become TimeoutError, caller cancellation passes through untouched,
// everything else is a TransportError.
func (t *transport) wrapErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Op: op, Deadline: t.timeout, Err: err}
	}

	return &TransportError{Op: op, Err: err}
}
