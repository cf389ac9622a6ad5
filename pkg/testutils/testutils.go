// Package testutils provides stub A2A executors for tests.
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
)

// TestAgentCard returns a valid capability card for a stub executor reachable
// at url.
func TestAgentCard(url string) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:            "Test Executor",
		Description:     "A stub executor for unit testing",
		URL:             url,
		Version:         "1.0.0",
		ProtocolVersion: "0.3.0",
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
	}
}

// NewStubExecutor starts an httptest server that serves its capability card at
// the well-known paths and routes every other request to handler. The card's
// URL points back at the server root, so dispatch lands on handler.
func NewStubExecutor(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	card := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TestAgentCard(server.URL)); err != nil {
			t.Errorf("failed to encode agent card: %v", err)
		}
	}
	mux.HandleFunc("/.well-known/agent-card.json", card)
	mux.HandleFunc("/.well-known/agent.json", card)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if handler == nil {
			http.Error(w, "no dispatch handler configured", http.StatusNotImplemented)
			return
		}
		handler(w, r)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// DecodeRPCRequest decodes the JSON-RPC envelope of a dispatch request and
// returns its method name and the outbound message.
func DecodeRPCRequest(t *testing.T, r *http.Request) (string, *a2a.Message) {
	t.Helper()

	var req struct {
		JSONRPC string `json:"jsonrpc"`
		ID      string `json:"id"`
		Method  string `json:"method"`
		Params  struct {
			Message *a2a.Message `json:"message"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("failed to decode rpc request: %v", err)
	}
	return req.Method, req.Params.Message
}

// SyncResponder returns a dispatch handler that answers every request with a
// single JSON-RPC result.
func SyncResponder(result any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      "1",
			"result":  result,
		})
	}
}

// StreamResponder returns a dispatch handler that answers every request with
// an SSE stream of JSON-RPC events, one per element, then closes.
func StreamResponder(events ...any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, event := range events {
			envelope, _ := json.Marshal(map[string]any{
				"jsonrpc": "2.0",
				"id":      "1",
				"result":  event,
			})
			fmt.Fprintf(w, "data: %s\n\n", envelope)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

// TextMessage returns a final agent message carrying one text part, shaped the
// way an executor serializes it on the wire.
func TextMessage(text string) map[string]any {
	return map[string]any{
		"kind":      "message",
		"messageId": "msg-test-1",
		"role":      "agent",
		"parts": []map[string]any{
			{"kind": "text", "text": text},
		},
	}
}

// WorkingTask returns a task event in the working state.
func WorkingTask(id string) map[string]any {
	return map[string]any{
		"kind":      "task",
		"id":        id,
		"contextId": "ctx-test-1",
		"status": map[string]any{
			"state": "working",
		},
	}
}

// StatusUpdate returns a status-update event for the given task state.
func StatusUpdate(id, state string, final bool) map[string]any {
	return map[string]any{
		"kind":      "status-update",
		"taskId":    id,
		"contextId": "ctx-test-1",
		"final":     final,
		"status": map[string]any{
			"state": state,
		},
	}
}
