package delegation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func collect(t *testing.T, tr *transport) []json.RawMessage {
	t.Helper()
	var events []json.RawMessage
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "task"})
	for raw, err := range tr.stream(context.Background(), &a2a.MessageSendParams{Message: msg}) {
		require.NoError(t, err)
		events = append(events, raw)
	}
	return events
}

func TestStreamMultiLineDataEvent(t *testing.T) {
	// A single SSE event split across multiple data lines is one payload.
	server := newStreamServer(t,
		"data: {\"jsonrpc\": \"2.0\", \"id\": \"1\",\n"+
			"data: \"result\": {\"kind\": \"telemetry\"}}\n\n")

	tr := &transport{httpClient: server.Client(), endpoint: server.URL, timeout: time.Second}
	events := collect(t, tr)

	require.Len(t, events, 1)
	assert.JSONEq(t, `{"kind": "telemetry"}`, string(events[0]))
}

func TestStreamUnterminatedTrailingEvent(t *testing.T) {
	// Stream closes right after the data line, with no dispatching blank
	// line. The buffered event is still delivered.
	server := newStreamServer(t,
		"data: {\"jsonrpc\": \"2.0\", \"id\": \"1\", \"result\": {\"kind\": \"telemetry\"}}\n")

	tr := &transport{httpClient: server.Client(), endpoint: server.URL, timeout: time.Second}
	events := collect(t, tr)

	require.Len(t, events, 1)
}

func TestStreamNonEnvelopePayloadPassedThrough(t *testing.T) {
	// A payload that is not a JSON-RPC envelope is surfaced verbatim for
	// the classifier to degrade.
	server := newStreamServer(t, "data: not json at all\n\n")

	tr := &transport{httpClient: server.Client(), endpoint: server.URL, timeout: time.Second}
	events := collect(t, tr)

	require.Len(t, events, 1)
	assert.Equal(t, "not json at all", string(events[0]))
}

func TestStreamIgnoresCommentsAndOtherFields(t *testing.T) {
	server := newStreamServer(t,
		": keepalive\n"+
			"event: update\n"+
			"data: {\"jsonrpc\": \"2.0\", \"id\": \"1\", \"result\": {\"kind\": \"telemetry\"}}\n\n")

	tr := &transport{httpClient: server.Client(), endpoint: server.URL, timeout: time.Second}
	events := collect(t, tr)

	require.Len(t, events, 1)
}

func TestStreamRPCErrorStops(t *testing.T) {
	server := newStreamServer(t,
		"data: {\"jsonrpc\": \"2.0\", \"id\": \"1\", \"result\": {\"kind\": \"telemetry\"}}\n\n"+
			"data: {\"jsonrpc\": \"2.0\", \"id\": \"1\", \"error\": {\"code\": -32603, \"message\": \"boom\"}}\n\n"+
			"data: {\"jsonrpc\": \"2.0\", \"id\": \"1\", \"result\": {\"kind\": \"never\"}}\n\n")

	tr := &transport{httpClient: server.Client(), endpoint: server.URL, timeout: time.Second}

	var events int
	var streamErr error
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "task"})
	for _, err := range tr.stream(context.Background(), &a2a.MessageSendParams{Message: msg}) {
		if err != nil {
			streamErr = err
			break
		}
		events++
	}

	assert.Equal(t, 1, events)
	var transportErr *TransportError
	require.ErrorAs(t, streamErr, &transportErr)
	assert.Contains(t, streamErr.Error(), "boom")
}
