package delegation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/relay/pkg/delegation"
	"github.com/kadirpekel/relay/pkg/testutils"
)

func newClient(t *testing.T, cfg delegation.Config) *delegation.Client {
	t.Helper()
	client, err := delegation.NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := delegation.NewClient(delegation.Config{})
	require.Error(t, err)
}

func TestSendSyncReturnsFinalMessageText(t *testing.T) {
	server := testutils.NewStubExecutor(t, testutils.SyncResponder(testutils.TextMessage("42")))

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	result, err := client.SendSync(context.Background(), "what is the answer")
	require.NoError(t, err)
	assert.Equal(t, "42", result)
}

func TestSendSyncDispatchEnvelope(t *testing.T) {
	var (
		mu      sync.Mutex
		method  string
		msgID   string
		session string
	)
	server := testutils.NewStubExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		m, msg := testutils.DecodeRPCRequest(t, r)
		mu.Lock()
		method = m
		msgID = string(msg.ID)
		session = r.Header.Get(delegation.SessionHeader)
		mu.Unlock()
		testutils.SyncResponder(testutils.TextMessage("ok"))(w, r)
	})

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	_, err := client.SendSync(context.Background(), "do the thing")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "message/send", method)
	assert.NotEmpty(t, msgID, "outbound message must carry an identifier")
	assert.Equal(t, client.SessionID(), session)
}

func TestMessageIDsUniqueAcrossDispatches(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	server := testutils.NewStubExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		_, msg := testutils.DecodeRPCRequest(t, r)
		mu.Lock()
		ids = append(ids, string(msg.ID))
		mu.Unlock()
		testutils.SyncResponder(testutils.TextMessage("ok"))(w, r)
	})

	for i := 0; i < 3; i++ {
		client := newClient(t, delegation.Config{BaseURL: server.URL})
		_, err := client.SendSync(context.Background(), "same task text")
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ids, 3)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "message id %q reused", id)
		seen[id] = true
	}
}

func TestSessionIDsUniquePerClient(t *testing.T) {
	server := testutils.NewStubExecutor(t, testutils.SyncResponder(testutils.TextMessage("ok")))

	a := newClient(t, delegation.Config{BaseURL: server.URL})
	b := newClient(t, delegation.Config{BaseURL: server.URL})

	assert.NotEmpty(t, a.SessionID())
	assert.NotEmpty(t, b.SessionID())
	assert.NotEqual(t, a.SessionID(), b.SessionID())
}

func TestSessionHeaderOnDiscoveryAndDispatch(t *testing.T) {
	var (
		mu       mutexed
		sessions []string
	)
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/.well-known/agent-card.json", func(w http.ResponseWriter, r *http.Request) {
		mu.do(func() { sessions = append(sessions, r.Header.Get(delegation.SessionHeader)) })
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testutils.TestAgentCard(server.URL))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.do(func() { sessions = append(sessions, r.Header.Get(delegation.SessionHeader)) })
		testutils.SyncResponder(testutils.TextMessage("ok"))(w, r)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	_, err := client.SendSync(context.Background(), "task")
	require.NoError(t, err)

	mu.do(func() {
		require.GreaterOrEqual(t, len(sessions), 2, "expected discovery and dispatch requests")
		for _, s := range sessions {
			assert.Equal(t, client.SessionID(), s)
		}
	})
}

func TestBearerTokenAttached(t *testing.T) {
	var auth atomic.Value
	server := testutils.NewStubExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		testutils.SyncResponder(testutils.TextMessage("ok"))(w, r)
	})

	client := newClient(t, delegation.Config{BaseURL: server.URL, Token: "secret-token"})

	_, err := client.SendSync(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", auth.Load())
}

func TestSendStreamingAggregates(t *testing.T) {
	server := testutils.NewStubExecutor(t, testutils.StreamResponder(
		testutils.TextMessage("Hel"),
		testutils.TextMessage("lo, "),
		testutils.TextMessage("world"),
	))

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	result, err := delegation.Aggregate(client.SendStreaming(context.Background(), "greet"))
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", result)
}

func TestSendStreamingUsesStreamMethod(t *testing.T) {
	var method atomic.Value
	server := testutils.NewStubExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		m, _ := testutils.DecodeRPCRequest(t, r)
		method.Store(m)
		testutils.StreamResponder(testutils.TextMessage("ok"))(w, r)
	})

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	_, err := delegation.Aggregate(client.SendStreaming(context.Background(), "task"))
	require.NoError(t, err)
	assert.Equal(t, "message/stream", method.Load())
}

func TestSendStreamingTaskLifecycle(t *testing.T) {
	server := testutils.NewStubExecutor(t, testutils.StreamResponder(
		testutils.WorkingTask("task-1"),
		testutils.StatusUpdate("task-1", "working", false),
		testutils.TextMessage("partial "),
		testutils.TextMessage("answer"),
		testutils.StatusUpdate("task-1", "completed", true),
	))

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	var got []string
	for fragment, err := range client.SendStreaming(context.Background(), "long task") {
		require.NoError(t, err)
		got = append(got, fragment)
	}

	assert.Equal(t, []string{
		"[task task-1: working]",
		"[status-update: working]",
		"partial ",
		"answer",
		"[status-update: completed]",
	}, got)
}

func TestSendStreamingEmptyStream(t *testing.T) {
	server := testutils.NewStubExecutor(t, testutils.StreamResponder())

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	result, err := delegation.Aggregate(client.SendStreaming(context.Background(), "task"))
	require.NoError(t, err)
	assert.Equal(t, delegation.NoResponse, result)
}

func TestSendSyncOpaqueResponse(t *testing.T) {
	server := testutils.NewStubExecutor(t, testutils.SyncResponder(map[string]any{
		"kind": "telemetry",
		"cpu":  0.93,
	}))

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	result, err := client.SendSync(context.Background(), "task")
	require.NoError(t, err, "unrecognized shapes degrade, they do not fail")
	assert.NotEmpty(t, result)
	assert.Contains(t, result, "telemetry")
}

func TestSendSyncTimeout(t *testing.T) {
	server := testutils.NewStubExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	})

	client := newClient(t, delegation.Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.SendSync(context.Background(), "slow task")
	elapsed := time.Since(start)

	var timeoutErr *delegation.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, elapsed, time.Second, "timeout must fire near the deadline")
}

func TestSendStreamingTimeout(t *testing.T) {
	server := testutils.NewStubExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Hold the stream open past the client deadline.
		time.Sleep(2 * time.Second)
	})

	client := newClient(t, delegation.Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})

	_, err := delegation.Aggregate(client.SendStreaming(context.Background(), "stalled task"))

	var timeoutErr *delegation.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestDiscoveryFailureShortCircuitsDispatch(t *testing.T) {
	var dispatches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		dispatches.Add(1)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	_, err := client.SendSync(context.Background(), "task")

	var discoveryErr *delegation.DiscoveryError
	require.ErrorAs(t, err, &discoveryErr)
	assert.Equal(t, int64(0), dispatches.Load(), "no dispatch after failed discovery")
}

func TestSendSyncRPCError(t *testing.T) {
	server := testutils.NewStubExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      "1",
			"error":   map[string]any{"code": -32600, "message": "invalid request"},
		})
	})

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	_, err := client.SendSync(context.Background(), "task")

	var transportErr *delegation.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestSendSyncHTTPError(t *testing.T) {
	server := testutils.NewStubExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "executor on fire", http.StatusInternalServerError)
	})

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	_, err := client.SendSync(context.Background(), "task")

	var transportErr *delegation.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestResolveCard(t *testing.T) {
	server := testutils.NewStubExecutor(t, nil)

	client := newClient(t, delegation.Config{BaseURL: server.URL})

	card, err := client.ResolveCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test Executor", card.Name)
	assert.True(t, card.Capabilities.Streaming)
}

// mutexed is a tiny helper for guarding shared test state.
type mutexed struct{ sync.Mutex }

func (m *mutexed) do(f func()) {
	m.Lock()
	defer m.Unlock()
	f()
}
