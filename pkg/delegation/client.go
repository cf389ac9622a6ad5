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

// Package delegation implements the client side of task delegation between
// agents over the A2A protocol: capability discovery, correlated sessions,
// dual-mode dispatch (synchronous and streaming), response classification,
// and streaming aggregation.
//
// A Client is built once per delegation call. It resolves the executor's
// capability card fresh on every call (no caching), mints a unique session
// identifier for request correlation, and dispatches exactly one outbound
// message. Mode is an explicit choice at dispatch time:
//
//	client, _ := delegation.NewClient(delegation.Config{
//	    BaseURL: "http://localhost:9000",
//	})
//
//	// Synchronous: one terminal event
//	text, err := client.SendSync(ctx, "summarize the report")
//
//	// Streaming: lazy fragment sequence, folded by Aggregate
//	text, err = delegation.Aggregate(client.SendStreaming(ctx, "summarize the report"))
package delegation

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
	"github.com/google/uuid"

	"github.com/kadirpekel/relay/pkg/httpclient"
)

// SessionHeader carries the per-call correlation identifier to the executor.
const SessionHeader = "Runtime-Session-Id"

// DefaultTimeout is the overall deadline for one delegation call. Applies to
// discovery, dispatch, and every streaming read as a single clock, not per
// fragment.
const DefaultTimeout = 300 * time.Second

// Config configures one delegation call. Immutable after NewClient; safe to
// share between concurrent calls (each call constructs its own Client).
type Config struct {
	// BaseURL is the executor's base endpoint. The capability card is
	// fetched from its well-known path on every call. Required.
	BaseURL string

	// Timeout is the overall deadline for the call. Default: 300s.
	Timeout time.Duration

	// Token, when set, is sent as an Authorization bearer header on every
	// request of the call.
	Token string

	// Headers are extra HTTP headers attached to every request.
	Headers map[string]string

	// TLS configures custom CA / verification behavior for the executor
	// connection.
	TLS *httpclient.TLSConfig

	// Logger receives one structured record per classified response event.
	// Logging is observational only and never affects results.
	// Default: slog.Default().
	Logger *slog.Logger
}

// Client performs one delegation exchange with a remote executor. Each Client
// owns its own session identifier, connection configuration, and timeout
// clock; concurrent calls share nothing mutable.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sessionID  string
	logger     *slog.Logger
}

// NewClient creates a delegation client bound to the executor at
// cfg.BaseURL and mints a fresh session identifier for the call.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("executor base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base, err := httpclient.NewTransport(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}

	sessionID := uuid.NewString()

	header := http.Header{}
	header.Set(SessionHeader, sessionID)
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &httpclient.HeaderTransport{
				Base:   base,
				Header: header,
			},
		},
		sessionID: sessionID,
		logger:    logger,
	}, nil
}

// SessionID returns the correlation identifier sent with every request of
// this call.
func (c *Client) SessionID() string {
	return c.sessionID
}

// ResolveCard fetches the executor's capability card from the well-known path
// under the configured base endpoint. Fetched fresh on every delegation; a
// failure is fatal to the call and is never defaulted or retried.
func (c *Client) ResolveCard(ctx context.Context) (*a2a.AgentCard, error) {
	resolver := agentcard.NewResolver(c.httpClient)

	card, err := resolver.Resolve(ctx, c.cfg.BaseURL)
	if err != nil {
		return nil, &DiscoveryError{Endpoint: c.cfg.BaseURL, Err: err}
	}

	return card, nil
}

// SendSync resolves capabilities, dispatches the task in non-streaming mode,
// and blocks until the single terminal response event arrives or the deadline
// elapses. Returns the event's extracted text; "" when the event carries no
// text.
func (c *Client) SendSync(ctx context.Context, task string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	t, msg, err := c.prepare(ctx, task)
	if err != nil {
		return "", err
	}

	raw, err := t.send(ctx, &a2a.MessageSendParams{Message: msg})
	if err != nil {
		return "", err
	}

	event := Classify(raw)
	c.logEvent(event)

	return event.Text(), nil
}

// SendStreaming resolves capabilities and dispatches the task in streaming
// mode, producing a lazy, finite, non-restartable sequence of text fragments,
// one per classified response event, in arrival order. The sequence ends when
// the transport closes the event stream. A stream that stalls past the
// configured deadline yields a TimeoutError instead of hanging.
func (c *Client) SendStreaming(ctx context.Context, task string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		t, msg, err := c.prepare(ctx, task)
		if err != nil {
			yield("", err)
			return
		}

		for raw, err := range t.stream(ctx, &a2a.MessageSendParams{Message: msg}) {
			if err != nil {
				yield("", err)
				return
			}

			event := Classify(raw)
			c.logEvent(event)

			if !yield(event.Text(), nil) {
				return
			}
		}
	}
}

// prepare resolves the capability card, picks the dispatch endpoint, and
// builds the outbound message. Discovery failure short-circuits before any
// dispatch request is issued.
func (c *Client) prepare(ctx context.Context, task string) (*transport, *a2a.Message, error) {
	card, err := c.ResolveCard(ctx)
	if err != nil {
		return nil, nil, err
	}

	endpoint := card.URL
	if endpoint == "" {
		endpoint = c.cfg.BaseURL
	}

	// NewMessage mints a fresh message identifier; the protocol requires a
	// unique one per message for remote de-duplication.
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: task})

	t := &transport{
		httpClient: c.httpClient,
		endpoint:   endpoint,
		timeout:    c.cfg.Timeout,
	}

	return t, msg, nil
}

func (c *Client) logEvent(event ResponseEvent) {
	c.logger.Debug("classified response event",
		"session_id", c.sessionID,
		"kind", eventKind(event),
		"text_len", len(event.Text()))
}

func eventKind(event ResponseEvent) string {
	switch e := event.(type) {
	case FinalMessage:
		return "message"
	case TaskUpdate:
		if e.Update == nil {
			return "task"
		}
		return "task-update"
	case Opaque:
		return "opaque"
	default:
		return "unknown"
	}
}
