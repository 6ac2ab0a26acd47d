package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/mcpd/mcpd-bridge/internal/jsonrpc"
	"github.com/mcpd/mcpd-bridge/internal/logx"
)

// sessionHeader carries the session token in both directions.
const sessionHeader = "Mcp-Session-Id"

// OutcomeKind classifies the result of one forwarding attempt.
type OutcomeKind int

const (
	// ForwardBody: the remote replied with a body that goes to stdout
	// verbatim.
	ForwardBody OutcomeKind = iota
	// AcceptedNoBody: the remote acknowledged a notification with 202;
	// nothing is written downstream.
	AcceptedNoBody
	// MappedError: the exchange failed and Line holds a synthesized
	// JSON-RPC error reply correlated to the original request.
	MappedError
)

// Outcome is the per-exchange decision value passed from the forwarder to
// the writer.
type Outcome struct {
	Kind OutcomeKind
	Line []byte
}

// Forwarder performs one blocking HTTP exchange per input line against the
// fixed endpoint, consulting and updating the session along the way.
type Forwarder struct {
	url     string
	client  *http.Client
	session *Session
}

// NewForwarder builds a Forwarder for the given endpoint. When authToken is
// non-empty the HTTP client is wrapped so every request carries it as a
// Bearer token. The timeout bounds the whole exchange; exceeding it is
// classified as a connection failure.
func NewForwarder(ep Endpoint, authToken string, timeout time.Duration, session *Session) *Forwarder {
	client := &http.Client{}
	if authToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: authToken})
		client = oauth2.NewClient(context.Background(), src)
	}
	client.Timeout = timeout

	return &Forwarder{
		url:     ep.URL(),
		client:  client,
		session: session,
	}
}

// Forward sends one envelope's raw line to the endpoint and classifies the
// response. Transport-level failures and non-2xx statuses become MappedError
// outcomes so the caller's pending request is always resolved; a returned
// error means the iteration failed before any classification was possible
// and nothing should be written downstream.
func (f *Forwarder) Forward(ctx context.Context, line []byte, env *jsonrpc.Envelope) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(line))
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sid, ok := f.session.Header(); ok {
		req.Header.Set(sessionHeader, sid)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		logx.Log.Error().Err(err).Msg("connection error")
		return Outcome{
			Kind: MappedError,
			Line: jsonrpc.NewError(env.ID, fmt.Sprintf("Connection error: %v", err)),
		}, nil
	}
	defer resp.Body.Close()

	// Any response may issue or renew the session token, error statuses
	// included.
	if sid := resp.Header.Get(sessionHeader); sid != "" {
		f.session.Update(sid)
		logx.Log.Debug().Str("session", sid).Msg("session token")
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		// Notification acknowledged; the server will not reply.
		return Outcome{Kind: AcceptedNoBody}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Outcome{}, fmt.Errorf("read response body: %w", err)
		}
		return Outcome{Kind: ForwardBody, Line: body}, nil

	default:
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			// The server signals session loss with 404. Clearing here
			// makes the next outbound request omit the session header,
			// so the client's next exchange starts a fresh session.
			f.session.Clear()
			logx.Log.Warn().Msg("session expired, will re-initialize on next request")
		}
		logx.Log.Error().Int("status", resp.StatusCode).Str("body", preview(body)).Msg("server rejected request")
		return Outcome{
			Kind: MappedError,
			Line: jsonrpc.NewError(env.ID, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body)),
		}, nil
	}
}
