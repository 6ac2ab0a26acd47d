// Package jsonrpc models the minimal JSON-RPC 2.0 envelope shape the bridge
// needs: enough to tell requests from notifications and to synthesize error
// replies. Payloads are opaque; the raw line bytes are what get forwarded.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// TransportErrorCode is the generic JSON-RPC error code used for every
// transport-level failure surfaced back to the client.
const TransportErrorCode = -32000

// Envelope is the structural view of one JSON-RPC message. ID keeps the
// identifier exactly as it appeared on the wire so error replies can echo it
// whether it was a number, a string, or null.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
}

// Parse decodes one input line into an Envelope. It validates only the
// envelope shape; method semantics and params are none of the bridge's
// business.
func Parse(line []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return &env, nil
}

// IsNotification reports whether the envelope carries no identifier and
// therefore expects no reply.
func (e *Envelope) IsNotification() bool {
	return len(e.ID) == 0 || string(e.ID) == "null"
}

type errorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   errorObject     `json:"error"`
}

// NewError synthesizes a JSON-RPC error reply line carrying the given
// identifier and message. A nil id marshals as "id":null, matching a reply
// to a message that had no identifier.
func NewError(id json.RawMessage, message string) []byte {
	b, _ := json.Marshal(errorEnvelope{
		JSONRPC: "2.0",
		ID:      id,
		Error:   errorObject{Code: TransportErrorCode, Message: message},
	})
	return b
}
