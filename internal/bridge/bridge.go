// Package bridge implements the stdio side of the translation loop: it reads
// one JSON-RPC message per input line, forwards it over Streamable HTTP, and
// writes at most one reply line back, strictly sequentially.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/mcpd/mcpd-bridge/internal/jsonrpc"
	"github.com/mcpd/mcpd-bridge/internal/logx"
)

// Bridge runs the main loop on a pair of streams.
type Bridge struct {
	fwd *Forwarder
}

// New builds a Bridge around the given forwarder.
func New(fwd *Forwarder) *Bridge {
	return &Bridge{fwd: fwd}
}

// Run consumes in until end-of-stream. For each line: blank lines are
// skipped, malformed lines are logged and dropped (there is no identifier to
// correlate a reply with), and valid envelopes are forwarded with the
// outcome written to out, flushed per line. Closing in is the only shutdown
// signal; Run returns nil on a clean end-of-stream.
func (b *Bridge) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	// Lines are unbounded: a tools/call with large arguments is still one
	// message and must round-trip, so no Scanner token cap here.
	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)

	for {
		raw, readErr := r.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read input: %w", readErr)
		}

		line := bytes.TrimSpace([]byte(raw))
		if len(line) > 0 {
			if err := b.handleLine(ctx, w, line); err != nil {
				return err
			}
		}

		if readErr == io.EOF {
			return nil
		}
	}
}

// handleLine resolves one input line to at most one output line. Failures
// stay inside the iteration; only a broken output stream is returned, since
// replies have nowhere to go once the downstream consumer is gone.
func (b *Bridge) handleLine(ctx context.Context, w *bufio.Writer, line []byte) error {
	env, err := jsonrpc.Parse(line)
	if err != nil {
		logx.Log.Error().Err(err).Msg("invalid JSON from stdin")
		return nil
	}

	logx.Log.Debug().Bool("notification", env.IsNotification()).Str("line", preview(line)).Msg("→ server")

	outcome, err := b.fwd.Forward(ctx, line, env)
	if err != nil {
		// Unclassified failure mid-iteration: logged only, no reply
		// line. This drops a pending caller request on the floor;
		// see DESIGN.md.
		logx.Log.Error().Err(err).Msg("unexpected error")
		return nil
	}

	switch outcome.Kind {
	case AcceptedNoBody:
		logx.Log.Debug().Msg("← server: 202 Accepted")
	case ForwardBody, MappedError:
		logx.Log.Debug().Str("line", preview(outcome.Line)).Msg("← server")
		if err := writeLine(w, outcome.Line); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return nil
}

// writeLine emits one complete reply line and flushes so the downstream
// consumer sees it promptly.
func writeLine(w *bufio.Writer, line []byte) error {
	if _, err := w.Write(line); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// preview truncates a payload for debug logging.
func preview(b []byte) string {
	const n = 200
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
