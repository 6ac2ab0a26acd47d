package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TestBridgeAgainstStreamableServer is an end-to-end test that drives the
// built bridge binary against a real Streamable HTTP MCP server. It:
//  1. Compiles the bridge
//  2. Starts an in-process mcp-go Streamable HTTP server
//  3. Writes JSON-RPC lines to the bridge's stdin
//  4. Asserts the reply lines on stdout, including session reuse
func TestBridgeAgainstStreamableServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	// Build the bridge binary.
	bridgeBin := filepath.Join(t.TempDir(), "mcpd-bridge")
	build := exec.Command("go", "build", "-o", bridgeBin, ".")
	build.Dir = projectRoot(t)
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build bridge: %v\n%s", err, out)
	}

	// A server with one echo tool, served over Streamable HTTP.
	s := server.NewMCPServer("e2e-device", "1.0.0")
	s.AddTool(
		mcp.NewTool("echo", mcp.WithDescription("Echoes its input"),
			mcp.WithString("text", mcp.Description("Text to echo"))),
		echoHandler,
	)

	ts := server.NewTestStreamableHTTPServer(s)
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}

	bridge := exec.Command(bridgeBin,
		"--host", u.Hostname(),
		"--port", u.Port(),
		"--path", "/",
		"--log-level", "none",
	)
	bridge.Stderr = os.Stderr
	stdin, err := bridge.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := bridge.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := bridge.Start(); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	defer func() {
		stdin.Close()
		bridge.Wait()
	}()

	reader := bufio.NewReader(stdout)

	// initialize: expect exactly one reply line with the matching id.
	writeLine(t, stdin, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"e2e","version":"0.0.1"}}}`)
	reply := readLine(t, reader)
	var initReply struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      int             `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(reply), &initReply); err != nil {
		t.Fatalf("initialize reply is not one JSON document: %v\n%s", err, reply)
	}
	if initReply.ID != 1 || initReply.JSONRPC != "2.0" {
		t.Fatalf("initialize reply mismatch: %s", reply)
	}
	if len(initReply.Error) > 0 {
		t.Fatalf("initialize failed: %s", initReply.Error)
	}

	// The initialized notification is acknowledged with 202: no output
	// line may appear; the next line read must belong to tools/list.
	writeLine(t, stdin, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	// tools/list rides the session issued during initialize.
	writeLine(t, stdin, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	reply = readLine(t, reader)
	var listReply struct {
		ID    int             `json:"id"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(reply), &listReply); err != nil {
		t.Fatalf("tools/list reply is not one JSON document: %v\n%s", err, reply)
	}
	if listReply.ID != 2 {
		t.Fatalf("expected reply for id 2, got: %s", reply)
	}
	if len(listReply.Error) > 0 {
		t.Fatalf("tools/list failed against live session: %s", listReply.Error)
	}
}

func echoHandler(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func writeLine(t *testing.T, w io.Writer, line string) {
	t.Helper()
	if _, err := fmt.Fprintln(w, line); err != nil {
		t.Fatalf("write to bridge stdin: %v", err)
	}
}

// readLine reads one stdout line with a deadline so a silent bridge fails
// the test instead of hanging it.
func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("read bridge stdout: %v", res.err)
		}
		return res.line
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for a bridge output line")
		return ""
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	// Walk up from this test file to find go.mod
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above e2e directory")
		}
		dir = parent
	}
}
