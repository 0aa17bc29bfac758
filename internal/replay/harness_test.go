package replay

import (
	"io"
	"strings"
	"testing"
)

func TestHarnessMatchesResponseAndReachesEOF(t *testing.T) {
	journal := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}
# MATCH: {"jsonrpc":"2.0","id":1,"result":null}
`
	h, err := NewHarness(strings.NewReader(journal), "/workspace", nil)
	if err != nil {
		t.Fatalf("NewHarness: %v", err)
	}

	req, err := h.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !strings.Contains(string(req), `"method":"initialize"`) {
		t.Fatalf("unexpected request: %s", req)
	}

	// Supply the matching response concurrently; the next ReadFrame call
	// blocks inside verifyTransaction until it sees this response.
	go func() {
		_ = h.WriteFrame([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	}()

	if _, err := h.ReadFrame(); err != io.EOF {
		t.Fatalf("expected io.EOF once the single transaction is verified, got %v", err)
	}

	counters := h.Counters()
	if counters.Matches != 1 {
		t.Fatalf("expected 1 match, got %+v", counters)
	}
}

func TestHarnessOutOfOrderResponseIsCountedAsOOO(t *testing.T) {
	journal := `{"jsonrpc":"2.0","id":1,"method":"a"}
---
{"jsonrpc":"2.0","id":2,"method":"b"}
# MATCH: {"jsonrpc":"2.0","id":2,"result":2}
# MATCH: {"jsonrpc":"2.0","id":1,"result":1}
`
	h, err := NewHarness(strings.NewReader(journal), "/workspace", nil)
	if err != nil {
		t.Fatalf("NewHarness: %v", err)
	}

	if _, err := h.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame 1: %v", err)
	}

	// Response to request 1 arrives early, before request 2 is even fed.
	// Transaction 2 expects response 2 first, so while waiting for it the
	// harness sets response 1 aside in the unhandled pool, and must find it
	// there out of order for the second expectation.
	if err := h.WriteFrame([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	if _, err := h.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame 2: %v", err)
	}

	go func() {
		_ = h.WriteFrame([]byte(`{"jsonrpc":"2.0","id":2,"result":2}`))
	}()

	if _, err := h.ReadFrame(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}

	counters := h.Counters()
	if counters.OOOMatches != 1 || counters.Matches != 1 {
		t.Fatalf("expected 1 ooo match and 1 in-order match, got %+v", counters)
	}
}
