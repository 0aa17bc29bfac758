package dispatch

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dj1mm/vhdlls/internal/cancel"
	"github.com/dj1mm/vhdlls/internal/jsonrpc"
	"github.com/dj1mm/vhdlls/internal/transport"
)

// syncBuffer is a bytes.Buffer safe for one writer goroutine and one
// polling reader goroutine, since requests are handled on their own
// goroutine (see Dispatcher.handle) and tests need to observe the
// response once it lands rather than the moment ForeverLoop returns.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

func waitForBytes(t *testing.T, out *syncBuffer, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bytes.Contains(out.Bytes(), []byte(substr)) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output, got %s", substr, out.Bytes())
}

func newDispatcherOverFixture(t *testing.T, script []byte) (*Dispatcher, *syncBuffer) {
	t.Helper()
	in := bytes.NewBuffer(script)
	out := &syncBuffer{}
	tr := transport.New(in, out)
	return New(tr, nil), out
}

func frame(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	header := []byte{}
	header = append(header, []byte("Content-Length: ")...)
	header = append(header, []byte(itoa(len(body)))...)
	header = append(header, []byte("\r\n\r\n")...)
	return append(header, body...)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestRejectsRequestsBeforeInitialize(t *testing.T) {
	script := frame(t, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "workspace/symbol", "params": map[string]any{}})
	d, out := newDispatcherOverFixture(t, script)
	d.BindRequest("workspace/symbol", func(cancel.Token, jsonrpc.RawJSON) (jsonrpc.RawJSON, error) {
		return jsonrpc.RawJSON("null"), nil
	})

	if err := d.ForeverLoop(); err != nil && err.Error() != "EOF" {
		t.Fatalf("unexpected ForeverLoop error: %v", err)
	}

	waitForBytes(t, out, `"code":-32002`)
}

func TestDispatchesRequestAfterInitialize(t *testing.T) {
	script := frame(t, map[string]any{"jsonrpc": "2.0", "id": 7, "method": "ping", "params": map[string]any{}})
	d, out := newDispatcherOverFixture(t, script)
	d.MarkStarted()
	d.BindRequest("ping", func(cancel.Token, jsonrpc.RawJSON) (jsonrpc.RawJSON, error) {
		return jsonrpc.RawJSON(`"pong"`), nil
	})

	if err := d.ForeverLoop(); err != nil && err.Error() != "EOF" {
		t.Fatalf("unexpected ForeverLoop error: %v", err)
	}

	waitForBytes(t, out, `"result":"pong"`)
}

func TestUnknownMethodYieldsMethodNotFound(t *testing.T) {
	script := frame(t, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "nonexistent", "params": map[string]any{}})
	d, out := newDispatcherOverFixture(t, script)
	d.MarkStarted()

	_ = d.ForeverLoop()

	waitForBytes(t, out, `"code":-32601`)
}

func TestCancelRequestFlipsSourceForTrackedRequest(t *testing.T) {
	d, _ := newDispatcherOverFixture(t, nil)
	d.MarkStarted()

	src, token := cancel.New()
	id := jsonrpc.IntID(1)
	d.mu.Lock()
	d.incomingInFlight[id] = &pendingIncoming{cancelSrc: src}
	d.mu.Unlock()

	d.handleCancelRequest(jsonrpc.RawJSON(`{"id":1}`))

	if !token.IsCancelled() {
		t.Fatalf("expected cancel notification to flip the matching request's token")
	}
}

func TestCancelRequestIgnoresUnknownID(t *testing.T) {
	d, _ := newDispatcherOverFixture(t, nil)
	d.MarkStarted()
	// Should not panic or block when no request with this id is tracked.
	d.handleCancelRequest(jsonrpc.RawJSON(`{"id":999}`))
}

// TestStaleHandlerDoesNotClobberRecycledID simulates a same-id request
// arriving and completing while an older handler for that id is still
// winding down: the stale handler's delete must not erase the newer
// entry, or its cancel source would be silently lost.
func TestStaleHandlerDoesNotClobberRecycledID(t *testing.T) {
	d, _ := newDispatcherOverFixture(t, nil)
	d.MarkStarted()

	id := jsonrpc.IntID(1)

	// Stand in for the stale goroutine's bookkeeping: it captured its own
	// epoch on insert.
	d.mu.Lock()
	d.nextIncomingEpoch++
	staleEpoch := d.nextIncomingEpoch
	d.incomingInFlight[id] = &pendingIncoming{epoch: staleEpoch}
	d.mu.Unlock()

	// The id gets recycled by a newer request before the stale handler's
	// delete runs.
	newSrc, newToken := cancel.New()
	d.mu.Lock()
	d.nextIncomingEpoch++
	newEpoch := d.nextIncomingEpoch
	d.incomingInFlight[id] = &pendingIncoming{cancelSrc: newSrc, epoch: newEpoch}
	d.mu.Unlock()

	// The stale handler now runs its guarded delete using its own, older
	// epoch — it must not remove the newer entry.
	d.mu.Lock()
	if entry, ok := d.incomingInFlight[id]; ok && entry.epoch == staleEpoch {
		delete(d.incomingInFlight, id)
	}
	d.mu.Unlock()

	d.handleCancelRequest(jsonrpc.RawJSON(`{"id":1}`))
	if !newToken.IsCancelled() {
		t.Fatalf("expected the recycled id's newer entry to survive the stale handler's delete")
	}
}
