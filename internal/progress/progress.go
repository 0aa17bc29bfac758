// Package progress implements the $/progress (window/workDoneProgress)
// reporting protocol as an owning handle: since Go has no destructors, the
// caller must call End explicitly once it is done reporting, and a
// sync.Once keeps a double End (or an End after a 100% report) harmless.
package progress

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/dj1mm/vhdlls/internal/jsonrpc"
)

// Sender is the minimal outgoing capability a Bar needs: sending a
// notification and issuing a request (create requires a round trip).
type Sender interface {
	SendNotification(method string, params jsonrpc.RawJSON) error
	SendRequest(method string, params jsonrpc.RawJSON) (jsonrpc.RawJSON, error)
}

// visible gates so only one progress bar is live per connection at a time,
// mirroring the reference client's workdone_progress_bar_visible flag.
type gate struct {
	visible atomic.Bool
}

// Gate is shared by every Bar created for one connection.
type Gate struct {
	g gate
}

// NewGate creates a fresh, not-visible gate.
func NewGate() *Gate { return &Gate{} }

// Create issues a window/workDoneProgress/create request and, if the peer
// accepts it and no bar is already visible, returns a live Bar. If a bar
// is already visible, it returns (nil, nil) — the caller should simply
// skip reporting progress for this operation, as the reference
// implementation does.
func Create(sender Sender, gate *Gate, token string) (*Bar, error) {
	if !gate.g.visible.CompareAndSwap(false, true) {
		return nil, nil
	}

	params, _ := json.Marshal(map[string]any{"token": token})
	if _, err := sender.SendRequest("window/workDoneProgress/create", jsonrpc.RawJSON(params)); err != nil {
		gate.g.visible.Store(false)
		return nil, err
	}

	return &Bar{sender: sender, gate: gate, token: token}, nil
}

// Bar is a live work-done progress indicator. Call Report as work
// proceeds and End exactly once when finished (End is also safe to call
// more than once).
type Bar struct {
	sender Sender
	gate   *Gate
	token  string

	began bool
	done  atomic.Bool
	once  sync.Once
}

// Report drives the bar through begin/report/end based on percent, with
// the same four-branch semantics as the reference implementation. A
// percent of zero is clamped to 1 (0 would otherwise be indistinguishable
// from "never begun" on the wire):
//   - percent >= 100 and already begun: send end, mark done.
//   - percent >= 100 and never begun: no-op (nothing to end).
//   - not yet begun: send begin with title "Indexing".
//   - otherwise: send a report with the given percentage.
func (b *Bar) Report(percent int, message string) {
	if b == nil || b.done.Load() {
		return
	}
	if percent == 0 {
		percent = 1
	}

	switch {
	case percent >= 100 && b.began:
		b.End(message)
	case percent >= 100 && !b.began:
		// Nothing was ever begun; nothing to end.
	case !b.began:
		b.began = true
		b.send(map[string]any{"kind": "begin", "title": "Indexing", "message": message, "percentage": percent})
	default:
		b.send(map[string]any{"kind": "report", "message": message, "percentage": percent})
	}
}

// End sends the terminal notification and releases the gate so another
// Bar may become visible. Safe to call multiple times or on a nil Bar.
func (b *Bar) End(message string) {
	if b == nil {
		return
	}
	b.once.Do(func() {
		if b.began {
			value := map[string]any{"kind": "end"}
			if message != "" {
				value["message"] = message
			}
			b.send(value)
		}
		b.done.Store(true)
		b.gate.g.visible.Store(false)
	})
}

func (b *Bar) send(value map[string]any) {
	value["token"] = b.token
	params, _ := json.Marshal(value)
	_ = b.sender.SendNotification("$/progress", jsonrpc.RawJSON(params))
}
