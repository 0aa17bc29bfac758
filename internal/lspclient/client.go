// Package lspclient implements the thin request/notification facade the
// background indexer and config loader use to talk back to the peer:
// wrapping a dispatcher's outgoing side with the handful of LSP methods
// this host actually sends (window/showMessage, window/logMessage,
// textDocument/publishDiagnostics, window/workDoneProgress/create).
package lspclient

import (
	"encoding/json"

	"github.com/dj1mm/vhdlls/internal/jsonrpc"
	"github.com/dj1mm/vhdlls/internal/logger"
	"github.com/dj1mm/vhdlls/internal/progress"
)

// Sender is the outgoing capability a dispatcher provides to a client
// facade: one-way notifications, and round-tripping requests.
type Sender interface {
	SendNotification(method string, params jsonrpc.RawJSON) error
	SendRequest(method string, params jsonrpc.RawJSON) (jsonrpc.RawJSON, error)
}

// Client is a thin pass-through over a Sender, plus the domain helpers
// every handler in this host needs: announcing messages, publishing
// diagnostics, and creating a work-done progress bar.
type Client struct {
	sender Sender
	gate   *progress.Gate
}

// New wraps sender as a client facade. gate is shared across every Bar
// this client creates, so at most one is ever visible at a time.
func New(sender Sender) *Client {
	return &Client{sender: sender, gate: progress.NewGate()}
}

// Notify wraps and sends a one-way outgoing call.
func (c *Client) Notify(method string, params jsonrpc.RawJSON) bool {
	return c.sender.SendNotification(method, params) == nil
}

// Request wraps and sends an outgoing call that expects a response,
// blocking until it arrives (or the underlying dispatcher times it out).
func (c *Client) Request(method string, params jsonrpc.RawJSON) (jsonrpc.RawJSON, error) {
	return c.sender.SendRequest(method, params)
}

// Diagnostic is one LSP diagnostic entry, keyed to a 1-based file
// location — the shape config faults and worker faults use.
type Diagnostic struct {
	Message string
	Line    int
	Column  int
}

type messageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

// ShowMessage asks the peer to display message to the user, e.g. in a
// notification toast. The wire "type" reuses internal/logger's severity
// numbering (LSP's message_type: error=1, warning=2, info=3, log=4),
// since both vocabularies are the same LSP enum.
func (c *Client) ShowMessage(message string) {
	params, _ := json.Marshal(messageParams{Type: logger.LevelLog.WireType(), Message: message})
	c.Notify("window/showMessage", jsonrpc.RawJSON(params))
}

// LogMessage asks the peer to append message to its own log output.
func (c *Client) LogMessage(message string) {
	params, _ := json.Marshal(messageParams{Type: logger.LevelLog.WireType(), Message: message})
	c.Notify("window/logMessage", jsonrpc.RawJSON(params))
}

type position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type diagnosticRange struct {
	Start position `json:"start"`
	End   position `json:"end"`
}

type wireDiagnostic struct {
	Message  string          `json:"message"`
	Severity int             `json:"severity"`
	Range    diagnosticRange `json:"range"`
}

type publishDiagnosticsParams struct {
	URI         string           `json:"uri"`
	Diagnostics []wireDiagnostic `json:"diagnostics"`
}

// SendDiagnostics publishes a persistent diagnostic set for file, replacing
// whatever set was last published for it — the mechanism config load
// errors and indexer faults use to surface problems without halting
// anything (spec.md §7's "persistent diagnostics keyed to file/line/column").
func (c *Client) SendDiagnostics(file string, diagnostics []Diagnostic) {
	wire := make([]wireDiagnostic, len(diagnostics))
	for i, d := range diagnostics {
		pos := position{Line: max0(d.Line - 1), Character: max0(d.Column - 1)}
		wire[i] = wireDiagnostic{Message: d.Message, Severity: 1, Range: diagnosticRange{Start: pos, End: pos}}
	}
	params, _ := json.Marshal(publishDiagnosticsParams{URI: "file://" + file, Diagnostics: wire})
	c.Notify("textDocument/publishDiagnostics", jsonrpc.RawJSON(params))
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// CreateWorkDoneProgress creates a work-done progress bar under token, or
// returns a nil bar if one is already visible for this connection — see
// progress.Create.
func (c *Client) CreateWorkDoneProgress(token string) (*progress.Bar, error) {
	return progress.Create(c.sender, c.gate, token)
}

// Gate returns the visibility gate this client's progress bars share, so a
// caller driving its own progress.Create calls (the background indexer,
// which needs the raw Sender to pass to index.StartExplorer) still
// respects the one-bar-per-connection rule.
func (c *Client) Gate() *progress.Gate { return c.gate }
