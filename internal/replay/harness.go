package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

const waitForResponseTimeout = 10 * time.Second

// Counters tallies what a replay run observed, surfaced at the end the
// way the reference implementation prints a status summary.
type Counters struct {
	Matches    int
	OOOMatches int
	Ignores    int
	Timeouts   int
}

// Harness drives a Dispatcher against a pre-recorded journal instead of a
// live peer: ReadFrame hands out the journal's recorded requests in
// order, and WriteFrame checks each response the dispatcher produces
// against what the current transaction expects, tolerating responses that
// arrive out of order relative to requests from a later transaction.
type Harness struct {
	logger *log.Logger

	mu           sync.Mutex
	transactions []Transaction
	txIndex      int
	reqIndex     int
	unhandled    []json.RawMessage // responses seen but not yet matched to an expectation

	arrived chan json.RawMessage

	counters Counters
	done     bool
}

// NewHarness parses journal from r, expanding ${file:...} macros against
// base (the journal file's own directory, as the original resolves them
// relative to the journal's location).
func NewHarness(r io.Reader, base string, logger *log.Logger) (*Harness, error) {
	txs, err := ReadJournal(r)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		for j, req := range txs[i].Requests {
			expanded, err := ExpandMacros(req, base)
			if err != nil {
				return nil, fmt.Errorf("replay: transaction %d request %d: %w", i, j, err)
			}
			txs[i].Requests[j] = expanded
		}
		for j, exp := range txs[i].Expected {
			expanded, err := ExpandMacros(exp, base)
			if err != nil {
				return nil, fmt.Errorf("replay: transaction %d expectation %d: %w", i, j, err)
			}
			txs[i].Expected[j] = expanded
		}
	}
	return &Harness{
		transactions: txs,
		logger:       logger,
		arrived:      make(chan json.RawMessage, 64),
	}, nil
}

// Counters returns a snapshot of the match/mismatch tallies so far.
func (h *Harness) Counters() Counters {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counters
}

// ReadFrame implements transport.Framer. It hands out the next recorded
// request; once a transaction's requests are exhausted, it first verifies
// every response that transaction expects (blocking, with a timeout per
// expectation) before moving on to the next transaction. Returns io.EOF
// once every transaction has been fed and verified.
func (h *Harness) ReadFrame() ([]byte, error) {
	for {
		h.mu.Lock()
		if h.txIndex >= len(h.transactions) {
			h.mu.Unlock()
			return nil, io.EOF
		}
		tx := h.transactions[h.txIndex]
		if h.reqIndex < len(tx.Requests) {
			req := tx.Requests[h.reqIndex]
			h.reqIndex++
			h.mu.Unlock()
			return []byte(req), nil
		}
		h.mu.Unlock()

		h.verifyTransaction(tx)

		h.mu.Lock()
		h.txIndex++
		h.reqIndex = 0
		h.mu.Unlock()
	}
}

// WriteFrame implements transport.Framer: every outgoing response/
// notification the dispatcher produces lands here to be matched.
func (h *Harness) WriteFrame(body []byte) error {
	var v json.RawMessage = append(json.RawMessage(nil), body...)
	h.arrived <- v
	return nil
}

func (h *Harness) verifyTransaction(tx Transaction) {
	for _, expected := range tx.Expected {
		want := json.RawMessage(expected)

		h.mu.Lock()
		if idx := h.findUnhandledLocked(want); idx >= 0 {
			h.unhandled = append(h.unhandled[:idx], h.unhandled[idx+1:]...)
			h.counters.OOOMatches++
			h.mu.Unlock()
			h.logf("MATCH OOO: %s", want)
			continue
		}
		h.mu.Unlock()

		h.waitAndMatch(want)
	}
}

func (h *Harness) waitAndMatch(want json.RawMessage) {
	deadline := time.NewTimer(waitForResponseTimeout)
	defer deadline.Stop()

	for {
		select {
		case got := <-h.arrived:
			if rawTextEqual(got, want) {
				h.mu.Lock()
				h.counters.Matches++
				h.mu.Unlock()
				h.logf("MATCH: %s", want)
				return
			}
			h.mu.Lock()
			h.unhandled = append(h.unhandled, got)
			h.mu.Unlock()
			h.logf("IGNORED: %s", got)
			h.mu.Lock()
			h.counters.Ignores++
			h.mu.Unlock()
			// keep waiting for a real match until the timeout fires
		case <-deadline.C:
			h.mu.Lock()
			h.counters.Timeouts++
			h.mu.Unlock()
			h.logf("TIMEOUT waiting for: %s", want)
			return
		}
	}
}

// findUnhandledLocked must be called with h.mu held.
func (h *Harness) findUnhandledLocked(want json.RawMessage) int {
	for i, got := range h.unhandled {
		if rawTextEqual(got, want) {
			return i
		}
	}
	return -1
}

func (h *Harness) logf(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

// rawTextEqual compares two JSON texts by raw string equality, per
// spec.md §4.I. ExpandMacros rewrites only the literals that contain a
// macro and leaves everything else — key order included — byte-for-byte
// as recorded, so a journal expectation line matches what the dispatcher
// writes only if both texts agree exactly.
func rawTextEqual(a, b json.RawMessage) bool {
	return string(a) == string(b)
}
