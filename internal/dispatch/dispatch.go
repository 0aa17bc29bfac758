// Package dispatch implements the bidirectional JSON-RPC frontend: it
// classifies inbound frames, routes requests/notifications to registered
// handlers, correlates outgoing requests with their responses, and wires
// up cooperative cancellation.
//
// The design mirrors a classic LSP frontend (initialize gate, one-reply
// guard, $/cancelRequest plumbing) generalized so that either side of the
// connection may originate a request.
package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dj1mm/vhdlls/internal/cancel"
	"github.com/dj1mm/vhdlls/internal/jsonrpc"
	"github.com/dj1mm/vhdlls/internal/logger"
	"github.com/dj1mm/vhdlls/internal/transport"
)

// RequestHandler answers an incoming request. Returning an error with a
// *jsonrpc.Fault sends that fault verbatim; any other error is wrapped as
// an internal error.
type RequestHandler func(token cancel.Token, params jsonrpc.RawJSON) (jsonrpc.RawJSON, error)

// NotificationHandler reacts to an incoming one-way call.
type NotificationHandler func(params jsonrpc.RawJSON)

type pendingOutgoing struct {
	response chan jsonrpc.Response
}

type pendingIncoming struct {
	cancelSrc cancel.Source
	epoch     int64
}

// Dispatcher owns both in-flight tables and the handler registries for one
// connection. It is safe for concurrent use.
type Dispatcher struct {
	t   transport.Framer
	log logger.Logger

	nextID int64

	mu                sync.Mutex
	outgoingInFlight  map[jsonrpc.ID]*pendingOutgoing
	incomingInFlight  map[jsonrpc.ID]*pendingIncoming
	nextIncomingEpoch int64

	handlersMu    sync.RWMutex
	requests      map[string]RequestHandler
	notifications map[string]NotificationHandler

	started bool // set true once "initialize" has been handled
	running bool

	requestTimeout time.Duration
}

// New creates a dispatcher over anything that can frame messages in both
// directions — a live transport.Transport, or a replay.Harness.
func New(t transport.Framer, log logger.Logger) *Dispatcher {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Dispatcher{
		t:                t,
		log:              log,
		outgoingInFlight: make(map[jsonrpc.ID]*pendingOutgoing),
		incomingInFlight: make(map[jsonrpc.ID]*pendingIncoming),
		requests:         make(map[string]RequestHandler),
		notifications:    make(map[string]NotificationHandler),
		requestTimeout:   30 * time.Second,
	}
}

// BindRequest registers a handler for an incoming request method.
func (d *Dispatcher) BindRequest(method string, h RequestHandler) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.requests[method] = h
}

// BindNotification registers a handler for an incoming notification method.
func (d *Dispatcher) BindNotification(method string, h NotificationHandler) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.notifications[method] = h
}

// MarkStarted flips the initialization gate open; call this once the
// "initialize" request has been handled. Before this, every incoming
// message except "initialize" and "exit" (including "$/cancelRequest") is rejected
// with server_not_initialized (requests) or silently diagnosed and
// dropped (notifications), matching the reference frontend's ordering.
func (d *Dispatcher) MarkStarted() {
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
}

// GetIDForNextOutgoingRequest allocates the next numeric id this side will
// use for a request it originates.
func (d *Dispatcher) GetIDForNextOutgoingRequest() jsonrpc.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return jsonrpc.IntID(d.nextID)
}

// SendRequest writes an outgoing request and blocks until its response
// arrives or the timeout elapses. Stopping the dispatcher or closing the
// transport does not unblock it; only the timeout does.
func (d *Dispatcher) SendRequest(method string, params jsonrpc.RawJSON) (jsonrpc.RawJSON, error) {
	id := d.GetIDForNextOutgoingRequest()
	ch := make(chan jsonrpc.Response, 1)

	d.mu.Lock()
	d.outgoingInFlight[id] = &pendingOutgoing{response: ch}
	d.mu.Unlock()

	frame, err := jsonrpc.EncodeRequest(jsonrpc.Request{ID: id, Method: method, Params: params})
	if err != nil {
		d.forgetOutgoing(id)
		return nil, err
	}
	if err := d.t.WriteFrame(frame); err != nil {
		d.forgetOutgoing(id)
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-time.After(d.requestTimeout):
		d.forgetOutgoing(id)
		return nil, fmt.Errorf("dispatch: request %q timed out waiting for a response", method)
	}
}

// SendNotification writes a one-way outgoing call.
func (d *Dispatcher) SendNotification(method string, params jsonrpc.RawJSON) error {
	frame, err := jsonrpc.EncodeNotification(jsonrpc.Notification{Method: method, Params: params})
	if err != nil {
		return err
	}
	return d.t.WriteFrame(frame)
}

func (d *Dispatcher) forgetOutgoing(id jsonrpc.ID) {
	d.mu.Lock()
	delete(d.outgoingInFlight, id)
	d.mu.Unlock()
}

// ForeverLoop reads frames until the transport closes or Stop is called,
// dispatching each to the right handler. It returns nil once Stop has
// been called (the "exit" notification), or the read error otherwise —
// io.EOF when the peer closes the stream.
func (d *Dispatcher) ForeverLoop() error {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	for {
		d.mu.Lock()
		running := d.running
		d.mu.Unlock()
		if !running {
			return nil
		}

		frame, err := d.t.ReadFrame()
		if err != nil {
			return err
		}
		d.handle(frame)
	}
}

// Stop ends a running ForeverLoop after its current frame is processed.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *Dispatcher) handle(frame []byte) {
	kind, req, note, resp, err := jsonrpc.Classify(frame)
	if err != nil {
		if _, invalidShape := err.(*jsonrpc.Fault); invalidShape {
			// Valid JSON that is not a well-formed request, notification,
			// or response: diagnose and drop.
			d.diagnose("received an invalid message: %v", err)
			return
		}
		d.diagnose("received an unparseable message: %v", err)
		d.replyError(jsonrpc.NullID, jsonrpc.CodeParseError, err.Error())
		return
	}

	switch kind {
	case jsonrpc.KindRequest:
		// Handled on its own goroutine so a slow request does not block
		// the read loop from seeing a subsequent $/cancelRequest for it,
		// or from reading further requests in the meantime.
		go d.handleRequest(req)
	case jsonrpc.KindNotification:
		d.handleNotification(note)
	case jsonrpc.KindResponse:
		d.handleResponse(resp)
	default:
		d.diagnose("received a message that is neither a request, a notification, nor a response")
	}
}

func (d *Dispatcher) handleRequest(req jsonrpc.Request) {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	if !started && req.Method != "initialize" {
		d.replyError(jsonrpc.SomeID(req.ID), jsonrpc.CodeServerNotInitialized, "server has not been initialized")
		return
	}

	d.handlersMu.RLock()
	h, ok := d.requests[req.Method]
	d.handlersMu.RUnlock()
	if !ok {
		d.replyError(jsonrpc.SomeID(req.ID), jsonrpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
		return
	}

	src, token := cancel.New()
	d.mu.Lock()
	d.nextIncomingEpoch++
	epoch := d.nextIncomingEpoch
	d.incomingInFlight[req.ID] = &pendingIncoming{cancelSrc: src, epoch: epoch}
	d.mu.Unlock()

	result, err := h(token, req.Params)

	// Only erase the slot if it still holds the entry this call created —
	// a same-id request that arrived and completed while this handler ran
	// (ids are only reused once the peer has seen this one resolve, but a
	// buggy or adversarial peer can still recycle one early) will have
	// overwritten it with a newer epoch, which must survive this delete.
	d.mu.Lock()
	if entry, ok := d.incomingInFlight[req.ID]; ok && entry.epoch == epoch {
		delete(d.incomingInFlight, req.ID)
	}
	d.mu.Unlock()

	if err != nil {
		if fault, ok := err.(*jsonrpc.Fault); ok {
			frame, encErr := jsonrpc.EncodeResponse(jsonrpc.Response{ID: jsonrpc.SomeID(req.ID), Error: fault})
			if encErr != nil {
				d.diagnose("failed to encode error response: %v", encErr)
				return
			}
			if writeErr := d.t.WriteFrame(frame); writeErr != nil {
				d.diagnose("failed to write error response: %v", writeErr)
			}
		} else {
			d.replyError(jsonrpc.SomeID(req.ID), jsonrpc.CodeInternalError, err.Error())
		}
		return
	}
	d.reply(jsonrpc.SomeID(req.ID), result)
}

func (d *Dispatcher) handleNotification(note jsonrpc.Notification) {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	if !started && note.Method != "exit" {
		d.diagnose("dropping notification %q received before initialize", note.Method)
		return
	}

	if note.Method == "$/cancelRequest" {
		d.handleCancelRequest(note.Params)
		return
	}

	d.handlersMu.RLock()
	h, ok := d.notifications[note.Method]
	d.handlersMu.RUnlock()
	if !ok {
		d.diagnose("no handler bound for notification %q", note.Method)
		return
	}
	h(note.Params)
}

func (d *Dispatcher) handleCancelRequest(params jsonrpc.RawJSON) {
	var body struct {
		ID jsonrpc.ID `json:"id"`
	}
	if len(params) == 0 {
		return
	}
	if err := json.Unmarshal(params, &body); err != nil {
		d.diagnose("malformed $/cancelRequest params: %v", err)
		return
	}

	d.mu.Lock()
	entry, ok := d.incomingInFlight[body.ID]
	d.mu.Unlock()
	if ok {
		entry.cancelSrc.Cancel()
	}
}

func (d *Dispatcher) handleResponse(resp jsonrpc.Response) {
	if !resp.ID.Valid {
		d.diagnose("received a response with a null id and nothing to correlate it to")
		return
	}

	d.mu.Lock()
	entry, ok := d.outgoingInFlight[resp.ID.ID]
	if ok {
		delete(d.outgoingInFlight, resp.ID.ID)
	}
	d.mu.Unlock()

	if !ok {
		d.diagnose("received a response for unknown request id %s", resp.ID.ID.String())
		return
	}
	entry.response <- resp
}

// reply sends a single successful response. Per protocol, a request may be
// answered exactly once; callers are responsible for that invariant at the
// handler level (handleRequest only calls this once per request).
func (d *Dispatcher) reply(id jsonrpc.OptionalID, result jsonrpc.RawJSON) {
	frame, err := jsonrpc.EncodeResponse(jsonrpc.Response{ID: id, Result: result})
	if err != nil {
		d.diagnose("failed to encode response: %v", err)
		return
	}
	if err := d.t.WriteFrame(frame); err != nil {
		d.diagnose("failed to write response: %v", err)
	}
}

func (d *Dispatcher) replyError(id jsonrpc.OptionalID, code int, message string) {
	frame, err := jsonrpc.EncodeResponse(jsonrpc.Response{ID: id, Error: &jsonrpc.Fault{Code: code, Message: message}})
	if err != nil {
		d.diagnose("failed to encode error response: %v", err)
		return
	}
	if err := d.t.WriteFrame(frame); err != nil {
		d.diagnose("failed to write error response: %v", err)
	}
}

// diagnose logs a frontend-level problem that does not map to an RPC fault.
func (d *Dispatcher) diagnose(format string, args ...interface{}) {
	d.log.Error(format, args...)
}
