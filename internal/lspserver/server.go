// Package lspserver binds the default request/notification handlers every
// session needs regardless of which domain handlers a caller layers on top:
// initialize, initialized, shutdown, exit.
package lspserver

import (
	"encoding/json"
	"strings"

	"github.com/dj1mm/vhdlls/internal/cancel"
	"github.com/dj1mm/vhdlls/internal/dispatch"
	"github.com/dj1mm/vhdlls/internal/jsonrpc"
	"github.com/dj1mm/vhdlls/internal/logger"
)

// capabilitiesSkeleton is the fixed response to initialize: incremental
// sync (change: 2) with open/close and save notifications, nothing else
// advertised (hover
// and definition providers are out of scope).
const capabilitiesSkeleton = `{"capabilities":{"textDocumentSync":{"openClose":true,"change":2,"save":true}}}`

// Server owns the lifecycle handlers for one connection. Create it with
// New, optionally register domain handlers on its Dispatcher, then call Run.
type Server struct {
	d   *dispatch.Dispatcher
	log logger.Logger

	onInitialize func(workspaceFolder string)

	shutdown bool
}

// New binds the lifecycle handlers onto d. onInitialize, if non-nil, is
// invoked with the workspace root (the initialize request's rootUri with
// its file:// scheme stripped) once the handshake arrives — the hook a
// caller uses to kick off config loading and background indexing.
func New(d *dispatch.Dispatcher, log logger.Logger, onInitialize func(workspaceFolder string)) *Server {
	if log == nil {
		log = &logger.NullLogger{}
	}
	s := &Server{d: d, log: log, onInitialize: onInitialize}

	d.BindRequest("initialize", s.onInitializeRequest)
	d.BindNotification("initialized", s.onInitialized)
	d.BindRequest("shutdown", s.onShutdown)
	d.BindNotification("exit", s.onExit)

	return s
}

func (s *Server) onInitializeRequest(_ cancel.Token, params jsonrpc.RawJSON) (jsonrpc.RawJSON, error) {
	var body struct {
		RootURI string `json:"rootUri"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &body); err != nil {
			return nil, &jsonrpc.Fault{Code: jsonrpc.CodeInvalidParams, Message: "initialize: malformed params"}
		}
	}

	s.d.MarkStarted()

	if s.onInitialize != nil {
		s.onInitialize(strings.TrimPrefix(body.RootURI, "file://"))
	}

	return jsonrpc.RawJSON(capabilitiesSkeleton), nil
}

func (s *Server) onInitialized(jsonrpc.RawJSON) {}

func (s *Server) onShutdown(_ cancel.Token, _ jsonrpc.RawJSON) (jsonrpc.RawJSON, error) {
	s.shutdown = true
	return jsonrpc.RawJSON("null"), nil
}

func (s *Server) onExit(jsonrpc.RawJSON) {
	s.d.Stop()
}

// Run registers any additional handlers setup wants to bind (nil to skip),
// then drives the dispatcher's read loop until the peer closes the stream
// or exit is received. It reports whether the session ended with a clean
// initialize -> shutdown -> exit handshake, which the caller uses to pick
// the process exit code.
func (s *Server) Run(setup func(*dispatch.Dispatcher)) (clean bool, err error) {
	if setup != nil {
		setup(s.d)
	}
	err = s.d.ForeverLoop()
	// ForeverLoop returns nil only after exit has stopped it.
	return s.shutdown && err == nil, err
}
