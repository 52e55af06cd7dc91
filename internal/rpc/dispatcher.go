package rpc

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/VoxelHaus/voxbridge/internal/editor"
	"github.com/VoxelHaus/voxbridge/internal/transport"
	"github.com/google/uuid"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// serverVersion is reported to clients during the MCP handshake
const serverVersion = "0.1.0"

// Dispatcher wraps the MCP SDK's streamable HTTP handler behind the standard
// request/response pair the transport speaks. It owns JSON-RPC framing,
// method routing, and per-session protocol state.
type Dispatcher struct {
	server   *mcp_sdk.Server
	handler  http.Handler
	registry *Registry
}

// NewDispatcher builds the MCP server with the editor tool catalog registered
func NewDispatcher(ed editor.Editor) *Dispatcher {
	registry := NewRegistry()
	RegisterEditorTools(registry, ed)

	server := mcp_sdk.NewServer(&mcp_sdk.Implementation{
		Name:    "voxbridge",
		Version: serverVersion,
	}, nil)
	registry.RegisterWithMCPServer(server)

	handler := mcp_sdk.NewStreamableHTTPHandler(func(req *http.Request) *mcp_sdk.Server {
		return server
	}, nil)

	return &Dispatcher{
		server:   server,
		handler:  handler,
		registry: registry,
	}
}

// Registry returns the tool registry backing this dispatcher
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// ServeHTTP dispatches one standard request
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.handler.ServeHTTP(w, r)
}

// CloseSession tears down the dispatcher's per-session protocol state for
// an evicted session. It is expressed as the protocol's own session
// termination exchange so the dispatcher stays opaque to the caller.
func (d *Dispatcher) CloseSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, "http://voxbridge.local/", nil)
	if err != nil {
		return err
	}
	req.Header.Set(transport.HeaderSessionID, sessionID)

	rb := transport.NewResponseBuffer()
	d.handler.ServeHTTP(rb, req)

	// Already-gone sessions are fine; the goal is absence
	if rb.Status() >= http.StatusInternalServerError {
		return fmt.Errorf("session close for %s failed with status %d", sessionID, rb.Status())
	}
	return nil
}

// PingSession probes a session's protocol state with an MCP ping request.
// It reports true when the exchange round-tripped successfully, making it a
// ready-made liveness probe callback.
func (d *Dispatcher) PingSession(ctx context.Context, sessionID string) (bool, error) {
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":"probe-%s","method":"ping"}`, uuid.New().String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://voxbridge.local/", strings.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set(transport.HeaderSessionID, sessionID)

	rb := transport.NewResponseBuffer()
	d.handler.ServeHTTP(rb, req)

	return rb.Status() < http.StatusMultipleChoices, nil
}
