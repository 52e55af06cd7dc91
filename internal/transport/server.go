package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/VoxelHaus/voxbridge/internal/logger"
	"github.com/VoxelHaus/voxbridge/internal/metrics"
	"github.com/VoxelHaus/voxbridge/internal/session"
	"github.com/VoxelHaus/voxbridge/internal/validation"
)

// Dispatcher executes a decoded request against the registered method
// catalog and produces a response. The transport treats it as opaque: it
// owns JSON-RPC framing and method routing, not reimplemented here.
type Dispatcher interface {
	http.Handler
}

// Config holds the listener settings for a Server
type Config struct {
	Port              int
	MountPath         string
	RequestsPerSecond float64
	Burst             int
}

// dispatchErrorBody is the fixed error envelope for dispatcher failures
const dispatchErrorBody = `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal server error"}}`

// readBufferSize is the per-read chunk size for connection read loops
const readBufferSize = 4096

// limiterFlushInterval is how often per-client rate limiter state is dropped
const limiterFlushInterval = time.Hour

// Server owns the listening socket. Each accepted connection runs a read
// loop feeding the frame decoder; complete frames are adapted to standard
// requests, dispatched, and answered in arrival order. Frames from
// different connections proceed independently.
type Server struct {
	mountPath  string
	addr       string
	dispatcher Dispatcher
	registry   *session.Registry
	limiter    *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer creates a connection server bound to the given registry and
// dispatcher. Call Listen then Serve.
func NewServer(cfg Config, dispatcher Dispatcher, registry *session.Registry) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		mountPath:  cfg.MountPath,
		addr:       fmt.Sprintf(":%d", cfg.Port),
		dispatcher: dispatcher,
		registry:   registry,
		limiter:    NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Listen binds the TCP socket. Failure here is fatal for startup: if the
// host denies the network capability the plugin must surface it rather than
// run half-initialized.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	logger.Info("voxbridge listening on %s (mount path %s)", ln.Addr(), s.mountPath)

	// Per-client limiter state grows with every distinct remote address;
	// flush it periodically so a churn of short-lived clients stays bounded.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(limiterFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.limiter.Cleanup()
			}
		}
	}()
	return nil
}

// Addr returns the bound listener address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until Close. It returns nil when the listener
// was shut down deliberately.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("Serve called before Listen")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close stops the listener, drops every open connection, and tears down all
// tracked sessions. This is a forced shutdown, not a graceful drain:
// in-flight dispatches are abandoned, not awaited.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.cancel()
	if ln != nil {
		_ = ln.Close()
	}
	s.wg.Wait()
	s.registry.Close()
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleConn runs one connection's read loop: read a chunk, append to the
// pending buffer, then drain every complete frame before reading again. A
// single read may carry several pipelined frames; each is fully dispatched
// and answered before the next is extracted, so responses never reorder
// relative to requests on the same connection.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	remote := remoteIP(conn)
	var pending []byte
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
		}

		for len(pending) > 0 {
			frame, rest, derr := TryExtract(pending)
			if derr != nil {
				// Byte offsets are untrustworthy after a corrupt
				// frame; respond if possible and drop the connection.
				metrics.DecodeErrors.Inc()
				logger.Info("Closing %s after decode error: %v", remote, derr)
				_, _ = conn.Write(fixedResponse(http.StatusBadRequest, "text/plain", "bad request\n"))
				return
			}
			if frame == nil {
				break
			}
			pending = rest

			if !s.handleFrame(conn, remote, frame) {
				return
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || isConnReset(err) {
				// Expected client-disconnect noise, not an error
				logger.Info("Connection from %s closed", remote)
			} else {
				logger.Error("Read error from %s: %v", remote, err)
			}
			return
		}
	}
}

// handleFrame dispatches one frame and writes its response. The return
// value reports whether the connection should stay open.
func (s *Server) handleFrame(conn net.Conn, remote string, frame *Frame) bool {
	start := time.Now()

	if !s.limiter.Allow(remote) {
		_, err := conn.Write(fixedResponse(http.StatusTooManyRequests, "text/plain", "rate limit exceeded\n"))
		return err == nil && KeepAlive(frame)
	}

	// Endpoint gating: anything off the mount path gets a fixed 404 and
	// never reaches the dispatcher.
	if !s.mounted(frame.Path) {
		_, err := conn.Write(fixedResponse(http.StatusNotFound, "text/plain", "not found\n"))
		metrics.RecordRequest(frame.Method, s.mountPath, frame.Path, strconv.Itoa(http.StatusNotFound), time.Since(start).Seconds())
		return err == nil && KeepAlive(frame)
	}

	req, err := BuildRequest(frame)
	if err != nil {
		metrics.DecodeErrors.Inc()
		_, _ = conn.Write(fixedResponse(http.StatusBadRequest, "text/plain", "bad request\n"))
		return false
	}
	req = req.WithContext(s.ctx)
	req.RemoteAddr = conn.RemoteAddr().String()

	inboundSID := frame.Header("mcp-session-id")
	// Session ids get echoed into response headers; reject control
	// characters before they reach the dispatcher.
	if err := validation.ValidateHeaderValue(inboundSID); err != nil {
		_, werr := conn.Write(fixedResponse(http.StatusBadRequest, "text/plain", "bad session id\n"))
		return werr == nil && KeepAlive(frame)
	}
	rb := s.dispatch(req)

	s.trackSession(frame, rb, inboundSID)

	if _, err := conn.Write(rb.Finalize()); err != nil {
		logger.Error("Failed to write response to %s: %v", remote, err)
		return false
	}

	metrics.RecordRequest(frame.Method, s.mountPath, frame.Path, strconv.Itoa(rb.Status()), time.Since(start).Seconds())
	return KeepAlive(frame)
}

// dispatch invokes the dispatcher, converting a panic into a well-formed
// error envelope. One bad request must not kill a keep-alive connection and
// must never crash the process.
func (s *Server) dispatch(req *http.Request) (rb *ResponseBuffer) {
	rb = NewResponseBuffer()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Dispatcher panicked handling %s %s: %v", req.Method, req.URL.Path, r)
			rb = NewResponseBuffer()
			rb.Header().Set("Content-Type", "application/json")
			rb.WriteHeader(http.StatusInternalServerError)
			_, _ = rb.Write([]byte(dispatchErrorBody))
		}
	}()
	s.dispatcher.ServeHTTP(rb, req)
	return rb
}

// trackSession reconciles registry state with the exchange that just
// happened. A response that mints a new session identifier is a completed
// handshake; an inbound identifier on any other success is activity; a
// successful DELETE is an explicit close. A dispatcher that answers a
// handshake without minting an identifier gets one minted on its behalf so
// the session is still trackable.
func (s *Server) trackSession(frame *Frame, rb *ResponseBuffer, inboundSID string) {
	respSID := rb.Header().Get(HeaderSessionID)
	ok := rb.Status() < http.StatusMultipleChoices

	if ok && respSID == "" && inboundSID == "" && isHandshake(frame) {
		respSID = session.MintID()
		rb.Header().Set(HeaderSessionID, respSID)
	}

	switch {
	case ok && respSID != "" && respSID != inboundSID:
		s.registry.Add(respSID, clientInfoFromBody(frame.Body))
	case ok && inboundSID != "" && frame.Method == http.MethodDelete:
		s.registry.Remove(inboundSID)
	case inboundSID != "":
		s.registry.UpdateActivity(inboundSID)
	}
}

// isHandshake reports whether the frame carries an initialize request
func isHandshake(frame *Frame) bool {
	var envelope struct {
		Method string `json:"method"`
	}
	if frame.Method != http.MethodPost {
		return false
	}
	if err := json.Unmarshal(frame.Body, &envelope); err != nil {
		return false
	}
	return envelope.Method == "initialize"
}

// mounted reports whether the request path targets the configured mount path
func (s *Server) mounted(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path == s.mountPath || strings.HasPrefix(path, s.mountPath+"/")
}

// clientInfoFromBody sniffs handshake metadata out of an initialize request
// body. Display-only; parse failures yield empty info.
func clientInfoFromBody(body []byte) session.ClientInfo {
	var envelope struct {
		Method string `json:"method"`
		Params struct {
			ClientInfo struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"clientInfo"`
		} `json:"params"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return session.ClientInfo{}
	}
	if envelope.Method != "initialize" {
		return session.ClientInfo{}
	}
	return session.ClientInfo{
		Name:    envelope.Params.ClientInfo.Name,
		Version: envelope.Params.ClientInfo.Version,
	}
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// isConnReset matches reset-by-peer conditions so routine client
// disconnects are not logged as errors
func isConnReset(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "connection reset by peer")
}
