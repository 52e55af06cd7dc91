package transport

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
)

func TestBuildRequestMapping(t *testing.T) {
	frame := &Frame{
		Method: "POST",
		Path:   "/bb-mcp?debug=1",
		Headers: map[string][]string{
			"mcp-session-id": {"sess-1"},
			"content-type":   {"application/json"},
		},
		Body: []byte(`{"jsonrpc":"2.0","method":"ping"}`),
	}

	req, err := BuildRequest(frame)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if req.Method != "POST" {
		t.Errorf("Method = %q", req.Method)
	}
	if req.URL.Path != "/bb-mcp" {
		t.Errorf("URL.Path = %q", req.URL.Path)
	}
	if req.URL.RawQuery != "debug=1" {
		t.Errorf("URL.RawQuery = %q", req.URL.RawQuery)
	}
	if got := req.Header.Get(HeaderSessionID); got != "sess-1" {
		t.Errorf("session header = %q", got)
	}
	body, _ := io.ReadAll(req.Body)
	if string(body) != `{"jsonrpc":"2.0","method":"ping"}` {
		t.Errorf("body = %q", body)
	}
}

func TestBuildRequestNoBodyMethods(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		frame := &Frame{Method: method, Path: "/bb-mcp", Body: []byte("ignored")}
		req, err := BuildRequest(frame)
		if err != nil {
			t.Fatalf("BuildRequest(%s) error = %v", method, err)
		}
		if req.Body != nil {
			t.Errorf("BuildRequest(%s) attached a body", method)
		}
	}
}

func TestBuildRequestDefaultHeaders(t *testing.T) {
	frame := &Frame{Method: "POST", Path: "/bb-mcp", Body: []byte("{}")}
	req, err := BuildRequest(frame)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if got := req.Header.Get("Accept"); got != "application/json, text/event-stream" {
		t.Errorf("default Accept = %q", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("default Content-Type = %q", got)
	}

	// Explicit values must survive untouched
	frame.Headers = map[string][]string{"accept": {"text/html"}}
	req, err = BuildRequest(frame)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if got := req.Header.Get("Accept"); got != "text/html" {
		t.Errorf("explicit Accept = %q", got)
	}
}

func TestBuildRequestBadTarget(t *testing.T) {
	frame := &Frame{Method: "GET", Path: "not a uri"}
	if _, err := BuildRequest(frame); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("BuildRequest() error = %v, want ErrMalformedFrame", err)
	}
}

func TestKeepAlive(t *testing.T) {
	tests := []struct {
		connection string
		want       bool
	}{
		{"keep-alive", true},
		{"Keep-Alive", true},
		{"close", false},
		{"", false},
		{"upgrade", false},
	}
	for _, tt := range tests {
		f := &Frame{Headers: map[string][]string{}}
		if tt.connection != "" {
			f.Headers["connection"] = []string{tt.connection}
		}
		if got := KeepAlive(f); got != tt.want {
			t.Errorf("KeepAlive(connection=%q) = %v, want %v", tt.connection, got, tt.want)
		}
	}
}

func TestResponseBufferStatusFirstWriteWins(t *testing.T) {
	rb := NewResponseBuffer()
	rb.WriteHeader(http.StatusNotFound)
	rb.WriteHeader(http.StatusOK)
	if rb.Status() != http.StatusNotFound {
		t.Errorf("Status() = %d, want 404", rb.Status())
	}
}

func TestResponseBufferImplicitOK(t *testing.T) {
	rb := NewResponseBuffer()
	if _, err := rb.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if rb.Status() != http.StatusOK {
		t.Errorf("Status() = %d, want 200", rb.Status())
	}
}

func TestResponseBufferFinalizeOnce(t *testing.T) {
	rb := NewResponseBuffer()
	_, _ = rb.Write([]byte("body"))
	first := rb.Finalize()

	// Post-finalize mutations must have no effect
	if _, err := rb.Write([]byte("more")); !errors.Is(err, ErrResponseFinalized) {
		t.Errorf("Write after Finalize error = %v, want ErrResponseFinalized", err)
	}
	rb.WriteHeader(http.StatusTeapot)
	second := rb.Finalize()
	if !bytes.Equal(first, second) {
		t.Error("Finalize() output changed across calls")
	}
}

func TestFinalizeContentLengthByteAccurate(t *testing.T) {
	// Multi-byte characters: length must count bytes, not runes
	body := "héllo wörld ☃"
	rb := NewResponseBuffer()
	rb.Header().Set("Content-Type", "text/plain")
	// A lying dispatcher-set length must be overridden
	rb.Header().Set("Content-Length", "3")
	_, _ = rb.Write([]byte(body))
	wire := string(rb.Finalize())

	headerEnd := strings.Index(wire, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatal("no header terminator in wire output")
	}
	gotBody := wire[headerEnd+4:]
	if gotBody != body {
		t.Fatalf("wire body = %q, want %q", gotBody, body)
	}

	var declared int = -1
	for _, line := range strings.Split(wire[:headerEnd], "\r\n") {
		if strings.HasPrefix(line, "Content-Length:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:")))
			if err != nil {
				t.Fatalf("bad content-length line %q", line)
			}
			declared = n
		}
	}
	if declared != len(body) {
		t.Errorf("declared Content-Length = %d, want %d (len of body bytes)", declared, len(body))
	}
}

func TestFinalizeWireShape(t *testing.T) {
	rb := NewResponseBuffer()
	rb.Header().Set("Content-Type", "application/json")
	rb.WriteHeader(http.StatusCreated)
	_, _ = rb.Write([]byte(`{}`))
	wire := string(rb.Finalize())

	if !strings.HasPrefix(wire, "HTTP/1.1 201 Created\r\n") {
		t.Errorf("status line wrong: %q", wire[:strings.Index(wire, "\r\n")])
	}
	if !strings.Contains(wire, "Content-Type: application/json\r\n") {
		t.Error("missing content-type header")
	}
	if !strings.HasSuffix(wire, "\r\n\r\n{}") {
		t.Errorf("body not separated by blank line: %q", wire)
	}
}

func TestFinalizeRoundTripsThroughDecoder(t *testing.T) {
	// A finalized response followed by a pipelined request must leave the
	// next frame intact when the client parses by content-length
	rb := NewResponseBuffer()
	_, _ = rb.Write([]byte("stuff"))
	wire := rb.Finalize()

	headerEnd := bytes.Index(wire, []byte("\r\n\r\n"))
	declared := 0
	for _, line := range strings.Split(string(wire[:headerEnd]), "\r\n") {
		if strings.HasPrefix(line, "Content-Length:") {
			declared, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:")))
		}
	}
	if got := len(wire) - headerEnd - 4; got != declared {
		t.Errorf("wire carries %d body bytes but declares %d", got, declared)
	}
}
