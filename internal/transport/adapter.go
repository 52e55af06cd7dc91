package transport

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// HeaderSessionID correlates frames with logical client sessions
const HeaderSessionID = "Mcp-Session-Id"

// placeholderHost names the synthesized URL authority. The raw socket is not
// addressable by hostname, so any stable placeholder works as long as path
// and query survive exactly.
const placeholderHost = "voxbridge.local"

// ErrResponseFinalized is returned on writes after Finalize
var ErrResponseFinalized = errors.New("response already finalized")

// BuildRequest converts a decoded frame into the standard request the
// dispatcher expects. Body bytes are attached for every method except the
// two canonical no-body methods. Accept and Content-Type are defaulted when
// absent so the dispatcher's content negotiation does not trip on lenient
// clients.
func BuildRequest(f *Frame) (*http.Request, error) {
	u, err := url.ParseRequestURI(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: bad request target %q", ErrMalformedFrame, f.Path)
	}
	u.Scheme = "http"
	u.Host = placeholderHost

	var body *bytes.Reader
	if f.Method != http.MethodGet && f.Method != http.MethodHead && len(f.Body) > 0 {
		body = bytes.NewReader(f.Body)
	}

	var req *http.Request
	if body != nil {
		req, err = http.NewRequest(f.Method, u.String(), body)
	} else {
		req, err = http.NewRequest(f.Method, u.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	for key, values := range f.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/event-stream")
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// KeepAlive reports whether the client asked for the socket to stay open.
// Anything other than an explicit keep-alive closes the connection after the
// response is written; session continuity comes from the session identifier,
// not from socket reuse.
func KeepAlive(f *Frame) bool {
	return strings.EqualFold(f.Header("connection"), "keep-alive")
}

// ResponseBuffer is the standard response value handed to the dispatcher.
// It implements http.ResponseWriter, buffers everything, and is finalized
// exactly once; header changes and writes after Finalize are no-ops.
type ResponseBuffer struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
	finalized   bool
}

// NewResponseBuffer creates an empty response with status 200
func NewResponseBuffer() *ResponseBuffer {
	return &ResponseBuffer{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

// Header returns the response header map
func (r *ResponseBuffer) Header() http.Header {
	return r.header
}

// WriteHeader records the status code. Only the first call before
// finalization takes effect.
func (r *ResponseBuffer) WriteHeader(code int) {
	if r.finalized || r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
}

// Write appends body bytes
func (r *ResponseBuffer) Write(p []byte) (int, error) {
	if r.finalized {
		return 0, ErrResponseFinalized
	}
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}

// Status returns the recorded status code
func (r *ResponseBuffer) Status() int {
	return r.status
}

// Body returns the buffered body bytes
func (r *ResponseBuffer) Body() []byte {
	return r.body.Bytes()
}

// Finalize seals the response and serializes it to wire bytes: status line,
// headers, blank line, body. Content-Length is always emitted as the exact
// byte length of the buffered body; a declared length that disagrees with
// the bytes on the wire would stall the client or corrupt the next
// pipelined frame, so a dispatcher-set value is overridden.
func (r *ResponseBuffer) Finalize() []byte {
	r.finalized = true

	reason := http.StatusText(r.status)
	if reason == "" {
		reason = "Unknown"
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "HTTP/1.1 %d %s\r\n", r.status, reason)

	r.header.Set("Content-Length", strconv.Itoa(r.body.Len()))

	keys := make([]string, 0, len(r.header))
	for k := range r.header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range r.header[k] {
			fmt.Fprintf(&out, "%s: %s\r\n", k, v)
		}
	}

	out.WriteString("\r\n")
	out.Write(r.body.Bytes())
	return out.Bytes()
}

// fixedResponse builds wire bytes for responses produced by the transport
// itself (mount-path 404s, rate-limit 429s, decode 400s).
func fixedResponse(status int, contentType, body string) []byte {
	rb := NewResponseBuffer()
	rb.Header().Set("Content-Type", contentType)
	rb.WriteHeader(status)
	_, _ = rb.Write([]byte(body))
	return rb.Finalize()
}
