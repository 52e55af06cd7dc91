// Package transport turns raw bytes on a TCP socket into framed
// request/response exchanges for the RPC dispatcher, multiplexed across
// concurrent client sessions.
package transport

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

const (
	// maxHeaderBytes caps how much buffered data we will scan for the
	// header terminator before declaring the stream corrupt.
	maxHeaderBytes = 64 << 10

	// MaxBodyBytes caps a declared content-length. A larger (or negative)
	// value is untrustworthy and treated as a decode error rather than
	// something to block on.
	MaxBodyBytes = 8 << 20
)

var (
	ErrMalformedFrame = errors.New("malformed request frame")
	ErrHeadersTooLong = errors.New("frame headers exceed limit")
	ErrBodyTooLarge   = errors.New("frame body exceeds limit")
)

var headerTerminator = []byte("\r\n\r\n")

// Frame is one complete request unit extracted from the byte stream:
// start line, headers, body.
type Frame struct {
	Method  string
	Path    string
	Headers map[string][]string // keys lower-cased
	Body    []byte
}

// Header returns the first value for the given lower-case key
func (f *Frame) Header(key string) string {
	if vs := f.Headers[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// TryExtract attempts to parse one complete frame from the front of buf.
//
// It returns (nil, buf, nil) when more bytes are needed: either the header
// terminator has not arrived yet, or the declared body is still incomplete.
// On success it returns the frame and the remainder of the buffer, which may
// already contain further pipelined frames; callers must extract in a loop.
// A non-nil error means the stream is corrupt and the connection must be
// closed, since byte offsets are no longer trustworthy.
func TryExtract(buf []byte) (*Frame, []byte, error) {
	sep := bytes.Index(buf, headerTerminator)
	if sep < 0 {
		if len(buf) > maxHeaderBytes {
			return nil, buf, ErrHeadersTooLong
		}
		return nil, buf, nil
	}

	lines := strings.Split(string(buf[:sep]), "\r\n")
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return nil, buf, ErrMalformedFrame
	}
	method, path := fields[0], fields[1]
	if method == "" || path == "" {
		return nil, buf, ErrMalformedFrame
	}

	headers := make(map[string][]string)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		// First colon wins; keys are lower-cased
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		headers[key] = append(headers[key], value)
	}

	contentLength := 0
	if vs := headers["content-length"]; len(vs) > 0 {
		n, err := strconv.Atoi(strings.TrimSpace(vs[0]))
		if err == nil {
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, buf, ErrMalformedFrame
	}
	if contentLength > MaxBodyBytes {
		return nil, buf, ErrBodyTooLarge
	}

	bodyStart := sep + len(headerTerminator)
	total := bodyStart + contentLength
	if len(buf) < total {
		return nil, buf, nil
	}

	body := make([]byte, contentLength)
	copy(body, buf[bodyStart:total])

	return &Frame{
		Method:  method,
		Path:    path,
		Headers: headers,
		Body:    body,
	}, buf[total:], nil
}
