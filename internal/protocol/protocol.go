// Package protocol defines the newline-delimited JSON wire envelope used
// between clients and the core server, and the line framer that splits a
// connection's receive buffer into complete messages.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMessageSize bounds the unterminated tail a Framer holds while waiting
// for '\n'. A connection that accumulates more unterminated bytes than this
// without seeing '\n' is misbehaving and must be closed. Lines completed
// within a single Feed call are split off before the check.
const MaxMessageSize = 16 * 1024

// ErrOverrun is returned by Framer.Feed when the receive buffer would exceed
// MaxMessageSize before a newline is found.
var ErrOverrun = errors.New("protocol: receive buffer overrun")

// Request is one client-to-server message.
type Request struct {
	Type    string          `json:"type"`
	Seq     int             `json:"seq,omitempty"`
	Token   string          `json:"token,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is a server reply to a Request, always carrying the request's Seq.
type Response struct {
	Type    string      `json:"type"` // "response" or "error"
	Seq     int         `json:"seq"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Payload interface{} `json:"payload,omitempty"`
}

// Notification is a server-initiated, unsolicited message. It carries no Seq.
type Notification struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// OK builds a successful response envelope.
func OK(seq int, message string, payload interface{}) Response {
	return Response{Type: "response", Seq: seq, Success: true, Message: message, Payload: payload}
}

// Fail builds a failure response envelope. Used for both protocol-level
// failures reported with a seq and handler-level business failures.
func Fail(seq int, message string) Response {
	return Response{Type: "error", Seq: seq, Success: false, Message: message}
}

// Marshal encodes v as a single newline-terminated JSON line.
func Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// EscapeString escapes '"', '\\', '\n' and '\r' so that arbitrary user input
// (usernames, chat text) can be safely embedded in a pre-built JSON string
// literal. Callers that build payloads through encoding/json never need this;
// every message in this module is built that way, so nothing here calls it.
// Any hand-assembled JSON must use it.
func EscapeString(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Framer splits a stream of bytes fed via Feed into complete newline-terminated
// lines, retaining any unterminated tail across calls. It is not safe for
// concurrent use; each connection owns exactly one Framer.
type Framer struct {
	buf []byte
}

// Feed appends data to the internal buffer and returns every complete line
// found (without the trailing newline), in order. It returns ErrOverrun if
// the buffered tail would exceed MaxMessageSize without a newline — the
// caller must close the connection in that case; the Framer is not usable
// afterward.
func (f *Framer) Feed(data []byte) ([][]byte, error) {
	f.buf = append(f.buf, data...)

	var lines [][]byte
	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, f.buf[:idx])
		lines = append(lines, line)
		f.buf = f.buf[idx+1:]
	}

	if len(f.buf) > MaxMessageSize {
		return lines, ErrOverrun
	}
	return lines, nil
}
