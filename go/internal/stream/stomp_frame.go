package stream

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// STOMP 1.2 commands used by the client
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
	CmdDisconnect  = "DISCONNECT"
)

// ErrMalformedFrame is returned when a frame cannot be decoded
var ErrMalformedFrame = errors.New("malformed stomp frame")

// Frame is a single STOMP frame
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

// NewFrame builds a frame from alternating header keys and values
func NewFrame(command string, headers ...string) *Frame {
	f := &Frame{Command: command, Headers: make(map[string]string, len(headers)/2)}
	for i := 0; i+1 < len(headers); i += 2 {
		f.Headers[headers[i]] = headers[i+1]
	}
	return f
}

// Header returns the named header or an empty string
func (f *Frame) Header(name string) string {
	return f.Headers[name]
}

// escapes headers outside CONNECT/CONNECTED
func escapesHeaders(command string) bool {
	return command != CmdConnect && command != CmdConnected
}

var (
	headerEscaper   = strings.NewReplacer("\\", "\\\\", "\r", "\\r", "\n", "\\n", ":", "\\c")
	headerUnescaper = strings.NewReplacer("\\\\", "\\", "\\r", "\r", "\\n", "\n", "\\c", ":")
)

// Encode serializes the frame with headers in sorted order
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	escape := escapesHeaders(f.Command)
	for _, k := range keys {
		v := f.Headers[k]
		if escape {
			k, v = headerEscaper.Replace(k), headerEscaper.Replace(v)
		}
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		if _, ok := f.Headers["content-length"]; !ok {
			buf.WriteString("content-length:")
			buf.WriteString(strconv.Itoa(len(f.Body)))
			buf.WriteByte('\n')
		}
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// DecodeFrame parses one frame. A heart-beat (bare EOLs) yields a nil frame
// and no error.
func DecodeFrame(data []byte) (*Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return nil, nil
	}

	line, rest, ok := cutLine(data)
	if !ok {
		return nil, fmt.Errorf("%w: missing command line", ErrMalformedFrame)
	}
	f := &Frame{Command: string(line), Headers: make(map[string]string)}
	escape := escapesHeaders(f.Command)

	for {
		line, rest, ok = cutLine(rest)
		if !ok {
			return nil, fmt.Errorf("%w: unterminated headers", ErrMalformedFrame)
		}
		if len(line) == 0 {
			break
		}
		k, v, found := bytes.Cut(line, []byte{':'})
		if !found {
			return nil, fmt.Errorf("%w: header without colon %q", ErrMalformedFrame, line)
		}
		key, value := string(k), string(v)
		if escape {
			key, value = headerUnescaper.Replace(key), headerUnescaper.Replace(value)
		}
		// repeated headers: first occurrence wins
		if _, exists := f.Headers[key]; !exists {
			f.Headers[key] = value
		}
	}

	if cl, ok := f.Headers["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(rest) {
			return nil, fmt.Errorf("%w: bad content-length %q", ErrMalformedFrame, cl)
		}
		if n == len(rest) || rest[n] != 0 {
			return nil, fmt.Errorf("%w: body not terminated", ErrMalformedFrame)
		}
		f.Body = rest[:n]
		return f, nil
	}

	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: body not terminated", ErrMalformedFrame)
	}
	f.Body = rest[:end]
	return f, nil
}

func cutLine(data []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return nil, data, false
	}
	line = data[:i]
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return line, data[i+1:], true
}
