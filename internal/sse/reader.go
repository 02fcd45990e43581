// Package sse decodes text/event-stream bodies.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultEventType is used when an event carries no "event:" field.
const DefaultEventType = "message"

const maxLineBytes = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	Type  string
	ID    string
	Data  string
	Retry time.Duration // zero unless the event set a retry field
}

// Reader yields events from an event stream.
type Reader struct {
	sc     *bufio.Scanner
	lastID string
	first  bool
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	sc.Split(scanLines)
	return &Reader{sc: sc, first: true}
}

// LastEventID returns the most recent id field seen.
func (r *Reader) LastEventID() string { return r.lastID }

// Next blocks until a full event is available. It returns io.EOF when the
// stream ends cleanly; a partial event at end of stream is discarded.
func (r *Reader) Next() (Event, error) {
	var (
		data    strings.Builder
		hasData bool
		typ     string
		retry   time.Duration
	)
	for r.sc.Scan() {
		line := r.sc.Text()
		if r.first {
			line = strings.TrimPrefix(line, "\ufeff")
			r.first = false
		}

		if line == "" {
			if !hasData {
				// Nothing to dispatch; reset per-event state.
				typ, retry = "", 0
				data.Reset()
				continue
			}
			if typ == "" {
				typ = DefaultEventType
			}
			return Event{Type: typ, ID: r.lastID, Data: data.String(), Retry: retry}, nil
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			typ = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 63); err == nil {
				retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	if err := r.sc.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// scanLines splits on CRLF, LF or a lone CR.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// CR: need one more byte to know whether LF follows.
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
