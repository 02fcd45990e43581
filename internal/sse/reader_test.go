package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, stream string) []Event {
	t.Helper()
	r := NewReader(strings.NewReader(stream))
	var out []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestReaderNext(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   []Event
	}{
		{
			name:   "named event",
			stream: "event: progress\ndata: {\"current\":5}\n\n",
			want:   []Event{{Type: "progress", Data: `{"current":5}`}},
		},
		{
			name:   "default type",
			stream: "data: hello\n\n",
			want:   []Event{{Type: DefaultEventType, Data: "hello"}},
		},
		{
			name:   "multi-line data joined",
			stream: "data: a\ndata: b\n\n",
			want:   []Event{{Type: DefaultEventType, Data: "a\nb"}},
		},
		{
			name:   "comments and keepalives ignored",
			stream: ": connected\n\n: ping\nevent: start\ndata: {}\n\n",
			want:   []Event{{Type: "start", Data: "{}"}},
		},
		{
			name:   "crlf and lone cr line endings",
			stream: "event: a\r\ndata: 1\r\n\r\nevent: b\rdata: 2\r\r",
			want:   []Event{{Type: "a", Data: "1"}, {Type: "b", Data: "2"}},
		},
		{
			name:   "no space after colon",
			stream: "event:warning\ndata:x\n\n",
			want:   []Event{{Type: "warning", Data: "x"}},
		},
		{
			name:   "event without data is not dispatched",
			stream: "event: start\n\nevent: complete\ndata: {}\n\n",
			want:   []Event{{Type: "complete", Data: "{}"}},
		},
		{
			name:   "id persists across events",
			stream: "id: 7\ndata: a\n\ndata: b\n\n",
			want:   []Event{{Type: DefaultEventType, ID: "7", Data: "a"}, {Type: DefaultEventType, ID: "7", Data: "b"}},
		},
		{
			name:   "retry parsed",
			stream: "retry: 2500\ndata: a\n\n",
			want:   []Event{{Type: DefaultEventType, Data: "a", Retry: 2500 * time.Millisecond}},
		},
		{
			name:   "leading byte order mark",
			stream: "\ufeffdata: a\n\n",
			want:   []Event{{Type: DefaultEventType, Data: "a"}},
		},
		{
			name:   "partial event at end of stream discarded",
			stream: "data: a\n\ndata: unterminated",
			want:   []Event{{Type: DefaultEventType, Data: "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readAll(t, tt.stream))
		})
	}
}

func TestReaderLastEventID(t *testing.T) {
	r := NewReader(strings.NewReader("id: 42\ndata: x\n\n"))
	_, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "42", r.LastEventID())
}
