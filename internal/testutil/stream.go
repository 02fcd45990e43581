package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Publisher pushes progress events to every subscriber of one channel,
// mirroring what the job side of the application emits.
type Publisher struct {
	channel string

	mu   sync.Mutex
	subs map[chan string]struct{}
}

// Publisher returns the publisher for a channel name (progress-<jobID>).
func (b *Backend) Publisher(channel string) *Publisher {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.publishers[channel]
	if !ok {
		p = &Publisher{channel: channel, subs: make(map[chan string]struct{})}
		b.publishers[channel] = p
	}
	return p
}

// FailStreamConnects makes the next n connections to channel answer 503.
func (b *Backend) FailStreamConnects(channel string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamFailures[channel] = n
}

// StreamConnects counts connection attempts to channel, failed ones included.
func (b *Backend) StreamConnects(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streamConnects[channel]
}

func (b *Backend) closeStreams() {
	b.mu.Lock()
	pubs := make([]*Publisher, 0, len(b.publishers))
	for _, p := range b.publishers {
		pubs = append(pubs, p)
	}
	b.mu.Unlock()
	for _, p := range pubs {
		p.Disconnect()
	}
}

func (b *Backend) handleEvents(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")

	b.mu.Lock()
	b.streamConnects[channel]++
	fail := b.streamFailures[channel] > 0
	if fail {
		b.streamFailures[channel]--
	}
	b.mu.Unlock()

	if fail || channelJobID(channel) == channel {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	p := b.Publisher(channel)
	ch := p.subscribe()
	defer p.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (p *Publisher) subscribe() chan string {
	ch := make(chan string, 64)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

func (p *Publisher) unsubscribe(ch chan string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subs[ch]; ok {
		delete(p.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of open connections.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// WaitSubscribers blocks until at least n connections are open or timeout elapses.
func (p *Publisher) WaitSubscribers(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.Subscribers() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return p.Subscribers() >= n
}

// Disconnect drops every open connection from the server side.
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		delete(p.subs, ch)
		close(ch)
	}
}

// Raw sends an event with a verbatim data field.
func (p *Publisher) Raw(kind, data string) {
	var b strings.Builder
	if kind != "" {
		fmt.Fprintf(&b, "event: %s\n", kind)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		ch <- b.String()
	}
}

// Send JSON-encodes data as the event payload.
func (p *Publisher) Send(kind string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	p.Raw(kind, string(raw))
}

// Start announces a job of total units.
func (p *Publisher) Start(total int, message string) {
	p.Send("start", map[string]any{
		"status": "started", "total": total, "current": 0, "percentage": 0, "message": message,
	})
}

// Progress reports current of total units processed. An empty message is sent as null.
func (p *Publisher) Progress(current, total int, message string) {
	percentage := 0
	if total > 0 {
		percentage = current * 100 / total
	}
	var msg any
	if message != "" {
		msg = message
	}
	p.Send("progress", map[string]any{
		"status": "in_progress", "current": current, "total": total,
		"percentage": percentage, "remaining": total - current, "message": msg,
	})
}

// Complete announces success.
func (p *Publisher) Complete(total int, message string) {
	if message == "" {
		message = "Terminé avec succès"
	}
	p.Send("complete", map[string]any{
		"status": "completed", "total": total, "current": total, "percentage": 100, "message": message,
	})
}

// Error reports a job-level failure.
func (p *Publisher) Error(msg string) {
	p.Send("error", map[string]any{"status": "error", "error": msg, "message": "Erreur: " + msg})
}

// Warning reports a recoverable problem.
func (p *Publisher) Warning(msg string) {
	p.Send("warning", map[string]any{"status": "warning", "warning": msg, "message": "Attention: " + msg})
}
