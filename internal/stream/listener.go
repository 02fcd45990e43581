// Package stream follows a job over a server-sent event channel and raises
// one callback per named event, reconnecting with bounded backoff when the
// transport drops.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	"jobwatch/internal/logger"
	"jobwatch/internal/metrics"
	"jobwatch/internal/progress"
	"jobwatch/internal/sse"
	"jobwatch/internal/util"
)

const (
	// MaxReconnectAttempts bounds consecutive reconnects without a successful open.
	MaxReconnectAttempts = 5

	backoffStep = time.Second
	backoffCap  = 5 * time.Second
)

// Backoff returns the delay before reconnect attempt n (1-based).
func Backoff(n int) time.Duration {
	d := time.Duration(n) * backoffStep
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected // reconnect pending
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handlers receives listener callbacks. Any field may be nil. Callbacks of
// one listener never run concurrently.
type Handlers struct {
	OnOpen     func()
	OnStart    func(progress.StartPayload)
	OnProgress func(progress.ProgressPayload)
	OnComplete func(progress.CompletePayload)
	// OnError receives job-level error events, not transport failures.
	OnError   func(progress.ErrorPayload)
	OnWarning func(progress.WarningPayload)
	// OnCustom receives every event kind without a dedicated handler.
	OnCustom func(kind string, data json.RawMessage)
	// OnTransportError receives connection failures.
	OnTransportError func(error)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Listener owns one event-stream connection for a channel.
type Listener struct {
	channel   string
	url       string
	http      *http.Client
	handlers  Handlers
	reconnect bool
	debug     bool
	logger    *slog.Logger
	sched     Scheduler

	mu       sync.Mutex
	state    State
	attempts int
	live     bool
	parent   context.Context
	connID   uint64
	gen      uint64
	cancel   context.CancelFunc
	pending  Timer
	lastID   string
	done     chan struct{}

	dispatchMu sync.Mutex
}

// Option configures a Listener.
type Option func(*Listener)

// WithURL overrides the full stream URL.
func WithURL(u string) Option {
	return func(l *Listener) {
		if u != "" {
			l.url = u
		}
	}
}

// WithHTTPClient sets the HTTP client. Its timeout is cleared since the
// connection is long-lived.
func WithHTTPClient(hc *http.Client) Option {
	return func(l *Listener) {
		if hc != nil {
			c := *hc
			c.Timeout = 0
			l.http = &c
		}
	}
}

func WithHandlers(h Handlers) Option {
	return func(l *Listener) { l.handlers = h }
}

// WithReconnect enables or disables reconnection after transport failures.
func WithReconnect(on bool) Option {
	return func(l *Listener) { l.reconnect = on }
}

// WithDebug logs every connection change and event at info level.
func WithDebug(on bool) Option {
	return func(l *Listener) { l.debug = on }
}

func WithLogger(lg *slog.Logger) Option {
	return func(l *Listener) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithScheduler replaces the timer used for reconnect delays.
func WithScheduler(s Scheduler) Option {
	return func(l *Listener) {
		if s != nil {
			l.sched = s
		}
	}
}

// EventsURL returns the stream endpoint for a channel on base.
func EventsURL(base *url.URL, channel string) string {
	return util.JoinURL(base, "events/") + "?channel=" + url.QueryEscape(progress.Channel(channel))
}

// NewListener builds a listener for channel (a job id) on the server at base.
func NewListener(base *url.URL, channel string, opts ...Option) *Listener {
	l := &Listener{
		channel:   channel,
		http:      &http.Client{},
		reconnect: true,
		logger:    logger.Get(),
		sched:     realScheduler{},
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	if l.url == "" {
		l.url = EventsURL(base, channel)
	}
	l.logger = l.logger.With("channel", progress.Channel(channel))
	return l
}

// URL returns the stream endpoint.
func (l *Listener) URL() string { return l.url }

// Start opens the connection. It is a no-op while connecting or connected.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateConnecting || l.state == StateConnected {
		return
	}
	if l.pending != nil {
		l.pending.Stop()
		l.pending = nil
	}
	if !l.live {
		l.live = true
		if l.state == StateStopped {
			l.done = make(chan struct{})
		}
		metrics.WatcherStarted()
	}
	l.parent = ctx
	l.connectLocked()
}

// Stop closes the connection and cancels any pending reconnect. It is idempotent.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.state == StateStopped {
		l.mu.Unlock()
		return
	}
	l.stopLocked()
	l.mu.Unlock()
	l.logf("disconnected")
}

// IsActive reports whether the connection is open.
func (l *Listener) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StateConnected
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attempts returns the number of reconnects scheduled since the last open.
func (l *Listener) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// Done is closed when the listener stops for any reason.
func (l *Listener) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *Listener) stopLocked() {
	l.gen++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.pending != nil {
		l.pending.Stop()
		l.pending = nil
	}
	l.state = StateStopped
	if l.live {
		l.live = false
		metrics.WatcherStopped()
	}
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

func (l *Listener) connectLocked() {
	l.connID++
	id := l.connID
	ctx, cancel := context.WithCancel(l.parent)
	l.cancel = cancel
	l.state = StateConnecting
	lastID := l.lastID
	l.logf("connecting", "url", l.url)
	go l.run(ctx, id, lastID)
}

func (l *Listener) run(ctx context.Context, id uint64, lastID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		l.fail(id, err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		l.fail(id, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.fail(id, &progress.RequestError{
			Op: "stream", URL: l.url, StatusCode: resp.StatusCode,
			Kind: progress.ErrTransport, Message: http.StatusText(resp.StatusCode),
		})
		return
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		l.fail(id, &progress.RequestError{
			Op: "stream", URL: l.url, StatusCode: resp.StatusCode,
			Kind: progress.ErrTransport, Message: fmt.Sprintf("unexpected content type %q", mt),
		})
		return
	}
	if !l.open(id) {
		return
	}

	rd := sse.NewReader(resp.Body)
	for {
		ev, err := rd.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			l.fail(id, err)
			return
		}
		l.mu.Lock()
		l.lastID = rd.LastEventID()
		l.mu.Unlock()
		if !l.dispatch(id, ev) {
			return
		}
	}
}

func (l *Listener) current(id uint64) bool {
	return l.connID == id && l.state != StateStopped
}

func (l *Listener) open(id uint64) bool {
	l.dispatchMu.Lock()
	defer l.dispatchMu.Unlock()

	l.mu.Lock()
	if !l.current(id) {
		l.mu.Unlock()
		return false
	}
	l.state = StateConnected
	l.attempts = 0
	l.mu.Unlock()

	l.logf("connected")
	if l.handlers.OnOpen != nil {
		l.handlers.OnOpen()
	}
	return true
}

// fail handles a transport-level failure of connection id.
func (l *Listener) fail(id uint64, err error) {
	l.dispatchMu.Lock()
	defer l.dispatchMu.Unlock()

	l.mu.Lock()
	if !l.current(id) {
		l.mu.Unlock()
		return
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.state = StateDisconnected

	giveUp := !l.reconnect || l.attempts >= MaxReconnectAttempts || l.parent.Err() != nil
	if giveUp {
		l.stopLocked()
		l.mu.Unlock()
		l.logger.Warn("stream closed", "error", err)
		if l.handlers.OnTransportError != nil {
			l.handlers.OnTransportError(err)
		}
		return
	}

	l.attempts++
	n := l.attempts
	delay := Backoff(n)
	gen := l.gen
	l.pending = l.sched.AfterFunc(delay, func() { l.retry(gen) })
	l.mu.Unlock()

	metrics.RecordReconnect()
	l.logger.Warn("stream connection lost", "error", err, "attempt", n, "retry_in", delay)
	if l.handlers.OnTransportError != nil {
		l.handlers.OnTransportError(err)
	}
}

func (l *Listener) retry(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen || l.state != StateDisconnected {
		return
	}
	l.pending = nil
	l.connectLocked()
}

// dispatch delivers one event. It returns false once the connection must
// not deliver anything more.
func (l *Listener) dispatch(id uint64, ev sse.Event) bool {
	l.dispatchMu.Lock()
	defer l.dispatchMu.Unlock()

	l.mu.Lock()
	ok := l.current(id)
	l.mu.Unlock()
	if !ok {
		return false
	}

	kind := progress.Kind(ev.Type)
	metrics.RecordStreamEvent(ev.Type, kind.Builtin())
	l.logf("event", "kind", ev.Type, "data", ev.Data)

	data := []byte(ev.Data)
	h := l.handlers
	switch kind {
	case progress.KindStart:
		var p progress.StartPayload
		if l.decode(kind, data, &p) && h.OnStart != nil {
			h.OnStart(p)
		}
	case progress.KindProgress:
		var p progress.ProgressPayload
		if l.decode(kind, data, &p) && h.OnProgress != nil {
			h.OnProgress(p)
		}
	case progress.KindComplete:
		var p progress.CompletePayload
		if l.decode(kind, data, &p) {
			if h.OnComplete != nil {
				h.OnComplete(p)
			}
			l.Stop()
			return false
		}
	case progress.KindError:
		var p progress.ErrorPayload
		if l.decode(kind, data, &p) && h.OnError != nil {
			h.OnError(p)
		}
	case progress.KindWarning:
		var p progress.WarningPayload
		if l.decode(kind, data, &p) && h.OnWarning != nil {
			h.OnWarning(p)
		}
	default:
		if h.OnCustom != nil && json.Valid(data) {
			h.OnCustom(ev.Type, json.RawMessage(data))
		}
	}

	l.mu.Lock()
	ok = l.current(id)
	l.mu.Unlock()
	return ok
}

func (l *Listener) decode(kind progress.Kind, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		l.logger.Debug("skipping undecodable event", "kind", kind, "error", err)
		return false
	}
	return true
}

func (l *Listener) logf(msg string, args ...any) {
	if l.debug {
		l.logger.Info(msg, args...)
		return
	}
	l.logger.Debug(msg, args...)
}
