// Package testutil provides an in-process fake of the invoice application's
// progress endpoints: the JSON status API and the event-stream channel.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"jobwatch/internal/progress"
)

// PollResponse is one scripted answer of the status endpoint.
type PollResponse struct {
	Code  int           // HTTP status, 200 when zero
	Body  any           // JSON-encoded; a string is written verbatim
	Delay time.Duration // wait before answering
}

// OK wraps a snapshot in a success envelope.
func OK(s progress.Snapshot) PollResponse {
	return PollResponse{Body: progress.Envelope[progress.Snapshot]{Success: true, Data: s}}
}

// Fail returns a success=false envelope with the given error.
func Fail(msg string) PollResponse {
	return PollResponse{Body: map[string]any{"success": false, "error": msg}}
}

// Backend is an httptest server speaking the progress API.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	polls       map[string][]PollResponse
	pollCount   map[string]int
	jobs        []progress.Snapshot
	cookieName  string
	cookieValue string
	headers     []http.Header

	streamFailures map[string]int
	streamConnects map[string]int
	publishers     map[string]*Publisher
}

// NewBackend starts a Backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		polls:          make(map[string][]PollResponse),
		pollCount:      make(map[string]int),
		streamFailures: make(map[string]int),
		streamConnects: make(map[string]int),
		publishers:     make(map[string]*Publisher),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.requireSession)
	r.Route("/api/gmail/progress", func(r chi.Router) {
		r.Get("/", b.handleList)
		r.Get("/active/", b.handleActive)
		r.Get("/{jobID}/", b.handleProgress)
		r.Delete("/{jobID}/delete/", b.handleDelete)
	})
	r.Get("/events/", b.handleEvents)

	b.Server = httptest.NewServer(r)
	t.Cleanup(func() {
		b.closeStreams()
		b.Server.Close()
	})
	return b
}

// URL is the server base URL.
func (b *Backend) URL() string { return b.Server.URL }

// RequireSession makes every endpoint answer 403 unless the cookie is present.
func (b *Backend) RequireSession(name, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cookieName, b.cookieValue = name, value
}

// QueuePoll scripts the status endpoint of jobID. Responses are consumed in
// order and the last one repeats.
func (b *Backend) QueuePoll(jobID string, rs ...PollResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls[jobID] = append(b.polls[jobID], rs...)
}

// PollCount returns how many status requests jobID received.
func (b *Backend) PollCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pollCount[jobID]
}

// LastHeaders returns the headers of the most recent request.
func (b *Backend) LastHeaders() http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.headers) == 0 {
		return nil
	}
	return b.headers[len(b.headers)-1]
}

// SetJobs replaces the job list served by the list, active and delete endpoints.
func (b *Backend) SetJobs(jobs ...progress.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs = append([]progress.Snapshot(nil), jobs...)
}

// Jobs returns the current job list.
func (b *Backend) Jobs() []progress.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]progress.Snapshot(nil), b.jobs...)
}

func (b *Backend) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		name, value := b.cookieName, b.cookieValue
		b.headers = append(b.headers, r.Header.Clone())
		b.mu.Unlock()
		if name != "" {
			c, err := r.Cookie(name)
			if err != nil || c.Value != value {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "authentication required"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	b.mu.Lock()
	b.pollCount[jobID]++
	queue := b.polls[jobID]
	var resp PollResponse
	found := len(queue) > 0
	if found {
		resp = queue[0]
		if len(queue) > 1 {
			b.polls[jobID] = queue[1:]
		}
	}
	b.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Job non trouvé", "job_id": jobID})
		return
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	code := resp.Code
	if code == 0 {
		code = http.StatusOK
	}
	if s, ok := resp.Body.(string); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(s))
		return
	}
	writeJSON(w, code, resp.Body)
}

func (b *Backend) handleList(w http.ResponseWriter, _ *http.Request) {
	jobs := b.Jobs()
	if len(jobs) > 10 {
		jobs = jobs[:10]
	}
	writeJSON(w, http.StatusOK, progress.Envelope[[]progress.Snapshot]{Success: true, Data: jobs})
}

func (b *Backend) handleActive(w http.ResponseWriter, _ *http.Request) {
	active := make([]progress.Snapshot, 0)
	for _, j := range b.Jobs() {
		if !j.Status.Terminal() {
			active = append(active, j)
		}
	}
	n := len(active)
	writeJSON(w, http.StatusOK, progress.Envelope[[]progress.Snapshot]{Success: true, Data: active, Count: &n})
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, j := range b.jobs {
		if j.JobID != jobID {
			continue
		}
		if !j.Status.Terminal() {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Impossible de supprimer un job en cours"})
			return
		}
		b.jobs = append(b.jobs[:i], b.jobs[i+1:]...)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Progression supprimée"})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Job non trouvé"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func channelJobID(channel string) string {
	return strings.TrimPrefix(channel, progress.ChannelPrefix)
}
