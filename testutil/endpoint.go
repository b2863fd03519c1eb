package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Request is one call recorded by an Endpoint.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        []byte
}

// Decode unmarshals the recorded body into v.
func (r Request) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Endpoint is an httptest server that records every request and answers
// with a configurable status and body.
type Endpoint struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	status   int
	body     string
	hook     func(Request)
}

// NewEndpoint starts an endpoint answering 200 {"ok":true}. It is closed
// when the test ends.
func NewEndpoint(t *testing.T) *Endpoint {
	t.Helper()

	e := &Endpoint{status: http.StatusOK, body: `{"ok":true}`}
	e.Server = httptest.NewServer(http.HandlerFunc(e.handle))
	t.Cleanup(e.Close)
	return e
}

func (e *Endpoint) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	}

	e.mu.Lock()
	e.requests = append(e.requests, req)
	status, respBody, hook := e.status, e.body, e.hook
	e.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

// Respond sets the status and body for subsequent requests.
func (e *Endpoint) Respond(status int, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	e.body = body
}

// OnRequest installs a hook called for each request before it is answered.
func (e *Endpoint) OnRequest(hook func(Request)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hook = hook
}

// Requests returns a copy of the recorded requests.
func (e *Endpoint) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.requests...)
}

// Count returns the number of recorded requests.
func (e *Endpoint) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}
