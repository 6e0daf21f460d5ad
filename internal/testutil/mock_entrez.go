// Package testutil provides testing utilities for the accession resolver.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// SummaryDoc is the scripted summary payload for one uid.
type SummaryDoc struct {
	AccessionVersion string
	Title            string
}

// MockEutils is a configurable mock eutils server for testing. Besides
// scripted responses it tracks request counts and the high-water mark of
// simultaneously in-flight requests, which the concurrency-cap tests
// assert on.
type MockEutils struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc

	delay time.Duration

	requestCount int
	searchCount  int
	summaryCount int
	inFlight     int
	maxInFlight  int
}

// NewMockEutils creates a new mock eutils server.
func NewMockEutils() *MockEutils {
	mock := &MockEutils{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		switch r.URL.Path {
		case "/esearch.fcgi":
			mock.searchCount++
		case "/esummary.fcgi":
			mock.summaryCount++
		}
		mock.inFlight++
		if mock.inFlight > mock.maxInFlight {
			mock.maxInFlight = mock.inFlight
		}
		delay := mock.delay
		handler := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		// Widens the in-flight window so concurrency violations are
		// observable.
		if delay > 0 {
			time.Sleep(delay)
		}

		if handler != nil {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockEutils) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockEutils) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockEutils) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.searchCount = 0
	m.summaryCount = 0
	m.maxInFlight = 0
}

// SetDelay makes every response wait before being written.
func (m *MockEutils) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetHandler sets a custom handler for a specific path.
func (m *MockEutils) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// ScriptSearch serves esearch responses from a term -> ids table.
// Unknown terms get an empty id list.
func (m *MockEutils) ScriptSearch(ids map[string][]string) {
	m.SetHandler("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("term")
		writeJSON(w, SearchResponse(ids[term]...))
	})
}

// ScriptSummaries serves esummary responses from a uid -> document table.
// Unknown uids get a result set without the uid, which downstream treats
// as an empty candidate.
func (m *MockEutils) ScriptSummaries(docs map[string]SummaryDoc) {
	m.SetHandler("/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		uid := r.URL.Query().Get("id")
		doc, ok := docs[uid]
		if !ok {
			writeJSON(w, `{"result":{"uids":[]}}`)
			return
		}
		writeJSON(w, SummaryResponse(uid, doc.AccessionVersion, doc.Title))
	})
}

// RequestCount returns the total number of requests served.
func (m *MockEutils) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// SearchCount returns the number of esearch requests served.
func (m *MockEutils) SearchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCount
}

// SummaryCount returns the number of esummary requests served.
func (m *MockEutils) SummaryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryCount
}

// MaxInFlight returns the high-water mark of simultaneous requests.
func (m *MockEutils) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// defaultHandler answers unscripted paths with an empty search result.
func (m *MockEutils) defaultHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, SearchResponse())
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// SearchResponse builds an esearch payload listing the given ids.
func SearchResponse(ids ...string) string {
	if ids == nil {
		ids = []string{}
	}
	idList, _ := json.Marshal(ids)
	return fmt.Sprintf(`{"esearchresult":{"idlist":%s}}`, idList)
}

// SummaryResponse builds an esummary payload for one uid.
func SummaryResponse(uid, accession, title string) string {
	doc, _ := json.Marshal(map[string]string{
		"uid":              uid,
		"accessionversion": accession,
		"title":            title,
	})
	return fmt.Sprintf(`{"result":{"uids":["%s"],"%s":%s}}`, uid, uid, doc)
}

// RateLimitResponse builds the payload-embedded rate limit signal eutils
// returns with a 200 status.
func RateLimitResponse() string {
	return `{"error":"API rate limit exceeded, try again later"}`
}
