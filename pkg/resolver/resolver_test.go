package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phl-informatics/accession-resolver/pkg/entrez"
)

// fakeLookup is a scriptable in-memory Lookup. It tracks call counts and
// the high-water mark of simultaneously in-flight calls.
type fakeLookup struct {
	mu sync.Mutex

	ids  map[string][]string
	docs map[string]entrez.Record

	// searchErrs queues errors per term, consumed one per Search call.
	searchErrs map[string][]error

	// panicTerms makes Search panic for the given terms.
	panicTerms map[string]bool

	// delay widens the in-flight window of every call.
	delay time.Duration

	searchCalls  int
	summaryCalls int
	inFlight     int
	maxInFlight  int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		ids:        make(map[string][]string),
		docs:       make(map[string]entrez.Record),
		searchErrs: make(map[string][]error),
		panicTerms: make(map[string]bool),
	}
}

func (f *fakeLookup) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeLookup) exit() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeLookup) Search(ctx context.Context, term string) ([]string, error) {
	f.enter()
	defer f.exit()

	f.mu.Lock()
	f.searchCalls++
	if f.panicTerms[term] {
		f.mu.Unlock()
		panic("scripted panic for " + term)
	}
	var err error
	if queue := f.searchErrs[term]; len(queue) > 0 {
		err = queue[0]
		f.searchErrs[term] = queue[1:]
	}
	ids := f.ids[term]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (f *fakeLookup) Summarize(ctx context.Context, uid string) (entrez.Record, error) {
	f.enter()
	defer f.exit()

	f.mu.Lock()
	f.summaryCalls++
	rec := f.docs[uid]
	f.mu.Unlock()

	rec.UID = uid
	return rec, nil
}

func (f *fakeLookup) counts() (search, summary int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchCalls, f.summaryCalls
}

func (f *fakeLookup) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func transientErr() error {
	return &entrez.APIError{Class: entrez.ClassNetwork, Message: "connection refused"}
}

func unexpectedErr() error {
	return &entrez.APIError{Class: entrez.ClassPayload, Message: "response is not valid JSON"}
}

func TestResolveOnce_ShortCircuitsAtFirstValidCandidate(t *testing.T) {
	fake := newFakeLookup()
	fake.ids["WA-PHL-007327"] = []string{"A", "B", "C"}
	fake.docs["A"] = entrez.Record{AccessionVersion: "bad", Title: "USA/WA-PHL-007327/2021"}
	fake.docs["B"] = entrez.Record{AccessionVersion: "PQ880188.1", Title: "USA/WA-PHL-007327/2021"}
	fake.docs["C"] = entrez.Record{AccessionVersion: "PQ999999.1", Title: "USA/WA-PHL-007327/2021"}

	r := New(fake, DefaultConfig())
	accession, err := r.resolveOnce(context.Background(), "WA-PHL-007327")
	if err != nil {
		t.Fatalf("resolveOnce returned error: %v", err)
	}
	if accession == nil || *accession != "PQ880188.1" {
		t.Errorf("accession = %v, want PQ880188.1", accession)
	}

	_, summaries := fake.counts()
	if summaries != 2 {
		t.Errorf("summary calls = %d, want 2 (short-circuit after B)", summaries)
	}
}

func TestResolveOnce_EmptyIDListIsNull(t *testing.T) {
	fake := newFakeLookup()

	r := New(fake, DefaultConfig())
	accession, err := r.resolveOnce(context.Background(), "unknown-term")
	if err != nil {
		t.Fatalf("resolveOnce returned error: %v", err)
	}
	if accession != nil {
		t.Errorf("accession = %v, want nil", *accession)
	}

	searches, summaries := fake.counts()
	if searches != 1 {
		t.Errorf("search calls = %d, want 1", searches)
	}
	if summaries != 0 {
		t.Errorf("summary calls = %d, want 0", summaries)
	}
}

func TestResolveOnce_TruncatesToTenIDs(t *testing.T) {
	fake := newFakeLookup()
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	fake.ids["term"] = ids

	r := New(fake, DefaultConfig())
	accession, err := r.resolveOnce(context.Background(), "term")
	if err != nil {
		t.Fatalf("resolveOnce returned error: %v", err)
	}
	if accession != nil {
		t.Errorf("accession = %v, want nil", *accession)
	}

	_, summaries := fake.counts()
	if summaries != 10 {
		t.Errorf("summary calls = %d, want 10 (id list truncated)", summaries)
	}
}

func TestResolveOnce_NoValidCandidateIsNull(t *testing.T) {
	fake := newFakeLookup()
	fake.ids["term"] = []string{"A"}
	fake.docs["A"] = entrez.Record{AccessionVersion: "PQ880188.1", Title: "unrelated title"}

	r := New(fake, DefaultConfig())
	accession, err := r.resolveOnce(context.Background(), "term")
	if err != nil {
		t.Fatalf("resolveOnce returned error: %v", err)
	}
	if accession != nil {
		t.Errorf("accession = %v, want nil", *accession)
	}
}

func TestResolveOnce_SearchErrorPropagates(t *testing.T) {
	fake := newFakeLookup()
	fake.searchErrs["term"] = []error{transientErr()}

	r := New(fake, DefaultConfig())
	_, err := r.resolveOnce(context.Background(), "term")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !entrez.IsTransient(err) {
		t.Errorf("expected transient error, got %v", err)
	}
}
