package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/phl-informatics/accession-resolver/pkg/entrez"
)

// scriptTerm wires one term through search and summary to a valid record.
func scriptTerm(fake *fakeLookup, term, uid, accession string) {
	fake.ids[term] = []string{uid}
	fake.docs[uid] = entrez.Record{
		AccessionVersion: accession,
		Title:            "USA/" + term + "/2021",
	}
}

func TestResolveAll_KeySetMatchesTrimmedInput(t *testing.T) {
	fake := newFakeLookup()
	scriptTerm(fake, "a", "1", "PQ880101.1")
	scriptTerm(fake, "b", "2", "PQ880102.1")

	terms := []string{"a", " b ", "b", "missing"}
	results := Resolve(context.Background(), fake, terms, DefaultConfig())

	if len(results) != 3 {
		t.Fatalf("result map has %d keys, want 3 (duplicates collapse): %v", len(results), results)
	}
	for _, key := range []string{"a", "b", "missing"} {
		if _, ok := results[key]; !ok {
			t.Errorf("result map missing key %q", key)
		}
	}
	if results["a"] == nil || *results["a"] != "PQ880101.1" {
		t.Errorf("results[a] = %v, want PQ880101.1", results["a"])
	}
	if results["b"] == nil || *results["b"] != "PQ880102.1" {
		t.Errorf("results[b] = %v, want PQ880102.1", results["b"])
	}
	if results["missing"] != nil {
		t.Errorf("results[missing] = %v, want nil", *results["missing"])
	}
}

func TestResolveAll_OutputValuesAreAccessionShaped(t *testing.T) {
	fake := newFakeLookup()
	scriptTerm(fake, "a", "1", "PQ880101.1")
	scriptTerm(fake, "b", "2", "A12345.1")
	fake.ids["c"] = nil

	results := Resolve(context.Background(), fake, []string{"a", "b", "c"}, DefaultConfig())

	for term, accession := range results {
		if accession == nil {
			continue
		}
		if !ValidAccession(*accession) {
			t.Errorf("results[%s] = %q is not accession-shaped", term, *accession)
		}
	}
}

func TestResolveAll_ConcurrencyCap(t *testing.T) {
	for _, workers := range []int{1, 4, 10} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			fake := newFakeLookup()
			fake.delay = 5 * time.Millisecond

			var terms []string
			for i := 0; i < 30; i++ {
				term := fmt.Sprintf("term-%02d", i)
				uid := fmt.Sprintf("%d", i)
				scriptTerm(fake, term, uid, fmt.Sprintf("PQ8801%02d.1", i))
				terms = append(terms, term)
			}

			cfg := DefaultConfig()
			cfg.Workers = workers
			results := Resolve(context.Background(), fake, terms, cfg)

			if len(results) != len(terms) {
				t.Fatalf("result map has %d keys, want %d", len(results), len(terms))
			}
			if got := fake.maxConcurrent(); got > ConcurrencyLimit {
				t.Errorf("max in-flight lookups = %d, want <= %d", got, ConcurrencyLimit)
			}
		})
	}
}

func TestResolveAll_WorkerPanicIsolated(t *testing.T) {
	fake := newFakeLookup()
	fake.panicTerms["boom"] = true
	scriptTerm(fake, "ok", "1", "PQ880101.1")

	cfg := DefaultConfig()
	cfg.Workers = 2
	results := Resolve(context.Background(), fake, []string{"boom", "ok"}, cfg)

	if len(results) != 2 {
		t.Fatalf("result map has %d keys, want 2: %v", len(results), results)
	}
	if results["boom"] != nil {
		t.Errorf("results[boom] = %v, want nil after panic", *results["boom"])
	}
	if results["ok"] == nil || *results["ok"] != "PQ880101.1" {
		t.Errorf("results[ok] = %v, want PQ880101.1", results["ok"])
	}
}

func TestResolveAll_Idempotent(t *testing.T) {
	fake := newFakeLookup()
	scriptTerm(fake, "a", "1", "PQ880101.1")
	scriptTerm(fake, "b", "2", "PQ880102.1")
	fake.ids["c"] = nil

	terms := []string{"a", "b", "c"}
	first := Resolve(context.Background(), fake, terms, DefaultConfig())
	second := Resolve(context.Background(), fake, terms, DefaultConfig())

	if len(first) != len(second) {
		t.Fatalf("runs disagree on key count: %d vs %d", len(first), len(second))
	}
	for term, want := range first {
		got, ok := second[term]
		if !ok {
			t.Errorf("second run missing key %q", term)
			continue
		}
		switch {
		case want == nil && got != nil:
			t.Errorf("results[%s]: first nil, second %q", term, *got)
		case want != nil && got == nil:
			t.Errorf("results[%s]: first %q, second nil", term, *want)
		case want != nil && got != nil && *want != *got:
			t.Errorf("results[%s]: first %q, second %q", term, *want, *got)
		}
	}
}

func TestResolveAll_EmptyTermList(t *testing.T) {
	fake := newFakeLookup()

	results := Resolve(context.Background(), fake, nil, DefaultConfig())
	if len(results) != 0 {
		t.Errorf("result map has %d keys, want 0", len(results))
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Workers: -1, MaxRetries: -3, Timeout: 0, RequestDelay: -time.Second}
	n := cfg.normalize()

	if n.Workers != 1 {
		t.Errorf("Workers = %d, want 1", n.Workers)
	}
	if n.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", n.MaxRetries)
	}
	if n.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", n.Timeout)
	}
	if n.RequestDelay != 0 {
		t.Errorf("RequestDelay = %v, want 0", n.RequestDelay)
	}
}
