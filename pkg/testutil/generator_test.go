package testutil

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/eavview/pkg/loader"
)

func TestTriples_Deterministic(t *testing.T) {
	a := NewDefault().Triples()
	b := NewDefault().Triples()
	AssertTriplesEqual(t, a, b)
}

func TestTriples_Shape(t *testing.T) {
	tests := []struct {
		name      string
		cfg       GeneratorConfig
		wantCount int
		wantIDs   int
	}{
		{"default", DefaultConfig(), 20 * 4, 20},
		{"small", GeneratorConfig{IDCount: 3, Nodes: []string{"Country"}}, 3 * 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triples := New(tt.cfg).Triples()
			AssertTripleCount(t, triples, tt.wantCount)
			if got := len(DistinctIDs(triples)); got != tt.wantIDs {
				t.Errorf("distinct IDs = %d, want %d", got, tt.wantIDs)
			}
			if got := CountNode(triples, DomainNode); got != tt.wantIDs {
				t.Errorf("domain triples = %d, want %d", got, tt.wantIDs)
			}
		})
	}
}

func TestTriples_DuplicatesAndNulls(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DuplicateRate = 1
	triples := New(cfg).Triples()
	AssertTripleCount(t, triples, 20*4*2)

	cfg = DefaultConfig()
	cfg.NullRate = 1
	for _, tr := range New(cfg).Triples() {
		if tr.Node != DomainNode && !tr.Value.IsNull() {
			t.Fatalf("expected null attribute, got %v", tr)
		}
	}
}

func TestToCSV_RoundTrip(t *testing.T) {
	src := Scenario()
	parsed, err := loader.ParseCSV(strings.NewReader(ToCSV(src)), loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	AssertTriplesEqual(t, parsed, src)
}

func TestToJSONL_RoundTrip(t *testing.T) {
	src := NewDefault().Triples()
	parsed, err := loader.ParseJSONL(strings.NewReader(ToJSONL(src)), loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	AssertTriplesEqual(t, parsed, src)
}
