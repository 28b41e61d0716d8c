package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/eavview/pkg/model"
)

// AssertTripleCount verifies the expected number of triples.
func AssertTripleCount(t *testing.T, triples []model.Triple, expected int) {
	t.Helper()
	if len(triples) != expected {
		t.Errorf("expected %d triples, got %d", expected, len(triples))
	}
}

// AssertTriplesEqual verifies two sequences hold the same triples in the
// same order.
func AssertTriplesEqual(t *testing.T, got, want []model.Triple) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d triples, got %d\n got: %v\nwant: %v", len(want), len(got), got, want)
	}
	for i := range want {
		if !SameTriple(got[i], want[i]) {
			t.Errorf("triple %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

// AssertSubsequence verifies every triple of sub appears in full, in the
// same relative order.
func AssertSubsequence(t *testing.T, sub, full []model.Triple) {
	t.Helper()
	j := 0
	for i := range sub {
		for j < len(full) && !SameTriple(sub[i], full[j]) {
			j++
		}
		if j == len(full) {
			t.Errorf("triple %d (%v) is not in order within the source sequence", i, sub[i])
			return
		}
		j++
	}
}

// AssertSorted verifies a string slice is sorted and free of duplicates.
func AssertSorted(t *testing.T, values []string) {
	t.Helper()
	if !sort.StringsAreSorted(values) {
		t.Errorf("values not sorted: %v", values)
	}
	for i := 1; i < len(values); i++ {
		if values[i] == values[i-1] {
			t.Errorf("duplicate value %q", values[i])
		}
	}
}

// SameTriple compares ID, node and value (kind and payload).
func SameTriple(a, b model.Triple) bool {
	return a.ID == b.ID && a.Node == b.Node && a.Value.Equal(b.Value)
}

// DistinctIDs returns the distinct IDs of triples in first-encountered order.
func DistinctIDs(triples []model.Triple) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, tr := range triples {
		if !seen[tr.ID] {
			seen[tr.ID] = true
			ids = append(ids, tr.ID)
		}
	}
	return ids
}

// CountNode returns how many triples have the given node.
func CountNode(triples []model.Triple, node string) int {
	n := 0
	for _, tr := range triples {
		if tr.Node == node {
			n++
		}
	}
	return n
}

// Golden file helpers

// GoldenFile manages golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
// If GENERATE_GOLDEN is set, updates the golden file instead.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()
	path := g.Path()

	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}

	if string(expected) != actual {
		expectedLines := strings.Split(string(expected), "\n")
		actualLines := strings.Split(actual, "\n")
		for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
			var expLine, actLine string
			if i < len(expectedLines) {
				expLine = expectedLines[i]
			}
			if i < len(actualLines) {
				actLine = actualLines[i]
			}
			if expLine != actLine {
				g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, expLine, actLine)
				return
			}
		}
		g.t.Errorf("golden file mismatch (length differs)")
	}
}

// AssertJSON compares actual value as JSON against the golden file.
func (g *GoldenFile) AssertJSON(actual any) {
	g.t.Helper()
	data, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		g.t.Fatalf("failed to marshal actual value: %v", err)
	}
	g.Assert(string(data))
}

// WriteDataset writes content to name inside a fresh temp dir and returns
// the file path.
func WriteDataset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
	return path
}
