package loader_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/vanderheijden86/eavview/pkg/loader"
	"github.com/vanderheijden86/eavview/pkg/model"
)

func collectWarnings() (*[]string, loader.ParseOptions) {
	var warnings []string
	return &warnings, loader.ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	}
}

func TestParseCSV_TypeInference(t *testing.T) {
	input := "ID,node,value\n" +
		"A,Scientific domain,Bio\n" +
		"A,Year,2021\n" +
		"A,Open access,true\n" +
		"A,Notes,\n" +
		"A,Code,0x10\n"

	triples, err := loader.ParseCSV(strings.NewReader(input), loader.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(triples) != 5 {
		t.Fatalf("Expected 5 triples, got %d", len(triples))
	}

	wantKinds := []model.Kind{model.KindString, model.KindNumber, model.KindBool, model.KindNull, model.KindString}
	for i, want := range wantKinds {
		if got := triples[i].Value.Kind(); got != want {
			t.Errorf("triple %d (%s): expected kind %s, got %s", i, triples[i], want, got)
		}
	}
	if f, _ := triples[1].Value.Float(); f != 2021 {
		t.Errorf("Expected 2021, got %v", f)
	}
}

func TestParseCSV_ColumnOrderAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFvalue,ID,node\nEG,A,Country\n"
	triples, err := loader.ParseCSV(strings.NewReader(input), loader.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("Expected 1 triple, got %d", len(triples))
	}
	got := triples[0]
	if got.ID != "A" || got.Node != "Country" || got.Value.String() != "EG" {
		t.Errorf("Unexpected triple %v", got)
	}
}

func TestParseCSV_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing value", "ID,node\n"},
		{"extra column", "ID,node,value,comment\n"},
		{"duplicate column", "ID,node,node\n"},
		{"wrong case", "id,node,value\n"},
		{"empty input", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.ParseCSV(strings.NewReader(tt.header), loader.ParseOptions{})
			if !errors.Is(err, model.ErrSchemaMismatch) {
				t.Fatalf("Expected ErrSchemaMismatch, got %v", err)
			}
			var le *model.LoadError
			if !errors.As(err, &le) || le.Phase != model.PhaseSchema {
				t.Errorf("Expected schema-phase LoadError, got %#v", err)
			}
		})
	}
}

func TestParseCSV_MalformedQuoteIsParseError(t *testing.T) {
	input := "ID,node,value\nA,\"unterminated,x\n"
	_, err := loader.ParseCSV(strings.NewReader(input), loader.ParseOptions{})
	// LazyQuotes tolerates stray quotes inside fields; an unterminated quoted
	// field at EOF is still reported.
	var le *model.LoadError
	if err != nil && !errors.As(err, &le) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
}

func TestParseCSV_MissingKeyPolicy(t *testing.T) {
	input := "ID,node,value\n,Country,EG\nB,,x\nC,Country,FR\n"

	warnings, opts := collectWarnings()
	triples, err := loader.ParseCSV(strings.NewReader(input), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(triples) != 1 || triples[0].ID != "C" {
		t.Errorf("exclude: expected only C, got %v", triples)
	}
	if len(*warnings) != 2 {
		t.Errorf("exclude: expected 2 warnings, got %v", *warnings)
	}

	opts.MissingKeys = model.MissingKeysRetain
	triples, err = loader.ParseCSV(strings.NewReader(input), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(triples) != 3 {
		t.Errorf("retain: expected 3 triples, got %d", len(triples))
	}
	if triples[0].ID != "" || triples[1].Node != "" {
		t.Errorf("retain: expected empty-string keys, got %v", triples[:2])
	}
}

func TestParseCSV_SkipsBlankRowsAndShortRows(t *testing.T) {
	input := "ID,node,value\n\nA,Country\n,,\nB,Country,EG\n"
	triples, err := loader.ParseCSV(strings.NewReader(input), loader.ParseOptions{WarningHandler: func(string) {}})
	if err != nil {
		t.Fatal(err)
	}
	if len(triples) != 2 {
		t.Fatalf("Expected 2 triples, got %d: %v", len(triples), triples)
	}
	if !triples[0].Value.IsNull() {
		t.Errorf("Short row should have a null value, got %v", triples[0].Value)
	}
}

func TestParseCSV_TripleFilter(t *testing.T) {
	input := "ID,node,value\nA,Country,EG\nA,Year,2020\n"
	triples, err := loader.ParseCSV(strings.NewReader(input), loader.ParseOptions{
		TripleFilter: func(t *model.Triple) bool { return t.Node == "Year" },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(triples) != 1 || triples[0].Node != "Year" {
		t.Errorf("Expected only the Year triple, got %v", triples)
	}
}

func TestParseJSONL_Basic(t *testing.T) {
	input := strings.Join([]string{
		`{"ID":"A","node":"Scientific domain","value":"Bio"}`,
		`{"ID":42,"node":"Year","value":2021}`,
		`{"ID":"A","node":"Open access","value":false}`,
		`{"ID":"A","node":"Notes","value":null}`,
		``,
		`{"ID":"A","node":"Notes"}`,
	}, "\n")

	triples, err := loader.ParseJSONL(strings.NewReader(input), loader.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseJSONL failed: %v", err)
	}
	if len(triples) != 5 {
		t.Fatalf("Expected 5 triples, got %d", len(triples))
	}
	if triples[1].ID != "42" {
		t.Errorf("Numeric ID should be stringified, got %q", triples[1].ID)
	}
	if triples[1].Value.Kind() != model.KindNumber {
		t.Errorf("Expected number, got %s", triples[1].Value.Kind())
	}
	if b, ok := triples[2].Value.Bool(); !ok || b {
		t.Errorf("Expected false bool, got %v", triples[2].Value)
	}
	if !triples[3].Value.IsNull() || !triples[4].Value.IsNull() {
		t.Errorf("Expected null values")
	}
}

func TestParseJSONL_StringsAreNotInferred(t *testing.T) {
	triples, err := loader.ParseJSONL(strings.NewReader(`{"ID":"A","node":"Year","value":"2021"}`), loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if triples[0].Value.Kind() != model.KindString {
		t.Errorf("JSON strings keep their type, got %s", triples[0].Value.Kind())
	}
}

func TestParseJSONL_MalformedLinesWarned(t *testing.T) {
	input := strings.Join([]string{
		`{"ID":"A","node":"x","value":1}`,
		`{not json}`,
		`{"ID":"B","node":"x","value":{"nested":true}}`,
		`{"ID":true,"node":"x","value":1}`,
		`{"ID":"C","node":"x","value":1}`,
	}, "\n")

	warnings, opts := collectWarnings()
	triples, err := loader.ParseJSONL(strings.NewReader(input), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(triples) != 2 {
		t.Errorf("Expected 2 triples, got %d", len(triples))
	}
	if len(*warnings) != 3 {
		t.Errorf("Expected 3 warnings, got %d: %v", len(*warnings), *warnings)
	}
}

func TestParseJSONL_LongLineSkipped(t *testing.T) {
	long := `{"ID":"A","node":"x","value":"` + strings.Repeat("a", 200) + `"}`
	input := long + "\n" + `{"ID":"B","node":"x","value":1}` + "\n"

	warnings, opts := collectWarnings()
	opts.BufferSize = 64
	triples, err := loader.ParseJSONL(strings.NewReader(input), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(triples) != 1 || triples[0].ID != "B" {
		t.Errorf("Expected only B, got %v", triples)
	}
	if len(*warnings) != 1 || !strings.Contains((*warnings)[0], "line too long") {
		t.Errorf("Expected a line-too-long warning, got %v", *warnings)
	}
}

func TestParseJSONL_BOM(t *testing.T) {
	input := "\xEF\xBB\xBF" + `{"ID":"A","node":"x","value":1}`
	triples, err := loader.ParseJSONL(strings.NewReader(input), loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(triples) != 1 {
		t.Fatalf("Expected BOM to be stripped, got %d triples", len(triples))
	}
}
