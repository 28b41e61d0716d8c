// Package loader locates and parses triple datasets (CSV and JSONL).
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/eavview/pkg/model"
)

// DataDirEnvVar overrides the directory searched for datasets.
const DataDirEnvVar = "EV_DATA_DIR"

// PreferredDatasetNames defines the lookup priority for dataset files.
var PreferredDatasetNames = []string{"triples.csv", "Final_dt.csv", "triples.jsonl", "triples.db"}

// SupportedExtensions lists the file types this package can parse.
var SupportedExtensions = []string{".csv", ".jsonl", ".ndjson"}

// DefaultMaxBufferSize is the default maximum line size (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures the parsers.
type ParseOptions struct {
	// WarningHandler receives non-fatal warnings (malformed lines, rows with
	// missing keys). If nil, warnings are printed to os.Stderr unless
	// EV_ROBOT=1.
	WarningHandler func(string)

	// BufferSize caps the size of a single line. Longer lines are skipped
	// with a warning. Zero means DefaultMaxBufferSize.
	BufferSize int

	// MissingKeys decides what happens to rows with an empty ID or node.
	// Zero value means model.MissingKeysExclude.
	MissingKeys model.MissingKeyPolicy

	// TripleFilter optionally drops parsed triples. Return true to keep.
	TripleFilter func(*model.Triple) bool
}

func (o ParseOptions) warnFunc() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("EV_ROBOT") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

func (o ParseOptions) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultMaxBufferSize
	}
	return o.BufferSize
}

// accept applies the missing-key policy and the optional filter. line is
// used only in warnings.
func (o ParseOptions) accept(t *model.Triple, line int, warn func(string)) bool {
	if err := t.Validate(); err != nil {
		if o.MissingKeys != model.MissingKeysRetain {
			warn(fmt.Sprintf("skipping row %d: %v", line, err))
			return false
		}
	}
	if o.TripleFilter != nil && !o.TripleFilter(t) {
		return false
	}
	return true
}

// GetDataDir returns the dataset directory, respecting EV_DATA_DIR. Falls
// back to dir, or the working directory when dir is empty.
func GetDataDir(dir string) (string, error) {
	if envDir := os.Getenv(DataDirEnvVar); envDir != "" {
		return envDir, nil
	}
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return wd, nil
}

// FindDatasetPath locates the dataset file in dir. Preferred names win,
// then the first non-empty supported file. Backups and merge artifacts are
// skipped.
func FindDatasetPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isDatasetName(name) {
			continue
		}
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") || strings.Contains(name, ".merge") {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no dataset file in %s", model.ErrSourceNotFound, dir)
	}

	nonEmpty := func(name string) (string, bool) {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		return path, err == nil && info.Size() > 0
	}

	for _, preferred := range PreferredDatasetNames {
		for _, name := range candidates {
			if name == preferred {
				if path, ok := nonEmpty(name); ok {
					return path, nil
				}
			}
		}
	}
	for _, name := range candidates {
		if path, ok := nonEmpty(name); ok {
			return path, nil
		}
	}
	return filepath.Join(dir, candidates[0]), nil
}

func isDatasetName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return ext == ".db" || ext == ".sqlite"
}

// LoadFromFile parses a CSV or JSONL file. SQLite files are handled by
// internal/datasource.
func LoadFromFile(path string, opts ParseOptions) ([]model.Triple, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, model.NewLoadError(path, model.PhaseOpen, fmt.Errorf("%w: %s", model.ErrSourceNotFound, path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, model.NewLoadError(path, model.PhaseOpen, err)
	}
	defer f.Close()

	var triples []model.Triple
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		triples, err = ParseCSV(f, opts)
	case ".jsonl", ".ndjson":
		triples, err = ParseJSONL(f, opts)
	default:
		return nil, model.NewLoadError(path, model.PhaseOpen, fmt.Errorf("unsupported dataset extension %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, withSource(err, path)
	}
	return triples, nil
}

func withSource(err error, path string) error {
	if le, ok := err.(*model.LoadError); ok && le.Source == "" {
		cp := *le
		cp.Source = path
		return &cp
	}
	return err
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}
