// Package datasource discovers, validates and selects triple dataset sources
// (SQLite databases, CSV files and JSONL files) and loads the chosen one into
// an immutable model.Store.
package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/eavview/pkg/loader"
	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite database with a triples table
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeCSV is a CSV file with an ID,node,value header
	SourceTypeCSV SourceType = "csv"
	// SourceTypeJSONL is a JSON-lines file of triple objects
	SourceTypeJSONL SourceType = "jsonl"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityCSV    = 60
	PriorityJSONL  = 50
)

// FreshnessWindow is how close two modification times must be for priority,
// rather than recency, to decide between sources.
const FreshnessWindow = 2 * time.Second

// DataSource represents a potential source of triples
type DataSource struct {
	Type            SourceType `json:"type"`
	Path            string     `json:"path"`
	Priority        int        `json:"priority"`
	ModTime         time.Time  `json:"mod_time"`
	Valid           bool       `json:"valid"`
	ValidationError string     `json:"validation_error,omitempty"`
	TripleCount     int        `json:"triple_count"`
	Size            int64      `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, triples=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.TripleCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// DataDir is the directory to scan (EV_DATA_DIR or cwd if empty)
	DataDir string
	// ValidateAfterDiscovery parses each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid keeps sources that failed validation in results
	IncludeInvalid bool
	// Parse options used during validation
	Parse loader.ParseOptions
	// Logger receives discovery messages when non-nil
	Logger func(msg string)
}

// TypeForPath infers the source type from a file extension.
func TypeForPath(path string) (SourceType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		return SourceTypeSQLite, true
	case ".csv":
		return SourceTypeCSV, true
	case ".jsonl", ".ndjson":
		return SourceTypeJSONL, true
	default:
		return "", false
	}
}

func priorityFor(t SourceType) int {
	switch t {
	case SourceTypeSQLite:
		return PrioritySQLite
	case SourceTypeCSV:
		return PriorityCSV
	default:
		return PriorityJSONL
	}
}

// SourceForPath stats path and describes it as a DataSource.
func SourceForPath(path string) (DataSource, error) {
	typ, ok := TypeForPath(path)
	if !ok {
		return DataSource{}, fmt.Errorf("unsupported dataset extension %q", filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return DataSource{}, err
	}
	return DataSource{
		Type:     typ,
		Path:     path,
		Priority: priorityFor(typ),
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}, nil
}

// DiscoverSources finds dataset files in the data directory. With
// ValidateAfterDiscovery, candidates are parsed concurrently.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]DataSource, error) {
	defer metrics.Timer(metrics.SourceScan)()
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger(fmt.Sprintf(format, args...))
		}
	}

	dir, err := loader.GetDataDir(opts.DataDir)
	if err != nil {
		return nil, err
	}
	logf("Discovering sources in: %s", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") || strings.Contains(name, ".merge") {
			continue
		}
		src, err := SourceForPath(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		logf("Found %s: %s (mod=%s)", src.Type, src.Path, src.ModTime.Format(time.RFC3339))
		sources = append(sources, src)
	}

	if opts.ValidateAfterDiscovery {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for i := range sources {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := ValidateSource(&sources[i], opts.Parse); err != nil {
					logf("Validation failed for %s: %v", sources[i].Path, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})

	logf("Discovered %d sources", len(sources))
	return sources, nil
}

// ValidateSource parses the source and records whether it is usable.
// Warnings are discarded during validation.
func ValidateSource(src *DataSource, parse loader.ParseOptions) error {
	parse.WarningHandler = func(string) {}
	triples, err := readSource(*src, parse)
	if err != nil {
		src.Valid = false
		src.ValidationError = err.Error()
		return err
	}
	src.Valid = true
	src.ValidationError = ""
	src.TripleCount = len(triples)
	return nil
}

// SelectBestSource returns the freshest valid source; when two are within
// FreshnessWindow of each other the higher priority wins.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var best *DataSource
	for i := range sources {
		s := &sources[i]
		if !s.Valid {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		delta := s.ModTime.Sub(best.ModTime)
		switch {
		case delta > FreshnessWindow:
			best = s
		case delta >= -FreshnessWindow && s.Priority > best.Priority:
			best = s
		}
	}
	if best == nil {
		return DataSource{}, fmt.Errorf("%w: no valid sources", model.ErrSourceNotFound)
	}
	return *best, nil
}
