package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/eavview/pkg/model"
)

// WriteCSV writes triples with an ID,node,value header. Null values are empty cells.
func WriteCSV(w io.Writer, triples []model.Triple) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{model.ColumnID, model.ColumnNode, model.ColumnValue}); err != nil {
		return err
	}
	for _, t := range triples {
		if err := cw.Write([]string{t.ID, t.Node, t.Value.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes triples as an indented JSON array. An empty input is "[]".
func WriteJSON(w io.Writer, triples []model.Triple) error {
	if triples == nil {
		triples = []model.Triple{}
	}
	data, err := json.MarshalIndent(triples, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal triples: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteJSONL writes one JSON object per triple.
func WriteJSONL(w io.Writer, triples []model.Triple) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, t := range triples {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode %s: %w", t, err)
		}
	}
	return bw.Flush()
}

// ExportTriples writes triples to path, choosing the format by extension:
// .csv, .json, .jsonl/.ndjson, .db/.sqlite, or .md for a markdown report.
func ExportTriples(ctx context.Context, path string, triples []model.Triple) error {
	if path == "" {
		return fmt.Errorf("output path is required")
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".db", ".sqlite":
		return ExportSQLite(ctx, path, triples)
	case ".md":
		return SaveMarkdownToFile(Report{Filtered: triples}, path)
	}

	var write func(io.Writer, []model.Triple) error
	switch ext {
	case ".csv":
		write = WriteCSV
	case ".json":
		write = WriteJSON
	case ".jsonl", ".ndjson":
		write = WriteJSONL
	default:
		return fmt.Errorf("unsupported export format %q (want .csv, .json, .jsonl, .db or .md)", ext)
	}

	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, triples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
