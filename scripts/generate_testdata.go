//go:build ignore

// generate_testdata.go creates standard triple datasets for benchmarking.
// Usage: go run scripts/generate_testdata.go [output-dir]
//
// Creates, under testdata/benchmark by default:
//
//	small.csv   / small.jsonl    (100 IDs)
//	medium.csv  / medium.jsonl   (1000 IDs)
//	large.csv   / large.jsonl    (5000 IDs)
//	huge.csv    / huge.jsonl     (20000 IDs)
//	large.db                     (5000 IDs, sqlite)
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/eavview/pkg/export"
	"github.com/vanderheijden86/eavview/pkg/testutil"
)

type datasetSpec struct {
	name   string
	ids    int
	sqlite bool
}

var datasets = []datasetSpec{
	{"small", 100, false},
	{"medium", 1000, false},
	{"large", 5000, true},
	{"huge", 20000, false},
}

func main() {
	outputDir := "testdata/benchmark"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d IDs)...\n", ds.name, ds.ids)

		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.ids) // Reproducible per-size
		cfg.IDPrefix = "BENCH"
		cfg.IDCount = ds.ids
		cfg.Nodes = []string{"Country", "Year", "Open access", "Citations", "Journal"}
		cfg.Domains = []string{"Bio", "Physics", "Chemistry", "Mathematics", "Earth science", "Medicine"}
		cfg.NullRate = 0.02
		cfg.DuplicateRate = 0.01
		cfg.SkipDomain = 0.05

		triples := testutil.New(cfg).Triples()

		for ext, content := range map[string]string{
			".csv":   testutil.ToCSV(triples),
			".jsonl": testutil.ToJSONL(triples),
		} {
			outputPath := filepath.Join(outputDir, ds.name+ext)
			if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
				os.Exit(1)
			}
			fmt.Printf("  Written %s (%d bytes, %d triples)\n", outputPath, len(content), len(triples))
		}

		if ds.sqlite {
			outputPath := filepath.Join(outputDir, ds.name+".db")
			_ = os.Remove(outputPath)
			if err := export.ExportSQLite(context.Background(), outputPath, triples); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
				os.Exit(1)
			}
			fmt.Printf("  Written %s (%d triples)\n", outputPath, len(triples))
		}
	}

	fmt.Println("\nDone! Test datasets created in", outputDir)
}
