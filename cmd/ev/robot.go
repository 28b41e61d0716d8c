package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/eavview/internal/datasource"
	"github.com/vanderheijden86/eavview/pkg/config"
	"github.com/vanderheijden86/eavview/pkg/explore"
	"github.com/vanderheijden86/eavview/pkg/export"
	"github.com/vanderheijden86/eavview/pkg/loader"
	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/version"
)

// robotMeta is shared by every robot payload.
type robotMeta struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Version     string           `json:"version"`
	DataHash    string           `json:"data_hash,omitempty"`
	DomainNode  string           `json:"domain_node"`
	Criteria    explore.Criteria `json:"criteria"`
	Matched     int              `json:"matched"`
	Total       int              `json:"total"`
}

type robotOptions struct {
	robotMeta
	Domains []string `json:"domains"`
	Nodes   []string `json:"nodes"`
}

type robotPage struct {
	robotMeta
	Page explore.Page `json:"page"`
}

type robotTop struct {
	robotMeta
	Node   string               `json:"node"`
	Limit  int                  `json:"limit"`
	Values []explore.ValueCount `json:"values"`
}

type robotGraph struct {
	robotMeta
	Projection explore.Projection   `json:"projection"`
	Summary    explore.GraphSummary `json:"summary"`
}

type robotDetail struct {
	robotMeta
	Found  bool           `json:"found"`
	Detail explore.Detail `json:"detail"`
}

type robotSources struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Version     string                  `json:"version"`
	Directory   string                  `json:"directory"`
	Sources     []datasource.DataSource `json:"sources"`
	Selected    string                  `json:"selected,omitempty"`
}

type robotDiff struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Version     string                `json:"version"`
	Consistent  bool                  `json:"consistent"`
	Summary     string                `json:"summary"`
	Diff        datasource.SourceDiff `json:"diff"`
}

type robotMetrics struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Version     string                `json:"version"`
	Enabled     bool                  `json:"enabled"`
	Timings     []metrics.TimingStats `json:"timings"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runRobot answers the first robot flag that is set. Sources and diffs do
// not need the dataset to be loaded into the engine.
func runRobot(ctx context.Context, o *options, cfg config.Config, w io.Writer) error {
	parse := loader.ParseOptions{MissingKeys: cfg.MissingKeyPolicy()}
	switch {
	case o.robotSources:
		return writeRobotSources(ctx, cfg, parse, w)
	case o.diffSource != "":
		return writeRobotDiff(ctx, cfg, o.diffSource, parse, w)
	}

	engine := explore.NewEngine(cfg.DomainNode())
	if err := engine.Load(ctx, datasetLoader(cfg)); err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	state := initialState(o, cfg)

	switch {
	case o.robotOptions:
		domains, nodes := engine.Options()
		return writeJSON(w, robotOptions{robotMeta: meta(engine, state), Domains: domains, Nodes: nodes})
	case o.robotPage:
		v := engine.View(state)
		return writeJSON(w, robotPage{robotMeta: meta(engine, state), Page: v.Page})
	case o.robotTop != "":
		v := engine.View(state.SelectChartNode(o.robotTop))
		return writeJSON(w, robotTop{robotMeta: meta(engine, state), Node: v.ChartNode, Limit: state.TopLimit(), Values: v.Top})
	case o.robotGraph != "":
		v := engine.View(state.SelectGraphNode(o.robotGraph))
		return writeJSON(w, robotGraph{robotMeta: meta(engine, state), Projection: v.Graph, Summary: v.Graph.Summary()})
	case o.robotDetail != "":
		v := engine.View(state.SelectDetailID(o.robotDetail))
		return writeJSON(w, robotDetail{robotMeta: meta(engine, state), Found: v.Detail.Found(), Detail: *v.Detail})
	case o.robotMetrics:
		// Exercise every engine path once so the timings cover a full view.
		_ = engine.View(state.SelectDetailID(firstID(engine)))
		return writeJSON(w, robotMetrics{
			GeneratedAt: time.Now().UTC(),
			Version:     version.Version,
			Enabled:     metrics.Enabled(),
			Timings:     metrics.AllTimingStats(),
		})
	}
	return nil
}

func meta(engine *explore.Engine, state explore.State) robotMeta {
	store := engine.Snapshot()
	v := engine.View(state)
	return robotMeta{
		GeneratedAt: time.Now().UTC(),
		Version:     version.Version,
		DataHash:    store.DataHash(),
		DomainNode:  engine.DomainNode(),
		Criteria:    state.Criteria().Normalized(),
		Matched:     len(v.Filtered),
		Total:       store.Len(),
	}
}

func firstID(engine *explore.Engine) string {
	if all := engine.Snapshot().All(); len(all) > 0 {
		return all[0].ID
	}
	return ""
}

func writeRobotSources(ctx context.Context, cfg config.Config, parse loader.ParseOptions, w io.Writer) error {
	dir := cfg.Dataset.Path
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
	}
	dir, err := loader.GetDataDir(dir)
	if err != nil {
		return err
	}
	sources, err := datasource.DiscoverSources(ctx, datasource.DiscoveryOptions{
		DataDir:                dir,
		ValidateAfterDiscovery: true,
		IncludeInvalid:         true,
		Parse:                  parse,
	})
	if err != nil {
		return err
	}
	out := robotSources{
		GeneratedAt: time.Now().UTC(),
		Version:     version.Version,
		Directory:   dir,
		Sources:     sources,
	}
	if best, err := datasource.SelectBestSource(sources); err == nil {
		out.Selected = best.Path
	}
	if out.Sources == nil {
		out.Sources = []datasource.DataSource{}
	}
	return writeJSON(w, out)
}

// primarySource resolves the configured dataset to one concrete source.
func primarySource(ctx context.Context, cfg config.Config, parse loader.ParseOptions) (datasource.DataSource, error) {
	if path := cfg.Dataset.Path; path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return datasource.SourceForPath(path)
		}
	}
	sources, err := datasource.DiscoverSources(ctx, datasource.DiscoveryOptions{
		DataDir:                cfg.Dataset.Path,
		ValidateAfterDiscovery: true,
		Parse:                  parse,
	})
	if err != nil {
		return datasource.DataSource{}, err
	}
	return datasource.SelectBestSource(sources)
}

func writeRobotDiff(ctx context.Context, cfg config.Config, other string, parse loader.ParseOptions, w io.Writer) error {
	a, err := primarySource(ctx, cfg, parse)
	if err != nil {
		return fmt.Errorf("resolving dataset: %w", err)
	}
	b, err := datasource.SourceForPath(other)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", other, err)
	}
	diff, err := datasource.CompareSources(ctx, a, b, parse, datasource.DefaultDiffOptions())
	if err != nil {
		return err
	}
	return writeJSON(w, robotDiff{
		GeneratedAt: time.Now().UTC(),
		Version:     version.Version,
		Consistent:  !diff.HasInconsistencies(),
		Summary:     diff.Summary(),
		Diff:        *diff,
	})
}

// runExports writes every requested export from the filtered view.
func runExports(ctx context.Context, o *options, engine *explore.Engine, state explore.State, w io.Writer) error {
	v := engine.View(state)
	store := engine.Snapshot()

	if path := o.exportPath; path != "" {
		var err error
		if strings.EqualFold(filepath.Ext(path), ".md") {
			err = export.SaveMarkdownToFile(export.Report{
				Title:      "Triple export",
				DomainNode: engine.DomainNode(),
				Criteria:   state.Criteria(),
				Store:      store,
				Filtered:   v.Filtered,
				TopNode:    v.ChartNode,
				Top:        v.Top,
			}, path)
		} else {
			err = export.ExportTriples(ctx, path, v.Filtered)
		}
		if err != nil {
			return fmt.Errorf("export %s: %w", path, err)
		}
		fmt.Fprintf(w, "Exported %d triples to %s\n", len(v.Filtered), path)
	}

	if path := o.exportGraph; path != "" {
		err := export.SaveGraphSnapshot(export.GraphSnapshotOptions{
			Path:       path,
			Title:      "Network of " + v.GraphNode,
			Projection: v.Graph,
			DataHash:   store.DataHash(),
		})
		if err != nil {
			return fmt.Errorf("export graph %s: %w", path, err)
		}
		fmt.Fprintf(w, "Exported %q network to %s\n", v.GraphNode, path)
	}

	if path := o.exportChart; path != "" {
		err := export.SaveBarChart(export.BarChartOptions{
			Path:  path,
			Label: v.ChartNode,
			Data:  v.Top,
		})
		if err != nil {
			return fmt.Errorf("export chart %s: %w", path, err)
		}
		fmt.Fprintf(w, "Exported %q chart to %s\n", v.ChartNode, path)
	}
	return nil
}
