package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/vanderheijden86/eavview/internal/datasource"
	"github.com/vanderheijden86/eavview/pkg/config"
	"github.com/vanderheijden86/eavview/pkg/debug"
	"github.com/vanderheijden86/eavview/pkg/explore"
	"github.com/vanderheijden86/eavview/pkg/loader"
	"github.com/vanderheijden86/eavview/pkg/model"
	"github.com/vanderheijden86/eavview/pkg/ui"
	"github.com/vanderheijden86/eavview/pkg/version"
	"github.com/vanderheijden86/eavview/pkg/wizard"
)

// EnvBackgroundMode overrides experimental.background_mode.
const EnvBackgroundMode = "EV_BACKGROUND_MODE"

// listFlag collects a repeatable, comma separated flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

type options struct {
	help, version bool
	cpuProfile    string
	configPath    string

	data        string
	dataset     string
	domainNode  string
	pageSize    int
	missingKeys string
	mode        string

	query   string
	domains listFlag
	nodes   listFlag
	page    int
	pick    bool

	robotOptions bool
	robotPage    bool
	robotTop     string
	robotGraph   string
	robotDetail  string
	robotMetrics bool
	robotSources bool
	diffSource   string

	exportPath  string
	exportGraph string
	exportChart string

	watch            bool
	backgroundMode   bool
	noBackgroundMode bool
}

func (o *options) robot() bool {
	return o.robotOptions || o.robotPage || o.robotTop != "" || o.robotGraph != "" ||
		o.robotDetail != "" || o.robotMetrics || o.robotSources || o.diffSource != ""
}

func (o *options) exporting() bool {
	return o.exportPath != "" || o.exportGraph != "" || o.exportChart != ""
}

func parseArgs(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	o := &options{}
	fs := flag.NewFlagSet("ev", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&o.help, "help", false, "Show help")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.StringVar(&o.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/eavview/config.yaml)")

	fs.StringVar(&o.data, "data", "", "Dataset file or directory (default: discover in $EV_DATA_DIR or cwd)")
	fs.StringVar(&o.dataset, "dataset", "", "Open a named dataset from the config file")
	fs.StringVar(&o.domainNode, "domain-node", "", "Node used as the domain facet")
	fs.IntVar(&o.pageSize, "page-size", 0, "Rows per table page")
	fs.StringVar(&o.missingKeys, "missing-keys", "", "Rows with an empty ID or node: exclude or retain")
	fs.StringVar(&o.mode, "mode", "", "Initial view: table, charts or network")

	fs.StringVar(&o.query, "query", "", "Text query (case-insensitive match on ID, node or value)")
	fs.Var(&o.domains, "domain", "Domain value filter (repeatable, comma list)")
	fs.Var(&o.nodes, "nodes", "Node filter (repeatable, comma list)")
	fs.IntVar(&o.page, "page", 1, "Page to show")
	fs.BoolVar(&o.pick, "pick", false, "Choose filters in an interactive wizard before the explorer starts")

	fs.BoolVar(&o.robotOptions, "robot-options", false, "Output domain and node options as JSON")
	fs.BoolVar(&o.robotPage, "robot-page", false, "Output the current page as JSON")
	fs.StringVar(&o.robotTop, "robot-top", "", "Output the top values of `node` as JSON")
	fs.StringVar(&o.robotGraph, "robot-graph", "", "Output the bipartite projection of `node` as JSON")
	fs.StringVar(&o.robotDetail, "robot-detail", "", "Output the details of `id` as JSON")
	fs.BoolVar(&o.robotMetrics, "robot-metrics", false, "Output timing metrics as JSON")
	fs.BoolVar(&o.robotSources, "robot-sources", false, "Output discovered dataset sources as JSON")
	fs.StringVar(&o.diffSource, "diff-source", "", "Compare the dataset with another `path` and output the diff as JSON")

	fs.StringVar(&o.exportPath, "export", "", "Export filtered triples (.csv, .json, .jsonl, .db, .md)")
	fs.StringVar(&o.exportGraph, "export-graph", "", "Export the network view (.svg or .png)")
	fs.StringVar(&o.exportChart, "export-chart", "", "Export the chart view (.svg or .png)")

	fs.BoolVar(&o.watch, "watch", false, "Reload when the dataset changes")
	fs.BoolVar(&o.backgroundMode, "background-mode", false, "Load the dataset inside the TUI instead of before it starts")
	fs.BoolVar(&o.noBackgroundMode, "no-background-mode", false, "Load the dataset before the TUI starts")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if fs.NArg() > 0 && o.data == "" {
		o.data = fs.Arg(0)
	}
	if o.backgroundMode && o.noBackgroundMode {
		return nil, fs, errors.New("--background-mode and --no-background-mode are mutually exclusive")
	}
	if o.pick && (o.robot() || o.exporting()) {
		return nil, fs, errors.New("--pick cannot be combined with robot or export flags")
	}
	return o, fs, nil
}

// resolveConfig layers flags over env over the config file.
func resolveConfig(o *options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if o.dataset != "" {
		if err := cfg.UseDataset(o.dataset); err != nil {
			return cfg, err
		}
	}
	if o.data != "" {
		cfg.Dataset.Path = o.data
	}
	if o.domainNode != "" {
		cfg.Dataset.DomainNode = o.domainNode
	}
	if o.pageSize != 0 {
		cfg.View.PageSize = o.pageSize
	}
	if o.missingKeys != "" {
		cfg.Dataset.MissingKeys = o.missingKeys
	}
	if o.mode != "" {
		cfg.View.DefaultMode = o.mode
	}
	if o.watch {
		cfg.Watch.Enabled = true
	}
	if o.pageSize < 0 {
		return cfg, fmt.Errorf("--page-size must be positive, got %d", o.pageSize)
	}
	return cfg, cfg.Validate()
}

// resolveBackgroundMode applies --background-mode, then EV_BACKGROUND_MODE,
// then the config file.
func resolveBackgroundMode(o *options, cfg config.Config) bool {
	switch {
	case o.backgroundMode:
		return true
	case o.noBackgroundMode:
		return false
	}
	if v, ok := os.LookupEnv(EnvBackgroundMode); ok && strings.TrimSpace(v) != "" {
		on, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && on
	}
	return cfg.BackgroundMode()
}

// initialState builds the explorer state from the resolved config and the
// filter flags.
func initialState(o *options, cfg config.Config) explore.State {
	return explore.NewState(cfg.PageSize()).
		SetTopLimit(cfg.TopLimit()).
		SelectChartNode(cfg.View.ChartNode).
		SelectGraphNode(cfg.View.GraphNode).
		SetQuery(o.query).
		SetDomainFilter(o.domains).
		SetNodeFilter(o.nodes).
		SetPage(o.page)
}

// datasetLoader returns the load function for the configured dataset: a
// file is parsed directly, a directory (or nothing) goes through source
// discovery.
func datasetLoader(cfg config.Config) explore.LoadFunc {
	path := cfg.Dataset.Path
	opts := datasource.LoadOptions{
		Parse:  loader.ParseOptions{MissingKeys: cfg.MissingKeyPolicy()},
		Logger: func(msg string) { debug.Log("%s", msg) },
	}
	return func(ctx context.Context) (*model.Store, error) {
		if path != "" {
			if info, err := os.Stat(path); err != nil || !info.IsDir() {
				return datasource.Load(ctx, path, opts)
			}
		}
		store, src, err := datasource.LoadDir(ctx, path, opts)
		if err == nil {
			debug.Log("loaded %s", src)
		}
		return store, err
	}
}

// watchPath is the file or directory the worker watches.
func watchPath(cfg config.Config) (string, error) {
	if cfg.Dataset.Path != "" {
		return cfg.Dataset.Path, nil
	}
	return loader.GetDataDir("")
}

func datasetLabel(cfg config.Config) string {
	if cfg.Dataset.Path != "" {
		return cfg.Dataset.Path
	}
	dir, err := loader.GetDataDir("")
	if err != nil {
		return "."
	}
	return dir
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	o, fs, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if o.cpuProfile != "" {
		f, err := os.Create(o.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	if o.help {
		fmt.Fprintln(stdout, "Usage: ev [options] [dataset]")
		fmt.Fprintln(stdout, "\nAn explorer for entity-attribute-value triple datasets.")
		fs.SetOutput(stdout)
		fs.PrintDefaults()
		return 0
	}
	if o.version {
		fmt.Fprintf(stdout, "ev %s\n", version.Version)
		return 0
	}

	cfg, err := resolveConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid configuration: %v\n", err)
		return 2
	}

	ctx := context.Background()
	if o.robot() {
		_ = os.Setenv("EV_ROBOT", "1")
		if err := runRobot(ctx, o, cfg, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	engine := explore.NewEngine(cfg.DomainNode())
	state := initialState(o, cfg)
	load := datasetLoader(cfg)

	if o.exporting() {
		if err := engine.Load(ctx, load); err != nil {
			fmt.Fprintf(stderr, "Error loading dataset: %v\n", err)
			return 1
		}
		if err := runExports(ctx, o, engine, state, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	background := resolveBackgroundMode(o, cfg)
	if !background || o.pick {
		if err := engine.Load(ctx, load); err != nil {
			fmt.Fprintf(stderr, "Error loading dataset: %v\n", err)
			fmt.Fprintln(stderr, "Pass --data with a .csv, .jsonl or .db file, or set EV_DATA_DIR.")
			return 1
		}
	}

	if o.pick {
		choices, err := wizard.New(engine, state).Run()
		if err != nil {
			fmt.Fprintf(stderr, "Filter wizard cancelled: %v\n", err)
			return 1
		}
		state = choices.Apply(state)
	}

	workerCfg := ui.WorkerConfig{
		Engine:        engine,
		Load:          load,
		DebounceDelay: cfg.Debounce(),
	}
	if cfg.Watch.Enabled {
		path, err := watchPath(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		workerCfg.Path = path
	}
	worker, err := ui.NewBackgroundWorker(workerCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer worker.Stop()

	m := ui.NewModel(ui.Options{
		Engine:       engine,
		Worker:       worker,
		State:        state,
		Mode:         ui.ParseMode(cfg.View.DefaultMode),
		DatasetLabel: datasetLabel(cfg),
	})
	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(stderr, "Error running ev: %v\n", err)
		return 1
	}
	return 0
}
