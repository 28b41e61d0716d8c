// Package config handles loading and saving eavview configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/eavview/config.yaml
//   - Data:    ~/.local/share/eavview/ (exports)
//   - State:   ~/.local/state/eavview/ (worker trace logs)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/eavview/pkg/model"
)

const appName = "eavview"

// Environment overrides, applied on top of the config file.
const (
	EnvDomainNode = "EV_DOMAIN_NODE"
	EnvPageSize   = "EV_PAGE_SIZE"
	EnvTopLimit   = "EV_TOP_LIMIT"
)

// Defaults.
const (
	DefaultDomainNode = "Scientific domain"
	DefaultPageSize   = 50
	DefaultTopLimit   = 20
	DefaultMode       = "table"
	DefaultDebounceMS = 200
)

// Modes accepted by view.default_mode.
var Modes = []string{"table", "charts", "network"}

// DatasetConfig describes the dataset to open.
type DatasetConfig struct {
	Path        string `yaml:"path,omitempty"`         // File or directory; empty = discover in cwd
	DomainNode  string `yaml:"domain_node,omitempty"`  // Node used as the domain facet
	MissingKeys string `yaml:"missing_keys,omitempty"` // exclude | retain
}

// NamedDataset is a dataset bookmark selectable by name.
type NamedDataset struct {
	Name       string `yaml:"name"`
	Path       string `yaml:"path"`
	DomainNode string `yaml:"domain_node,omitempty"`
}

// ViewConfig holds UI preference settings.
type ViewConfig struct {
	PageSize    int    `yaml:"page_size,omitempty"`
	TopLimit    int    `yaml:"top_limit,omitempty"`
	DefaultMode string `yaml:"default_mode,omitempty"` // table, charts, network
	ChartNode   string `yaml:"chart_node,omitempty"`
	GraphNode   string `yaml:"graph_node,omitempty"`
}

// WatchConfig controls live reload of the dataset file.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled,omitempty"`
	DebounceMS int  `yaml:"debounce_ms,omitempty"`
}

// ExperimentalConfig holds experimental feature flags.
type ExperimentalConfig struct {
	BackgroundMode *bool `yaml:"background_mode,omitempty"`
}

// Config is the top-level configuration for eavview.
type Config struct {
	Dataset      DatasetConfig      `yaml:"dataset,omitempty"`
	Datasets     []NamedDataset     `yaml:"datasets,omitempty"`
	View         ViewConfig         `yaml:"view,omitempty"`
	Watch        WatchConfig        `yaml:"watch,omitempty"`
	Experimental ExperimentalConfig `yaml:"experimental,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Dataset: DatasetConfig{
			DomainNode:  DefaultDomainNode,
			MissingKeys: string(model.MissingKeysExclude),
		},
		View: ViewConfig{
			PageSize:    DefaultPageSize,
			TopLimit:    DefaultTopLimit,
			DefaultMode: DefaultMode,
		},
		Watch: WatchConfig{
			DebounceMS: DefaultDebounceMS,
		},
	}
}

// ConfigDir returns the XDG config directory for eavview.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the XDG data directory for eavview.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// StateDir returns the XDG state directory for eavview.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Dataset.Path = expandHome(cfg.Dataset.Path)
	for i := range cfg.Datasets {
		cfg.Datasets[i].Path = expandHome(cfg.Datasets[i].Path)
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv overlays EV_DOMAIN_NODE, EV_PAGE_SIZE and EV_TOP_LIMIT. Numeric
// values that do not parse are reported rather than ignored.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvDomainNode)); v != "" {
		c.Dataset.DomainNode = v
	}
	for _, e := range []struct {
		name string
		dst  *int
	}{
		{EnvPageSize, &c.View.PageSize},
		{EnvTopLimit, &c.View.TopLimit},
	} {
		raw := strings.TrimSpace(os.Getenv(e.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", e.name, raw)
		}
		*e.dst = n
	}
	return nil
}

// Validate rejects values the rest of the program cannot use.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Dataset.DomainNode) == "" {
		errs = append(errs, errors.New("dataset.domain_node must not be empty"))
	}
	if _, err := model.ParseMissingKeyPolicy(c.Dataset.MissingKeys); err != nil {
		errs = append(errs, fmt.Errorf("dataset.missing_keys: %w", err))
	}
	if c.View.PageSize < 0 {
		errs = append(errs, fmt.Errorf("view.page_size must be positive, got %d", c.View.PageSize))
	}
	if c.View.TopLimit < 0 {
		errs = append(errs, fmt.Errorf("view.top_limit must be positive, got %d", c.View.TopLimit))
	}
	if c.View.DefaultMode != "" && !validMode(c.View.DefaultMode) {
		errs = append(errs, fmt.Errorf("view.default_mode %q is not one of %s", c.View.DefaultMode, strings.Join(Modes, ", ")))
	}
	if c.Watch.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMS))
	}
	seen := make(map[string]bool)
	for i, d := range c.Datasets {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("datasets[%d]: name is required", i))
		case seen[name]:
			errs = append(errs, fmt.Errorf("datasets[%d]: duplicate name %q", i, d.Name))
		}
		seen[name] = true
		if strings.TrimSpace(d.Path) == "" {
			errs = append(errs, fmt.Errorf("datasets[%d]: path is required", i))
		}
	}
	return errors.Join(errs...)
}

func validMode(m string) bool {
	for _, mode := range Modes {
		if strings.EqualFold(m, mode) {
			return true
		}
	}
	return false
}

// MissingKeyPolicy returns the parsed policy, defaulting to exclude.
func (c Config) MissingKeyPolicy() model.MissingKeyPolicy {
	p, err := model.ParseMissingKeyPolicy(c.Dataset.MissingKeys)
	if err != nil {
		return model.MissingKeysExclude
	}
	return p
}

// PageSize returns view.page_size or the default.
func (c Config) PageSize() int {
	if c.View.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.View.PageSize
}

// TopLimit returns view.top_limit or the default.
func (c Config) TopLimit() int {
	if c.View.TopLimit <= 0 {
		return DefaultTopLimit
	}
	return c.View.TopLimit
}

// DomainNode returns dataset.domain_node or the default.
func (c Config) DomainNode() string {
	if n := strings.TrimSpace(c.Dataset.DomainNode); n != "" {
		return n
	}
	return DefaultDomainNode
}

// Debounce returns the watcher debounce interval.
func (c Config) Debounce() time.Duration {
	if c.Watch.DebounceMS <= 0 {
		return DefaultDebounceMS * time.Millisecond
	}
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// BackgroundMode reports whether the background worker drives reloads.
func (c Config) BackgroundMode() bool {
	return c.Experimental.BackgroundMode != nil && *c.Experimental.BackgroundMode
}

// FindDataset returns the bookmarked dataset with the given name, or nil.
func (c Config) FindDataset(name string) *NamedDataset {
	for i := range c.Datasets {
		if strings.EqualFold(c.Datasets[i].Name, name) {
			return &c.Datasets[i]
		}
	}
	return nil
}

// UseDataset points Dataset at the bookmark named name.
func (c *Config) UseDataset(name string) error {
	d := c.FindDataset(name)
	if d == nil {
		return fmt.Errorf("no dataset named %q in config", name)
	}
	c.Dataset.Path = d.Path
	if d.DomainNode != "" {
		c.Dataset.DomainNode = d.DomainNode
	}
	return nil
}

// ResolvedPath returns the dataset path with ~ expanded.
func (d NamedDataset) ResolvedPath() string {
	return expandHome(d.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
