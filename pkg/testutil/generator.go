// Package testutil provides triple dataset generators and assertion helpers.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/eavview/pkg/model"
)

// DomainNode is the domain facet used by generated datasets.
const DomainNode = "Scientific domain"

// GeneratorConfig controls triple generation.
type GeneratorConfig struct {
	Seed          int64    // Random seed (0 = 42)
	IDPrefix      string   // Prefix for IDs (default: "P")
	IDCount       int      // Distinct IDs (default: 20)
	Nodes         []string // Attribute nodes besides the domain (default: Country, Year, Open access)
	Domains       []string // Domain values (default: Bio, Physics, Chemistry)
	NullRate      float64  // Chance an attribute value is null
	DuplicateRate float64  // Chance a triple is emitted twice
	SkipDomain    float64  // Chance an ID has no domain triple
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42,
		IDPrefix: "P",
		IDCount:  20,
		Nodes:    []string{"Country", "Year", "Open access"},
		Domains:  []string{"Bio", "Physics", "Chemistry"},
	}
}

// Generator creates triple fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = def.IDPrefix
	}
	if cfg.IDCount <= 0 {
		cfg.IDCount = def.IDCount
	}
	if len(cfg.Nodes) == 0 {
		cfg.Nodes = def.Nodes
	}
	if len(cfg.Domains) == 0 {
		cfg.Domains = def.Domains
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var countries = []string{"EG", "FR", "US", "BR", "IN", "JP"}

// Triples generates one domain triple (unless skipped) and one triple per
// configured node for every ID, interleaved the way an export would list
// them.
func (g *Generator) Triples() []model.Triple {
	var out []model.Triple
	emit := func(t model.Triple) {
		out = append(out, t)
		if g.cfg.DuplicateRate > 0 && g.rng.Float64() < g.cfg.DuplicateRate {
			out = append(out, t)
		}
	}
	for i := 0; i < g.cfg.IDCount; i++ {
		id := fmt.Sprintf("%s%03d", g.cfg.IDPrefix, i)
		if g.cfg.SkipDomain == 0 || g.rng.Float64() >= g.cfg.SkipDomain {
			emit(model.Triple{ID: id, Node: DomainNode, Value: model.StringValue(g.pick(g.cfg.Domains))})
		}
		for _, node := range g.cfg.Nodes {
			emit(model.Triple{ID: id, Node: node, Value: g.valueFor(node)})
		}
	}
	return out
}

// Store generates Triples and wraps them in a store.
func (g *Generator) Store() *model.Store {
	return model.NewStore(g.Triples())
}

func (g *Generator) pick(from []string) string {
	return from[g.rng.Intn(len(from))]
}

func (g *Generator) valueFor(node string) model.Value {
	if g.cfg.NullRate > 0 && g.rng.Float64() < g.cfg.NullRate {
		return model.Null()
	}
	switch node {
	case "Year":
		return model.NumberValue(float64(2000 + g.rng.Intn(25)))
	case "Open access":
		return model.BoolValue(g.rng.Intn(2) == 0)
	case "Country":
		return model.StringValue(g.pick(countries))
	default:
		return model.StringValue(fmt.Sprintf("%s-%d", strings.ToLower(node), g.rng.Intn(5)))
	}
}

// Scenario returns the three-triple dataset used in behavioral tests.
func Scenario() []model.Triple {
	return []model.Triple{
		{ID: "A", Node: DomainNode, Value: model.StringValue("Bio")},
		{ID: "A", Node: "Country", Value: model.StringValue("EG")},
		{ID: "B", Node: DomainNode, Value: model.StringValue("Physics")},
	}
}

// ScenarioStore wraps Scenario in a store.
func ScenarioStore() *model.Store {
	return model.NewStore(Scenario())
}

// Empty returns an empty dataset.
func Empty() []model.Triple {
	return []model.Triple{}
}

// ToCSV renders triples with an ID,node,value header.
func ToCSV(triples []model.Triple) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{model.ColumnID, model.ColumnNode, model.ColumnValue})
	for _, t := range triples {
		_ = w.Write([]string{t.ID, t.Node, t.Value.String()})
	}
	w.Flush()
	return sb.String()
}

// ToJSONL converts triples to JSONL format (one JSON object per line).
func ToJSONL(triples []model.Triple) string {
	var sb strings.Builder
	for _, t := range triples {
		data, err := json.Marshal(t)
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}
