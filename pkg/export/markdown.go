package export

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/vanderheijden86/eavview/pkg/explore"
	"github.com/vanderheijden86/eavview/pkg/model"
)

var slugNonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// DefaultMaxDetails caps the per-ID sections of a report.
const DefaultMaxDetails = 100

// Report is the input of GenerateMarkdown.
type Report struct {
	Title      string
	DomainNode string
	Criteria   explore.Criteria
	Store      *model.Store // Source of per-ID details; optional
	Filtered   []model.Triple
	TopNode    string
	Top        []explore.ValueCount
	MaxDetails int
	Now        func() time.Time
}

// GenerateMarkdown renders a filtered result as a markdown report: summary,
// active filters, top values and one section per matching ID.
func GenerateMarkdown(r Report) string {
	var sb strings.Builder

	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "Triple Export"
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", now().Format(time.RFC1123)))

	ids := distinctIDs(r.Filtered)
	nodes := make(map[string]bool)
	for _, t := range r.Filtered {
		nodes[t.Node] = true
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	if r.Store != nil {
		sb.WriteString(fmt.Sprintf("| Store triples | %d |\n", r.Store.Len()))
	}
	sb.WriteString(fmt.Sprintf("| **Matching triples** | %d |\n", len(r.Filtered)))
	sb.WriteString(fmt.Sprintf("| Distinct IDs | %d |\n", len(ids)))
	sb.WriteString(fmt.Sprintf("| Node types | %d |\n\n", len(nodes)))

	c := r.Criteria.Normalized()
	if !c.IsEmpty() {
		sb.WriteString("## Filters\n\n")
		if c.Query != "" {
			sb.WriteString(fmt.Sprintf("- **Query**: `%s`\n", strings.ReplaceAll(c.Query, "`", "'")))
		}
		if len(c.DomainValues) > 0 {
			domain := r.DomainNode
			if domain == "" {
				domain = explore.DefaultDomainNode
			}
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", escapeCell(domain), escapeCell(strings.Join(c.DomainValues, ", "))))
		}
		if len(c.NodeTypes) > 0 {
			sb.WriteString(fmt.Sprintf("- **Nodes**: %s\n", escapeCell(strings.Join(c.NodeTypes, ", "))))
		}
		sb.WriteString("\n")
	}

	if len(r.Top) > 0 {
		sb.WriteString(fmt.Sprintf("## Top values of %s\n\n", escapeCell(r.TopNode)))
		sb.WriteString("| Value | Count | |\n|-------|-------|---|\n")
		peak := max(1, r.Top[0].Count)
		for _, vc := range r.Top {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", escapeCell(displayValue(vc.Value)), vc.Count,
				barChart(float64(vc.Count)/float64(peak))))
		}
		sb.WriteString("\n")
	}

	if len(ids) == 0 {
		sb.WriteString("*No matching triples.*\n")
		return sb.String()
	}

	limit := r.MaxDetails
	if limit <= 0 {
		limit = DefaultMaxDetails
	}
	shown := ids
	if len(shown) > limit {
		shown = shown[:limit]
	}

	slugCounts := make(map[string]int, len(shown))
	slugs := make([]string, len(shown))
	for i, id := range shown {
		slugs[i] = uniqueSlug(createSlug(id), slugCounts)
	}

	sb.WriteString("## IDs\n\n")
	for i, id := range shown {
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", escapeCell(id), slugs[i]))
	}
	if len(ids) > len(shown) {
		sb.WriteString(fmt.Sprintf("- *... and %d more*\n", len(ids)-len(shown)))
	}
	sb.WriteString("\n---\n\n")

	for i, id := range shown {
		var d explore.Detail
		if r.Store != nil {
			d = explore.DetailsFor(r.Store, id)
		} else {
			d = detailFromTriples(id, r.Filtered)
		}
		sb.WriteString(fmt.Sprintf("<a id=\"%s\"></a>\n\n", slugs[i]))
		sb.WriteString(DetailMarkdown(d))
		sb.WriteString("---\n\n")
	}

	return sb.String()
}

// DetailMarkdown renders one ID's values grouped by node as a heading and table.
func DetailMarkdown(d explore.Detail) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeCell(d.ID)))
	if !d.Found() {
		sb.WriteString("*No triples for this ID.*\n\n")
		return sb.String()
	}
	sb.WriteString("| Node | Values |\n|------|--------|\n")
	for _, g := range d.Groups {
		values := make([]string, len(g.Values))
		for i, v := range g.Values {
			values[i] = displayValue(v)
		}
		sb.WriteString(fmt.Sprintf("| **%s** | %s |\n", escapeCell(g.Node), escapeCell(strings.Join(values, ", "))))
	}
	sb.WriteString("\n")
	return sb.String()
}

// SaveMarkdownToFile writes GenerateMarkdown(r) to path.
func SaveMarkdownToFile(r Report, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(GenerateMarkdown(r)), 0o644)
}

func detailFromTriples(id string, triples []model.Triple) explore.Detail {
	return explore.DetailsFor(model.NewStore(filterID(triples, id)), id)
}

func filterID(triples []model.Triple, id string) []model.Triple {
	var out []model.Triple
	for _, t := range triples {
		if t.ID == id {
			out = append(out, t)
		}
	}
	return out
}

func distinctIDs(triples []model.Triple) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range triples {
		if !seen[t.ID] {
			seen[t.ID] = true
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func displayValue(v model.Value) string {
	if v.IsNull() {
		return "∅"
	}
	return v.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

func uniqueSlug(base string, counts map[string]int) string {
	if base == "" {
		base = "id"
	}
	if count, ok := counts[base]; ok {
		count++
		counts[base] = count
		return fmt.Sprintf("%s-%d", base, count)
	}
	counts[base] = 0
	return base
}

func createSlug(text string) string {
	slug := strings.ToLower(text)
	slug = slugNonAlphanumericRegex.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// barChart draws a four-cell bar for a 0-1 ratio.
func barChart(value float64) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	switch int(value * 4) {
	case 0:
		return "░░░░"
	case 1:
		return "█░░░"
	case 2:
		return "██░░"
	case 3:
		return "███░"
	default:
		return "████"
	}
}
