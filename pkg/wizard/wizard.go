// Package wizard implements the interactive filter wizard behind --pick.
// It asks for a text query and the domain and node filters before the
// explorer starts, and returns the resulting state.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/eavview/pkg/explore"
)

// Choices is what the wizard collected.
type Choices struct {
	Query        string
	DomainValues []string
	NodeTypes    []string
}

// Apply sets the choices on s. Every setter resets the page.
func (c Choices) Apply(s explore.State) explore.State {
	return s.SetQuery(c.Query).
		SetDomainFilter(c.DomainValues).
		SetNodeFilter(c.NodeTypes)
}

// Wizard walks the user through the filter choices for one dataset.
type Wizard struct {
	domainNode    string
	domainOptions []string
	nodeOptions   []string
	out           io.Writer

	choices Choices
}

// New creates a wizard over the option vocabularies of a loaded engine,
// preselecting whatever state already carries.
func New(engine *explore.Engine, state explore.State) *Wizard {
	domains, nodes := engine.Options()
	return &Wizard{
		domainNode:    engine.DomainNode(),
		domainOptions: domains,
		nodeOptions:   nodes,
		out:           os.Stdout,
		choices: Choices{
			Query:        state.Query(),
			DomainValues: keepKnown(state.DomainValues(), domains),
			NodeTypes:    keepKnown(state.NodeTypes(), nodes),
		},
	}
}

// SetOutput redirects the banner. Nil discards it.
func (w *Wizard) SetOutput(out io.Writer) {
	if out == nil {
		out = io.Discard
	}
	w.out = out
}

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// Form builds the huh form bound to the wizard's choices. Groups with no
// options are hidden.
func (w *Wizard) Form() *huh.Form {
	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().
				Title("Search").
				Description("Case-insensitive match on ID, node or value. Leave empty for all triples.").
				Placeholder("e.g. physics").
				Value(&w.choices.Query),
		),
	}
	if len(w.domainOptions) > 0 {
		groups = append(groups, huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Filter by "+w.domainNode).
				Description("Keeps every triple of the IDs that have one of these values.").
				Options(huh.NewOptions(w.domainOptions...)...).
				Filterable(true).
				Value(&w.choices.DomainValues),
		))
	}
	if len(w.nodeOptions) > 0 {
		groups = append(groups, huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Filter by node").
				Description("Keeps only triples of these nodes.").
				Options(huh.NewOptions(w.nodeOptions...)...).
				Filterable(true).
				Value(&w.choices.NodeTypes),
		))
	}
	return newForm(groups...)
}

// Run shows the form and returns the collected choices. An aborted form
// returns huh.ErrUserAborted.
func (w *Wizard) Run() (Choices, error) {
	w.printBanner()
	if err := w.Form().Run(); err != nil {
		return Choices{}, err
	}
	c := w.Choices()
	fmt.Fprintln(w.out, Summary(c, w.domainNode))
	return c, nil
}

// Choices returns the current choices with the query trimmed.
func (w *Wizard) Choices() Choices {
	c := w.choices
	c.Query = strings.TrimSpace(c.Query)
	c.DomainValues = append([]string(nil), c.DomainValues...)
	c.NodeTypes = append([]string(nil), c.NodeTypes...)
	return c
}

func (w *Wizard) printBanner() {
	fmt.Fprintln(w.out, "")
	fmt.Fprintln(w.out, "Filter wizard")
	fmt.Fprintf(w.out, "  %d %s values, %d nodes. Press Ctrl+C to cancel.\n",
		len(w.domainOptions), w.domainNode, len(w.nodeOptions))
	fmt.Fprintln(w.out, "")
}

// Summary describes the choices in one line.
func Summary(c Choices, domainNode string) string {
	var parts []string
	if c.Query != "" {
		parts = append(parts, fmt.Sprintf("query %q", c.Query))
	}
	if len(c.DomainValues) > 0 {
		parts = append(parts, fmt.Sprintf("%s in [%s]", domainNode, strings.Join(c.DomainValues, ", ")))
	}
	if len(c.NodeTypes) > 0 {
		parts = append(parts, fmt.Sprintf("nodes [%s]", strings.Join(c.NodeTypes, ", ")))
	}
	if len(parts) == 0 {
		return "No filters selected."
	}
	return "Filters: " + strings.Join(parts, "; ")
}

// keepKnown drops preselected values the dataset does not offer, keeping
// the option order.
func keepKnown(selected, options []string) []string {
	if len(selected) == 0 {
		return nil
	}
	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		want[s] = true
	}
	var out []string
	for _, o := range options {
		if want[o] {
			out = append(out, o)
		}
	}
	return out
}
