package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/eavview/pkg/explore"
	"github.com/vanderheijden86/eavview/pkg/export"
)

// markdownRenderer turns a detail card into terminal output. It renders the
// raw markdown when glamour is unavailable.
type markdownRenderer struct {
	tr *glamour.TermRenderer
}

func newMarkdownRenderer(width int) *markdownRenderer {
	if width < 20 {
		width = 20
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{tr: tr}
}

func (r *markdownRenderer) render(md string) string {
	if r == nil || r.tr == nil {
		return md
	}
	out, err := r.tr.Render(md)
	if err != nil {
		return md
	}
	// Strip trailing whitespace/newlines that glamour adds
	return strings.TrimRight(out, " \n")
}

func (r *markdownRenderer) renderDetail(d explore.Detail) string {
	return r.render(export.DetailMarkdown(d))
}

func (m Model) renderDetail() string {
	title := m.theme.Header.Render("Details")
	if m.view.Detail != nil {
		title = m.theme.Header.Render(truncate(m.view.Detail.ID, max(10, m.width-10)))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		FocusedPanelStyle.Width(max(20, m.width-2)).Render(m.detail.View()),
	)
}
