package ui

import (
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

// FilterPickerModel is a fuzzy-search multi-select popup used for the
// domain and node filters.
type FilterPickerModel struct {
	title         string
	allOptions    []string
	filtered      []string
	selected      map[string]bool
	input         textinput.Model
	selectedIndex int
	width         int
	height        int
	theme         Theme
}

// NewFilterPickerModel creates a picker over options with the current
// selection pre-checked. Options keep their given order.
func NewFilterPickerModel(title string, options, current []string, theme Theme) FilterPickerModel {
	opts := make([]string, len(options))
	copy(opts, options)

	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 50
	ti.Width = 30
	ti.Focus()

	selected := make(map[string]bool, len(current))
	for _, c := range current {
		selected[c] = true
	}

	return FilterPickerModel{
		title:      title,
		allOptions: opts,
		filtered:   opts,
		selected:   selected,
		input:      ti,
		theme:      theme,
	}
}

// SetSize updates the picker dimensions
func (m *FilterPickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MoveUp moves selection up
func (m *FilterPickerModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// MoveDown moves selection down
func (m *FilterPickerModel) MoveDown() {
	if m.selectedIndex < len(m.filtered)-1 {
		m.selectedIndex++
	}
}

// Current returns the option under the cursor.
func (m *FilterPickerModel) Current() string {
	if len(m.filtered) == 0 || m.selectedIndex >= len(m.filtered) {
		return ""
	}
	return m.filtered[m.selectedIndex]
}

// Toggle checks or unchecks the option under the cursor.
func (m *FilterPickerModel) Toggle() {
	opt := m.Current()
	if opt == "" {
		return
	}
	if m.selected[opt] {
		delete(m.selected, opt)
	} else {
		m.selected[opt] = true
	}
}

// Clear unchecks everything.
func (m *FilterPickerModel) Clear() {
	m.selected = make(map[string]bool)
}

// Selection returns the checked options in option order.
func (m *FilterPickerModel) Selection() []string {
	var out []string
	for _, opt := range m.allOptions {
		if m.selected[opt] {
			out = append(out, opt)
		}
	}
	return out
}

// UpdateInput processes a key message for the text input
func (m *FilterPickerModel) UpdateInput(msg interface{}) {
	m.input, _ = m.input.Update(msg)
	m.filterOptions()
}

func (m *FilterPickerModel) filterOptions() {
	query := strings.ToLower(strings.TrimSpace(m.input.Value()))
	if query == "" {
		m.filtered = m.allOptions
		m.selectedIndex = 0
		return
	}

	type scored struct {
		option string
		score  int
	}

	var matches []scored
	for _, opt := range m.allOptions {
		if score := fuzzyScore(opt, query); score > 0 {
			matches = append(matches, scored{opt, score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	m.filtered = make([]string, len(matches))
	for i, match := range matches {
		m.filtered[i] = match.option
	}

	if m.selectedIndex >= len(m.filtered) {
		m.selectedIndex = len(m.filtered) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}

// fuzzyScore returns a score for how well query matches label (0 = no match).
// Consecutive and word-boundary matches score higher.
func fuzzyScore(label, query string) int {
	label = strings.ToLower(label)
	query = strings.ToLower(query)

	if label == query {
		return 1000
	}
	if strings.HasPrefix(label, query) {
		return 500 + len(query)
	}
	if strings.Contains(label, query) {
		return 200 + len(query)
	}

	lr, qr := []rune(label), []rune(query)
	li, qi := 0, 0
	score := 0
	consecutive := 0
	lastMatchIdx := -1

	for li < len(lr) && qi < len(qr) {
		if lr[li] == qr[qi] {
			qi++
			matchScore := 10

			if lastMatchIdx == li-1 {
				consecutive++
				matchScore += consecutive * 5
			} else {
				consecutive = 0
			}

			if li == 0 || !unicode.IsLetter(lr[li-1]) {
				matchScore += 15
			}

			score += matchScore
			lastMatchIdx = li
		}
		li++
	}

	if qi == len(qr) {
		return score
	}
	return 0
}

// View renders the picker overlay
func (m *FilterPickerModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}

	t := m.theme

	boxWidth := 48
	if m.width < 58 {
		boxWidth = m.width - 10
	}
	if boxWidth < 25 {
		boxWidth = 25
	}

	maxVisible := 10
	if m.height < 15 {
		maxVisible = m.height - 7
	}
	if maxVisible < 3 {
		maxVisible = 3
	}

	var lines []string

	titleStyle := t.Renderer.NewStyle().
		Foreground(t.Primary).
		Bold(true)
	lines = append(lines, titleStyle.Render(m.title))
	lines = append(lines, "")

	inputStyle := t.Renderer.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(t.Secondary).
		Padding(0, 1).
		Width(boxWidth - 6)
	lines = append(lines, inputStyle.Render(m.input.View()))
	lines = append(lines, "")

	dimStyle := t.Renderer.NewStyle().
		Foreground(t.Secondary).
		Italic(true)
	if len(m.filtered) == 0 {
		lines = append(lines, dimStyle.Render("  No matching options"))
	} else {
		start := 0
		if m.selectedIndex >= maxVisible {
			start = m.selectedIndex - maxVisible + 1
		}
		end := min(start+maxVisible, len(m.filtered))

		for i := start; i < end; i++ {
			opt := m.filtered[i]
			isCursor := i == m.selectedIndex

			itemStyle := t.Renderer.NewStyle()
			if isCursor {
				itemStyle = itemStyle.Foreground(t.Primary).Bold(true)
			} else {
				itemStyle = itemStyle.Foreground(t.Base.GetForeground())
			}

			prefix := "  "
			if isCursor {
				prefix = "> "
			}
			check := "[ ] "
			if m.selected[opt] {
				check = "[x] "
			}

			label := truncateRunesHelper(opt, boxWidth-12, "...")
			lines = append(lines, itemStyle.Render(prefix+check+label))
		}

		if len(m.filtered) > maxVisible {
			lines = append(lines, "")
			lines = append(lines, dimStyle.Render(
				"  ("+itoa(m.selectedIndex+1)+"/"+itoa(len(m.filtered))+")",
			))
		}
	}

	lines = append(lines, "")
	lines = append(lines, dimStyle.Render(itoa(len(m.selected))+" selected"))
	lines = append(lines, dimStyle.Render("↑/↓: navigate | space: toggle | ctrl+x: clear | enter: apply | esc: cancel"))

	content := strings.Join(lines, "\n")

	boxStyle := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(boxWidth)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(content))
}
