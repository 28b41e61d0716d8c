package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/eavview/pkg/explore"
	"github.com/vanderheijden86/eavview/pkg/metrics"
)

// Mode is the main panel being shown.
type Mode int

const (
	ModeTable Mode = iota
	ModeCharts
	ModeNetwork
	modeCount
)

func (m Mode) String() string {
	switch m {
	case ModeCharts:
		return "charts"
	case ModeNetwork:
		return "network"
	default:
		return "table"
	}
}

// ParseMode maps "table", "charts" or "network" to a Mode. Anything else
// is the table.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charts", "chart":
		return ModeCharts
	case "network", "graph":
		return ModeNetwork
	default:
		return ModeTable
	}
}

type focus int

const (
	focusMain focus = iota
	focusSearch
	focusPicker
	focusDetail
	focusHelp
)

type pickerKind int

const (
	pickerNone pickerKind = iota
	pickerDomain
	pickerNode
)

// workerSpinnerFrames animate the loading screen.
var workerSpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// workerPollTickMsg advances the loading spinner.
type workerPollTickMsg struct{}

func workerPollTickCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return workerPollTickMsg{}
	})
}

// StartBackgroundWorkerCmd starts the worker and kicks off the first load
// unless the engine was loaded before the program started.
func StartBackgroundWorkerCmd(w *BackgroundWorker) tea.Cmd {
	return func() tea.Msg {
		if w == nil {
			return nil
		}
		if err := w.Start(); err != nil {
			return SnapshotErrorMsg{Err: fmt.Errorf("starting background worker: %w", err)}
		}
		if !w.engine.Ready() {
			w.TriggerRefresh()
		}
		return nil
	}
}

// WaitForBackgroundWorkerMsgCmd waits for the next BackgroundWorker message.
func WaitForBackgroundWorkerMsgCmd(w *BackgroundWorker) tea.Cmd {
	return func() tea.Msg {
		if w == nil {
			return nil
		}
		select {
		case msg := <-w.Messages():
			return msg
		case <-w.Done():
			// Without a watcher Done closes at once; keep draining results.
			return <-w.Messages()
		}
	}
}

// Options configures NewModel.
type Options struct {
	Engine       *explore.Engine
	Worker       *BackgroundWorker // Optional; nil means the engine is loaded elsewhere
	State        explore.State
	Mode         Mode
	DatasetLabel string
	Theme        *Theme
}

// Model is the bubbletea model of the explorer.
type Model struct {
	engine *explore.Engine
	worker *BackgroundWorker
	theme  Theme

	state explore.State
	view  explore.View

	mode   Mode
	focus  focus
	width  int
	height int
	cursor int

	search textinput.Model

	picker     FilterPickerModel
	pickerKind pickerKind

	detail     viewport.Model
	mdRenderer *markdownRenderer

	statusMsg     string
	statusIsError bool

	datasetLabel string
	spinnerIdx   int
	lastReload   time.Time
}

// NewModel builds the explorer model. The view is computed immediately, so
// a model over a not-yet-ready engine renders the loading screen.
func NewModel(opts Options) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	state := opts.State

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search IDs, nodes and values"
	ti.CharLimit = 200
	ti.SetValue(state.Query())

	m := Model{
		engine:       opts.Engine,
		worker:       opts.Worker,
		theme:        theme,
		state:        state,
		mode:         opts.Mode,
		width:        100,
		height:       30,
		search:       ti,
		detail:       viewport.New(60, 20),
		mdRenderer:   newMarkdownRenderer(60),
		datasetLabel: opts.DatasetLabel,
	}
	m.refresh()
	return m
}

// State returns the current view state.
func (m Model) State() explore.State { return m.state }

// CurrentView returns the last computed view.
func (m Model) CurrentView() explore.View { return m.view }

// Mode returns the active panel.
func (m Model) Mode() Mode { return m.mode }

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{workerPollTickCmd()}
	if m.worker != nil {
		cmds = append(cmds, StartBackgroundWorkerCmd(m.worker))
		cmds = append(cmds, WaitForBackgroundWorkerMsgCmd(m.worker))
	}
	return tea.Batch(cmds...)
}

// refresh recomputes the view for the current state and keeps the cursor
// on the page.
func (m *Model) refresh() {
	if m.engine == nil {
		m.view = explore.NewEngine("").View(m.state)
		return
	}
	m.view = m.engine.View(m.state)
	if n := len(m.view.Page.Items); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	if m.focus == focusDetail {
		m.updateDetailContent()
	}
}

// stale reports whether the engine moved on since the view was computed.
func (m Model) stale() bool {
	if m.view.Status != m.engine.Status() {
		return true
	}
	store := m.engine.Snapshot()
	return store != nil && store.Version() != m.view.StoreVersion
}

// setState applies a new state and recomputes the view.
func (m *Model) setState(s explore.State) {
	if !s.Criteria().Equal(m.state.Criteria()) || s.Page() != m.state.Page() {
		m.cursor = 0
	}
	m.state = s
	m.refresh()
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsError = isErr
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.picker.SetSize(m.width, m.bodyHeight())
		m.detail.Width = max(20, m.width-4)
		m.detail.Height = max(3, m.bodyHeight()-2)
		m.mdRenderer = newMarkdownRenderer(m.detail.Width - 2)
		if m.focus == focusDetail {
			m.updateDetailContent()
		}
		return m, nil

	case workerPollTickMsg:
		m.spinnerIdx++
		if m.engine != nil && m.stale() {
			m.refresh()
		}
		if m.engine == nil || m.engine.Loading() || !m.engine.Ready() {
			return m, workerPollTickCmd()
		}
		return m, nil

	case SnapshotReadyMsg:
		first := msg.Previous == nil
		m.lastReload = msg.SentAt
		m.refresh()
		switch {
		case first:
			m.setStatus(fmt.Sprintf("Loaded %d triples in %s", msg.Store.Len(), msg.Duration.Round(time.Millisecond)), false)
		case msg.Diff != nil && msg.Diff.HasInconsistencies():
			m.setStatus("Reloaded: "+msg.Diff.Summary(), false)
		default:
			m.setStatus(fmt.Sprintf("Reloaded %d triples (no changes)", msg.Store.Len()), false)
		}
		if m.worker != nil {
			cmds = append(cmds, WaitForBackgroundWorkerMsgCmd(m.worker))
		}
		return m, tea.Batch(cmds...)

	case SnapshotErrorMsg:
		m.refresh()
		if msg.Err != nil {
			if msg.Recoverable {
				m.setStatus(fmt.Sprintf("Reload failed, keeping previous data: %v", msg.Err), true)
			} else {
				m.setStatus(fmt.Sprintf("Load failed: %v", msg.Err), true)
			}
		}
		if m.worker != nil {
			cmds = append(cmds, WaitForBackgroundWorkerMsgCmd(m.worker))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.focus {
		case focusSearch:
			return m.handleSearchKeys(msg)
		case focusPicker:
			return m.handlePickerKeys(msg)
		case focusDetail:
			return m.handleDetailKeys(msg)
		case focusHelp:
			m.focus = focusMain
			return m, nil
		}
		return m.handleMainKeys(msg)
	}

	return m, nil
}

func (m Model) handleMainKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any key clears a stale status line.
	m.statusMsg = ""
	m.statusIsError = false

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.focus = focusHelp
	case "tab":
		m.mode = (m.mode + 1) % modeCount
	case "shift+tab":
		m.mode = (m.mode + modeCount - 1) % modeCount
	case "1":
		m.mode = ModeTable
	case "2":
		m.mode = ModeCharts
	case "3":
		m.mode = ModeNetwork
	case "/":
		m.focus = focusSearch
		m.search.SetValue(m.state.Query())
		m.search.CursorEnd()
		return m, m.search.Focus()
	case "d":
		m.openPicker(pickerDomain)
	case "n":
		m.openPicker(pickerNode)
	case "x":
		m.search.SetValue("")
		m.setState(m.state.SetCriteria(explore.Criteria{}))
		m.setStatus("Filters cleared", false)
	case "]", "right", "l":
		m.setState(m.state.SetPage(m.view.Page.PageIndex + 1))
	case "[", "left", "h":
		m.setState(m.state.SetPage(m.view.Page.PageIndex - 1))
	case "home":
		m.setState(m.state.SetPage(1))
	case "end":
		m.setState(m.state.SetPage(m.view.Page.PageCount))
	case "j", "down":
		if m.cursor < len(m.view.Page.Items)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "c":
		m.setState(m.state.SelectChartNode(cycle(m.view.NodeOptions, m.view.ChartNode, 1)))
	case "C":
		m.setState(m.state.SelectChartNode(cycle(m.view.NodeOptions, m.view.ChartNode, -1)))
	case "g":
		m.setState(m.state.SelectGraphNode(cycle(m.view.NodeOptions, m.view.GraphNode, 1)))
	case "G":
		m.setState(m.state.SelectGraphNode(cycle(m.view.NodeOptions, m.view.GraphNode, -1)))
	case "enter":
		if id := m.selectedID(); id != "" {
			m.openDetail(id)
		}
	case "y":
		m.copySelectedID()
	case "r":
		if m.worker == nil {
			m.setStatus("Refresh unavailable", true)
			break
		}
		m.worker.TriggerRefresh()
		m.setStatus("Refreshing…", false)
		return m, workerPollTickCmd()
	}
	return m, nil
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.focus = focusMain
		m.search.Blur()
		return m, nil
	case "esc":
		m.focus = focusMain
		m.search.Blur()
		m.search.SetValue("")
		m.setState(m.state.SetQuery(""))
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.state.Query() {
		m.setState(m.state.SetQuery(m.search.Value()))
	}
	return m, cmd
}

func (m *Model) openPicker(kind pickerKind) {
	switch kind {
	case pickerDomain:
		title := "Filter by " + m.domainNode()
		m.picker = NewFilterPickerModel(title, m.view.DomainOptions, m.state.DomainValues(), m.theme)
	case pickerNode:
		m.picker = NewFilterPickerModel("Filter by node", m.view.NodeOptions, m.state.NodeTypes(), m.theme)
	default:
		return
	}
	m.picker.SetSize(m.width, m.bodyHeight())
	m.pickerKind = kind
	m.focus = focusPicker
}

func (m Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusMain
		m.pickerKind = pickerNone
	case "enter":
		sel := m.picker.Selection()
		switch m.pickerKind {
		case pickerDomain:
			m.setState(m.state.SetDomainFilter(sel))
		case pickerNode:
			m.setState(m.state.SetNodeFilter(sel))
		}
		m.focus = focusMain
		m.pickerKind = pickerNone
	case "up", "ctrl+p":
		m.picker.MoveUp()
	case "down", "ctrl+n":
		m.picker.MoveDown()
	case " ":
		m.picker.Toggle()
	case "ctrl+x":
		m.picker.Clear()
	default:
		m.picker.UpdateInput(msg)
	}
	return m, nil
}

func (m *Model) openDetail(id string) {
	m.state = m.state.SelectDetailID(id)
	m.focus = focusDetail
	m.refresh()
	m.detail.GotoTop()
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "q":
		m.focus = focusMain
		m.state = m.state.SelectDetailID("")
		m.refresh()
		return m, nil
	case "y":
		m.copySelectedID()
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *Model) updateDetailContent() {
	if m.view.Detail == nil {
		m.detail.SetContent("")
		return
	}
	m.detail.SetContent(m.mdRenderer.renderDetail(*m.view.Detail))
}

// selectedID is the ID under the table cursor, or the open detail.
func (m Model) selectedID() string {
	if m.focus == focusDetail && m.view.Detail != nil {
		return m.view.Detail.ID
	}
	items := m.view.Page.Items
	if m.cursor >= 0 && m.cursor < len(items) {
		return items[m.cursor].ID
	}
	return ""
}

func (m *Model) copySelectedID() {
	id := m.selectedID()
	if id == "" {
		m.setStatus("No row selected", true)
		return
	}
	if err := clipboard.WriteAll(id); err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("Copied %s to clipboard", id), false)
}

func (m Model) domainNode() string {
	if m.engine == nil {
		return explore.DefaultDomainNode
	}
	return m.engine.DomainNode()
}

// bodyHeight is the space between the header lines and the footer.
func (m Model) bodyHeight() int {
	return max(3, m.height-3)
}

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	var body string
	switch {
	case m.focus == focusHelp:
		body = m.renderHelp()
	case m.view.Status == explore.StatusNotReady || m.view.Status == explore.StatusLoading:
		body = m.renderLoadingScreen()
	case m.view.Status == explore.StatusFailed:
		body = m.renderFailedScreen()
	case m.focus == focusPicker:
		body = m.picker.View()
	case m.focus == focusDetail:
		body = m.renderDetail()
	default:
		switch m.mode {
		case ModeCharts:
			body = m.renderCharts()
		case ModeNetwork:
			body = m.renderNetwork()
		default:
			body = m.renderTable()
		}
	}

	body = lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderFilterBar(),
		body,
		m.renderFooter(),
	)
}

// renderHeader renders the single-line global header bar.
// Format:  ev | dataset      table view | 1,204 of 9,110 triples
func (m Model) renderHeader() string {
	appName := lipgloss.NewStyle().Bold(true).Foreground(ColorText).Render("ev")
	sep := lipgloss.NewStyle().Foreground(ColorMuted).Render(" | ")
	label := m.datasetLabel
	if label == "" {
		label = "dataset"
	}
	left := appName + sep + lipgloss.NewStyle().Foreground(ColorSubtext).Render(label)

	var stats string
	if m.engine != nil {
		if store := m.engine.Snapshot(); store != nil {
			stats = fmt.Sprintf("%d of %d triples", len(m.view.Filtered), store.Len())
		} else {
			stats = m.view.Status.String()
		}
		if m.engine.Loading() && m.view.Status == explore.StatusReady {
			stats += " " + workerSpinnerFrames[m.spinnerIdx%len(workerSpinnerFrames)]
		}
	}
	right := lipgloss.NewStyle().Foreground(ColorSubtext).Render(m.mode.String()+" view") + sep +
		lipgloss.NewStyle().Foreground(ColorInfo).Render(stats)

	filler := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return lipgloss.NewStyle().
		Width(m.width).
		Background(ColorBgSubtle).
		Render(left + strings.Repeat(" ", filler) + right)
}

// renderFilterBar shows the search box while typing, else the active
// filters as chips.
func (m Model) renderFilterBar() string {
	if m.focus == focusSearch {
		return m.search.View()
	}
	c := m.state.Criteria()
	if c.IsEmpty() {
		return m.theme.MutedText.Render("no filters  (/ search, d domain, n node)")
	}
	var chips []string
	if c.Query != "" {
		chips = append(chips, RenderFilterChip("q: "+truncate(c.Query, 24)))
	}
	if len(c.DomainValues) > 0 {
		chips = append(chips, RenderFilterChip(m.domainNode()+": "+truncate(strings.Join(c.DomainValues, ", "), 40)))
	}
	if len(c.NodeTypes) > 0 {
		chips = append(chips, RenderFilterChip("nodes: "+truncate(strings.Join(c.NodeTypes, ", "), 40)))
	}
	return truncate(strings.Join(chips, " "), m.width)
}

func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		var msgStyle lipgloss.Style
		prefix := "✓ "
		if m.statusIsError {
			prefix = "✗ "
			msgStyle = lipgloss.NewStyle().Background(ColorDangerBg).Foreground(ColorDanger).Bold(true).Padding(0, 2)
		} else {
			msgStyle = lipgloss.NewStyle().Background(ColorSuccessBg).Foreground(ColorSuccess).Bold(true).Padding(0, 2)
		}
		return msgStyle.Render(truncate(prefix+m.statusMsg, max(1, m.width-4)))
	}

	var hints []string
	switch m.focus {
	case focusSearch:
		hints = []string{RenderKeyHint("enter", "keep"), RenderKeyHint("esc", "clear")}
	case focusPicker:
		hints = []string{RenderKeyHint("space", "toggle"), RenderKeyHint("enter", "apply"), RenderKeyHint("esc", "cancel")}
	case focusDetail:
		hints = []string{RenderKeyHint("↑/↓", "scroll"), RenderKeyHint("y", "copy id"), RenderKeyHint("esc", "close")}
	default:
		hints = []string{
			RenderKeyHint("tab", "mode"),
			RenderKeyHint("/", "search"),
			RenderKeyHint("d/n", "filters"),
			RenderKeyHint("[/]", "page"),
		}
		switch m.mode {
		case ModeCharts:
			hints = append(hints, RenderKeyHint("c", "chart node"))
		case ModeNetwork:
			hints = append(hints, RenderKeyHint("g", "graph node"))
		default:
			hints = append(hints, RenderKeyHint("enter", "details"), RenderKeyHint("y", "copy"))
		}
		hints = append(hints, RenderKeyHint("?", "help"), RenderKeyHint("q", "quit"))
	}
	return truncate(strings.Join(hints, "  "), m.width)
}

func (m Model) renderLoadingScreen() string {
	frame := workerSpinnerFrames[m.spinnerIdx%len(workerSpinnerFrames)]

	spinnerStyle := lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	titleStyle := lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	lines := []string{
		spinnerStyle.Render(frame),
		"",
		titleStyle.Render("Loading dataset..."),
	}
	if m.datasetLabel != "" {
		lines = append(lines, "", subStyle.Render(m.datasetLabel))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderFailedScreen() string {
	titleStyle := lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	lines := []string{titleStyle.Render("Failed to load dataset")}
	if m.view.Err != nil {
		lines = append(lines, "", lipgloss.NewStyle().Width(min(80, m.width-4)).Render(m.view.Err.Error()))
	}
	hint := "q to quit"
	if m.worker != nil {
		hint = "r to retry, q to quit"
	}
	lines = append(lines, "", subStyle.Render(hint))
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderEmpty(msg string) string {
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center,
		m.theme.MutedText.Italic(true).Render(msg))
}

func (m Model) renderHelp() string {
	rows := [][2]string{
		{"tab / 1 2 3", "switch table, charts, network"},
		{"/", "search IDs, nodes and values"},
		{"d", "pick " + m.domainNode() + " values"},
		{"n", "pick node types"},
		{"x", "clear every filter"},
		{"[ ] / ← →", "previous, next page"},
		{"j k / ↑ ↓", "move the row cursor"},
		{"enter", "show the row's ID details"},
		{"y", "copy the ID to the clipboard"},
		{"c / C", "cycle the chart node"},
		{"g / G", "cycle the graph node"},
		{"r", "reload the dataset"},
		{"q", "quit"},
	}
	var sb strings.Builder
	sb.WriteString(m.theme.PrimaryBold.Render("Keys") + "\n\n")
	for _, r := range rows {
		sb.WriteString(RenderKeyHint(padRight(r[0], 14), r[1]) + "\n")
	}
	if m.worker != nil {
		sb.WriteString("\n" + m.theme.MutedText.Render(m.worker.WatcherInfo()) + "\n")
		sb.WriteString(m.theme.MutedText.Render("last reload: "+FormatTimeRel(m.lastReload)) + "\n")
	}
	sb.WriteString("\n" + m.theme.MutedText.Render("any key to close"))
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center,
		PanelStyle.Padding(1, 2).Render(sb.String()))
}
