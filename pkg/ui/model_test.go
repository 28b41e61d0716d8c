package ui_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/eavview/internal/datasource"
	"github.com/vanderheijden86/eavview/pkg/explore"
	"github.com/vanderheijden86/eavview/pkg/model"
	"github.com/vanderheijden86/eavview/pkg/testutil"
	"github.com/vanderheijden86/eavview/pkg/ui"
)

func loadedEngine(t *testing.T, triples []model.Triple) *explore.Engine {
	t.Helper()
	engine := explore.NewEngine("")
	err := engine.Load(context.Background(), func(context.Context) (*model.Store, error) {
		return model.NewStore(triples), nil
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return engine
}

func newModel(t *testing.T, engine *explore.Engine, state explore.State) ui.Model {
	t.Helper()
	m := ui.NewModel(ui.Options{Engine: engine, State: state, DatasetLabel: "triples.csv"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(ui.Model)
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func press(m ui.Model, keys ...string) ui.Model {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(ui.Model)
	}
	return m
}

func typeText(m ui.Model, text string) ui.Model {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(ui.Model)
	}
	return m
}

func manyTriples(n int) []model.Triple {
	out := make([]model.Triple, n)
	for i := range out {
		out[i] = model.Triple{ID: fmt.Sprintf("ID-%03d", i), Node: "Country", Value: model.StringValue("EG")}
	}
	return out
}

func TestParseMode(t *testing.T) {
	tests := map[string]ui.Mode{
		"table":   ui.ModeTable,
		"Charts":  ui.ModeCharts,
		"network": ui.ModeNetwork,
		"graph":   ui.ModeNetwork,
		"":        ui.ModeTable,
		"bogus":   ui.ModeTable,
	}
	for in, want := range tests {
		if got := ui.ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestModelLoadingScreen(t *testing.T) {
	m := newModel(t, explore.NewEngine(""), explore.NewState(0))
	if out := m.View(); !strings.Contains(out, "Loading dataset") {
		t.Errorf("not-ready engine should show the loading screen:\n%s", out)
	}
	if !m.CurrentView().Empty() {
		t.Error("view before readiness should be empty")
	}
}

func TestModelFailedScreen(t *testing.T) {
	engine := explore.NewEngine("")
	_ = engine.Load(context.Background(), func(context.Context) (*model.Store, error) {
		return nil, errors.New("no header row")
	})
	m := newModel(t, engine, explore.NewState(0))
	out := m.View()
	if !strings.Contains(out, "Failed to load dataset") || !strings.Contains(out, "no header row") {
		t.Errorf("failed engine should show the error:\n%s", out)
	}
}

func TestModelTableShowsTriples(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))
	out := m.View()
	for _, want := range []string{"3 of 3 triples", "Bio", "Physics", "EG", "Showing 1-3 of 3", "table view"} {
		if !strings.Contains(out, want) {
			t.Errorf("table view missing %q:\n%s", want, out)
		}
	}
}

func TestModelSearch(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))

	m = press(m, "/")
	m = typeText(m, "phys")
	if got := m.State().Query(); got != "phys" {
		t.Fatalf("query = %q, want live update", got)
	}
	if n := len(m.CurrentView().Filtered); n != 1 {
		t.Errorf("filtered = %d, want 1", n)
	}

	m = press(m, "enter")
	if m.State().Query() != "phys" {
		t.Error("enter should keep the query")
	}

	m = press(m, "/", "esc")
	if m.State().Query() != "" || len(m.CurrentView().Filtered) != 3 {
		t.Error("esc should clear the query")
	}
}

func TestModelSearchNoMatches(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))
	m = press(m, "/")
	m = typeText(m, "zzz")
	m = press(m, "enter")
	if out := m.View(); !strings.Contains(out, "No triples match the current filters.") {
		t.Errorf("expected empty state:\n%s", out)
	}
}

func TestModelEmptyDataset(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Empty()), explore.NewState(0))
	if out := m.View(); !strings.Contains(out, "The dataset has no triples.") {
		t.Errorf("expected no-data state:\n%s", out)
	}
}

func TestModelDomainPicker(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))

	m = press(m, "d")
	if out := m.View(); !strings.Contains(out, "Filter by Scientific domain") {
		t.Fatalf("picker not shown:\n%s", out)
	}
	// Options are sorted: Bio, Physics.
	m = press(m, "space", "enter")
	if got := m.State().DomainValues(); !reflect.DeepEqual(got, []string{"Bio"}) {
		t.Fatalf("domain filter = %v, want [Bio]", got)
	}
	filtered := m.CurrentView().Filtered
	if len(filtered) != 2 || filtered[0].ID != "A" || filtered[1].ID != "A" {
		t.Errorf("domain filter keeps every triple of A, got %v", filtered)
	}

	m = press(m, "d", "space", "esc")
	if got := m.State().DomainValues(); !reflect.DeepEqual(got, []string{"Bio"}) {
		t.Errorf("esc must not apply the picker, got %v", got)
	}
}

func TestModelNodePickerAndClear(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))

	// Node options are sorted: Country, Scientific domain.
	m = press(m, "n", "space", "enter")
	if got := m.State().NodeTypes(); !reflect.DeepEqual(got, []string{"Country"}) {
		t.Fatalf("node filter = %v", got)
	}
	if n := len(m.CurrentView().Filtered); n != 1 {
		t.Errorf("filtered = %d, want 1", n)
	}

	m = press(m, "x")
	if !m.State().Criteria().IsEmpty() {
		t.Error("x should clear every filter")
	}
}

func TestModelPaging(t *testing.T) {
	m := newModel(t, loadedEngine(t, manyTriples(120)), explore.NewState(50))

	m = press(m, "]")
	if p := m.CurrentView().Page; p.PageIndex != 2 || p.RangeStart != 51 || p.RangeEnd != 100 {
		t.Errorf("page 2 = %+v", p)
	}
	m = press(m, "]", "]", "]")
	if got := m.CurrentView().Page.PageIndex; got != 3 {
		t.Errorf("paging past the end should clamp, got %d", got)
	}
	m = press(m, "[")
	if got := m.CurrentView().Page.PageIndex; got != 2 {
		t.Errorf("previous page = %d, want 2", got)
	}

	m = press(m, "/")
	m = typeText(m, "ID-00")
	if got := m.State().Page(); got != 1 {
		t.Errorf("criteria change should reset the page, got %d", got)
	}
}

func TestModelModesCycle(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))

	m = press(m, "tab")
	if m.Mode() != ui.ModeCharts {
		t.Fatalf("mode = %v, want charts", m.Mode())
	}
	out := m.View()
	if !strings.Contains(out, "Top values of Scientific domain") || !strings.Contains(out, "█") {
		t.Errorf("charts view:\n%s", out)
	}

	m = press(m, "tab")
	if m.Mode() != ui.ModeNetwork {
		t.Fatalf("mode = %v, want network", m.Mode())
	}
	out = m.View()
	if !strings.Contains(out, "Network of Scientific domain") || !strings.Contains(out, "2 IDs") {
		t.Errorf("network view:\n%s", out)
	}

	m = press(m, "tab")
	if m.Mode() != ui.ModeTable {
		t.Errorf("tab should wrap to table, got %v", m.Mode())
	}
}

func TestModelChartAndGraphNodeCycle(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))
	m = press(m, "2")

	m = press(m, "c")
	if got := m.CurrentView().ChartNode; got != "Country" {
		t.Errorf("chart node = %q, want Country", got)
	}
	if top := m.CurrentView().Top; len(top) != 1 || top[0].Value.String() != "EG" {
		t.Errorf("top values = %v", top)
	}

	m = press(m, "g")
	if got := m.CurrentView().GraphNode; got != "Country" {
		t.Errorf("graph node = %q, want Country", got)
	}
	m = press(m, "3")
	if out := m.View(); !strings.Contains(out, "1 IDs without") {
		t.Errorf("network should count IDs without the node:\n%s", out)
	}
}

func TestModelEmptyChart(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0).SelectChartNode("Missing"))
	m = press(m, "2")
	if out := m.View(); !strings.Contains(out, `No "Missing" values`) {
		t.Errorf("expected empty chart state:\n%s", out)
	}
}

func TestModelDetail(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))

	m = press(m, "enter")
	if got := m.State().DetailID(); got != "A" {
		t.Fatalf("detail id = %q, want A", got)
	}
	d := m.CurrentView().Detail
	if d == nil || len(d.Groups) != 2 {
		t.Fatalf("detail = %+v", d)
	}
	out := m.View()
	if !strings.Contains(out, "Country") || !strings.Contains(out, "EG") {
		t.Errorf("detail card missing values:\n%s", out)
	}

	m = press(m, "esc")
	if m.State().DetailID() != "" || m.CurrentView().Detail != nil {
		t.Error("esc should close the detail")
	}

	m = press(m, "down", "down", "enter")
	if got := m.State().DetailID(); got != "B" {
		t.Errorf("detail of third row = %q, want B", got)
	}
}

func TestModelSnapshotMessages(t *testing.T) {
	engine := loadedEngine(t, testutil.Scenario())
	m := newModel(t, engine, explore.NewState(0))
	previous := engine.Snapshot()

	grown := append(testutil.Scenario(), model.Triple{ID: "C", Node: testutil.DomainNode, Value: model.StringValue("Chem")})
	_ = engine.Load(context.Background(), func(context.Context) (*model.Store, error) {
		return model.NewStore(grown), nil
	})
	diff := datasource.DiffStores(previous, engine.Snapshot(), "previous", "current", datasource.DefaultDiffOptions())
	next, _ := m.Update(ui.SnapshotReadyMsg{Store: engine.Snapshot(), Previous: previous, Diff: &diff})
	m = next.(ui.Model)

	if n := len(m.CurrentView().Filtered); n != 4 {
		t.Errorf("filtered = %d after reload, want 4", n)
	}
	if out := m.View(); !strings.Contains(out, "Reloaded") {
		t.Errorf("footer should report the reload:\n%s", out)
	}

	next, _ = m.Update(ui.SnapshotErrorMsg{Err: errors.New("truncated file"), Recoverable: true})
	m = next.(ui.Model)
	out := m.View()
	if !strings.Contains(out, "keeping previous data") || !strings.Contains(out, "4 of 4 triples") {
		t.Errorf("recoverable error should keep the data:\n%s", out)
	}
}

func TestModelQuit(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestModelHelpOverlay(t *testing.T) {
	m := newModel(t, loadedEngine(t, testutil.Scenario()), explore.NewState(0))
	m = press(m, "?")
	if out := m.View(); !strings.Contains(out, "cycle the chart node") {
		t.Errorf("help overlay missing:\n%s", out)
	}
	m = press(m, "j")
	if out := m.View(); strings.Contains(out, "cycle the chart node") {
		t.Error("any key should close help")
	}
}
