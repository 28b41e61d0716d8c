package explore

// State is the explorer's filter, page and selection state. It is a value:
// every setter returns a modified copy and leaves the receiver untouched.
// Changing any criteria axis resets the page to 1.
type State struct {
	criteria  Criteria
	page      int
	pageSize  int
	topLimit  int
	chartNode string
	graphNode string
	detailID  string
}

// NewState returns the initial state: no criteria, page 1, the given page
// size (DefaultPageSize when <= 0) and DefaultTopLimit.
func NewState(pageSize int) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return State{page: 1, pageSize: pageSize, topLimit: DefaultTopLimit}
}

func (s State) Criteria() Criteria {
	return Criteria{
		Query:        s.criteria.Query,
		DomainValues: cloneStrings(s.criteria.DomainValues),
		NodeTypes:    cloneStrings(s.criteria.NodeTypes),
	}
}

func (s State) Query() string         { return s.criteria.Query }
func (s State) DomainValues() []string { return cloneStrings(s.criteria.DomainValues) }
func (s State) NodeTypes() []string    { return cloneStrings(s.criteria.NodeTypes) }
func (s State) Page() int              { return max(s.page, 1) }
func (s State) ChartNode() string      { return s.chartNode }
func (s State) GraphNode() string      { return s.graphNode }
func (s State) DetailID() string       { return s.detailID }

func (s State) PageSize() int {
	if s.pageSize <= 0 {
		return DefaultPageSize
	}
	return s.pageSize
}

func (s State) TopLimit() int {
	if s.topLimit <= 0 {
		return DefaultTopLimit
	}
	return s.topLimit
}

// SetQuery replaces the text query.
func (s State) SetQuery(q string) State {
	if q == s.criteria.Query {
		return s
	}
	s.criteria.Query = q
	s.page = 1
	return s
}

// SetDomainFilter replaces the domain-value selection.
func (s State) SetDomainFilter(values []string) State {
	next := uniqueOrdered(values, true)
	if equalStrings(next, s.criteria.DomainValues) {
		return s
	}
	s.criteria.DomainValues = next
	s.page = 1
	return s
}

// SetNodeFilter replaces the node-type selection.
func (s State) SetNodeFilter(nodes []string) State {
	next := uniqueOrdered(nodes, false)
	if equalStrings(next, s.criteria.NodeTypes) {
		return s
	}
	s.criteria.NodeTypes = next
	s.page = 1
	return s
}

// SetCriteria replaces all three axes at once.
func (s State) SetCriteria(c Criteria) State {
	return s.SetQuery(c.Query).SetDomainFilter(c.DomainValues).SetNodeFilter(c.NodeTypes)
}

// SetPage moves to page n. Clamping against the page count happens when
// the view is computed, since only then is the filtered size known.
func (s State) SetPage(n int) State {
	s.page = max(n, 1)
	return s
}

// SetPageSize changes the page size and returns to page 1.
func (s State) SetPageSize(n int) State {
	if n <= 0 {
		n = DefaultPageSize
	}
	s.pageSize = n
	s.page = 1
	return s
}

// SetTopLimit changes how many values the chart keeps.
func (s State) SetTopLimit(n int) State {
	s.topLimit = n
	return s
}

// SelectChartNode picks the node to aggregate. "" returns to the default.
func (s State) SelectChartNode(node string) State {
	s.chartNode = node
	return s
}

// SelectGraphNode picks the node to project. "" returns to the default.
func (s State) SelectGraphNode(node string) State {
	s.graphNode = node
	return s
}

// SelectDetailID picks the ID shown in the detail view. "" clears it.
func (s State) SelectDetailID(id string) State {
	s.detailID = id
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
