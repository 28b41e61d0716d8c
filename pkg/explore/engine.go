package explore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vanderheijden86/eavview/pkg/debug"
	"github.com/vanderheijden86/eavview/pkg/model"
)

// Status is the engine's readiness.
type Status int

const (
	// StatusNotReady means no load has been started.
	StatusNotReady Status = iota
	// StatusLoading means the first load is in flight.
	StatusLoading
	// StatusReady means a store is published.
	StatusReady
	// StatusFailed means every load so far has failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotReady:
		return "not ready"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrSuperseded is returned by Load and FinishLoad when a newer load was
// started before this one finished. Its result is discarded.
var ErrSuperseded = errors.New("load superseded by a newer load")

// LoadFunc produces a store, typically by parsing a dataset.
type LoadFunc func(ctx context.Context) (*model.Store, error)

// Engine owns the published store and its readiness. Only the most
// recently started load may publish; a failed load never replaces a store
// that is already published.
type Engine struct {
	mu         sync.RWMutex
	domainNode string
	status     Status
	store      *model.Store
	lastErr    error
	started    uint64
	inFlight   int
	loadedAt   time.Time

	// Option vocabularies of the published store.
	domainOptions []string
	nodeOptions   []string
}

// NewEngine returns an engine that has not loaded anything. An empty
// domainNode means DefaultDomainNode.
func NewEngine(domainNode string) *Engine {
	if domainNode == "" {
		domainNode = DefaultDomainNode
	}
	return &Engine{domainNode: domainNode}
}

// DomainNode returns the node used for domain filtering.
func (e *Engine) DomainNode() string {
	return e.domainNode
}

// BeginLoad registers a new load and returns its generation. Any load
// started earlier is superseded.
func (e *Engine) BeginLoad() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started++
	e.inFlight++
	if e.store == nil {
		e.status = StatusLoading
	}
	debug.Log("explore.Engine: begin load gen=%d", e.started)
	return e.started
}

// FinishLoad completes the load with generation gen. Stale generations get
// ErrSuperseded. A failure is recorded and returned; it only changes the
// status when no store has been published yet.
func (e *Engine) FinishLoad(gen uint64, store *model.Store, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight > 0 {
		e.inFlight--
	}
	if gen != e.started {
		debug.Log("explore.Engine: discard gen=%d (latest=%d)", gen, e.started)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSuperseded, err)
		}
		return ErrSuperseded
	}
	if err == nil && store == nil {
		err = errors.New("load returned no store")
	}
	if err != nil {
		e.lastErr = err
		if e.store == nil {
			e.status = StatusFailed
		}
		debug.Log("explore.Engine: gen=%d failed: %v", gen, err)
		return err
	}

	e.store = store
	e.status = StatusReady
	e.lastErr = nil
	e.loadedAt = time.Now()
	e.domainOptions = DomainOptions(store, e.domainNode)
	e.nodeOptions = NodeOptions(store)
	debug.Log("explore.Engine: gen=%d published %d triples", gen, store.Len())
	return nil
}

// Load runs fn as a new generation and publishes its result if no newer
// load started meanwhile.
func (e *Engine) Load(ctx context.Context, fn LoadFunc) error {
	gen := e.BeginLoad()
	store, err := fn(ctx)
	return e.FinishLoad(gen, store, err)
}

// Status returns the current readiness.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Ready reports whether a store is published.
func (e *Engine) Ready() bool {
	return e.Status() == StatusReady
}

// Loading reports whether any load is in flight, including reloads while
// ready.
func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.inFlight > 0
}

// LastError returns the error of the latest failed load, or nil once a load
// succeeds.
func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// Snapshot returns the published store, or nil before the first
// successful load.
func (e *Engine) Snapshot() *model.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store
}

// LoadedAt returns when the published store was swapped in.
func (e *Engine) LoadedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loadedAt
}

// Options returns the domain and node vocabularies of the published store.
func (e *Engine) Options() (domains, nodes []string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneStrings(e.domainOptions), cloneStrings(e.nodeOptions)
}

// View is every derived view for one State.
type View struct {
	Status        Status
	Err           error
	StoreVersion  uint64
	Filtered      []model.Triple
	Page          Page
	ChartNode     string
	Top           []ValueCount
	GraphNode     string
	Graph         Projection
	Detail        *Detail
	DomainOptions []string
	NodeOptions   []string
}

// Empty reports whether the filtered sequence has no triples.
func (v View) Empty() bool {
	return len(v.Filtered) == 0
}

// View computes the derived views for s over the published store. Before
// the engine is ready it returns an empty, well-typed view carrying the
// status and last error.
func (e *Engine) View(s State) View {
	e.mu.RLock()
	store, status, lastErr := e.store, e.status, e.lastErr
	domains, nodes := e.domainOptions, e.nodeOptions
	e.mu.RUnlock()

	chartNode := ChartNode(s, e.domainNode)
	graphNode := GraphNode(s, e.domainNode)
	if store == nil {
		return View{
			Status:        status,
			Err:           lastErr,
			Filtered:      []model.Triple{},
			Page:          Paginate(nil, 1, s.PageSize()),
			ChartNode:     chartNode,
			Top:           []ValueCount{},
			GraphNode:     graphNode,
			Graph:         Project(nil, graphNode),
			DomainOptions: []string{},
			NodeOptions:   []string{},
		}
	}

	filtered := Apply(store, s.Criteria(), e.domainNode)
	v := View{
		Status:        status,
		Err:           lastErr,
		StoreVersion:  store.Version(),
		Filtered:      filtered,
		Page:          Paginate(filtered, s.Page(), s.PageSize()),
		ChartNode:     chartNode,
		Top:           TopValues(filtered, chartNode, s.TopLimit()),
		GraphNode:     graphNode,
		Graph:         Project(filtered, graphNode),
		DomainOptions: domains,
		NodeOptions:   nodes,
	}
	if id := s.DetailID(); id != "" {
		d := DetailsFor(store, id)
		v.Detail = &d
	}
	return v
}
