// Package ui provides the terminal user interface for eavview.
// This file implements the BackgroundWorker that reloads the dataset off
// the UI thread.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goccy/go-json"

	"github.com/vanderheijden86/eavview/internal/datasource"
	"github.com/vanderheijden86/eavview/pkg/explore"
	"github.com/vanderheijden86/eavview/pkg/model"
	"github.com/vanderheijden86/eavview/pkg/watcher"
)

// Worker environment switches.
const (
	EnvWorkerLogLevel = "EV_WORKER_LOG_LEVEL"
	EnvWorkerTrace    = "EV_WORKER_TRACE"
)

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is loading a new store.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerProcessing:
		return "processing"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WorkerLogLevel controls background worker log verbosity.
type WorkerLogLevel int

const (
	LogLevelNone WorkerLogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (l WorkerLogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return "none"
	}
}

func parseWorkerLogLevel(raw string) WorkerLogLevel {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "none", "off", "0":
		return LogLevelNone
	case "error", "err", "1":
		return LogLevelError
	case "warn", "warning", "2":
		return LogLevelWarn
	case "info", "3":
		return LogLevelInfo
	case "debug", "4":
		return LogLevelDebug
	case "trace", "5":
		return LogLevelTrace
	default:
		return LogLevelWarn
	}
}

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "load" or "publish"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Consecutive failures before this one
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// WorkerConfig configures a BackgroundWorker.
type WorkerConfig struct {
	// Path is the dataset file or directory to watch. Empty disables watching.
	Path string
	// Engine receives every load. Required.
	Engine *explore.Engine
	// Load produces a fresh store. Required.
	Load explore.LoadFunc
	// DebounceDelay coalesces bursts of file events.
	DebounceDelay time.Duration
	// PollInterval is used when the watcher falls back to polling.
	PollInterval time.Duration
	// ForcePoll skips fsnotify.
	ForcePoll bool
	// MessageBuffer sizes the UI message channel (default 8).
	MessageBuffer int
	// LogLevel overrides EV_WORKER_LOG_LEVEL when set.
	LogLevel string
	// TracePath overrides EV_WORKER_TRACE when set.
	TracePath string
}

// SnapshotReadyMsg is sent when a load published a new store.
type SnapshotReadyMsg struct {
	Store    *model.Store
	Previous *model.Store           // nil on the first load
	Diff     *datasource.SourceDiff // nil on the first load
	Duration time.Duration
	SentAt   time.Time
}

// SnapshotErrorMsg is sent when a load failed.
type SnapshotErrorMsg struct {
	Err error
	// Recoverable is true when an earlier store is still published.
	Recoverable bool
}

// BackgroundWorker watches the dataset and reloads it into the engine.
// Reloads triggered while one is running are coalesced into a single
// follow-up load.
type BackgroundWorker struct {
	mu      sync.RWMutex
	state   WorkerState
	started bool
	dirty   bool

	engine *explore.Engine
	load   explore.LoadFunc
	path   string

	watcher *watcher.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	msgCh  chan tea.Msg
	done   chan struct{}

	lastStore  *model.Store
	lastError  *WorkerError
	errorCount int

	pendingChanges atomic.Int64
	coalesceCount  atomic.Int64
	loadCount      atomic.Uint64

	logLevel  WorkerLogLevel
	tracePath string
	traceMu   sync.Mutex
	traceFile *os.File
}

// NewBackgroundWorker builds a worker. A watcher is attached when cfg.Path
// is set; for a directory only dataset files trigger reloads.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	if cfg.Engine == nil {
		return nil, errors.New("worker requires an engine")
	}
	if cfg.Load == nil {
		return nil, errors.New("worker requires a load function")
	}
	buffer := cfg.MessageBuffer
	if buffer <= 0 {
		buffer = 8
	}
	level := cfg.LogLevel
	if level == "" {
		level = os.Getenv(EnvWorkerLogLevel)
	}
	trace := cfg.TracePath
	if trace == "" {
		trace = os.Getenv(EnvWorkerTrace)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &BackgroundWorker{
		state:     WorkerIdle,
		engine:    cfg.Engine,
		load:      cfg.Load,
		path:      cfg.Path,
		ctx:       ctx,
		cancel:    cancel,
		msgCh:     make(chan tea.Msg, buffer),
		done:      make(chan struct{}),
		logLevel:  parseWorkerLogLevel(level),
		tracePath: strings.TrimSpace(trace),
	}

	if cfg.Path != "" {
		opts := []watcher.WatcherOption{
			watcher.WithDebounceDuration(cfg.DebounceDelay),
			watcher.WithForcePoll(cfg.ForcePoll),
			watcher.WithOnError(func(err error) {
				w.logEvent(LogLevelWarn, "watcher_error", map[string]any{"error": err.Error()})
			}),
			watcher.WithMatch(func(name string) bool {
				_, ok := datasource.TypeForPath(name)
				return ok
			}),
		}
		if cfg.PollInterval > 0 {
			opts = append(opts, watcher.WithPollInterval(cfg.PollInterval))
		}
		wch, err := watcher.NewWatcher(cfg.Path, opts...)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("watch %s: %w", cfg.Path, err)
		}
		w.watcher = wch
	}
	return w, nil
}

// Messages returns the channel the UI drains for worker results.
func (w *BackgroundWorker) Messages() <-chan tea.Msg {
	return w.msgCh
}

// Done is closed once the watch loop has exited.
func (w *BackgroundWorker) Done() <-chan struct{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.done
}

func (w *BackgroundWorker) openTraceFile() {
	if w == nil || w.tracePath == "" || w.traceFile != nil {
		return
	}
	f, err := os.OpenFile(w.tracePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		w.logEvent(LogLevelWarn, "trace_open_failed", map[string]any{
			"path":  w.tracePath,
			"error": err.Error(),
		})
		return
	}
	w.traceMu.Lock()
	w.traceFile = f
	w.traceMu.Unlock()
}

func (w *BackgroundWorker) closeTraceFile() {
	if w == nil {
		return
	}
	w.traceMu.Lock()
	f := w.traceFile
	w.traceFile = nil
	w.traceMu.Unlock()
	if f == nil {
		return
	}
	if err := f.Close(); err != nil {
		w.logEvent(LogLevelWarn, "trace_close_failed", map[string]any{
			"path":  w.tracePath,
			"error": err.Error(),
		})
	}
}

func (w *BackgroundWorker) logEvent(level WorkerLogLevel, event string, fields map[string]any) {
	if w == nil || level == LogLevelNone {
		return
	}
	w.traceMu.Lock()
	tracing := w.traceFile != nil
	w.traceMu.Unlock()
	if !tracing && (w.logLevel == LogLevelNone || level > w.logLevel) {
		return
	}

	payload := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"component": "background_worker",
		"event":     event,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("background worker: failed to marshal log event %s: %v", event, err)
		return
	}

	if w.logLevel != LogLevelNone && level <= w.logLevel {
		log.Printf("%s", b)
	}
	w.traceMu.Lock()
	if w.traceFile != nil {
		_, _ = w.traceFile.Write(append(b, '\n'))
	}
	w.traceMu.Unlock()
}

// Start begins watching and runs the initial load. Start is idempotent.
// Returns an error if the worker has been stopped.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return fmt.Errorf("worker has been stopped")
	}
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	done := w.done
	w.mu.Unlock()

	w.openTraceFile()
	w.logEvent(LogLevelInfo, "worker_start", map[string]any{"path": w.path})

	if w.watcher == nil {
		close(done)
		return nil
	}
	if err := w.watcher.Start(); err != nil {
		w.mu.Lock()
		w.started = false
		w.mu.Unlock()
		w.closeTraceFile()
		return err
	}
	w.logEvent(LogLevelDebug, "watcher_start", map[string]any{
		"polling": w.watcher.IsPolling(),
		"dir":     w.watcher.IsDir(),
		"fs":      w.watcher.FilesystemType().String(),
	})
	go w.processLoop(done)
	return nil
}

// Stop halts the worker. Stop is idempotent.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	done := w.done
	w.mu.Unlock()

	w.cancel()
	if w.watcher != nil {
		w.watcher.Stop()
	}
	if wasStarted {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			w.logEvent(LogLevelWarn, "shutdown_timeout", nil)
		}
	}
	w.logEvent(LogLevelInfo, "worker_stop", nil)
	w.closeTraceFile()
}

// TriggerRefresh schedules a load. While a load is running, the request
// is folded into one follow-up load.
func (w *BackgroundWorker) TriggerRefresh() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if w.state == WorkerProcessing {
		w.dirty = true
		coalesced := w.coalesceCount.Add(1)
		w.logEvent(LogLevelDebug, "coalesce", map[string]any{"count": coalesced})
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	go w.process()
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// LastError returns the most recent load failure, or nil after a success.
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

// LoadCount returns how many loads have completed, successful or not.
func (w *BackgroundWorker) LoadCount() uint64 {
	return w.loadCount.Load()
}

// WatcherInfo describes the attached watcher for the status line.
func (w *BackgroundWorker) WatcherInfo() string {
	if w.watcher == nil {
		return "not watching"
	}
	mode := "fsnotify"
	if w.watcher.IsPolling() {
		mode = fmt.Sprintf("polling every %s", w.watcher.PollInterval())
	}
	return fmt.Sprintf("watching %s (%s)", w.watcher.Path(), mode)
}

func (w *BackgroundWorker) processLoop(done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			w.logEvent(LogLevelError, "process_loop_panic", map[string]any{
				"panic": fmt.Sprintf("%v", r),
				"stack": string(debug.Stack()),
			})
		}
	}()

	changed := w.watcher.Changed()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-changed:
			depth := w.pendingChanges.Add(1)
			w.logEvent(LogLevelTrace, "file_change", map[string]any{"queue_depth": depth})
			w.TriggerRefresh()
		}
	}
}

func (w *BackgroundWorker) process() {
	w.mu.Lock()
	if w.state != WorkerIdle {
		if w.state == WorkerProcessing {
			w.dirty = true
		}
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.dirty = false
	previous := w.lastStore
	w.logEvent(LogLevelDebug, "state_change", map[string]any{"state": "processing"})
	w.mu.Unlock()

	queueDepth := w.pendingChanges.Swap(0)
	coalesced := w.coalesceCount.Swap(0)
	w.logEvent(LogLevelInfo, "process_start", map[string]any{"queue_depth": queueDepth})

	start := time.Now()
	gen := w.engine.BeginLoad()
	var store *model.Store
	werr := w.safeCompute("load", func() error {
		var err error
		store, err = w.load(w.ctx)
		return err
	})
	var loadErr error
	if werr != nil {
		loadErr = werr.Cause
	}
	publishErr := w.engine.FinishLoad(gen, store, loadErr)
	elapsed := time.Since(start)
	w.loadCount.Add(1)

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerIdle
	wasDirty := w.dirty
	if publishErr == nil {
		w.lastStore = store
	}
	w.logEvent(LogLevelDebug, "state_change", map[string]any{"state": "idle"})
	w.mu.Unlock()

	switch {
	case publishErr == nil:
		w.recordError(nil)
		msg := SnapshotReadyMsg{
			Store:    store,
			Previous: previous,
			Duration: elapsed,
			SentAt:   time.Now(),
		}
		fields := map[string]any{
			"triples":    store.Len(),
			"hash":       hashPrefix(store.DataHash()),
			"version":    store.Version(),
			"process_ms": float64(elapsed.Microseconds()) / 1000.0,
			"coalesced":  coalesced,
		}
		if previous != nil {
			diff := datasource.DiffStores(previous, store, "previous", "current", datasource.DefaultDiffOptions())
			msg.Diff = &diff
			fields["diff"] = diff.Summary()
		}
		w.logEvent(LogLevelInfo, "snapshot_ready", fields)
		w.send(msg)
	case errors.Is(publishErr, explore.ErrSuperseded):
		w.logEvent(LogLevelDebug, "load_superseded", map[string]any{"generation": gen})
	default:
		phase := "publish"
		if werr != nil {
			phase = werr.Phase
		}
		retries := w.recordError(&WorkerError{Phase: phase, Cause: publishErr, Time: time.Now()})
		w.logEvent(LogLevelError, "load_failed", map[string]any{
			"error":   publishErr.Error(),
			"retries": retries,
		})
		w.send(SnapshotErrorMsg{Err: publishErr, Recoverable: w.engine.Ready()})
	}

	if wasDirty {
		go w.process()
	}
}

// safeCompute executes fn and recovers from any panics.
func (w *BackgroundWorker) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{Phase: phase, Cause: err, Time: time.Now()}
		}
	}()
	return result
}

// recordError stores err as the last error and returns how many failures
// preceded it. A nil err resets the count.
func (w *BackgroundWorker) recordError(err *WorkerError) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		w.lastError = nil
		w.errorCount = 0
		return 0
	}
	err.Retries = w.errorCount
	w.errorCount++
	w.lastError = err
	return err.Retries
}

func (w *BackgroundWorker) send(msg tea.Msg) {
	if w == nil || msg == nil {
		return
	}
	for {
		select {
		case w.msgCh <- msg:
			return
		case <-w.ctx.Done():
			return
		default:
		}

		// Channel is full; drop an older message so the newest wins.
		select {
		case <-w.msgCh:
		default:
		}
	}
}

// hashPrefix returns up to 16 characters of hash for logging.
func hashPrefix(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
