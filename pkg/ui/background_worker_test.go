package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/eavview/internal/datasource"
	"github.com/vanderheijden86/eavview/pkg/explore"
	"github.com/vanderheijden86/eavview/pkg/model"
	"github.com/vanderheijden86/eavview/pkg/testutil"
)

func staticLoad(triples []model.Triple) explore.LoadFunc {
	return func(context.Context) (*model.Store, error) {
		return model.NewStore(triples), nil
	}
}

func waitWorkerMsg(t *testing.T, w *BackgroundWorker, timeout time.Duration) tea.Msg {
	t.Helper()
	select {
	case msg := <-w.Messages():
		return msg
	case <-time.After(timeout):
		t.Fatalf("no worker message within %v", timeout)
		return nil
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestBackgroundWorker_RequiresEngineAndLoad(t *testing.T) {
	if _, err := NewBackgroundWorker(WorkerConfig{Load: staticLoad(nil)}); err == nil {
		t.Error("expected error without engine")
	}
	if _, err := NewBackgroundWorker(WorkerConfig{Engine: explore.NewEngine("")}); err == nil {
		t.Error("expected error without load function")
	}
}

func TestBackgroundWorker_NewWithoutPath(t *testing.T) {
	engine := explore.NewEngine("")
	worker, err := NewBackgroundWorker(WorkerConfig{Engine: engine, Load: staticLoad(testutil.Scenario())})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	if worker.State() != WorkerIdle {
		t.Errorf("Expected idle state, got %v", worker.State())
	}
	if worker.WatcherInfo() != "not watching" {
		t.Errorf("WatcherInfo = %q", worker.WatcherInfo())
	}
	if engine.Status() != explore.StatusNotReady {
		t.Errorf("engine status = %v before any load", engine.Status())
	}
}

func TestBackgroundWorker_InitialLoadPublishes(t *testing.T) {
	engine := explore.NewEngine("")
	worker, err := NewBackgroundWorker(WorkerConfig{Engine: engine, Load: staticLoad(testutil.Scenario())})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := worker.Start(); err != nil {
		t.Fatalf("second Start should be a no-op: %v", err)
	}
	worker.TriggerRefresh()

	msg := waitWorkerMsg(t, worker, 2*time.Second)
	ready, ok := msg.(SnapshotReadyMsg)
	if !ok {
		t.Fatalf("expected SnapshotReadyMsg, got %T", msg)
	}
	if ready.Store.Len() != 3 {
		t.Errorf("store has %d triples, want 3", ready.Store.Len())
	}
	if ready.Previous != nil || ready.Diff != nil {
		t.Error("first load should carry no previous store or diff")
	}
	if !engine.Ready() || engine.Snapshot() != ready.Store {
		t.Error("engine should publish the worker's store")
	}
}

func TestBackgroundWorker_FailedLoadKeepsPreviousStore(t *testing.T) {
	engine := explore.NewEngine("")
	var fail atomic.Bool
	fail.Store(true)
	load := func(context.Context) (*model.Store, error) {
		if fail.Load() {
			return nil, errors.New("disk on fire")
		}
		return testutil.ScenarioStore(), nil
	}
	worker, err := NewBackgroundWorker(WorkerConfig{Engine: engine, Load: load})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()
	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	worker.TriggerRefresh()
	msg := waitWorkerMsg(t, worker, 2*time.Second)
	errMsg, ok := msg.(SnapshotErrorMsg)
	if !ok {
		t.Fatalf("expected SnapshotErrorMsg, got %T", msg)
	}
	if errMsg.Recoverable {
		t.Error("error without a published store should not be recoverable")
	}
	if engine.Status() != explore.StatusFailed {
		t.Errorf("engine status = %v, want failed", engine.Status())
	}
	if le := worker.LastError(); le == nil || le.Phase != "load" {
		t.Errorf("LastError = %+v, want load phase", le)
	}

	fail.Store(false)
	worker.TriggerRefresh()
	if _, ok := waitWorkerMsg(t, worker, 2*time.Second).(SnapshotReadyMsg); !ok {
		t.Fatal("expected recovery to publish")
	}
	if worker.LastError() != nil {
		t.Error("LastError should reset after success")
	}
	published := engine.Snapshot()

	fail.Store(true)
	worker.TriggerRefresh()
	errMsg, ok = waitWorkerMsg(t, worker, 2*time.Second).(SnapshotErrorMsg)
	if !ok {
		t.Fatal("expected SnapshotErrorMsg on failed reload")
	}
	if !errMsg.Recoverable {
		t.Error("failed reload over a published store should be recoverable")
	}
	if engine.Snapshot() != published || !engine.Ready() {
		t.Error("failed reload must keep the previous store")
	}
}

func TestBackgroundWorker_PanicInLoadIsRecovered(t *testing.T) {
	engine := explore.NewEngine("")
	load := func(context.Context) (*model.Store, error) { panic("boom") }
	worker, err := NewBackgroundWorker(WorkerConfig{Engine: engine, Load: load})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()
	_ = worker.Start()
	worker.TriggerRefresh()

	errMsg, ok := waitWorkerMsg(t, worker, 2*time.Second).(SnapshotErrorMsg)
	if !ok {
		t.Fatal("expected SnapshotErrorMsg")
	}
	if !strings.Contains(errMsg.Err.Error(), "panic: boom") {
		t.Errorf("error = %v, want recovered panic", errMsg.Err)
	}
	if worker.State() != WorkerIdle {
		t.Errorf("worker state = %v after panic, want idle", worker.State())
	}
}

func TestBackgroundWorker_CoalescesTriggersWhileProcessing(t *testing.T) {
	engine := explore.NewEngine("")
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(context.Context) (*model.Store, error) {
		if calls.Add(1) == 1 {
			<-release
		}
		return testutil.ScenarioStore(), nil
	}
	worker, err := NewBackgroundWorker(WorkerConfig{Engine: engine, Load: load})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()
	_ = worker.Start()

	worker.TriggerRefresh()
	waitFor(t, 2*time.Second, func() bool { return worker.State() == WorkerProcessing })
	for i := 0; i < 5; i++ {
		worker.TriggerRefresh()
	}
	close(release)

	waitFor(t, 2*time.Second, func() bool { return worker.LoadCount() == 2 && worker.State() == WorkerIdle })
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Errorf("load ran %d times, want 2 (initial + one coalesced)", got)
	}
}

func TestBackgroundWorker_StopIsIdempotent(t *testing.T) {
	worker, err := NewBackgroundWorker(WorkerConfig{Engine: explore.NewEngine(""), Load: staticLoad(nil)})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	_ = worker.Start()
	worker.Stop()
	worker.Stop()

	if worker.State() != WorkerStopped {
		t.Errorf("state = %v, want stopped", worker.State())
	}
	if err := worker.Start(); err == nil {
		t.Error("Start after Stop should fail")
	}
	worker.TriggerRefresh() // must not panic or load
}

func TestBackgroundWorker_ReloadsOnFileChange(t *testing.T) {
	path := testutil.WriteDataset(t, "triples.csv", testutil.ToCSV(testutil.Scenario()))
	engine := explore.NewEngine("")
	load := func(ctx context.Context) (*model.Store, error) {
		return datasource.Load(ctx, path, datasource.LoadOptions{})
	}
	worker, err := NewBackgroundWorker(WorkerConfig{
		Path:          path,
		Engine:        engine,
		Load:          load,
		DebounceDelay: 10 * time.Millisecond,
		PollInterval:  30 * time.Millisecond,
		ForcePoll:     true,
	})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()
	if err := worker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !strings.Contains(worker.WatcherInfo(), "polling") {
		t.Errorf("WatcherInfo = %q, want polling", worker.WatcherInfo())
	}
	worker.TriggerRefresh()
	if _, ok := waitWorkerMsg(t, worker, 2*time.Second).(SnapshotReadyMsg); !ok {
		t.Fatal("expected initial snapshot")
	}

	// Let the mtime move forward on coarse filesystems.
	time.Sleep(20 * time.Millisecond)
	grown := append(testutil.Scenario(), model.Triple{ID: "C", Node: testutil.DomainNode, Value: model.StringValue("Chem")})
	if err := os.WriteFile(path, []byte(testutil.ToCSV(grown)), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-worker.Messages():
			ready, ok := msg.(SnapshotReadyMsg)
			if !ok || ready.Store.Len() != 4 {
				continue
			}
			if ready.Diff == nil || len(ready.Diff.MissingInA) != 1 || ready.Diff.MissingInA[0] != "C" {
				t.Errorf("diff = %+v, want C added", ready.Diff)
			}
			return
		case <-deadline:
			t.Fatal("file change did not trigger a reload")
		}
	}
}

func TestBackgroundWorker_SendDropsOldest(t *testing.T) {
	worker, err := NewBackgroundWorker(WorkerConfig{
		Engine:        explore.NewEngine(""),
		Load:          staticLoad(nil),
		MessageBuffer: 1,
	})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	defer worker.Stop()

	worker.send(SnapshotErrorMsg{Err: errors.New("old")})
	worker.send(SnapshotErrorMsg{Err: errors.New("new")})

	msg := waitWorkerMsg(t, worker, time.Second).(SnapshotErrorMsg)
	if msg.Err.Error() != "new" {
		t.Errorf("got %v, want the newest message", msg.Err)
	}
}

func TestBackgroundWorker_TraceFile(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "worker.jsonl")
	worker, err := NewBackgroundWorker(WorkerConfig{
		Engine:    explore.NewEngine(""),
		Load:      staticLoad(testutil.Scenario()),
		LogLevel:  "none",
		TracePath: trace,
	})
	if err != nil {
		t.Fatalf("NewBackgroundWorker failed: %v", err)
	}
	_ = worker.Start()
	worker.TriggerRefresh()
	waitWorkerMsg(t, worker, 2*time.Second)
	worker.Stop()

	data, err := os.ReadFile(trace)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	for _, event := range []string{`"event":"worker_start"`, `"event":"snapshot_ready"`, `"event":"worker_stop"`} {
		if !strings.Contains(string(data), event) {
			t.Errorf("trace missing %s:\n%s", event, data)
		}
	}
	if !strings.Contains(string(data), `"component":"background_worker"`) {
		t.Error("trace events should carry the component")
	}
}

func TestParseWorkerLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want WorkerLogLevel
	}{
		{"", LogLevelWarn},
		{"off", LogLevelNone},
		{"ERROR", LogLevelError},
		{" info ", LogLevelInfo},
		{"4", LogLevelDebug},
		{"trace", LogLevelTrace},
		{"bogus", LogLevelWarn},
	}
	for _, tt := range tests {
		if got := parseWorkerLogLevel(tt.raw); got != tt.want {
			t.Errorf("parseWorkerLogLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestWorkerErrorUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := WorkerError{Phase: "load", Cause: cause, Retries: 2}
	if !errors.Is(err, cause) {
		t.Error("WorkerError should unwrap to its cause")
	}
	if got := err.Error(); got != "load failed: root (retries: 2)" {
		t.Errorf("Error() = %q", got)
	}
}
