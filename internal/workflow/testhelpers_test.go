package workflow_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/parser"
	"hopper/internal/pricing"
	"hopper/internal/testsupport"
	"hopper/internal/workflow"
)

// stubImplementation writes a small output file on Run unless a hook or error
// overrides that.
type stubImplementation struct {
	name   string
	exts   []string
	suffix string
	deps   []string
	health parser.Health

	runErr  error
	runHook func(context.Context, parser.Request) (string, error)

	mu   sync.Mutex
	runs []parser.Request
}

func newStubImplementation(name, suffix string, exts ...string) *stubImplementation {
	return &stubImplementation{name: name, exts: exts, suffix: suffix, health: parser.Healthy(name)}
}

func (s *stubImplementation) Name() string                 { return s.name }
func (s *stubImplementation) AcceptedExtensions() []string { return s.exts }
func (s *stubImplementation) OutputSuffix() string         { return s.suffix }
func (s *stubImplementation) DependsOn() []string          { return s.deps }

func (s *stubImplementation) EstimateCost(string) (pricing.Estimate, error) {
	return pricing.Estimate{}, nil
}

func (s *stubImplementation) Run(ctx context.Context, req parser.Request) (string, error) {
	s.mu.Lock()
	s.runs = append(s.runs, req)
	s.mu.Unlock()
	if s.runHook != nil {
		return s.runHook(ctx, req)
	}
	if s.runErr != nil {
		return "", s.runErr
	}
	if err := os.WriteFile(req.OutputPath, []byte("stub output"), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func (s *stubImplementation) HealthCheck(context.Context) parser.Health { return s.health }

func (s *stubImplementation) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func (s *stubImplementation) lastRun() (parser.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return parser.Request{}, false
	}
	return s.runs[len(s.runs)-1], true
}

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) lastPayload(event notifications.Event) notifications.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i] == event {
			return r.payloads[i]
		}
	}
	return nil
}

type managerFixture struct {
	cfg      *config.Config
	store    *catalog.Store
	chains   *chain.Manager
	manager  *workflow.Manager
	notifier *recordingNotifier
}

// newFixture wires a manager against a real store with stub implementations.
// Poll and retry intervals drop to zero so tests never wait on timers.
func newFixture(t *testing.T, cfg *config.Config, impls ...parser.Implementation) *managerFixture {
	t.Helper()
	if cfg == nil {
		cfg = testsupport.NewConfig(t)
	}
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0

	store := testsupport.MustOpenStore(t, cfg)
	registry, err := parser.NewRegistry(impls...)
	if err != nil {
		t.Fatalf("parser.NewRegistry: %v", err)
	}
	chains := chain.NewManager(store, registry, logging.NewNop())
	notifier := &recordingNotifier{}
	manager := workflow.NewManagerWithNotifier(cfg, store, chains, registry, logging.NewNop(), notifier)
	return &managerFixture{cfg: cfg, store: store, chains: chains, manager: manager, notifier: notifier}
}

func (f *managerFixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("manager.Start: %v", err)
	}
	t.Cleanup(f.manager.Stop)
}

func waitForJobStatus(t *testing.T, store *catalog.Store, fileID int64, parserName string, want catalog.JobStatus) *catalog.Job {
	t.Helper()
	ctx := context.Background()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s job on file %d to reach %s", parserName, fileID, want)
		default:
		}

		job, err := store.GetJob(ctx, fileID, parserName)
		if err != nil {
			t.Fatalf("store.GetJob: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForNotification(t *testing.T, notifier *recordingNotifier, event notifications.Event) notifications.Payload {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s notification", event)
		default:
		}
		if notifier.count(event) > 0 {
			return notifier.lastPayload(event)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
