package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"hopper/internal/chain"
	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/parser"
	"hopper/internal/pricing"
	"hopper/internal/testsupport"
	"hopper/internal/watch"
	"hopper/internal/workflow"
)

// stubImplementation satisfies parser.Implementation with fixed metadata, a
// fixed cost estimate, and a Run that writes a marker output file.
type stubImplementation struct {
	name   string
	exts   []string
	suffix string
	deps   []string
	cost   float64
}

func (s *stubImplementation) Name() string                 { return s.name }
func (s *stubImplementation) AcceptedExtensions() []string { return s.exts }
func (s *stubImplementation) OutputSuffix() string         { return s.suffix }
func (s *stubImplementation) DependsOn() []string          { return s.deps }

func (s *stubImplementation) EstimateCost(string) (pricing.Estimate, error) {
	return pricing.Estimate{Cost: s.cost}, nil
}

func (s *stubImplementation) Run(_ context.Context, req parser.Request) (string, error) {
	if err := os.WriteFile(req.OutputPath, []byte("stub output"), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func (s *stubImplementation) HealthCheck(context.Context) parser.Health {
	return parser.Healthy(s.name)
}

// newTestDaemon wires a daemon against a real store, stub implementations,
// and an API configured for an ephemeral loopback port. Poll intervals drop
// to zero so started daemons never wait on timers. A nil cfg uses the
// testsupport defaults.
func newTestDaemon(t *testing.T, cfg *config.Config, impls ...parser.Implementation) *Daemon {
	t.Helper()
	t.Setenv("HOPPER_API_TOKEN", "")

	if cfg == nil {
		cfg = testsupport.NewConfig(t)
	}
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	cfg.Watch.PollInterval = 0

	store := testsupport.MustOpenStore(t, cfg)
	registry, err := parser.NewRegistry(impls...)
	if err != nil {
		t.Fatalf("parser.NewRegistry: %v", err)
	}
	chains := chain.NewManager(store, registry, logging.NewNop())
	if err := chains.EnsureDefaultConfigs(context.Background()); err != nil {
		t.Fatalf("chains.EnsureDefaultConfigs: %v", err)
	}
	wf := workflow.NewManager(cfg, store, chains, registry, logging.NewNop())
	watcher := watch.NewWatcher(cfg, wf, logging.NewNop())

	d, err := New(cfg, store, chains, registry, wf, watcher, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

// serveAPI routes a request through the daemon's HTTP handler without
// binding a socket. chi URL parameters only resolve through the router, so
// handlers are never invoked directly.
func serveAPI(t *testing.T, d *Daemon, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if d.api == nil {
		t.Fatal("api server not configured")
	}
	rec := httptest.NewRecorder()
	d.api.routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
