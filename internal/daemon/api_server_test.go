package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hopper/internal/api"
	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/testsupport"
)

func TestAPIServerStatus(t *testing.T) {
	impl := &stubImplementation{name: "transcribe", exts: []string{".mp3"}, suffix: ".transcript.txt"}
	d := newTestDaemon(t, nil, impl)

	rec := serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	}

	var status api.DaemonStatus
	decodeBody(t, rec, &status)
	if status.Running {
		t.Fatal("expected not running before start")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", status.PID)
	}
	if status.DBPath == "" {
		t.Fatal("expected db path in status")
	}
	if status.JobStats == nil {
		t.Fatal("expected job stats map")
	}
	if len(status.ParserHealth) != 1 || status.ParserHealth[0].Name != "transcribe" || !status.ParserHealth[0].Ready {
		t.Fatalf("unexpected parser health: %+v", status.ParserHealth)
	}
}

func TestAPIServerFiles(t *testing.T) {
	d := newTestDaemon(t, nil)

	original := testsupport.SeedFile(t, d.store, "/drop/talk.mp3", catalog.FileOriginal, 2048)
	testsupport.SeedFile(t, d.store, "/drop/talk.mp3.transcript.txt", catalog.FileDerivative, 512)

	rec := serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	}
	var list api.FileListResponse
	decodeBody(t, rec, &list)
	if len(list.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(list.Files))
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/files?kind=original", nil))
	decodeBody(t, rec, &list)
	if len(list.Files) != 1 || list.Files[0].Kind != string(catalog.FileOriginal) {
		t.Fatalf("expected only the original file, got %+v", list.Files)
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/files/"+itoa(original.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	}
	var detail api.FileDetail
	decodeBody(t, rec, &detail)
	if detail.File.Path != original.Path {
		t.Fatalf("unexpected file detail path %q", detail.File.Path)
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/files/9999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown file, got %d", rec.Code)
	}
	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/files/bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestAPIServerConfigsAndJobs(t *testing.T) {
	impl := &stubImplementation{name: "transcribe", exts: []string{".mp3"}, suffix: ".transcript.txt"}
	d := newTestDaemon(t, nil, impl)

	rec := serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/configs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	}
	var configs api.ConfigListResponse
	decodeBody(t, rec, &configs)
	if len(configs.Configs) != 1 || configs.Configs[0].Name != "transcribe" || !configs.Configs[0].Enabled {
		t.Fatalf("unexpected seeded configs: %+v", configs.Configs)
	}

	file := testsupport.SeedFile(t, d.store, "/drop/talk.mp3", catalog.FileOriginal, 2048)
	if _, err := d.store.EnqueueJob(context.Background(), file.ID, "transcribe"); err != nil {
		t.Fatalf("store.EnqueueJob: %v", err)
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	var jobs api.JobListResponse
	decodeBody(t, rec, &jobs)
	if len(jobs.Jobs) != 1 || jobs.Jobs[0].Status != string(catalog.JobPending) {
		t.Fatalf("unexpected jobs: %+v", jobs.Jobs)
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil))
	decodeBody(t, rec, &jobs)
	if len(jobs.Jobs) != 0 {
		t.Fatalf("expected no completed jobs, got %+v", jobs.Jobs)
	}
}

func TestAPIServerPredictionAndApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	impl := &stubImplementation{name: "transcribe", exts: []string{".mp3"}, suffix: ".transcript.txt", cost: 0.5}
	d := newTestDaemon(t, cfg, impl)

	ctx := context.Background()
	path := filepath.Join(cfg.Paths.WatchDir, "meeting.mp3")
	file := testsupport.SeedFile(t, d.store, path, catalog.FileOriginal, 4096)
	if _, err := d.chains.RecomputeOne(ctx, file.ID); err != nil {
		t.Fatalf("chains.RecomputeOne: %v", err)
	}

	rec := serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/predictions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	}
	var list api.PredictionListResponse
	decodeBody(t, rec, &list)
	if len(list.Predictions) != 1 || list.Predictions[0].TotalCost != 0.5 {
		t.Fatalf("unexpected predictions: %+v", list.Predictions)
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/predictions/"+itoa(file.ID), nil))
	var prediction api.Prediction
	decodeBody(t, rec, &prediction)
	if len(prediction.Chain) != 1 || prediction.Chain[0].Parser != "transcribe" {
		t.Fatalf("unexpected prediction chain: %+v", prediction.Chain)
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/predictions/9999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown prediction, got %d", rec.Code)
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodPost, "/api/predictions/"+itoa(file.ID)+"/approve", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK for approval, got %d: %s", rec.Code, rec.Body.String())
	}
	var result api.ApproveResult
	decodeBody(t, rec, &result)
	if len(result.Enqueued) != 1 || result.Enqueued[0].Parser != "transcribe" {
		t.Fatalf("unexpected approval result: %+v", result)
	}
	job, err := d.store.GetJob(ctx, file.ID, "transcribe")
	if err != nil {
		t.Fatalf("store.GetJob: %v", err)
	}
	if job == nil || job.Status != catalog.JobPending {
		t.Fatalf("expected pending transcribe job, got %+v", job)
	}

	body := strings.NewReader(`{"steps":["bogus"]}`)
	rec = serveAPI(t, d, httptest.NewRequest(http.MethodPost, "/api/predictions/"+itoa(file.ID)+"/approve", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for step outside chain, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodPost, "/api/predictions/9999/approve", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 approving unknown file, got %d", rec.Code)
	}
}

func TestAPIServerBatchCost(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	impl := &stubImplementation{name: "transcribe", exts: []string{".mp3"}, suffix: ".transcript.txt", cost: 0.25}
	d := newTestDaemon(t, cfg, impl)

	ctx := context.Background()
	first := testsupport.SeedFile(t, d.store, filepath.Join(cfg.Paths.WatchDir, "a.mp3"), catalog.FileOriginal, 1024)
	second := testsupport.SeedFile(t, d.store, filepath.Join(cfg.Paths.WatchDir, "b.mp3"), catalog.FileOriginal, 1024)
	for _, file := range []*catalog.FileRecord{first, second} {
		if _, err := d.chains.RecomputeOne(ctx, file.ID); err != nil {
			t.Fatalf("chains.RecomputeOne: %v", err)
		}
	}

	body := strings.NewReader(`{"selections":[` +
		`{"fileId":` + itoa(first.ID) + `,"steps":["transcribe"]},` +
		`{"fileId":` + itoa(second.ID) + `,"steps":["transcribe"]}]}`)
	rec := serveAPI(t, d, httptest.NewRequest(http.MethodPost, "/api/batch-cost", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp api.BatchCostResponse
	decodeBody(t, rec, &resp)
	if resp.TotalCost != 0.5 {
		t.Fatalf("expected total 0.5, got %v", resp.TotalCost)
	}
	if resp.FormattedCost != "$0.50" {
		t.Fatalf("unexpected formatted cost %q", resp.FormattedCost)
	}

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodPost, "/api/batch-cost", strings.NewReader("not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestAPIServerValidate(t *testing.T) {
	impl := &stubImplementation{name: "transcribe", exts: []string{".mp3"}, suffix: ".transcript.txt"}
	d := newTestDaemon(t, nil, impl)

	rec := serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/validate", nil))
	var report chain.ValidationReport
	decodeBody(t, rec, &report)
	if !report.Valid {
		t.Fatalf("expected valid graph, got %+v", report)
	}

	testsupport.SeedParserConfig(t, d.store, &catalog.ParserConfig{
		Name:           "summarize",
		Implementation: "summarize",
		Extensions:     []string{".transcript.txt"},
		OutputExt:      ".summary.txt",
		DependsOn:      []string{"missing-step"},
		Enabled:        true,
	})

	rec = serveAPI(t, d, httptest.NewRequest(http.MethodGet, "/api/validate", nil))
	decodeBody(t, rec, &report)
	if report.Valid || len(report.Errors) == 0 {
		t.Fatalf("expected dependency errors, got %+v", report)
	}
	if !strings.Contains(strings.Join(report.Errors, "\n"), "missing-step") {
		t.Fatalf("expected missing-step in errors, got %+v", report.Errors)
	}
}

func TestAPIServerRequiresBearerToken(t *testing.T) {
	d := newTestDaemon(t, nil)
	srv := &apiServer{token: "sekrit", daemon: d, catalog: api.NewCatalogService(d.store)}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	d := newTestDaemon(t, cfg)

	if d.api != nil {
		t.Fatal("expected api server to be disabled without a bind address")
	}
	if d.APIAddr() != "" {
		t.Fatalf("expected empty api address, got %q", d.APIAddr())
	}
}
