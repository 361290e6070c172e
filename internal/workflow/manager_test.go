package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hopper/internal/catalog"
	"hopper/internal/notifications"
	"hopper/internal/parser"
	"hopper/internal/services"
	"hopper/internal/testsupport"
)

func TestManagerProcessesJobs(t *testing.T) {
	impl := newStubImplementation("transcribe", ".transcript.txt", ".mp3")
	f := newFixture(t, nil, impl)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, f.store, &catalog.ParserConfig{
		Name:           "transcribe",
		Implementation: "transcribe",
		Extensions:     []string{".mp3"},
		OutputExt:      ".transcript.txt",
		Enabled:        true,
	})

	path := filepath.Join(f.cfg.Paths.WatchDir, "call.mp3")
	testsupport.WriteText(t, path, "audio bytes")
	file := testsupport.SeedFile(t, f.store, path, catalog.FileOriginal, 11)

	if _, err := f.store.EnqueueJob(ctx, file.ID, "transcribe"); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	f.start(t)
	job := waitForJobStatus(t, f.store, file.ID, "transcribe", catalog.JobCompleted)
	if job.ErrorMessage != "" {
		t.Fatalf("expected empty error message, got %q", job.ErrorMessage)
	}
	if impl.runCount() != 1 {
		t.Fatalf("expected exactly one run, got %d", impl.runCount())
	}

	wantOutput := path + ".transcript.txt"
	parse, err := f.store.GetParse(ctx, file.ID, "transcribe")
	if err != nil {
		t.Fatalf("GetParse: %v", err)
	}
	if parse == nil || parse.Status != catalog.ParseDone {
		t.Fatalf("expected done parse, got %+v", parse)
	}
	if parse.OutputPath != wantOutput {
		t.Fatalf("expected output %s, got %s", wantOutput, parse.OutputPath)
	}
	if _, err := os.Stat(wantOutput); err != nil {
		t.Fatalf("expected output on disk: %v", err)
	}

	// The completion notification is published after the derivative is
	// registered, so it doubles as the bookkeeping barrier.
	payload := waitForNotification(t, f.notifier, notifications.EventChainCompleted)
	if payload["file"] != "call.mp3" {
		t.Fatalf("expected chain completion for call.mp3, got %q", payload["file"])
	}
	if payload["steps"] != "1" {
		t.Fatalf("expected 1 step, got %q", payload["steps"])
	}

	derivative, err := f.store.GetFileByPath(ctx, wantOutput)
	if err != nil {
		t.Fatalf("GetFileByPath: %v", err)
	}
	if derivative == nil || !derivative.IsDerivative() {
		t.Fatalf("expected derivative record for %s, got %+v", wantOutput, derivative)
	}
}

func TestManagerReviewsValidationFailures(t *testing.T) {
	impl := newStubImplementation("summarize", ".summary.txt", ".txt")
	impl.runErr = services.Wrap(services.ErrValidation, "summarize", "run", "api key missing", nil)
	f := newFixture(t, nil, impl)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, f.store, &catalog.ParserConfig{
		Name:           "summarize",
		Implementation: "summarize",
		Extensions:     []string{".txt"},
		OutputExt:      ".summary.txt",
		Enabled:        true,
	})

	path := filepath.Join(f.cfg.Paths.WatchDir, "notes.txt")
	testsupport.WriteText(t, path, "meeting notes")
	file := testsupport.SeedFile(t, f.store, path, catalog.FileOriginal, 13)
	if _, err := f.store.EnqueueJob(ctx, file.ID, "summarize"); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	f.start(t)
	job := waitForJobStatus(t, f.store, file.ID, "summarize", catalog.JobReview)
	if !strings.Contains(job.ErrorMessage, "api key missing") {
		t.Fatalf("expected error message to carry detail, got %q", job.ErrorMessage)
	}
	if strings.Contains(job.ErrorMessage, "validation error") {
		t.Fatalf("expected classification marker to be trimmed, got %q", job.ErrorMessage)
	}

	parse, err := f.store.GetParse(ctx, file.ID, "summarize")
	if err != nil {
		t.Fatalf("GetParse: %v", err)
	}
	if parse == nil || parse.Status != catalog.ParseFailed {
		t.Fatalf("expected failed parse, got %+v", parse)
	}

	payload := waitForNotification(t, f.notifier, notifications.EventReviewNeeded)
	if payload["parser"] != "summarize" {
		t.Fatalf("expected review for summarize, got %q", payload["parser"])
	}
	if payload["file"] != "notes.txt" {
		t.Fatalf("expected review on notes.txt, got %q", payload["file"])
	}
	if f.notifier.count(notifications.EventStepFailed) != 0 {
		t.Fatal("review failures must not also notify as step failures")
	}
}

func TestManagerFailsOnExternalToolError(t *testing.T) {
	impl := newStubImplementation("convert-video", ".mp3", ".mov")
	impl.runErr = errors.New("ffmpeg exited with status 1")
	f := newFixture(t, nil, impl)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, f.store, &catalog.ParserConfig{
		Name:           "convert-video",
		Implementation: "convert-video",
		Extensions:     []string{".mov"},
		OutputExt:      ".mp3",
		Enabled:        true,
	})

	path := filepath.Join(f.cfg.Paths.WatchDir, "clip.mov")
	testsupport.WriteFile(t, path, 2048)
	file := testsupport.SeedFile(t, f.store, path, catalog.FileOriginal, 2048)
	if _, err := f.store.EnqueueJob(ctx, file.ID, "convert-video"); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	f.start(t)
	job := waitForJobStatus(t, f.store, file.ID, "convert-video", catalog.JobFailed)
	if !strings.Contains(job.ErrorMessage, "ffmpeg exited") {
		t.Fatalf("expected tool error detail, got %q", job.ErrorMessage)
	}

	payload := waitForNotification(t, f.notifier, notifications.EventStepFailed)
	if payload["parser"] != "convert-video" {
		t.Fatalf("expected failure for convert-video, got %q", payload["parser"])
	}
	if f.notifier.count(notifications.EventChainCompleted) != 0 {
		t.Fatal("failed chains must not notify completion")
	}
}

func TestManagerDefersUntilDependencyCompletes(t *testing.T) {
	transcribe := newStubImplementation("transcribe", ".transcript.txt", ".mp3")
	annotate := newStubImplementation("annotate", ".notes.txt", ".mp3")
	annotate.deps = []string{"transcribe"}

	f := newFixture(t, nil, transcribe, annotate)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, f.store, &catalog.ParserConfig{
		Name:           "transcribe",
		Implementation: "transcribe",
		Extensions:     []string{".mp3"},
		OutputExt:      ".transcript.txt",
		Enabled:        true,
	})
	testsupport.SeedParserConfig(t, f.store, &catalog.ParserConfig{
		Name:             "annotate",
		Implementation:   "annotate",
		Extensions:       []string{".mp3"},
		OutputExt:        ".notes.txt",
		DependsOn:        []string{"transcribe"},
		AllowDerivatives: true,
		Enabled:          true,
	})

	path := filepath.Join(f.cfg.Paths.WatchDir, "call.mp3")
	testsupport.WriteText(t, path, "audio bytes")
	file := testsupport.SeedFile(t, f.store, path, catalog.FileOriginal, 11)

	// The dependent job lands in the queue first, so the worker must defer it
	// until the transcription has run.
	transcriptPath := path + ".transcript.txt"
	annotate.runHook = func(_ context.Context, req parser.Request) (string, error) {
		if _, err := os.Stat(transcriptPath); err != nil {
			return "", fmt.Errorf("ran before dependency output existed: %w", err)
		}
		if err := os.WriteFile(req.OutputPath, []byte("notes"), 0o644); err != nil {
			return "", err
		}
		return req.OutputPath, nil
	}
	if _, err := f.store.EnqueueJob(ctx, file.ID, "annotate"); err != nil {
		t.Fatalf("EnqueueJob annotate: %v", err)
	}
	if _, err := f.store.EnqueueJob(ctx, file.ID, "transcribe"); err != nil {
		t.Fatalf("EnqueueJob transcribe: %v", err)
	}

	f.start(t)
	waitForJobStatus(t, f.store, file.ID, "annotate", catalog.JobCompleted)
	waitForJobStatus(t, f.store, file.ID, "transcribe", catalog.JobCompleted)

	if req, ok := annotate.lastRun(); !ok || req.InputPath != path {
		t.Fatalf("expected annotate to read %s, got %+v", path, req)
	}
	waitForNotification(t, f.notifier, notifications.EventChainCompleted)
	if got := f.notifier.count(notifications.EventChainCompleted); got != 1 {
		t.Fatalf("expected one chain completion, got %d", got)
	}
}

func TestManagerClosesJobWhenOutputExists(t *testing.T) {
	impl := newStubImplementation("transcribe", ".transcript.txt", ".mp3")
	f := newFixture(t, nil, impl)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, f.store, &catalog.ParserConfig{
		Name:           "transcribe",
		Implementation: "transcribe",
		Extensions:     []string{".mp3"},
		OutputExt:      ".transcript.txt",
		Enabled:        true,
	})

	path := filepath.Join(f.cfg.Paths.WatchDir, "call.mp3")
	testsupport.WriteText(t, path, "audio bytes")
	testsupport.WriteText(t, path+".transcript.txt", "already transcribed")
	file := testsupport.SeedFile(t, f.store, path, catalog.FileOriginal, 11)
	if _, err := f.store.EnqueueJob(ctx, file.ID, "transcribe"); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	f.start(t)
	waitForJobStatus(t, f.store, file.ID, "transcribe", catalog.JobCompleted)
	if impl.runCount() != 0 {
		t.Fatalf("expected no runs for pre-existing output, got %d", impl.runCount())
	}

	parse, err := f.store.GetParse(ctx, file.ID, "transcribe")
	if err != nil {
		t.Fatalf("GetParse: %v", err)
	}
	if parse == nil || parse.Status != catalog.ParseDone {
		t.Fatalf("expected done parse for existing output, got %+v", parse)
	}
}

func TestManagerResetsStuckJobsOnStart(t *testing.T) {
	impl := newStubImplementation("transcribe", ".transcript.txt", ".mp3")
	f := newFixture(t, nil, impl)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, f.store, &catalog.ParserConfig{
		Name:           "transcribe",
		Implementation: "transcribe",
		Extensions:     []string{".mp3"},
		OutputExt:      ".transcript.txt",
		Enabled:        true,
	})

	path := filepath.Join(f.cfg.Paths.WatchDir, "call.mp3")
	testsupport.WriteText(t, path, "audio bytes")
	file := testsupport.SeedFile(t, f.store, path, catalog.FileOriginal, 11)
	job, err := f.store.EnqueueJob(ctx, file.ID, "transcribe")
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	claimed, err := f.store.MarkJobRunning(ctx, job.ID)
	if err != nil || !claimed {
		t.Fatalf("MarkJobRunning: claimed=%v err=%v", claimed, err)
	}

	// The daemon that claimed this job is gone; a fresh start must requeue
	// and finish it.
	f.start(t)
	waitForJobStatus(t, f.store, file.ID, "transcribe", catalog.JobCompleted)
	if impl.runCount() != 1 {
		t.Fatalf("expected one run after requeue, got %d", impl.runCount())
	}
}

func TestManagerTimesOutLongRuns(t *testing.T) {
	impl := newStubImplementation("transcribe", ".transcript.txt", ".mp3")
	impl.runHook = func(ctx context.Context, _ parser.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.JobTimeout = 1
	f := newFixture(t, cfg, impl)
	ctx := context.Background()

	testsupport.SeedParserConfig(t, f.store, &catalog.ParserConfig{
		Name:           "transcribe",
		Implementation: "transcribe",
		Extensions:     []string{".mp3"},
		OutputExt:      ".transcript.txt",
		Enabled:        true,
	})

	path := filepath.Join(f.cfg.Paths.WatchDir, "call.mp3")
	testsupport.WriteText(t, path, "audio bytes")
	file := testsupport.SeedFile(t, f.store, path, catalog.FileOriginal, 11)
	if _, err := f.store.EnqueueJob(ctx, file.ID, "transcribe"); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	f.start(t)
	job := waitForJobStatus(t, f.store, file.ID, "transcribe", catalog.JobFailed)
	if !strings.Contains(job.ErrorMessage, "no result after") {
		t.Fatalf("expected timeout message, got %q", job.ErrorMessage)
	}
}

func TestManagerStatusReportsQueueAndHealth(t *testing.T) {
	impl := newStubImplementation("transcribe", ".transcript.txt", ".mp3")
	impl.health = parser.Unhealthy("transcribe", "whisper binary not found")
	f := newFixture(t, nil, impl)
	ctx := context.Background()

	path := filepath.Join(f.cfg.Paths.WatchDir, "call.mp3")
	testsupport.WriteText(t, path, "audio bytes")
	file := testsupport.SeedFile(t, f.store, path, catalog.FileOriginal, 11)
	if _, err := f.store.EnqueueJob(ctx, file.ID, "transcribe"); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	status := f.manager.Status(ctx)
	if status.Running {
		t.Fatal("manager should not report running before Start")
	}
	if status.JobStats[catalog.JobPending] != 1 {
		t.Fatalf("expected one pending job, got %+v", status.JobStats)
	}
	if len(status.ParserHealth) != 1 || status.ParserHealth[0].Ready {
		t.Fatalf("expected one unhealthy implementation, got %+v", status.ParserHealth)
	}
	if status.ParserHealth[0].Detail != "whisper binary not found" {
		t.Fatalf("unexpected health detail %q", status.ParserHealth[0].Detail)
	}

	f.start(t)
	waitForJobStatus(t, f.store, file.ID, "transcribe", catalog.JobCompleted)
	waitForNotification(t, f.notifier, notifications.EventChainCompleted)
	status = f.manager.Status(ctx)
	if !status.Running {
		t.Fatal("manager should report running after Start")
	}
	if status.LastJob == nil || status.LastJob.Parser != "transcribe" {
		t.Fatalf("expected last job to be transcribe, got %+v", status.LastJob)
	}
	if status.LastJob.Status != catalog.JobCompleted {
		t.Fatalf("expected completed last job, got %s", status.LastJob.Status)
	}
}

func TestManagerStartWhileRunningFails(t *testing.T) {
	f := newFixture(t, nil, newStubImplementation("transcribe", ".transcript.txt", ".mp3"))
	f.start(t)
	if err := f.manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}
