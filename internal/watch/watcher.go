// Package watch polls the drop directory and hands settled files to the
// workflow. A file counts as settled once its size and modification time hold
// still across two consecutive polls; files still being copied in are left
// alone until they stop growing. The tracker lives in memory, so a daemon
// restart fingerprints everything present once more and the catalog upsert
// absorbs the repeats.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"hopper/internal/catalog"
	"hopper/internal/config"
	"hopper/internal/fileutil"
	"hopper/internal/logging"
)

// Ingestor receives files once they are stable on disk. The workflow manager
// satisfies this.
type Ingestor interface {
	IngestFile(ctx context.Context, path string, sizeBytes int64, checksum string) (*catalog.FileRecord, error)
}

// fileState is what the tracker remembers about a path between polls.
type fileState struct {
	size    int64
	modTime time.Time
	settled bool
}

// Watcher scans the watch directory on an interval and forwards new or
// changed files to the ingestor.
type Watcher struct {
	dir          string
	extensions   []string
	pollInterval time.Duration
	ingestor     Ingestor
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// seen is touched only by the poll goroutine.
	seen map[string]fileState
}

// NewWatcher builds a watcher over cfg's watch directory. Returns nil when
// prerequisites are missing so the daemon can treat the watcher as optional.
func NewWatcher(cfg *config.Config, ingestor Ingestor, logger *slog.Logger) *Watcher {
	if cfg == nil || ingestor == nil {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		dir:          cfg.Paths.WatchDir,
		extensions:   normalizeExtensions(cfg.Watch.Extensions),
		pollInterval: time.Duration(cfg.Watch.PollInterval) * time.Second,
		ingestor:     ingestor,
		logger:       logging.NewComponentLogger(logger, "watch"),
		seen:         make(map[string]fileState),
	}
}

func normalizeExtensions(raw []string) []string {
	exts := make([]string, 0, len(raw))
	for _, ext := range raw {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

// Start launches the polling loop.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("watcher unavailable")
	}
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.run(runCtx)
	return nil
}

// Stop halts polling and waits for the current scan to finish.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.running = false
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// Running reports whether the polling loop is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		w.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// poll performs one scan of the watch directory. Each candidate is compared
// against the tracker: first sightings and size or mtime changes just update
// the record, a repeat sighting at the same size hands the file over, and
// settled files are skipped until they change again. Paths that vanished are
// forgotten so a re-drop is treated as new.
func (w *Watcher) poll(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("watch directory scan failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "watch_scan_failed"),
			logging.String(logging.FieldErrorHint, "check that paths.watch_dir exists and is readable"),
		)
		return
	}

	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !w.accepts(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		path := filepath.Join(w.dir, name)
		present[path] = struct{}{}
		w.observe(ctx, path, info)
	}

	for path := range w.seen {
		if _, ok := present[path]; !ok {
			delete(w.seen, path)
		}
	}
}

// accepts applies the configured extension allowlist. An empty allowlist
// accepts everything. Suffix matching keeps derived outputs such as
// name.transcript.txt in scope through their final extension.
func (w *Watcher) accepts(name string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range w.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (w *Watcher) observe(ctx context.Context, path string, info fs.FileInfo) {
	state := fileState{size: info.Size(), modTime: info.ModTime()}
	prev, known := w.seen[path]
	if !known || prev.size != state.size || !prev.modTime.Equal(state.modTime) {
		// New or still changing; give it another poll to settle.
		w.seen[path] = state
		return
	}
	if prev.settled {
		return
	}
	w.ingest(ctx, path, state)
}

func (w *Watcher) ingest(ctx context.Context, path string, state fileState) {
	logger := w.logger.With(logging.String(logging.FieldPath, path))

	checksum, err := fileutil.HashFile(path)
	if err != nil {
		logger.Warn("fingerprint failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "watch_fingerprint_failed"),
			logging.String(logging.FieldErrorHint, "check file permissions in the watch directory"),
		)
		return
	}

	if _, err := w.ingestor.IngestFile(ctx, path, state.size, checksum); err != nil {
		logger.Error("ingest failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "watch_ingest_failed"),
			logging.String(logging.FieldErrorHint, "check catalog database access"),
		)
		return
	}

	state.settled = true
	w.seen[path] = state
	logger.Info("file picked up",
		logging.String(logging.FieldEventType, "file_detected"),
		logging.String("size", humanize.Bytes(uint64(state.size))),
	)
}
