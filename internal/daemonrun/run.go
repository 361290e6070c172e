// Package daemonrun assembles and runs the hopper daemon process. Both the
// hopperd binary and `hopper run` delegate here so the composition root
// exists exactly once.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/config"
	"hopper/internal/daemon"
	"hopper/internal/deps"
	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/parser"
	"hopper/internal/services/ffmpeg"
	"hopper/internal/services/summarizer"
	"hopper/internal/services/whisper"
	"hopper/internal/watch"
	"hopper/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// BuildRegistry wires the built-in parser implementations from config. The
// registry is the explicit composition-time replacement for plugin discovery:
// adding an implementation means adding a constructor call here.
func BuildRegistry(cfg *config.Config) (*parser.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	ffmpegClient := ffmpeg.NewClient(cfg.FFmpegBinary())
	summaryClient := summarizer.NewClient(summarizer.Config{
		APIKey:         cfg.Summarization.APIKey,
		BaseURL:        cfg.Summarization.BaseURL,
		Model:          cfg.Summarization.Model,
		Prompt:         cfg.Summarization.Prompt,
		TimeoutSeconds: cfg.Summarization.TimeoutSeconds,
	})

	return parser.NewRegistry(
		ffmpeg.NewConverter(ffmpegClient, cfg.Transcription.Provider, cfg.Transcription.Model),
		ffmpeg.NewExtractor(ffmpegClient),
		whisper.NewTranscriber(cfg.WhisperBinary(), cfg.Transcription.Provider, cfg.Transcription.Model),
		summarizer.NewSummarizer(summaryClient, cfg.Summarization.Provider),
	)
}

// Run starts the hopper daemon runtime loop and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("hopper-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            resolveLogLevel(opts.LogLevel, cfg),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "hopperd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}
	defer store.Close()

	registry, err := BuildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build parser registry: %w", err)
	}

	chains := chain.NewManager(store, registry, logger)
	if err := chains.EnsureDefaultConfigs(signalCtx); err != nil {
		return fmt.Errorf("seed default parser configs: %w", err)
	}

	notifier := notifications.NewService(cfg)
	wf := workflow.NewManagerWithNotifier(cfg, store, chains, registry, logger, notifier)
	watcher := watch.NewWatcher(cfg, wf, logger)

	d, err := daemon.New(cfg, store, chains, registry, wf, watcher, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("hopper daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	d.Stop()
	return nil
}

func resolveLogLevel(override string, cfg *config.Config) string {
	if override != "" {
		return override
	}
	return cfg.Logging.Level
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	for _, status := range deps.CheckBinaries(deps.Defaults(cfg)) {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "dependency_snapshot"),
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.Bool("available", status.Available),
		}
		if status.Detail != "" {
			attrs = append(attrs, logging.String("error_hint", status.Detail))
		}
		if status.Available {
			logger.Debug("external dependency available", logging.Args(attrs...)...)
		} else {
			logger.Warn("external dependency missing", logging.Args(attrs...)...)
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
