package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"hopper/internal/logging"
	"hopper/internal/notifications"
)

// notifyChainComplete announces that no active prediction remains on either
// end of a finished hop, meaning the chain that produced finalOutput is done.
func (m *Manager) notifyChainComplete(ctx context.Context, logger *slog.Logger, finalOutput string) {
	if m.notifier == nil {
		return
	}
	root, steps := m.chainRoot(ctx, finalOutput)
	payload := notifications.Payload{"file": filepath.Base(root)}
	if steps > 0 {
		payload["steps"] = strconv.Itoa(steps)
	}
	if err := m.notifier.Publish(ctx, notifications.EventChainCompleted, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, chain completion notification cancelled")
		} else {
			logger.Debug("chain completion notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) notifyStepFailed(ctx context.Context, logger *slog.Logger, fileName, parserName, message string) {
	if m.notifier == nil {
		return
	}
	payload := notifications.Payload{"parser": parserName, "error": message}
	if fileName != "" {
		payload["file"] = fileName
	}
	if err := m.notifier.Publish(ctx, notifications.EventStepFailed, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, step failure notification cancelled")
		} else {
			logger.Debug("step failure notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) notifyReviewNeeded(ctx context.Context, logger *slog.Logger, fileName, parserName, reason string) {
	if m.notifier == nil {
		return
	}
	payload := notifications.Payload{"parser": parserName, "reason": reason}
	if fileName != "" {
		payload["file"] = fileName
	}
	if err := m.notifier.Publish(ctx, notifications.EventReviewNeeded, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, review notification cancelled")
		} else {
			logger.Debug("review notification failed", logging.Error(err))
		}
	}
}

// chainRoot walks derived suffixes back toward the file the chain started
// from and reports how many derivation hops it crossed. Each hop must land on
// a cataloged file, and the walk stops early at a known original, so a user
// drop whose name happens to end in a derived suffix still resolves to
// itself.
func (m *Manager) chainRoot(ctx context.Context, path string) (string, int) {
	configs, err := m.chains.ListParserConfigs(ctx)
	if err != nil {
		return path, 0
	}
	suffixes := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if cfg.OutputExt != "" {
			suffixes = append(suffixes, cfg.OutputExt)
		}
	}

	current := path
	steps := 0
	for {
		next := stripDerivedSuffix(current, suffixes)
		if next == current {
			break
		}
		record, err := m.store.GetFileByPath(ctx, next)
		if err != nil || record == nil {
			break
		}
		current = next
		steps++
		if !record.IsDerivative() {
			break
		}
	}
	return current, steps
}

// stripDerivedSuffix removes the longest matching output suffix, mirroring
// how extension resolution prefers compound extensions.
func stripDerivedSuffix(path string, suffixes []string) string {
	lower := strings.ToLower(path)
	best := ""
	for _, suffix := range suffixes {
		if suffix == "" || !strings.HasSuffix(lower, suffix) {
			continue
		}
		if len(suffix) > len(best) {
			best = suffix
		}
	}
	if best == "" {
		return path
	}
	return path[:len(path)-len(best)]
}
