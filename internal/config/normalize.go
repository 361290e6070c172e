package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWatch()
	c.normalizeTranscription()
	c.normalizeSummarization()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeWatch() {
	if len(c.Watch.Extensions) == 0 {
		c.Watch.Extensions = defaultWatchExtensions()
		return
	}
	exts := make([]string, 0, len(c.Watch.Extensions))
	seen := make(map[string]struct{}, len(c.Watch.Extensions))
	for _, ext := range c.Watch.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultWatchExtensions()
	}
	c.Watch.Extensions = exts
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = defaultTranscriptionProvider
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
}

func (c *Config) normalizeSummarization() {
	c.Summarization.Provider = strings.ToLower(strings.TrimSpace(c.Summarization.Provider))
	if c.Summarization.Provider == "" {
		c.Summarization.Provider = defaultSummarizationProvider
	}
	c.Summarization.Model = strings.TrimSpace(c.Summarization.Model)
	if c.Summarization.Model == "" {
		c.Summarization.Model = defaultSummarizationModel
	}
	c.Summarization.BaseURL = strings.TrimSpace(c.Summarization.BaseURL)
	if c.Summarization.BaseURL == "" {
		c.Summarization.BaseURL = defaultSummarizationBaseURL
	}
	c.Summarization.Prompt = strings.TrimSpace(c.Summarization.Prompt)
	if c.Summarization.Prompt == "" {
		c.Summarization.Prompt = defaultSummarizationPrompt
	}
	if c.Summarization.TimeoutSeconds <= 0 {
		c.Summarization.TimeoutSeconds = defaultSummarizationTimeoutSeconds
	}
	// Environment wins over file values so deployments can keep secrets out
	// of the config on disk.
	if value, ok := os.LookupEnv("SUMMARIZER_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Summarization.APIKey = strings.TrimSpace(value)
	} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Summarization.APIKey = strings.TrimSpace(value)
	}
	c.Summarization.APIKey = strings.TrimSpace(c.Summarization.APIKey)
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("HOPPER_NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = strings.TrimSpace(value)
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
