package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.WatchDir == c.Paths.StagingDir {
		return errors.New("paths.watch_dir and paths.staging_dir must differ")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"watch.poll_interval":           c.Watch.PollInterval,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.job_timeout":          c.Workflow.JobTimeout,
	})
}

// validatePricing checks the provider/model pairs used by the cost estimator.
// Unknown pairs are allowed here; the estimator reports them per lookup so a
// config with an experimental model still loads.
func (c *Config) validatePricing() error {
	if strings.TrimSpace(c.Transcription.Provider) == "" {
		return errors.New("transcription.provider must be set")
	}
	if strings.TrimSpace(c.Transcription.Model) == "" {
		return errors.New("transcription.model must be set")
	}
	if strings.TrimSpace(c.Summarization.Provider) == "" {
		return errors.New("summarization.provider must be set")
	}
	if strings.TrimSpace(c.Summarization.Model) == "" {
		return errors.New("summarization.model must be set")
	}
	if c.Summarization.TimeoutSeconds <= 0 {
		return errors.New("summarization.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
