package config

const (
	defaultWatchDir                    = "~/hopper/inbox"
	defaultStagingDir                  = "~/.local/share/hopper/staging"
	defaultLogDir                      = "~/.local/share/hopper/logs"
	defaultAPIBind                     = "127.0.0.1:7787"
	defaultLogFormat                   = "console"
	defaultLogLevel                    = "info"
	defaultWatchPollInterval           = 5
	defaultQueuePollInterval           = 5
	defaultErrorRetryInterval          = 10
	defaultJobTimeout                  = 3600
	defaultTranscriptionProvider       = "openai"
	defaultTranscriptionModel          = "whisper-1"
	defaultSummarizationProvider       = "openai"
	defaultSummarizationModel          = "gpt-4o-mini"
	defaultSummarizationBaseURL        = "https://api.openai.com/v1"
	defaultSummarizationPrompt         = "Summarize the following transcript. Keep key decisions and action items."
	defaultSummarizationTimeoutSeconds = 120
	defaultNotifyRequestTimeout        = 10
)

func defaultWatchExtensions() []string {
	return []string{
		".mp4", ".mov", ".mkv", ".avi",
		".mp3", ".wav", ".m4a", ".flac",
		".txt", ".md",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:   defaultWatchDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Watch: Watch{
			PollInterval: defaultWatchPollInterval,
			Extensions:   defaultWatchExtensions(),
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			JobTimeout:         defaultJobTimeout,
		},
		Transcription: Transcription{
			Provider: defaultTranscriptionProvider,
			Model:    defaultTranscriptionModel,
		},
		Summarization: Summarization{
			Provider:       defaultSummarizationProvider,
			Model:          defaultSummarizationModel,
			BaseURL:        defaultSummarizationBaseURL,
			Prompt:         defaultSummarizationPrompt,
			TimeoutSeconds: defaultSummarizationTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			ChainComplete:  true,
			StepFailed:     true,
			Review:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
