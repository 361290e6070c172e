package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// File describes a tracked file in a transport-friendly format.
type File struct {
	ID        int64    `json:"id"`
	Path      string   `json:"path"`
	Kind      string   `json:"kind"`
	SizeBytes int64    `json:"sizeBytes"`
	Checksum  string   `json:"checksum,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// FileDetail aggregates a file with its processing history and forecast.
type FileDetail struct {
	File       File        `json:"file"`
	Parses     []Parse     `json:"parses,omitempty"`
	Jobs       []Job       `json:"jobs,omitempty"`
	Prediction *Prediction `json:"prediction,omitempty"`
}

// ParserConfig describes a transformation rule in a transport-friendly format.
// Settings is passed through as raw JSON to avoid double-encoding.
type ParserConfig struct {
	Name               string          `json:"name"`
	Implementation     string          `json:"implementation"`
	Extensions         []string        `json:"extensions"`
	OutputExt          string          `json:"outputExt"`
	DependsOn          []string        `json:"dependsOn,omitempty"`
	RequiredTags       []string        `json:"requiredTags,omitempty"`
	AllowDerivatives   bool            `json:"allowDerivatives"`
	AllowUserSelection bool            `json:"allowUserSelection"`
	Enabled            bool            `json:"enabled"`
	Settings           json.RawMessage `json:"settings,omitempty"`
	UpdatedAt          string          `json:"updatedAt,omitempty"`
}

// ProcessingStep is one forecast step of a predicted chain.
type ProcessingStep struct {
	Parser        string   `json:"parser"`
	InputPath     string   `json:"inputPath"`
	OutputPath    string   `json:"outputPath"`
	EstimatedCost float64  `json:"estimatedCost"`
	DependsOn     []string `json:"dependsOn,omitempty"`
}

// Prediction is the forecast chain for one file.
type Prediction struct {
	FileID       int64              `json:"fileId"`
	Chain        []ProcessingStep   `json:"chain"`
	Costs        map[string]float64 `json:"costs,omitempty"`
	Dependencies []string           `json:"dependencies,omitempty"`
	TotalCost    float64            `json:"totalCost"`
	Valid        bool               `json:"valid"`
	UpdatedAt    string             `json:"updatedAt,omitempty"`
}

// Parse is the persisted outcome of one parser against one file.
type Parse struct {
	FileID       int64  `json:"fileId"`
	Parser       string `json:"parser"`
	Status       string `json:"status"`
	OutputPath   string `json:"outputPath,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Job is a queued parser execution.
type Job struct {
	ID            int64  `json:"id"`
	FileID        int64  `json:"fileId"`
	Parser        string `json:"parser"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	StartedAt     string `json:"startedAt,omitempty"`
	FinishedAt    string `json:"finishedAt,omitempty"`
}

// ParserHealth mirrors readiness reporting for registered implementations.
type ParserHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Watching     bool           `json:"watching"`
	DBPath       string         `json:"dbPath"`
	LockFilePath string         `json:"lockFilePath"`
	LastError    string         `json:"lastError,omitempty"`
	LastJob      *Job           `json:"lastJob,omitempty"`
	JobStats     map[string]int `json:"jobStats"`
	ParserHealth []ParserHealth `json:"parserHealth"`
}

// Selection names the steps a user picked for one file.
type Selection struct {
	FileID int64    `json:"fileId"`
	Steps  []string `json:"steps"`
}

// ApproveRequest carries the optional step subset for a prediction approval.
// An empty Steps slice approves the whole predicted chain.
type ApproveRequest struct {
	Steps []string `json:"steps"`
}

// BatchCostRequest carries per-file step selections for cost aggregation.
type BatchCostRequest struct {
	Selections []Selection `json:"selections"`
}

// BatchCostResponse reports the aggregated cost of a batch selection.
type BatchCostResponse struct {
	TotalCost     float64 `json:"totalCost"`
	FormattedCost string  `json:"formattedCost"`
}

// FileListResponse wraps a collection of files for API responses.
type FileListResponse struct {
	Files []File `json:"files"`
}

// ConfigListResponse wraps a collection of parser configs.
type ConfigListResponse struct {
	Configs []ParserConfig `json:"configs"`
}

// PredictionListResponse wraps a collection of predictions.
type PredictionListResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobStatsResponse provides a normalized job stats payload.
type JobStatsResponse struct {
	Counts map[string]int `json:"counts"`
}
