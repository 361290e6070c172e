package catalog

import (
	"strings"
	"time"
)

// FileKind distinguishes dropped inputs from parser-produced outputs.
type FileKind string

const (
	FileOriginal   FileKind = "original"
	FileDerivative FileKind = "derivative"
)

// FileRecord represents a tracked file persisted in SQLite.
type FileRecord struct {
	ID        int64
	Path      string
	Kind      FileKind
	SizeBytes int64
	Checksum  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDerivative reports whether the file is the output of a prior step.
func (f FileRecord) IsDerivative() bool {
	return f.Kind == FileDerivative
}

// ParserConfig is a named transformation rule bound to an implementation.
// Settings carries free-form implementation specific values as JSON text (for
// example a prompt template path).
type ParserConfig struct {
	ID                 int64
	Name               string
	Implementation     string
	Extensions         []string
	OutputExt          string
	DependsOn          []string
	RequiredTags       []string
	AllowDerivatives   bool
	AllowUserSelection bool
	Enabled            bool
	Settings           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ParseStatus tracks one parser's progress against one file.
type ParseStatus string

const (
	ParsePending    ParseStatus = "pending"
	ParseProcessing ParseStatus = "processing"
	ParseDone       ParseStatus = "done"
	ParseFailed     ParseStatus = "failed"
)

// ParseRecord is the persisted outcome of running (or planning to run) a
// parser against a file. One row exists per (file, parser) pair.
type ParseRecord struct {
	ID           int64
	FileID       int64
	Parser       string
	Status       ParseStatus
	OutputPath   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProcessingStep is one forecast step in a predicted chain. OutputPath is
// virtual until the step actually runs; DependsOn is copied from the config at
// prediction time so the stored chain stays meaningful if configs change.
type ProcessingStep struct {
	Parser        string   `json:"parser"`
	InputPath     string   `json:"input_path"`
	OutputPath    string   `json:"output_path"`
	EstimatedCost float64  `json:"estimated_cost"`
	DependsOn     []string `json:"depends_on,omitempty"`
}

// PredictedJob aggregates the forecast chain for one file. Valid is cleared
// instead of deleting the row when a file has nothing left to do, so consumers
// can tell "nothing predicted" apart from "not yet computed".
type PredictedJob struct {
	ID           int64
	FileID       int64
	Chain        []ProcessingStep
	Costs        map[string]float64
	Dependencies []string
	Valid        bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StepCost returns the estimated cost for a named step, and whether the step
// is present in the prediction.
func (p *PredictedJob) StepCost(parser string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	cost, ok := p.Costs[parser]
	return cost, ok
}

// TotalCost sums the estimated costs across all predicted steps.
func (p *PredictedJob) TotalCost() float64 {
	if p == nil {
		return 0
	}
	var total float64
	for _, cost := range p.Costs {
		total += cost
	}
	return total
}

// JobStatus represents the lifecycle of a queued parser run.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobReview    JobStatus = "review"
)

var allJobStatuses = []JobStatus{
	JobPending,
	JobRunning,
	JobCompleted,
	JobFailed,
	JobReview,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllJobStatuses returns the ordered list of known job statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a job status reflects a finished run.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobReview:
		return true
	default:
		return false
	}
}

// Job is a queued execution of one parser against one file.
type Job struct {
	ID            int64
	FileID        int64
	Parser        string
	Status        JobStatus
	ErrorMessage  string
	CorrelationID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Review    int
}

// DatabaseHealth captures diagnostic information about the catalog database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalFiles       int
	TotalJobs        int
	Error            string
}
