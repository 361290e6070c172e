package api

import (
	"encoding/json"
	"time"

	"hopper/internal/catalog"
	"hopper/internal/chain"
	"hopper/internal/parser"
)

// FromFileRecord converts a file record and its tags to an API representation.
func FromFileRecord(record *catalog.FileRecord, tags []string) File {
	if record == nil {
		return File{}
	}
	dto := File{
		ID:        record.ID,
		Path:      record.Path,
		Kind:      string(record.Kind),
		SizeBytes: record.SizeBytes,
		Checksum:  record.Checksum,
		Tags:      tags,
		CreatedAt: FormatTime(record.CreatedAt),
		UpdatedAt: FormatTime(record.UpdatedAt),
	}
	return dto
}

// FromParserConfig converts a parser config to its API representation.
func FromParserConfig(cfg *catalog.ParserConfig) ParserConfig {
	if cfg == nil {
		return ParserConfig{}
	}
	dto := ParserConfig{
		Name:               cfg.Name,
		Implementation:     cfg.Implementation,
		Extensions:         cfg.Extensions,
		OutputExt:          cfg.OutputExt,
		DependsOn:          cfg.DependsOn,
		RequiredTags:       cfg.RequiredTags,
		AllowDerivatives:   cfg.AllowDerivatives,
		AllowUserSelection: cfg.AllowUserSelection,
		Enabled:            cfg.Enabled,
		UpdatedAt:          FormatTime(cfg.UpdatedAt),
	}
	if raw := cfg.Settings; raw != "" {
		dto.Settings = json.RawMessage(raw)
	}
	return dto
}

// FromParserConfigs converts a slice of parser configs into API DTOs.
func FromParserConfigs(configs []*catalog.ParserConfig) []ParserConfig {
	if len(configs) == 0 {
		return nil
	}
	out := make([]ParserConfig, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, FromParserConfig(cfg))
	}
	return out
}

// FromProcessingStep converts one forecast step to its API representation.
func FromProcessingStep(step catalog.ProcessingStep) ProcessingStep {
	return ProcessingStep{
		Parser:        step.Parser,
		InputPath:     step.InputPath,
		OutputPath:    step.OutputPath,
		EstimatedCost: step.EstimatedCost,
		DependsOn:     step.DependsOn,
	}
}

// FromPredictedJob converts a stored prediction to its API representation.
func FromPredictedJob(job *catalog.PredictedJob) Prediction {
	if job == nil {
		return Prediction{}
	}
	steps := make([]ProcessingStep, 0, len(job.Chain))
	for _, step := range job.Chain {
		steps = append(steps, FromProcessingStep(step))
	}
	return Prediction{
		FileID:       job.FileID,
		Chain:        steps,
		Costs:        job.Costs,
		Dependencies: job.Dependencies,
		TotalCost:    job.TotalCost(),
		Valid:        job.Valid,
		UpdatedAt:    FormatTime(job.UpdatedAt),
	}
}

// FromPredictedJobs converts a slice of predictions into API DTOs.
func FromPredictedJobs(jobs []*catalog.PredictedJob) []Prediction {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Prediction, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromPredictedJob(job))
	}
	return out
}

// FromParse converts a parse record to its API representation.
func FromParse(record *catalog.ParseRecord) Parse {
	if record == nil {
		return Parse{}
	}
	return Parse{
		FileID:       record.FileID,
		Parser:       record.Parser,
		Status:       string(record.Status),
		OutputPath:   record.OutputPath,
		ErrorMessage: record.ErrorMessage,
		UpdatedAt:    FormatTime(record.UpdatedAt),
	}
}

// FromParses converts a slice of parse records into API DTOs.
func FromParses(records []*catalog.ParseRecord) []Parse {
	if len(records) == 0 {
		return nil
	}
	out := make([]Parse, 0, len(records))
	for _, record := range records {
		out = append(out, FromParse(record))
	}
	return out
}

// FromJob converts a queued job to its API representation.
func FromJob(job *catalog.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:            job.ID,
		FileID:        job.FileID,
		Parser:        job.Parser,
		Status:        string(job.Status),
		ErrorMessage:  job.ErrorMessage,
		CorrelationID: job.CorrelationID,
		CreatedAt:     FormatTime(job.CreatedAt),
		UpdatedAt:     FormatTime(job.UpdatedAt),
		StartedAt:     formatTimePtr(job.StartedAt),
		FinishedAt:    formatTimePtr(job.FinishedAt),
	}
}

// FromJobs converts a slice of jobs into API DTOs.
func FromJobs(jobs []*catalog.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// HealthSlice converts registry health reports into API DTOs. The registry
// already reports in name order, so no re-sorting happens here.
func HealthSlice(health []parser.Health) []ParserHealth {
	if len(health) == 0 {
		return nil
	}
	out := make([]ParserHealth, 0, len(health))
	for _, h := range health {
		out = append(out, ParserHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// MergeJobStats produces a string-keyed representation of job stats.
func MergeJobStats(stats map[catalog.JobStatus]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// ToChainSelections converts API selections into the chain manager's shape.
func ToChainSelections(selections []Selection) []chain.Selection {
	if len(selections) == 0 {
		return nil
	}
	out := make([]chain.Selection, 0, len(selections))
	for _, sel := range selections {
		out = append(out, chain.Selection{FileID: sel.FileID, Steps: sel.Steps})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}
