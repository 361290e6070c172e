package api

import (
	"context"
	"sort"
	"time"

	"hopper/internal/catalog"
)

// CatalogReader abstracts catalog persistence interactions needed for API queries.
type CatalogReader interface {
	ListFiles(ctx context.Context, kinds ...catalog.FileKind) ([]*catalog.FileRecord, error)
	GetFileByID(ctx context.Context, id int64) (*catalog.FileRecord, error)
	GetFileTags(ctx context.Context, fileID int64) ([]string, error)
	GetFileParses(ctx context.Context, fileID int64) ([]*catalog.ParseRecord, error)
	ListFileJobs(ctx context.Context, fileID int64) ([]*catalog.Job, error)
	ListJobs(ctx context.Context, statuses ...catalog.JobStatus) ([]*catalog.Job, error)
	JobStats(ctx context.Context) (map[catalog.JobStatus]int, error)
	ListParserConfigs(ctx context.Context) ([]*catalog.ParserConfig, error)
	ListPredictedJobs(ctx context.Context) ([]*catalog.PredictedJob, error)
	GetPredictedJob(ctx context.Context, fileID int64) (*catalog.PredictedJob, error)
}

// CatalogService exposes read-only catalog operations returning API DTOs.
type CatalogService struct {
	store CatalogReader
}

// NewCatalogService constructs a CatalogService around the provided reader.
func NewCatalogService(store CatalogReader) *CatalogService {
	if store == nil {
		return nil
	}
	return &CatalogService{store: store}
}

// ListFiles returns tracked files with their tags attached.
func (s *CatalogService) ListFiles(ctx context.Context, kinds ...catalog.FileKind) ([]File, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.ListFiles(ctx, kinds...)
	if err != nil {
		return nil, err
	}
	out := make([]File, 0, len(records))
	for _, record := range records {
		tags, err := s.store.GetFileTags(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, FromFileRecord(record, tags))
	}
	return out, nil
}

// DescribeFile fetches a single file with its parses, jobs, and prediction.
// Returns nil without error when the file does not exist.
func (s *CatalogService) DescribeFile(ctx context.Context, id int64) (*FileDetail, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	record, err := s.store.GetFileByID(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	tags, err := s.store.GetFileTags(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	parses, err := s.store.GetFileParses(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListFileJobs(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	detail := &FileDetail{
		File:   FromFileRecord(record, tags),
		Parses: FromParses(parses),
		Jobs:   FromJobs(jobs),
	}
	if predicted, err := s.store.GetPredictedJob(ctx, record.ID); err == nil && predicted != nil && predicted.Valid {
		prediction := FromPredictedJob(predicted)
		detail.Prediction = &prediction
	}
	return detail, nil
}

// ListConfigs returns all parser configs.
func (s *CatalogService) ListConfigs(ctx context.Context) ([]ParserConfig, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	configs, err := s.store.ListParserConfigs(ctx)
	if err != nil {
		return nil, err
	}
	return FromParserConfigs(configs), nil
}

// ListJobs returns queued jobs filtered by status.
func (s *CatalogService) ListJobs(ctx context.Context, statuses ...catalog.JobStatus) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListJobs(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// JobStats returns job summary counts keyed by status string.
func (s *CatalogService) JobStats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.JobStats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeJobStats(stats), nil
}

// ListPredictions returns all stored predictions, valid or not.
func (s *CatalogService) ListPredictions(ctx context.Context) ([]Prediction, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListPredictedJobs(ctx)
	if err != nil {
		return nil, err
	}
	return FromPredictedJobs(jobs), nil
}

// DescribePrediction fetches the prediction for a file. Returns nil without
// error when no prediction has been computed.
func (s *CatalogService) DescribePrediction(ctx context.Context, fileID int64) (*Prediction, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetPredictedJob(ctx, fileID)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromPredictedJob(job)
	return &dto, nil
}

// SortJobsNewestFirst orders jobs by CreatedAt descending, breaking ties by ID descending.
func SortJobsNewestFirst(jobs []Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]Job, len(jobs))
	copy(sorted, jobs)
	sort.Slice(sorted, func(i, j int) bool {
		ti := ParseTime(sorted[i].CreatedAt)
		tj := ParseTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

// ParseTime parses an API timestamp for consumers that need display formatting.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
