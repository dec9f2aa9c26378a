// Package transcriptions accesses the transcription job API. All requests
// go through the authenticated client, so expired tokens are refreshed and
// replayed transparently.
package transcriptions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/transcriba/transcriba/api"
)

// OperatingPoint selects the transcription engine's accuracy tier.
type OperatingPoint string

const (
	OperatingPointStandard OperatingPoint = "standard"
	OperatingPointEnhanced OperatingPoint = "enhanced"
)

// Job statuses as reported by the backend.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is one transcription job.
type Job struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	FileName       string         `json:"fileName"`
	Status         string         `json:"status"`
	Language       string         `json:"language"`
	OperatingPoint OperatingPoint `json:"operatingPoint"`
	Transcript     string         `json:"transcript,omitempty"`
	DurationSecs   float64        `json:"durationSeconds,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// JobPage is one page of a user's job listing.
type JobPage struct {
	Jobs     []Job `json:"jobs"`
	Total    int   `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// ListParams filter and paginate a job listing. Zero values are omitted
// from the query.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
	Status   string
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	return q
}

// NewJob describes a job to create. Language defaults to "es" and
// OperatingPoint to standard when left empty.
type NewJob struct {
	FileName       string
	Audio          io.Reader
	Language       string
	OperatingPoint OperatingPoint
}

// Service calls the transcription endpoints.
type Service struct {
	api *api.Client
}

// New creates a Service over the given client.
func New(client *api.Client) *Service {
	return &Service{api: client}
}

// ListUserJobs returns one page of the user's transcription jobs.
func (s *Service) ListUserJobs(ctx context.Context, userID string, params ListParams) (*JobPage, error) {
	var page JobPage
	path := fmt.Sprintf("/api/transcription/%s/jobs", url.PathEscape(userID))
	if err := s.api.Get(ctx, path, params.query(), &page); err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return &page, nil
}

// GetJob returns a single job with its transcript, if finished.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	path := fmt.Sprintf("/api/transcription/jobs/%s", url.PathEscape(jobID))
	if err := s.api.Get(ctx, path, nil, &job); err != nil {
		return nil, fmt.Errorf("fetching job %s: %w", jobID, err)
	}
	return &job, nil
}

// CreateJob uploads an audio file and queues it for transcription. The
// engine configuration travels as a JSON form field next to the file.
func (s *Service) CreateJob(ctx context.Context, req NewJob) (*Job, error) {
	if req.Audio == nil {
		return nil, fmt.Errorf("creating job: no audio content")
	}
	if req.Language == "" {
		req.Language = "es"
	}
	if req.OperatingPoint == "" {
		req.OperatingPoint = OperatingPointStandard
	}

	config, err := json.Marshal(map[string]string{
		"language":       req.Language,
		"operatingPoint": string(req.OperatingPoint),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding job config: %w", err)
	}

	form := api.MultipartForm{
		Fields: map[string]string{"config": string(config)},
		Files: []api.FilePart{
			{Field: "audio", Filename: req.FileName, Content: req.Audio},
		},
	}

	var job Job
	if err := s.api.PostMultipart(ctx, "/api/transcription/jobs", form, &job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return &job, nil
}
