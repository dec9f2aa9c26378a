package stubapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/transcriba/transcriba/internal/uuid"
	"github.com/transcriba/transcriba/transcriptions"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxUploadSize   = 64 << 20
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID != r.Context().Value(userIDKey).(string) {
		writeError(w, http.StatusForbidden, "Cannot list another user's jobs")
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	search := strings.ToLower(r.URL.Query().Get("search"))
	status := r.URL.Query().Get("status")

	s.mu.RLock()
	var jobs []transcriptions.Job
	for _, job := range s.jobs {
		if job.UserID != userID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(job.FileName), search) {
			continue
		}
		jobs = append(jobs, *job)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	total := len(jobs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeData(w, http.StatusOK, transcriptions.JobPage{
		Jobs: jobs[start:end], Total: total, Page: page, PageSize: pageSize,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok || job.UserID != r.Context().Value(userIDKey).(string) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	writeData(w, http.StatusOK, job)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing audio file")
		return
	}
	defer file.Close()

	var config struct {
		Language       string `json:"language"`
		OperatingPoint string `json:"operatingPoint"`
	}
	if raw := r.FormValue("config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &config); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid job config")
			return
		}
	}
	if config.Language == "" {
		config.Language = "es"
	}
	op := transcriptions.OperatingPoint(config.OperatingPoint)
	if op == "" {
		op = transcriptions.OperatingPointStandard
	}
	if op != transcriptions.OperatingPointStandard && op != transcriptions.OperatingPointEnhanced {
		writeIssues(w, []issue{{
			Path: []any{"config", "operatingPoint"}, Code: "invalid_enum_value",
			Message: "Operating point must be standard or enhanced",
		}})
		return
	}

	now := time.Now().UTC()
	job := &transcriptions.Job{
		ID:             uuid.New(),
		UserID:         r.Context().Value(userIDKey).(string),
		FileName:       header.Filename,
		Status:         transcriptions.StatusPending,
		Language:       config.Language,
		OperatingPoint: op,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	writeData(w, http.StatusCreated, job)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
