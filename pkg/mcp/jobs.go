package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/doc-toc/pkg/models"
)

// JobStatus is the lifecycle state of a background build
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a site build started through the build_site tool
type Job struct {
	ID           string    `json:"id"`
	SiteKey      string    `json:"site_key"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	BuildID      string    `json:"build_id,omitempty"`
	PagesWritten int       `json:"pages_written"`
	PagesSkipped int       `json:"pages_skipped"`
	PagesFailed  int       `json:"pages_failed"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Incremental  bool      `json:"incremental"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background builds, at most one active per site
type JobManager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	bysite map[string]string // siteKey -> jobID while pending or running
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		bysite: make(map[string]string),
	}
}

// CreateJob registers a build for a site. If one is already active for the
// site, that job is returned instead and created is false.
func (m *JobManager) CreateJob(siteKey string, incremental bool) (job *Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.bysite[siteKey]; ok {
		if existing := m.jobs[id]; existing != nil && !existing.Status.finished() {
			return existing.snapshot(), false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:          uuid.New().String(),
		SiteKey:     siteKey,
		Status:      JobStatusPending,
		StartedAt:   time.Now(),
		Incremental: incremental,
		ctx:         ctx,
		cancel:      cancel,
	}
	m.jobs[j.ID] = j
	m.bysite[siteKey] = j.ID
	return j.snapshot(), true
}

// snapshot copies the exported fields so callers never race with updates
func (j *Job) snapshot() *Job {
	c := *j
	c.ctx, c.cancel = nil, nil
	return &c
}

// GetJob returns a copy of the job, or nil
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[jobID]; ok {
		return j.snapshot()
	}
	return nil
}

// ActiveJob returns the pending or running job for a site, or nil
func (m *JobManager) ActiveJob(siteKey string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.bysite[siteKey]; ok {
		if j := m.jobs[id]; j != nil && !j.Status.finished() {
			return j.snapshot()
		}
	}
	return nil
}

func (m *JobManager) IsRunning(siteKey string) bool {
	return m.ActiveJob(siteKey) != nil
}

// UpdateStatus moves a job to a new state. Finished jobs are never reopened.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || j.Status.finished() {
		return
	}
	j.Status = status
	if status.finished() {
		j.CompletedAt = time.Now()
		j.cancel()
		delete(m.bysite, j.SiteKey)
	}
	if errorMsg != "" {
		j.ErrorMessage = errorMsg
	}
}

// RecordReport copies a build report's counts onto the job
func (m *JobManager) RecordReport(jobID string, report *models.BuildReport) {
	if report == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok {
		j.BuildID = report.BuildID
		j.PagesWritten = report.PagesWritten
		j.PagesSkipped = report.PagesSkipped
		j.PagesFailed = report.PagesFailed
	}
}

// CancelJob cancels an active job; it reports whether anything was cancelled
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || j.Status.finished() {
		return false
	}
	j.cancel()
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now()
	delete(m.bysite, j.SiteKey)
	return true
}

func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if !j.Status.finished() {
			j.cancel()
			j.Status = JobStatusCancelled
			j.CompletedAt = time.Now()
		}
	}
	m.bysite = make(map[string]string)
}

// ListJobs returns copies of all jobs, oldest first
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j.snapshot())
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].StartedAt.Before(jobs[b].StartedAt) })
	return jobs
}

// Context returns the job's cancellation context
func (m *JobManager) Context(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[jobID]; ok {
		return j.ctx
	}
	return context.Background()
}
