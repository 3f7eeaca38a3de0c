package mcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-toc/pkg/models"
)

func createTestJob(t *testing.T, jm *JobManager, siteKey string, incremental bool) *Job {
	t.Helper()
	job, created := jm.CreateJob(siteKey, incremental)
	require.True(t, created)
	require.NotNil(t, job)
	return job
}

func TestNewJobManager(t *testing.T) {
	jm := NewJobManager()
	require.NotNil(t, jm)
	assert.Empty(t, jm.ListJobs())
}

func TestCreateJob(t *testing.T) {
	t.Run("new job fields correct", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "docs", true)

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, "docs", job.SiteKey)
		assert.Equal(t, JobStatusPending, job.Status)
		assert.True(t, job.Incremental)
		assert.False(t, job.StartedAt.IsZero())
		assert.True(t, job.CompletedAt.IsZero())
		assert.Zero(t, job.PagesWritten)
		assert.Empty(t, job.ErrorMessage)
	})

	t.Run("active site returns existing job", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "docs", false)
		job2, created := jm.CreateJob("docs", false)
		assert.False(t, created)
		assert.Equal(t, job1.ID, job2.ID)
	})

	t.Run("new job allowed after completion", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "docs", false)
		jm.UpdateStatus(job1.ID, JobStatusCompleted, "")

		job2 := createTestJob(t, jm, "docs", false)
		assert.NotEqual(t, job1.ID, job2.ID)
	})

	t.Run("different sites independent", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "site-a", false)
		job2 := createTestJob(t, jm, "site-b", false)
		assert.NotEqual(t, job1.ID, job2.ID)
	})
}

func TestGetJob_ReturnsCopy(t *testing.T) {
	jm := NewJobManager()
	job := createTestJob(t, jm, "docs", false)

	got := jm.GetJob(job.ID)
	require.NotNil(t, got)
	got.Status = JobStatusFailed
	assert.Equal(t, JobStatusPending, jm.GetJob(job.ID).Status)

	assert.Nil(t, jm.GetJob("nonexistent-id"))
}

func TestActiveJobAndIsRunning(t *testing.T) {
	jm := NewJobManager()
	assert.Nil(t, jm.ActiveJob("docs"))
	assert.False(t, jm.IsRunning("docs"))

	job := createTestJob(t, jm, "docs", false)
	assert.True(t, jm.IsRunning("docs"))

	jm.UpdateStatus(job.ID, JobStatusRunning, "")
	require.NotNil(t, jm.ActiveJob("docs"))
	assert.Equal(t, job.ID, jm.ActiveJob("docs").ID)

	jm.UpdateStatus(job.ID, JobStatusFailed, "boom")
	assert.False(t, jm.IsRunning("docs"))
	assert.Nil(t, jm.ActiveJob("docs"))
}

func TestUpdateStatus(t *testing.T) {
	t.Run("terminal status sets completion and cancels context", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "docs", false)
		ctx := jm.Context(job.ID)

		jm.UpdateStatus(job.ID, JobStatusFailed, "disk full")
		got := jm.GetJob(job.ID)
		assert.Equal(t, JobStatusFailed, got.Status)
		assert.Equal(t, "disk full", got.ErrorMessage)
		assert.False(t, got.CompletedAt.IsZero())
		assert.Error(t, ctx.Err())
	})

	t.Run("finished job is not reopened", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "docs", false)
		require.True(t, jm.CancelJob(job.ID))

		jm.UpdateStatus(job.ID, JobStatusCompleted, "")
		assert.Equal(t, JobStatusCancelled, jm.GetJob(job.ID).Status)
	})

	t.Run("unknown job ignored", func(t *testing.T) {
		jm := NewJobManager()
		jm.UpdateStatus("missing", JobStatusRunning, "")
		assert.Empty(t, jm.ListJobs())
	})
}

func TestRecordReport(t *testing.T) {
	jm := NewJobManager()
	job := createTestJob(t, jm, "docs", false)

	jm.RecordReport(job.ID, nil)
	jm.RecordReport(job.ID, &models.BuildReport{BuildID: "b-1", PagesWritten: 3, PagesSkipped: 2, PagesFailed: 1})

	got := jm.GetJob(job.ID)
	assert.Equal(t, "b-1", got.BuildID)
	assert.Equal(t, 3, got.PagesWritten)
	assert.Equal(t, 2, got.PagesSkipped)
	assert.Equal(t, 1, got.PagesFailed)
}

func TestCancelJob(t *testing.T) {
	jm := NewJobManager()
	job := createTestJob(t, jm, "docs", false)
	ctx := jm.Context(job.ID)

	assert.True(t, jm.CancelJob(job.ID))
	assert.Error(t, ctx.Err())
	assert.Equal(t, JobStatusCancelled, jm.GetJob(job.ID).Status)
	assert.False(t, jm.IsRunning("docs"))

	assert.False(t, jm.CancelJob(job.ID), "second cancel is a no-op")
	assert.False(t, jm.CancelJob("missing"))
}

func TestCancelAll(t *testing.T) {
	jm := NewJobManager()
	a := createTestJob(t, jm, "site-a", false)
	b := createTestJob(t, jm, "site-b", false)
	done := createTestJob(t, jm, "site-c", false)
	jm.UpdateStatus(done.ID, JobStatusCompleted, "")

	jm.CancelAll()

	assert.Equal(t, JobStatusCancelled, jm.GetJob(a.ID).Status)
	assert.Equal(t, JobStatusCancelled, jm.GetJob(b.ID).Status)
	assert.Equal(t, JobStatusCompleted, jm.GetJob(done.ID).Status)
	assert.False(t, jm.IsRunning("site-a"))
}

func TestListJobs_OldestFirst(t *testing.T) {
	jm := NewJobManager()
	first := createTestJob(t, jm, "site-a", false)
	time.Sleep(2 * time.Millisecond)
	second := createTestJob(t, jm, "site-b", false)

	jobs := jm.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, first.ID, jobs[0].ID)
	assert.Equal(t, second.ID, jobs[1].ID)
}

func TestContext_UnknownJob(t *testing.T) {
	jm := NewJobManager()
	assert.NoError(t, jm.Context("missing").Err())
}
