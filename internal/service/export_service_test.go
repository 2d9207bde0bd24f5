package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/simkarya-api/internal/dto"
	"github.com/noah-isme/simkarya-api/internal/models"
	"github.com/noah-isme/simkarya-api/internal/repository"
	"github.com/noah-isme/simkarya-api/pkg/jobs"
)

type exportRepoStub struct {
	jobs              map[string]*models.ExportJob
	listFinishedCalls int
}

func newExportRepoStub() *exportRepoStub {
	return &exportRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (r *exportRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *exportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	r.listFinishedCalls++
	var finished []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, *job)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].FinishedAt.Before(*finished[j].FinishedAt) })
	if len(finished) > limit {
		finished = finished[:limit]
	}
	return finished, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *exportRepoStub, *queueStub, *CatalogExporter) {
	t.Helper()
	repo := newExportRepoStub()
	queue := &queueStub{}
	exporter, _ := newCatalogExporterForTest(t)
	service := NewExportService(repo, queue, exporter, zap.NewNop(), ExportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return service, repo, queue, exporter
}

func TestExportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newExportServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Format: models.ExportFormatCSV,
		Tag:    "networking",
	}, "staff-1")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Contains(t, repo.jobs, resp.ID)
}

func TestExportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	svc, repo, queue, _ := newExportServiceForTest(t)
	queue.err = errors.New("queue full")
	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Format: models.ExportFormatCSV,
	}, "staff-1")
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
		assert.Equal(t, 100, job.Progress)
	}
}

func TestExportServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _, _ := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-1",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusFinished,
		Progress:  100,
		CreatedBy: "staff-1",
	}
	repo.jobs[job.ID] = job

	resp, err := svc.GetStatus(context.Background(), job.ID, "staff-1", models.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, job.Status, resp.Status)
	assert.Equal(t, job.Progress, resp.Progress)

	_, err = svc.GetStatus(context.Background(), job.ID, "staff-2", models.RoleStaff)
	require.Error(t, err)

	_, err = svc.GetStatus(context.Background(), job.ID, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
}

func TestExportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exporter := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-download",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusFinished,
		Progress:  100,
		CreatedBy: "staff-1",
	}
	repo.jobs[job.ID] = job
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	download.File.Close()
}

func TestExportServiceResolveDownloadRejectsUnfinished(t *testing.T) {
	svc, repo, _, exporter := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-pending",
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusProcessing,
		CreatedBy: "staff-1",
	}
	repo.jobs[job.ID] = job
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	require.Error(t, err)
}

func TestExportServiceCleanupExpiredSweepsBacklog(t *testing.T) {
	svc, repo, _, _ := newExportServiceForTest(t)
	url := "/api/v1/exports/download?token=stale"
	for i := 0; i < 250; i++ {
		finished := time.Now().Add(-48*time.Hour + time.Duration(i)*time.Second)
		id := fmt.Sprintf("job-%03d", i)
		repo.jobs[id] = &models.ExportJob{
			ID:         id,
			Params:     models.ExportJobParams{Format: models.ExportFormatCSV},
			Status:     models.ExportStatusFinished,
			Progress:   100,
			ResultURL:  &url,
			CreatedBy:  "staff-1",
			FinishedAt: &finished,
		}
	}

	svc.cleanupExpired(context.Background())

	for id, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusExpired, job.Status, "job %s not swept", id)
	}
	// 250 rows at a page size of 100 is three fetches; anything more
	// means the sweep refetched rows it had already handled.
	assert.Equal(t, 3, repo.listFinishedCalls)
}

func TestExportServiceCleanupExpiredStopsOnCancel(t *testing.T) {
	svc, repo, _, _ := newExportServiceForTest(t)
	url := "/api/v1/exports/download?token=stale"
	finished := time.Now().Add(-48 * time.Hour)
	repo.jobs["job-1"] = &models.ExportJob{
		ID:         "job-1",
		Params:     models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:     models.ExportStatusFinished,
		Progress:   100,
		ResultURL:  &url,
		CreatedBy:  "staff-1",
		FinishedAt: &finished,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.cleanupExpired(ctx)

	assert.Zero(t, repo.listFinishedCalls)
	assert.Equal(t, models.ExportStatusFinished, repo.jobs["job-1"].Status)
}

type exporterStub struct {
	result *ExportResult
	err    error
}

func (e exporterStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	repo := &exportRepoStub{
		jobs: map[string]*models.ExportJob{
			"job-1": {
				ID:        "job-1",
				Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
				Status:    models.ExportStatusQueued,
				CreatedBy: "staff-1",
			},
		},
	}
	exporter := exporterStub{result: &ExportResult{URL: "/api/v1/exports/download?token=token"}}
	worker := NewExportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusFinished, repo.jobs["job-1"].Status)
	require.Equal(t, 100, repo.jobs["job-1"].Progress)
	require.NotNil(t, repo.jobs["job-1"].ResultURL)
}

func TestExportWorkerHandleFailureExhaustsRetries(t *testing.T) {
	repo := &exportRepoStub{
		jobs: map[string]*models.ExportJob{
			"job-1": {
				ID:        "job-1",
				Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
				Status:    models.ExportStatusQueued,
				CreatedBy: "staff-1",
			},
		},
	}
	exporter := exporterStub{err: errors.New("boom")}
	worker := NewExportWorker(repo, exporter, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusFailed, repo.jobs["job-1"].Status)
}

func TestExportWorkerHandleFailureRequeues(t *testing.T) {
	repo := &exportRepoStub{
		jobs: map[string]*models.ExportJob{
			"job-1": {
				ID:        "job-1",
				Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
				Status:    models.ExportStatusProcessing,
				CreatedBy: "staff-1",
			},
		},
	}
	exporter := exporterStub{err: errors.New("boom")}
	worker := NewExportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0})
	require.Error(t, err)
	require.Equal(t, models.ExportStatusQueued, repo.jobs["job-1"].Status)
	require.Equal(t, 0, repo.jobs["job-1"].Progress)
}
