package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/simkarya-api/internal/models"
)

func submissionRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "title", "abstract", "authors", "keywords", "kind", "status", "file_name", "file_path", "mime_type", "size_bytes", "created_at", "updated_at"}).
		AddRow("sub-1", "student-1", "Title", "Abstract", "A. Rahman,B. Sari", "networking", "DRAFT", "PENDING", "paper.pdf", "sub-1/1.pdf", "application/pdf", int64(1024), now, now)
}

func TestSubmissionRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, title, abstract, authors, keywords, kind, status, file_name, file_path, mime_type, size_bytes, created_at, updated_at FROM submissions WHERE id = $1 LIMIT 1")).
		WithArgs("sub-1").
		WillReturnRows(submissionRows(now))

	submission, err := repo.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", submission.ID)
	assert.Equal(t, models.CSVField{"A. Rahman", "B. Sari"}, submission.Authors)
	assert.Equal(t, models.SubmissionStatusPending, submission.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(1, 1))

	submission := &models.Submission{
		StudentID: "student-1",
		Title:     "Title",
		Abstract:  "Abstract",
		Authors:   models.CSVField{"A. Rahman"},
		Kind:      models.SubmissionKindDraft,
		Status:    models.SubmissionStatusPending,
	}
	err := repo.Create(context.Background(), submission)
	require.NoError(t, err)
	assert.NotEmpty(t, submission.ID)
	assert.False(t, submission.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreatePreservesCreatedAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(1, 1))

	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	submission := &models.Submission{ID: "sub-1", StudentID: "student-1", CreatedAt: created}
	err := repo.Create(context.Background(), submission)
	require.NoError(t, err)
	assert.Equal(t, created, submission.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, title, abstract, authors, keywords, kind, status, file_name, file_path, mime_type, size_bytes, created_at, updated_at FROM submissions WHERE 1=1 AND student_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("student-1", models.SubmissionStatusPending).
		WillReturnRows(submissionRows(now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions WHERE 1=1 AND student_id = $1 AND status = $2")).
		WithArgs("student-1", models.SubmissionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	status := models.SubmissionStatusPending
	submissions, total, err := repo.List(context.Background(), models.SubmissionFilter{
		StudentID: "student-1",
		Status:    &status,
	})
	require.NoError(t, err)
	assert.Len(t, submissions, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("sub-1", models.SubmissionStatusApproved, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "sub-1", models.SubmissionStatusApproved, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE id = $1")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
