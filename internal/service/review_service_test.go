package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/simkarya-api/internal/dto"
	"github.com/noah-isme/simkarya-api/internal/models"
	appErrors "github.com/noah-isme/simkarya-api/pkg/errors"
)

type reviewRepoStub struct {
	reviews map[string][]models.Review
}

func newReviewRepoStub() *reviewRepoStub {
	return &reviewRepoStub{reviews: map[string][]models.Review{}}
}

func (r *reviewRepoStub) Create(ctx context.Context, review *models.Review) error {
	r.reviews[review.SubmissionID] = append(r.reviews[review.SubmissionID], *review)
	return nil
}

func (r *reviewRepoStub) ListBySubmission(ctx context.Context, submissionID string) ([]models.Review, error) {
	return r.reviews[submissionID], nil
}

type reviewSubmissionStub struct {
	items map[string]*models.Submission
}

func (r *reviewSubmissionStub) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *item
	return &copied, nil
}

func (r *reviewSubmissionStub) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus, updatedAt time.Time) error {
	item, ok := r.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	item.UpdatedAt = updatedAt
	return nil
}

func newReviewServiceForTest(t *testing.T) (*ReviewService, *reviewRepoStub, *reviewSubmissionStub) {
	t.Helper()
	repo := newReviewRepoStub()
	submissions := &reviewSubmissionStub{items: map[string]*models.Submission{
		"sub-1": {ID: "sub-1", StudentID: "student-1", Status: models.SubmissionStatusPending},
	}}
	svc := NewReviewService(repo, submissions, &auditStub{}, nil, zap.NewNop())
	return svc, repo, submissions
}

func facultyClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleFaculty, FullName: "Dr. " + id}
}

func TestReviewServiceApprove(t *testing.T) {
	svc, repo, submissions := newReviewServiceForTest(t)
	review, err := svc.Create(context.Background(), "sub-1", dto.CreateReviewRequest{
		Decision: "APPROVED",
		Comment:  "Solid methodology.",
	}, facultyClaims("fac-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ReviewDecisionApproved, review.Decision)
	assert.Equal(t, models.SubmissionStatusApproved, submissions.items["sub-1"].Status)
	assert.Len(t, repo.reviews["sub-1"], 1)
}

func TestReviewServiceReject(t *testing.T) {
	svc, _, submissions := newReviewServiceForTest(t)
	review, err := svc.Create(context.Background(), "sub-1", dto.CreateReviewRequest{
		Decision: "REJECTED",
		Comment:  "Missing related work.",
	}, facultyClaims("fac-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ReviewDecisionRejected, review.Decision)
	assert.Equal(t, models.SubmissionStatusRejected, submissions.items["sub-1"].Status)
}

func TestReviewServiceRejectsDoubleReview(t *testing.T) {
	svc, _, submissions := newReviewServiceForTest(t)
	submissions.items["sub-1"].Status = models.SubmissionStatusApproved

	_, err := svc.Create(context.Background(), "sub-1", dto.CreateReviewRequest{
		Decision: "REJECTED",
		Comment:  "Changed my mind.",
	}, facultyClaims("fac-1"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestReviewServiceRejectsInvalidDecision(t *testing.T) {
	svc, _, _ := newReviewServiceForTest(t)
	_, err := svc.Create(context.Background(), "sub-1", dto.CreateReviewRequest{
		Decision: "MAYBE",
		Comment:  "Hmm.",
	}, facultyClaims("fac-1"))
	require.Error(t, err)
}

func TestReviewServiceUnknownSubmission(t *testing.T) {
	svc, _, _ := newReviewServiceForTest(t)
	_, err := svc.Create(context.Background(), "missing", dto.CreateReviewRequest{
		Decision: "APPROVED",
		Comment:  "Fine.",
	}, facultyClaims("fac-1"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReviewServiceListStudentOwnership(t *testing.T) {
	svc, repo, _ := newReviewServiceForTest(t)
	repo.reviews["sub-1"] = []models.Review{{ID: "rev-1", SubmissionID: "sub-1", ReviewerID: "fac-1", Decision: models.ReviewDecisionApproved}}

	reviews, err := svc.List(context.Background(), "sub-1", studentClaims("student-1"))
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	_, err = svc.List(context.Background(), "sub-1", studentClaims("student-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}
