package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/simkarya-api/internal/dto"
	"github.com/noah-isme/simkarya-api/internal/models"
	appErrors "github.com/noah-isme/simkarya-api/pkg/errors"
)

type reviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	ListBySubmission(ctx context.Context, submissionID string) ([]models.Review, error)
}

type reviewSubmissionStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus, updatedAt time.Time) error
}

// ReviewService records faculty decisions and applies them to the
// reviewed submission's status.
type ReviewService struct {
	repo        reviewStore
	submissions reviewSubmissionStore
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(repo reviewStore, submissions reviewSubmissionStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{repo: repo, submissions: submissions, audit: audit, validator: validate, logger: logger}
}

// Create records a decision on a pending submission. Approval is a
// terminal transition for the student: once a submission is approved
// the mutation windows stop being consulted anywhere.
func (s *ReviewService) Create(ctx context.Context, submissionID string, req dto.CreateReviewRequest, actor *models.JWTClaims) (*models.Review, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.Status != models.SubmissionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission has already been reviewed")
	}

	decision := models.ReviewDecision(req.Decision)
	review := &models.Review{
		ID:           uuid.NewString(),
		SubmissionID: submission.ID,
		ReviewerID:   actor.UserID,
		Decision:     decision,
		Comment:      FormatAbstract(req.Comment),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}

	status := models.SubmissionStatusRejected
	if decision == models.ReviewDecisionApproved {
		status = models.SubmissionStatusApproved
	}
	if err := s.submissions.UpdateStatus(ctx, submission.ID, status, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply review decision")
	}

	if s.audit != nil {
		payload, _ := json.Marshal(map[string]interface{}{"decision": decision, "submission_id": submission.ID})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionReviewDecision,
			Resource:   "reviews",
			ResourceID: &review.ID,
			NewValues:  payload,
		}); err != nil {
			s.logger.Warn("failed to record review audit log", zap.Error(err))
		}
	}

	return review, nil
}

// List returns the review history for a submission. Students may read
// reviews of their own submissions only.
func (s *ReviewService) List(ctx context.Context, submissionID string, actor *models.JWTClaims) ([]models.Review, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if actor.Role == models.RoleStudent && submission.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}

	reviews, err := s.repo.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}
