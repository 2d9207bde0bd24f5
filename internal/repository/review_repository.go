package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/simkarya-api/internal/models"
)

// ReviewRepository provides persistence for faculty reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review row.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reviews (id, submission_id, reviewer_id, decision, comment, created_at)
VALUES (:id, :submission_id, :reviewer_id, :decision, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// ListBySubmission returns reviews for a submission, newest first.
func (r *ReviewRepository) ListBySubmission(ctx context.Context, submissionID string) ([]models.Review, error) {
	const query = `SELECT id, submission_id, reviewer_id, decision, comment, created_at
FROM reviews WHERE submission_id = $1 ORDER BY created_at DESC`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, submissionID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
