package dto

// CreateReviewRequest carries a faculty decision on a submission.
type CreateReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Comment  string `json:"comment" validate:"required"`
}
