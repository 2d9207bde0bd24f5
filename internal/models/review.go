package models

import "time"

// ReviewDecision enumerates faculty review outcomes.
type ReviewDecision string

const (
	ReviewDecisionApproved ReviewDecision = "APPROVED"
	ReviewDecisionRejected ReviewDecision = "REJECTED"
)

// Review represents a faculty decision with commentary on a submission.
type Review struct {
	ID           string         `db:"id" json:"id"`
	SubmissionID string         `db:"submission_id" json:"submission_id"`
	ReviewerID   string         `db:"reviewer_id" json:"reviewer_id"`
	Decision     ReviewDecision `db:"decision" json:"decision"`
	Comment      string         `db:"comment" json:"comment"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
