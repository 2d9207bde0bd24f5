package dto

import (
	"time"

	"github.com/noah-isme/simkarya-api/internal/models"
	"github.com/noah-isme/simkarya-api/internal/window"
)

// CreateSubmissionRequest carries the multipart form fields for a new
// submission; the file part is handled separately by the handler.
type CreateSubmissionRequest struct {
	Title    string `form:"title" validate:"required"`
	Abstract string `form:"abstract" validate:"required"`
	Authors  string `form:"authors"`
	Keywords string `form:"keywords"`
	Kind     string `form:"kind" validate:"required,oneof=DRAFT FINAL"`
}

// ReviseSubmissionRequest carries the fields of a revision. The file
// part is optional: a revision may update metadata only.
type ReviseSubmissionRequest struct {
	Title    string `form:"title" validate:"required"`
	Abstract string `form:"abstract" validate:"required"`
	Authors  string `form:"authors"`
	Keywords string `form:"keywords"`
	Kind     string `form:"kind" validate:"required,oneof=DRAFT FINAL"`
}

// SubmissionFilter captures list query parameters.
type SubmissionFilter struct {
	Status string `form:"status"`
	Kind   string `form:"kind"`
	Search string `form:"search"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Sort   string `form:"sort"`
	Order  string `form:"order"`
}

// WindowInfo is the server-computed countdown state attached to every
// submission a student can still act on. Clients render these values
// as-is; the server re-validates on every mutation regardless.
type WindowInfo struct {
	DeleteRemainingSeconds int       `json:"delete_remaining_seconds"`
	ReviseRemainingSeconds int       `json:"revise_remaining_seconds"`
	DeleteRemaining        string    `json:"delete_remaining"`
	ReviseRemaining        string    `json:"revise_remaining"`
	CanDelete              bool      `json:"can_delete"`
	CanRevise              bool      `json:"can_revise"`
	Locked                 bool      `json:"locked"`
	EvaluatedAt            time.Time `json:"evaluated_at"`
}

// NewWindowInfo converts an evaluator snapshot into its wire form.
func NewWindowInfo(snap window.Snapshot) WindowInfo {
	return WindowInfo{
		DeleteRemainingSeconds: int(snap.DeleteRemaining.Seconds()),
		ReviseRemainingSeconds: int(snap.ReviseRemaining.Seconds()),
		DeleteRemaining:        window.Format(snap.DeleteRemaining),
		ReviseRemaining:        window.Format(snap.ReviseRemaining),
		CanDelete:              snap.CanDelete(),
		CanRevise:              snap.CanRevise(),
		Locked:                 snap.Locked(),
		EvaluatedAt:            snap.EvaluatedAt,
	}
}

// SubmissionResponse decorates a submission with its window state.
// Window is omitted for approved submissions: once approved the record
// is no longer the student's to modify and the countdown is moot.
type SubmissionResponse struct {
	models.Submission
	Window *WindowInfo `json:"window,omitempty"`
}
