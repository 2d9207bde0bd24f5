package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

// SubmissionKind distinguishes draft uploads from final versions.
type SubmissionKind string

const (
	SubmissionKindDraft SubmissionKind = "DRAFT"
	SubmissionKindFinal SubmissionKind = "FINAL"
)

// SubmissionStatus captures the review outcome for a submission.
// Status is only mutated by faculty review decisions, never by the
// submitting student.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "PENDING"
	SubmissionStatusApproved SubmissionStatus = "APPROVED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

// Submission represents a persisted research-paper submission.
// Authors and Keywords are stored as comma-separated text columns and
// exposed as arrays; CreatedAt is set once and drives the edit/delete
// windows.
type Submission struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Title     string           `db:"title" json:"title"`
	Abstract  string           `db:"abstract" json:"abstract"`
	Authors   CSVField         `db:"authors" json:"authors"`
	Keywords  CSVField         `db:"keywords" json:"keywords"`
	Kind      SubmissionKind   `db:"kind" json:"kind"`
	Status    SubmissionStatus `db:"status" json:"status"`
	FileName  string           `db:"file_name" json:"file_name"`
	FilePath  string           `db:"file_path" json:"-"`
	MimeType  string           `db:"mime_type" json:"mime_type"`
	SizeBytes int64            `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionFilter captures list criteria for submissions.
type SubmissionFilter struct {
	StudentID string
	Status    *SubmissionStatus
	Kind      *SubmissionKind
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CSVField maps a comma-separated text column onto a string slice.
type CSVField []string

// Value renders the slice as comma-separated text for persistence.
func (f CSVField) Value() (driver.Value, error) {
	return strings.Join(f, ","), nil
}

// Scan splits comma-separated text into trimmed, non-empty entries.
func (f *CSVField) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	}
	*f = SplitCSV(raw)
	return nil
}

// SplitCSV normalises comma-separated text into trimmed entries,
// dropping blanks left behind by legacy clients.
func SplitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
