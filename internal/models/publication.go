package models

import "time"

// Publication represents an approved submission published into the
// public catalog by staff, with staff-assigned tags.
type Publication struct {
	ID           string    `db:"id" json:"id"`
	SubmissionID string    `db:"submission_id" json:"submission_id"`
	Title        string    `db:"title" json:"title"`
	Abstract     string    `db:"abstract" json:"abstract"`
	Authors      CSVField  `db:"authors" json:"authors"`
	Tags         CSVField  `db:"tags" json:"tags"`
	PublishedBy  string    `db:"published_by" json:"published_by"`
	PublishedAt  time.Time `db:"published_at" json:"published_at"`
}

// PublicationFilter captures catalog search criteria.
type PublicationFilter struct {
	Search   string
	Tag      string
	Page     int
	PageSize int
}
