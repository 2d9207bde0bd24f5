package dto

// PublishRequest carries the staff publish action for an approved
// submission. Tags arrive either as an array or as legacy
// comma-separated text; the service normalises both forms.
type PublishRequest struct {
	SubmissionID string   `json:"submission_id" validate:"required"`
	Tags         []string `json:"tags"`
	TagsCSV      string   `json:"tags_csv"`
}

// PublicationFilter captures catalog query parameters.
type PublicationFilter struct {
	Search string `form:"search"`
	Tag    string `form:"tag"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}
