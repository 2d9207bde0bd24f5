package dto

import (
	"time"

	"github.com/noah-isme/simkarya-api/internal/models"
)

// ExportRequest queues an asynchronous catalog export.
type ExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Tag    string              `json:"tag"`
	Search string              `json:"search"`
}

// ExportJobResponse acknowledges job creation.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse reports job progress and the download URL once
// the job finished.
type ExportStatusResponse struct {
	ID           string              `json:"id"`
	Status       models.ExportStatus `json:"status"`
	Progress     int                 `json:"progress"`
	ResultURL    *string             `json:"result_url,omitempty"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
}
