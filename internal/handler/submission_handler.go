package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/simkarya-api/internal/dto"
	"github.com/noah-isme/simkarya-api/internal/models"
	"github.com/noah-isme/simkarya-api/internal/service"
	"github.com/noah-isme/simkarya-api/internal/window"
	appErrors "github.com/noah-isme/simkarya-api/pkg/errors"
	"github.com/noah-isme/simkarya-api/pkg/response"
)

type submissionService interface {
	Create(ctx context.Context, req dto.CreateSubmissionRequest, upload service.SubmissionUpload, actor *models.JWTClaims) (*dto.SubmissionResponse, error)
	List(ctx context.Context, filter dto.SubmissionFilter, actor *models.JWTClaims) ([]dto.SubmissionResponse, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.SubmissionResponse, error)
	Revise(ctx context.Context, id string, req dto.ReviseSubmissionRequest, upload *service.SubmissionUpload, actor *models.JWTClaims) (*dto.SubmissionResponse, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error)
	Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*service.SubmissionDownload, error)
	WindowConfig() window.Config
}

// SubmissionHandler manages submission HTTP endpoints.
type SubmissionHandler struct {
	service submissionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service submissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// Create godoc
// @Summary Submit a research paper
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param abstract formData string true "Abstract"
// @Param authors formData string false "Comma separated authors"
// @Param keywords formData string false "Comma separated keywords"
// @Param kind formData string true "DRAFT or FINAL"
// @Param file formData file true "Paper document"
// @Success 201 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	upload, closeFn, err := readUpload(c, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	created, err := h.service.Create(c.Request.Context(), req, *upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, created, nil)
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param status query string false "Status filter"
// @Param kind query string false "Kind filter"
// @Param search query string false "Title/abstract/keyword search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter dto.SubmissionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a submission with its window state
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Revise godoc
// @Summary Revise a submission within its revision window
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Submission ID"
// @Param title formData string true "Title"
// @Param abstract formData string true "Abstract"
// @Param authors formData string false "Comma separated authors"
// @Param keywords formData string false "Comma separated keywords"
// @Param kind formData string true "DRAFT or FINAL"
// @Param file formData file false "Replacement document"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [put]
func (h *SubmissionHandler) Revise(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviseSubmissionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	upload, closeFn, err := readUpload(c, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	updated, err := h.service.Revise(c.Request.Context(), c.Param("id"), req, upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Delete godoc
// @Summary Delete a submission within its deletion window
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 204
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) Delete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Window godoc
// @Summary Current window state for a submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/window [get]
func (h *SubmissionHandler) Window(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if item.Window == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFinalized, "approved submissions have no modification window"))
		return
	}
	response.JSON(c, http.StatusOK, item.Window, nil)
}

// StreamWindow godoc
// @Summary Stream window countdown updates over SSE
// @Tags Submissions
// @Produce text/event-stream
// @Param id path string true "Submission ID"
// @Success 200 {string} string "event stream"
// @Router /submissions/{id}/window/stream [get]
func (h *SubmissionHandler) StreamWindow(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if item.Window == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFinalized, "approved submissions have no modification window"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	watcher := window.NewWatcher(h.service.WindowConfig())
	snapshots := watcher.Watch(c.Request.Context(), item.CreatedAt)
	c.Stream(func(w io.Writer) bool {
		snap, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("window", dto.NewWindowInfo(snap))
		return true
	})
}

// Download godoc
// @Summary Download the submission document via signed token
// @Tags Submissions
// @Produce octet-stream
// @Param id path string true "Submission ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /submissions/{id}/download [get]
func (h *SubmissionHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		url, err := h.service.GetDownloadURL(c.Request.Context(), c.Param("id"), claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"download_url": url}, nil)
		return
	}
	result, err := h.service.Download(c.Request.Context(), c.Param("id"), token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

// readUpload extracts the multipart file part. When required is false
// and no file part is present, it returns a nil upload and a no-op
// closer so metadata-only revisions pass through.
func readUpload(c *gin.Context, required bool) (*service.SubmissionUpload, func(), error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if !required {
			return nil, func() {}, nil
		}
		return nil, func() {}, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	upload := &service.SubmissionUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  src,
	}
	return upload, func() { src.Close() }, nil
}
