package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/simkarya-api/internal/dto"
	"github.com/noah-isme/simkarya-api/internal/models"
	appErrors "github.com/noah-isme/simkarya-api/pkg/errors"
	"github.com/noah-isme/simkarya-api/pkg/response"
)

type reviewService interface {
	Create(ctx context.Context, submissionID string, req dto.CreateReviewRequest, actor *models.JWTClaims) (*models.Review, error)
	List(ctx context.Context, submissionID string, actor *models.JWTClaims) ([]models.Review, error)
}

// ReviewHandler exposes faculty review endpoints.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Create godoc
// @Summary Record a faculty decision on a submission
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.CreateReviewRequest true "Decision"
// @Success 201 {object} response.Envelope
// @Router /submissions/{id}/reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	review, err := h.service.Create(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, review, nil)
}

// List godoc
// @Summary List reviews for a submission
// @Tags Reviews
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reviews, err := h.service.List(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}
