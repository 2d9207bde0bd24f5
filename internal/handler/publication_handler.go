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

type publicationService interface {
	Publish(ctx context.Context, req dto.PublishRequest, actor *models.JWTClaims) (*models.Publication, error)
	List(ctx context.Context, filter dto.PublicationFilter) ([]models.Publication, *models.Pagination, error)
	Unpublish(ctx context.Context, id string, actor *models.JWTClaims) error
}

// PublicationHandler exposes staff publishing and the public catalog.
type PublicationHandler struct {
	service publicationService
}

// NewPublicationHandler constructs the handler.
func NewPublicationHandler(service publicationService) *PublicationHandler {
	return &PublicationHandler{service: service}
}

// Publish godoc
// @Summary Publish an approved submission into the catalog
// @Tags Publications
// @Accept json
// @Produce json
// @Param payload body dto.PublishRequest true "Publication payload"
// @Success 201 {object} response.Envelope
// @Router /publications [post]
func (h *PublicationHandler) Publish(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "publication service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid publication payload"))
		return
	}
	publication, err := h.service.Publish(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, publication, nil)
}

// List godoc
// @Summary Browse the public publication catalog
// @Tags Publications
// @Produce json
// @Param search query string false "Title/abstract/author search"
// @Param tag query string false "Tag filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /publications [get]
func (h *PublicationHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "publication service not configured"))
		return
	}
	var filter dto.PublicationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	publications, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, publications, pagination)
}

// Unpublish godoc
// @Summary Remove a publication from the catalog
// @Tags Publications
// @Produce json
// @Param id path string true "Publication ID"
// @Success 204
// @Router /publications/{id} [delete]
func (h *PublicationHandler) Unpublish(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "publication service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Unpublish(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
