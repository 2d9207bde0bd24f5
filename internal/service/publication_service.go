package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/simkarya-api/internal/dto"
	"github.com/noah-isme/simkarya-api/internal/models"
	appErrors "github.com/noah-isme/simkarya-api/pkg/errors"
)

const catalogCachePrefix = "catalog:"

type publicationStore interface {
	Create(ctx context.Context, publication *models.Publication) error
	GetByID(ctx context.Context, id string) (*models.Publication, error)
	FindBySubmission(ctx context.Context, submissionID string) (*models.Publication, error)
	List(ctx context.Context, filter models.PublicationFilter) ([]models.Publication, int, error)
	Delete(ctx context.Context, id string) error
}

type publicationSubmissionStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
}

// catalogPage is the cached shape of one catalog listing.
type catalogPage struct {
	Items      []models.Publication `json:"items"`
	Pagination models.Pagination    `json:"pagination"`
}

// PublicationService publishes approved submissions into the public
// catalog and serves (optionally cached) catalog queries.
type PublicationService struct {
	repo        publicationStore
	submissions publicationSubmissionStore
	cache       *CacheService
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPublicationService constructs the service.
func NewPublicationService(repo publicationStore, submissions publicationSubmissionStore, cache *CacheService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *PublicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PublicationService{repo: repo, submissions: submissions, cache: cache, audit: audit, validator: validate, logger: logger}
}

// Publish places an approved submission into the catalog with
// staff-assigned tags.
func (s *PublicationService) Publish(ctx context.Context, req dto.PublishRequest, actor *models.JWTClaims) (*models.Publication, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publish payload")
	}

	submission, err := s.submissions.GetByID(ctx, req.SubmissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.Status != models.SubmissionStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only approved submissions can be published")
	}

	if _, err := s.repo.FindBySubmission(ctx, submission.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission is already published")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing publication")
	}

	tags := normalizeTags(req)
	publication := &models.Publication{
		ID:           uuid.NewString(),
		SubmissionID: submission.ID,
		Title:        submission.Title,
		Abstract:     submission.Abstract,
		Authors:      submission.Authors,
		Tags:         tags,
		PublishedBy:  actor.UserID,
		PublishedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, publication); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create publication")
	}

	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, actor, models.AuditActionPublish, publication.ID, map[string]interface{}{
		"submission_id": submission.ID,
		"tags":          tags,
	})

	return publication, nil
}

// List serves the public catalog, caching page results when a cache
// is configured.
func (s *PublicationService) List(ctx context.Context, filter dto.PublicationFilter) ([]models.Publication, *models.Pagination, error) {
	modelFilter := models.PublicationFilter{
		Search:   CleanTitle(filter.Search),
		Tag:      strings.TrimSpace(filter.Tag),
		Page:     filter.Page,
		PageSize: filter.Limit,
	}

	key := s.cacheKey(modelFilter)
	if s.cache.Enabled() {
		var cached catalogPage
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached.Items, &cached.Pagination, nil
		}
	}

	publications, total, err := s.repo.List(ctx, modelFilter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list publications")
	}

	page := modelFilter.Page
	if page < 1 {
		page = 1
	}
	pageSize := modelFilter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pagination := models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, catalogPage{Items: publications, Pagination: pagination}, 0); err != nil {
			s.logger.Warn("failed to cache catalog page", zap.Error(err))
		}
	}

	return publications, &pagination, nil
}

// ListAll returns every catalog entry matching the filter without
// pagination; the export pipeline iterates pages through this.
func (s *PublicationService) ListAll(ctx context.Context, search, tag string) ([]models.Publication, error) {
	var all []models.Publication
	page := 1
	for {
		batch, total, err := s.repo.List(ctx, models.PublicationFilter{Search: search, Tag: tag, Page: page, PageSize: 100})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(all) >= total || len(batch) == 0 {
			return all, nil
		}
		page++
	}
}

// Unpublish removes a catalog entry.
func (s *PublicationService) Unpublish(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	publication, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete publication")
	}

	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, actor, models.AuditActionUnpublish, id, map[string]interface{}{
		"submission_id": publication.SubmissionID,
	})
	return nil
}

func (s *PublicationService) cacheKey(filter models.PublicationFilter) string {
	return fmt.Sprintf("%ssearch=%s|tag=%s|page=%d|size=%d",
		catalogCachePrefix, strings.ToLower(filter.Search), strings.ToLower(filter.Tag), filter.Page, filter.PageSize)
}

func (s *PublicationService) invalidateCatalog(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, catalogCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

func (s *PublicationService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(payload)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "publications",
		ResourceID: &resourceID,
		NewValues:  body,
	}); err != nil {
		s.logger.Warn("failed to record publication audit log", zap.Error(err))
	}
}

// normalizeTags merges the array and legacy CSV forms of the tag
// field into one trimmed, de-duplicated list.
func normalizeTags(req dto.PublishRequest) models.CSVField {
	seen := make(map[string]struct{})
	var tags models.CSVField
	add := func(raw string) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		tags = append(tags, trimmed)
	}
	for _, tag := range req.Tags {
		add(tag)
	}
	for _, tag := range models.SplitCSV(req.TagsCSV) {
		add(tag)
	}
	return tags
}
