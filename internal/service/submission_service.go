package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/simkarya-api/internal/dto"
	"github.com/noah-isme/simkarya-api/internal/models"
	"github.com/noah-isme/simkarya-api/internal/window"
	appErrors "github.com/noah-isme/simkarya-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	Update(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id string) error
}

type submissionFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type submissionSignedURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SubmissionUpload carries upload metadata and the stream reader.
type SubmissionUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// SubmissionDownload bundles file reader metadata for streaming.
type SubmissionDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// SubmissionServiceConfig holds upload validation parameters and the
// mutation window durations.
type SubmissionServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	Windows      window.Config
}

// SubmissionService owns the submission lifecycle: student uploads,
// window-gated revision and deletion, and signed file downloads. It is
// the authoritative enforcement point for the edit/delete windows;
// whatever countdown a client shows, the decision is re-made here
// against server wall-clock time.
type SubmissionService struct {
	repo      submissionStore
	storage   submissionFileStorage
	signer    submissionSignedURLSigner
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SubmissionServiceConfig
	mimeSet   map[string]struct{}
	now       func() time.Time
}

// NewSubmissionService constructs the service with defaults.
func NewSubmissionService(repo submissionStore, storage submissionFileStorage, signer submissionSignedURLSigner, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg SubmissionServiceConfig) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 20 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/zip",
		}
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &SubmissionService{
		repo:      repo,
		storage:   storage,
		signer:    signer,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
		now:       time.Now,
	}
}

// WindowConfig exposes the configured window durations (consumed by
// the SSE stream handler).
func (s *SubmissionService) WindowConfig() window.Config {
	return s.cfg.Windows
}

// Snapshot evaluates the mutation windows for a submission right now.
func (s *SubmissionService) Snapshot(submission *models.Submission) window.Snapshot {
	return s.cfg.Windows.Evaluate(submission.CreatedAt, s.now().UTC())
}

// Decorate attaches the window state to a submission response. The
// window is omitted for approved submissions: approval removes the
// record from the student's control entirely, so call sites never
// consult the evaluator for it.
func (s *SubmissionService) Decorate(submission models.Submission) dto.SubmissionResponse {
	resp := dto.SubmissionResponse{Submission: submission}
	if submission.Status != models.SubmissionStatusApproved {
		info := dto.NewWindowInfo(s.Snapshot(&submission))
		resp.Window = &info
	}
	return resp
}

// Create stores the uploaded file and persists the submission row.
func (s *SubmissionService) Create(ctx context.Context, req dto.CreateSubmissionRequest, upload SubmissionUpload, actor *models.JWTClaims) (*dto.SubmissionResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	submission := &models.Submission{
		ID:        uuid.NewString(),
		StudentID: actor.UserID,
		Title:     CleanTitle(req.Title),
		Abstract:  FormatAbstract(req.Abstract),
		Authors:   models.SplitCSV(req.Authors),
		Keywords:  models.SplitCSV(req.Keywords),
		Kind:      models.SubmissionKind(req.Kind),
		Status:    models.SubmissionStatusPending,
	}
	if len(submission.Authors) == 0 {
		submission.Authors = models.CSVField{actor.FullName}
	}

	relPath, size, err := s.storeFile(submission.ID, upload)
	if err != nil {
		return nil, err
	}
	submission.FileName = upload.Filename
	submission.FilePath = relPath
	submission.MimeType = strings.ToLower(upload.MimeType)
	submission.SizeBytes = size

	if err := s.repo.Create(ctx, submission); err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	s.recordAudit(ctx, actor, models.AuditActionSubmissionCreate, submission.ID, map[string]interface{}{
		"title": submission.Title,
		"kind":  submission.Kind,
	})

	resp := s.Decorate(*submission)
	return &resp, nil
}

// List returns submissions visible to the actor, each decorated with
// its window state.
func (s *SubmissionService) List(ctx context.Context, filter dto.SubmissionFilter, actor *models.JWTClaims) ([]dto.SubmissionResponse, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}

	modelFilter := models.SubmissionFilter{
		Search:    CleanTitle(filter.Search),
		Page:      filter.Page,
		PageSize:  filter.Limit,
		SortBy:    filter.Sort,
		SortOrder: filter.Order,
	}
	if actor.Role == models.RoleStudent {
		modelFilter.StudentID = actor.UserID
	}
	if filter.Status != "" {
		status := models.SubmissionStatus(strings.ToUpper(filter.Status))
		modelFilter.Status = &status
	}
	if filter.Kind != "" {
		kind := models.SubmissionKind(strings.ToUpper(filter.Kind))
		modelFilter.Kind = &kind
	}

	submissions, total, err := s.repo.List(ctx, modelFilter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, s.Decorate(submission))
	}

	page := modelFilter.Page
	if page < 1 {
		page = 1
	}
	pageSize := modelFilter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return responses, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single submission with its window state.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.SubmissionResponse, error) {
	submission, err := s.authorizeView(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	resp := s.Decorate(*submission)
	return &resp, nil
}

// Revise replaces the submission content while the revise window is
// open. Approved submissions are finalized before the window is even
// consulted; expired windows are rejected with a human-readable
// message that clients surface verbatim.
func (s *SubmissionService) Revise(ctx context.Context, id string, req dto.ReviseSubmissionRequest, upload *SubmissionUpload, actor *models.JWTClaims) (*dto.SubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revision payload")
	}

	submission, err := s.authorizeMutation(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if !s.Snapshot(submission).CanRevise() {
		return nil, appErrors.Clone(appErrors.ErrWindowExpired, "the revision window for this submission has expired")
	}

	submission.Title = CleanTitle(req.Title)
	submission.Abstract = FormatAbstract(req.Abstract)
	submission.Authors = models.SplitCSV(req.Authors)
	submission.Keywords = models.SplitCSV(req.Keywords)
	submission.Kind = models.SubmissionKind(req.Kind)

	// A rejected paper that is revised goes back into the review queue;
	// without the reset reviewers could never pick it up again.
	if submission.Status == models.SubmissionStatusRejected {
		submission.Status = models.SubmissionStatusPending
	}

	oldPath := submission.FilePath
	if upload != nil {
		if err := s.validateUpload(*upload); err != nil {
			return nil, err
		}
		relPath, size, err := s.storeFile(submission.ID, *upload)
		if err != nil {
			return nil, err
		}
		submission.FileName = upload.Filename
		submission.FilePath = relPath
		submission.MimeType = strings.ToLower(upload.MimeType)
		submission.SizeBytes = size
	}

	if err := s.repo.Update(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}

	if upload != nil && oldPath != "" && oldPath != submission.FilePath {
		if err := s.storage.Delete(oldPath); err != nil {
			s.logger.Warn("failed to remove replaced file", zap.String("path", oldPath), zap.Error(err))
		}
	}

	s.recordAudit(ctx, actor, models.AuditActionSubmissionRevise, submission.ID, map[string]interface{}{
		"title": submission.Title,
	})

	resp := s.Decorate(*submission)
	return &resp, nil
}

// Delete removes a submission while the delete window is open.
func (s *SubmissionService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	submission, err := s.authorizeMutation(ctx, id, actor)
	if err != nil {
		return err
	}

	if !s.Snapshot(submission).CanDelete() {
		return appErrors.Clone(appErrors.ErrWindowExpired, "the deletion window for this submission has expired")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submission")
	}

	if submission.FilePath != "" {
		if err := s.storage.Delete(submission.FilePath); err != nil {
			s.logger.Warn("failed to remove submission file", zap.String("path", submission.FilePath), zap.Error(err))
		}
	}

	s.recordAudit(ctx, actor, models.AuditActionSubmissionDelete, id, map[string]interface{}{
		"title": submission.Title,
	})

	return nil
}

// GetDownloadURL issues a signed download token for a submission file.
func (s *SubmissionService) GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error) {
	submission, err := s.authorizeView(ctx, id, actor)
	if err != nil {
		return "", err
	}
	if submission.FilePath == "" {
		return "", appErrors.Clone(appErrors.ErrNotFound, "submission has no stored file")
	}
	token, _, err := s.signer.Generate(submission.ID, submission.FilePath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, nil
}

// Download validates the signed token and opens the stored file.
func (s *SubmissionService) Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*SubmissionDownload, error) {
	submission, err := s.authorizeView(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	tokenID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil || tokenID != submission.ID || relPath != submission.FilePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open submission file")
	}
	return &SubmissionDownload{
		File:      file,
		Filename:  submission.FileName,
		MimeType:  submission.MimeType,
		SizeBytes: submission.SizeBytes,
		ExpiresAt: expiresAt,
	}, nil
}

// authorizeView loads a submission and checks read access: students
// see only their own records, all other roles see everything.
func (s *SubmissionService) authorizeView(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if actor.Role == models.RoleStudent && submission.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return submission, nil
}

// authorizeMutation checks ownership and the approval invariant for
// revise/delete: only the submitting student mutates, and approved
// submissions are rejected before any window check happens.
func (s *SubmissionService) authorizeMutation(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if submission.Status == models.SubmissionStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "approved submissions can no longer be modified")
	}
	return submission, nil
}

func (s *SubmissionService) validateUpload(upload SubmissionUpload) error {
	if upload.Content == nil {
		return appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", s.cfg.MaxFileSize))
	}
	if _, ok := s.mimeSet[strings.ToLower(upload.MimeType)]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported file type %s", upload.MimeType))
	}
	return nil
}

func (s *SubmissionService) storeFile(submissionID string, upload SubmissionUpload) (string, int64, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	relPath := filepath.Join(submissionID, fmt.Sprintf("%d%s", s.now().UTC().UnixNano(), ext))
	stored, err := s.storage.SaveStream(relPath, upload.Content)
	if err != nil {
		return "", 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
	}
	return stored, upload.Size, nil
}

func (s *SubmissionService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(payload)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "submissions",
		ResourceID: &resourceID,
		NewValues:  body,
	}); err != nil {
		s.logger.Warn("failed to record submission audit log", zap.Error(err))
	}
}
