package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/simkarya-api/internal/dto"
	"github.com/noah-isme/simkarya-api/internal/middleware"
	"github.com/noah-isme/simkarya-api/internal/models"
	"github.com/noah-isme/simkarya-api/internal/service"
	"github.com/noah-isme/simkarya-api/internal/window"
	appErrors "github.com/noah-isme/simkarya-api/pkg/errors"
)

type submissionServiceMock struct {
	createResp *dto.SubmissionResponse
	createErr  error
	listResp   []dto.SubmissionResponse
	listErr    error
	getResp    *dto.SubmissionResponse
	getErr     error
	reviseResp *dto.SubmissionResponse
	reviseErr  error
	deleteErr  error
	urlResp    string
	urlErr     error
	download   *service.SubmissionDownload
	windows    window.Config

	lastUpload *service.SubmissionUpload
}

func (m *submissionServiceMock) Create(ctx context.Context, req dto.CreateSubmissionRequest, upload service.SubmissionUpload, actor *models.JWTClaims) (*dto.SubmissionResponse, error) {
	m.lastUpload = &upload
	return m.createResp, m.createErr
}

func (m *submissionServiceMock) List(ctx context.Context, filter dto.SubmissionFilter, actor *models.JWTClaims) ([]dto.SubmissionResponse, *models.Pagination, error) {
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, m.listErr
}

func (m *submissionServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.SubmissionResponse, error) {
	return m.getResp, m.getErr
}

func (m *submissionServiceMock) Revise(ctx context.Context, id string, req dto.ReviseSubmissionRequest, upload *service.SubmissionUpload, actor *models.JWTClaims) (*dto.SubmissionResponse, error) {
	m.lastUpload = upload
	return m.reviseResp, m.reviseErr
}

func (m *submissionServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	return m.deleteErr
}

func (m *submissionServiceMock) GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error) {
	return m.urlResp, m.urlErr
}

func (m *submissionServiceMock) Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*service.SubmissionDownload, error) {
	return m.download, nil
}

func (m *submissionServiceMock) WindowConfig() window.Config {
	return m.windows
}

// closeNotifyRecorder adds http.CloseNotifier to httptest.ResponseRecorder,
// which gin's c.Stream requires from the underlying response writer.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func studentContext(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent, FullName: "Student One"})
}

func multipartSubmission(t *testing.T, includeFile bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("title", "Queueing Behaviour"))
	require.NoError(t, writer.WriteField("abstract", "We study queues."))
	require.NoError(t, writer.WriteField("kind", "DRAFT"))
	if includeFile {
		part, err := writer.CreateFormFile("file", "paper.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func pendingSubmissionResponse() *dto.SubmissionResponse {
	info := dto.NewWindowInfo(window.Config{}.Evaluate(time.Now().UTC(), time.Now().UTC()))
	return &dto.SubmissionResponse{
		Submission: models.Submission{
			ID:        "sub-1",
			StudentID: "student-1",
			Title:     "Queueing Behaviour",
			Status:    models.SubmissionStatusPending,
			CreatedAt: time.Now().UTC(),
		},
		Window: &info,
	}
}

func TestSubmissionHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{createResp: pendingSubmissionResponse()}
	handler := NewSubmissionHandler(mockSvc)

	body, contentType := multipartSubmission(t, true)
	c, w := newGinContext(http.MethodPost, "/submissions", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	studentContext(c)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockSvc.lastUpload)
	require.Equal(t, "paper.pdf", mockSvc.lastUpload.Filename)
}

func TestSubmissionHandlerCreateRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSubmissionHandler(&submissionServiceMock{})

	body, contentType := multipartSubmission(t, false)
	c, w := newGinContext(http.MethodPost, "/submissions", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	studentContext(c)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmissionHandlerReviseWithoutFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{reviseResp: pendingSubmissionResponse()}
	handler := NewSubmissionHandler(mockSvc)

	body, contentType := multipartSubmission(t, false)
	c, w := newGinContext(http.MethodPut, "/submissions/sub-1", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	studentContext(c)

	handler.Revise(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, mockSvc.lastUpload)
}

func TestSubmissionHandlerReviseWindowExpired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{reviseErr: appErrors.ErrWindowExpired}
	handler := NewSubmissionHandler(mockSvc)

	body, contentType := multipartSubmission(t, false)
	c, w := newGinContext(http.MethodPut, "/submissions/sub-1", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	studentContext(c)

	handler.Revise(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmissionHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{getResp: pendingSubmissionResponse()}
	handler := NewSubmissionHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/submissions/sub-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	studentContext(c)

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.Window)
}

func TestSubmissionHandlerWindowApproved(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := pendingSubmissionResponse()
	resp.Status = models.SubmissionStatusApproved
	resp.Window = nil
	mockSvc := &submissionServiceMock{getResp: resp}
	handler := NewSubmissionHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/submissions/sub-1/window", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	studentContext(c)

	handler.Window(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmissionHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSubmissionHandler(&submissionServiceMock{})

	c, w := newGinContext(http.MethodDelete, "/submissions/sub-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	studentContext(c)

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestSubmissionHandlerStreamWindowEndsWhenLocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := pendingSubmissionResponse()
	// Created far in the past so the first snapshot is already locked
	// and the stream terminates after one event.
	resp.CreatedAt = time.Now().UTC().Add(-time.Hour)
	mockSvc := &submissionServiceMock{
		getResp: resp,
		windows: window.Config{DeleteWindow: 300 * time.Second, ReviseWindow: 300 * time.Second},
	}
	handler := NewSubmissionHandler(mockSvc)

	w := &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/submissions/sub-1/window/stream", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	studentContext(c)

	done := make(chan struct{})
	go func() {
		handler.StreamWindow(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate")
	}
	require.Contains(t, w.Body.String(), "locked")
}
