package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinsim-ai/clinsim/internal/api/middleware"
	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/pagination"
	"github.com/clinsim-ai/clinsim/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) CreateDocument(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, *domain.IngestJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Document), args.Get(1).(*domain.IngestJob), args.Error(2)
}

func (m *MockDocumentService) GetStatus(ctx context.Context, id string) (*service.DocumentStatus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentStatus), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.Document], error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Document]), args.Error(1)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestDocument() *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:         "doc-123",
		Title:      "Sepsis Management Guidelines",
		Content:    "Administer broad-spectrum antibiotics within one hour.",
		Type:       domain.DocumentTypeGuideline,
		Specialty:  domain.SpecialtyHospitalist,
		UploadedBy: "user-456",
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func requestWithUserID(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-456")
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDocumentHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	doc := newTestDocument()
	job := domain.NewIngestJob("job-1", doc.ID, time.Now().UTC())
	mockSvc.On("CreateDocument", mock.Anything, mock.MatchedBy(func(input service.CreateDocumentInput) bool {
		return input.Title == "Sepsis Management Guidelines" && input.UploadedBy == "user-456"
	})).Return(doc, job, nil)

	body := `{"title":"Sepsis Management Guidelines","content":"Administer broad-spectrum antibiotics within one hour.","type":"guideline","specialty":"hospitalist"}`
	req := requestWithUserID(http.MethodPost, "/documents", []byte(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	document := data["document"].(map[string]interface{})
	assert.Equal(t, "doc-123", document["id"])
	ingest := data["ingest"].(map[string]interface{})
	assert.Equal(t, "pending", ingest["status"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Create_Unauthorized(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	body := `{"title":"Test","content":"text","type":"guideline"}`
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentHandler_Create_InvalidJSON(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	req := requestWithUserID(http.MethodPost, "/documents", []byte(`{invalid`))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestDocumentHandler_Create_MissingContent(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	body := `{"title":"Test","type":"guideline"}`
	req := requestWithUserID(http.MethodPost, "/documents", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "content is required")
}

func TestDocumentHandler_Create_InvalidType(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	body := `{"title":"Test","content":"text","type":"novel"}`
	req := requestWithUserID(http.MethodPost, "/documents", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid document type")
}

func TestDocumentHandler_GetStatus_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	doc := newTestDocument()
	processed := time.Now().UTC()
	status := &service.DocumentStatus{
		Document:   doc,
		ChunkCount: 42,
		Ingest: &domain.IngestJob{
			ID:          "job-1",
			DocumentID:  doc.ID,
			Status:      domain.IngestJobStatusCompleted,
			ProcessedAt: &processed,
		},
	}
	mockSvc.On("GetStatus", mock.Anything, "doc-123").Return(status, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-123", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.GetStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(42), data["chunk_count"])
	ingest := data["ingest"].(map[string]interface{})
	assert.Equal(t, "completed", ingest["status"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_GetStatus_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("GetStatus", mock.Anything, "doc-999").Return(nil, domain.ErrDocumentNotFound)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-999", nil)
	req = withURLParam(req, "id", "doc-999")
	w := httptest.NewRecorder()

	handler.GetStatus(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_List_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	page := &pagination.PageResult[*domain.Document]{
		Items:   []*domain.Document{newTestDocument()},
		Cursor:  "next-cursor",
		HasMore: true,
	}
	mockSvc.On("List", mock.Anything, "", 5).Return(page, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents?limit=5", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	assert.Len(t, items, 1)
	assert.Equal(t, true, data["has_more"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_List_InvalidCursor(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("List", mock.Anything, "garbage", 20).
		Return(nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid pagination cursor"))

	req := httptest.NewRequest(http.MethodGet, "/documents?cursor=garbage", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Download_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("DownloadURL", mock.Anything, "doc-123").
		Return("https://storage.example.com/documents/doc-123/raw.txt", nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-123/download", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Download(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "https://storage.example.com/documents/doc-123/raw.txt", data["download_url"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Download_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("DownloadURL", mock.Anything, "missing").Return("", domain.ErrDocumentNotFound)

	req := httptest.NewRequest(http.MethodGet, "/documents/missing/download", nil)
	req = withURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	handler.Download(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Deactivate_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Deactivate", mock.Anything, "doc-123").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/doc-123/deactivate", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Deactivate(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inactive")
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "doc-123").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents/doc-123", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Delete_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "doc-999").Return(domain.ErrDocumentNotFound)

	req := httptest.NewRequest(http.MethodDelete, "/documents/doc-999", nil)
	req = withURLParam(req, "id", "doc-999")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}
