package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/clinsim-ai/clinsim/internal/api"
	"github.com/clinsim-ai/clinsim/internal/api/middleware"
	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/pagination"
	"github.com/clinsim-ai/clinsim/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentService interface {
	CreateDocument(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, *domain.IngestJob, error)
	GetStatus(ctx context.Context, id string) (*service.DocumentStatus, error)
	List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.Document], error)
	DownloadURL(ctx context.Context, id string) (string, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type CreateDocumentRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Specialty string `json:"specialty"`
}

type DocumentResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Specialty  string `json:"specialty"`
	UploadedBy string `json:"uploaded_by,omitempty"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type IngestJobResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Retries     int32  `json:"retries"`
	Error       string `json:"error,omitempty"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:         d.ID,
		Title:      d.Title,
		Type:       string(d.Type),
		Specialty:  string(d.Specialty),
		UploadedBy: d.UploadedBy,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  d.UpdatedAt.Format(time.RFC3339),
	}
}

func ingestJobToResponse(j *domain.IngestJob) *IngestJobResponse {
	if j == nil {
		return nil
	}
	resp := &IngestJobResponse{
		ID:      j.ID,
		Status:  string(j.Status),
		Retries: j.Retries,
		Error:   j.Error,
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

type CreateDocumentResponse struct {
	Document *DocumentResponse  `json:"document"`
	Ingest   *IngestJobResponse `json:"ingest"`
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Type == "" {
		api.Error(w, http.StatusBadRequest, "type is required")
		return
	}
	if !domain.IsValidDocumentType(domain.DocumentType(req.Type)) {
		api.Error(w, http.StatusBadRequest, "invalid document type")
		return
	}
	if req.Specialty == "" {
		api.Error(w, http.StatusBadRequest, "specialty is required")
		return
	}
	if !domain.IsValidSpecialty(domain.Specialty(req.Specialty)) {
		api.Error(w, http.StatusBadRequest, "invalid specialty")
		return
	}

	input := service.CreateDocumentInput{
		Title:      req.Title,
		Content:    req.Content,
		Type:       domain.DocumentType(req.Type),
		Specialty:  domain.Specialty(req.Specialty),
		UploadedBy: userID,
	}

	doc, job, err := h.svc.CreateDocument(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, CreateDocumentResponse{
		Document: documentToResponse(doc),
		Ingest:   ingestJobToResponse(job),
	})
}

type DocumentStatusResponse struct {
	Document   *DocumentResponse  `json:"document"`
	ChunkCount int                `json:"chunk_count"`
	Ingest     *IngestJobResponse `json:"ingest"`
}

func (h *DocumentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	status, err := h.svc.GetStatus(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DocumentStatusResponse{
		Document:   documentToResponse(status.Document),
		ChunkCount: status.ChunkCount,
		Ingest:     ingestJobToResponse(status.Ingest),
	})
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.svc.List(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

// Download hands back a short-lived presigned URL for the archived raw
// text rather than streaming the bytes through the API.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.svc.DownloadURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "download_url": url})
}

func (h *DocumentHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "status": "inactive"})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
