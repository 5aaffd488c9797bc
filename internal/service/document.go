package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/pagination"
)

// StorageClientInterface archives raw document text in object storage so the
// original upload survives re-chunking with different settings.
type StorageClientInterface interface {
	Upload(ctx context.Context, key string, contentType string, body []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// DocumentService manages the document lifecycle: create with a pending
// ingest job, list, inspect status, and soft or hard delete.
type DocumentService struct {
	documentRepo DocumentRepositoryInterface
	chunkRepo    ChunkRepositoryInterface
	jobRepo      IngestJobRepositoryInterface
	txRunner     TxRunner
	storage      StorageClientInterface
	uuidGen      UUIDGenerator
}

func NewDocumentService(documentRepo DocumentRepositoryInterface, chunkRepo ChunkRepositoryInterface, jobRepo IngestJobRepositoryInterface, txRunner TxRunner) *DocumentService {
	return &DocumentService{
		documentRepo: documentRepo,
		chunkRepo:    chunkRepo,
		jobRepo:      jobRepo,
		txRunner:     txRunner,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

func NewDocumentServiceWithStorage(documentRepo DocumentRepositoryInterface, chunkRepo ChunkRepositoryInterface, jobRepo IngestJobRepositoryInterface, txRunner TxRunner, storage StorageClientInterface) *DocumentService {
	s := NewDocumentService(documentRepo, chunkRepo, jobRepo, txRunner)
	s.storage = storage
	return s
}

type CreateDocumentInput struct {
	Title      string
	Content    string
	Type       domain.DocumentType
	Specialty  domain.Specialty
	UploadedBy string
}

// CreateDocument stores the document together with a pending ingest job in
// one transaction, so the background worker always finds work for every
// stored document. The raw text is archived to object storage best-effort.
func (s *DocumentService) CreateDocument(ctx context.Context, input CreateDocumentInput) (*domain.Document, *domain.IngestJob, error) {
	now := time.Now().UTC()
	doc := domain.NewDocument(s.uuidGen.NewString(), input.Title, input.Content, input.Type, input.Specialty, input.UploadedBy, now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	job := domain.NewIngestJob(s.uuidGen.NewString(), doc.ID, now)

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.IngestJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create document: %w", err)
	}

	if s.storage != nil {
		if err := s.storage.Upload(ctx, documentStorageKey(doc.ID), "text/plain", []byte(input.Content)); err != nil {
			log.Printf("WARN: failed to archive document %s to storage: %v", doc.ID, err)
		}
	}

	return doc, job, nil
}

// DocumentStatus pairs a document with its chunk count and latest ingest
// job state.
type DocumentStatus struct {
	Document   *domain.Document
	ChunkCount int
	Ingest     *domain.IngestJob
}

func (s *DocumentService) GetStatus(ctx context.Context, id string) (*DocumentStatus, error) {
	doc, err := s.documentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := s.chunkRepo.CountByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	job, err := s.jobRepo.GetByDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	return &DocumentStatus{Document: doc, ChunkCount: count, Ingest: job}, nil
}

func (s *DocumentService) List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.Document], error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid pagination cursor", err)
	}
	return s.documentRepo.ListWithCursor(ctx, decoded, limit)
}

// DownloadURL returns a presigned link to the archived raw text of a
// document.
func (s *DocumentService) DownloadURL(ctx context.Context, id string) (string, error) {
	if _, err := s.documentRepo.GetByID(ctx, id); err != nil {
		return "", err
	}
	if s.storage == nil {
		return "", domain.NewDomainError(domain.ErrCodeInvalidOperation, "document storage is not configured")
	}
	return s.storage.GenerateDownloadURL(ctx, documentStorageKey(id))
}

// Deactivate soft-deletes a document. Existing questions and mastery
// records survive; no new questions are generated from it.
func (s *DocumentService) Deactivate(ctx context.Context, id string) error {
	return s.documentRepo.SetActive(ctx, id, false)
}

// Delete removes a document and, via cascade, its chunks, questions,
// answers, and mastery records, plus the archived raw text.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.documentRepo.Delete(ctx, id); err != nil {
		return err
	}
	if s.storage != nil {
		if err := s.storage.DeleteObject(ctx, documentStorageKey(id)); err != nil {
			log.Printf("WARN: failed to delete archived document %s from storage: %v", id, err)
		}
	}
	return nil
}

func documentStorageKey(documentID string) string {
	return fmt.Sprintf("documents/%s/raw.txt", documentID)
}
