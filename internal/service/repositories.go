package service

import (
	"context"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/pagination"
)

// ChunkSearchQuery describes a nearest-neighbour search over a document's chunks.
type ChunkSearchQuery struct {
	Vector          []float32
	DocumentID      string
	ExcludeChunkIDs []string
	MinSimilarity   float64
	TopK            int
}

// ChunkMatch is a chunk returned from vector search with its cosine similarity.
type ChunkMatch struct {
	Chunk      domain.Chunk
	Similarity float64
}

type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type ChunkRepositoryInterface interface {
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, query ChunkSearchQuery) ([]ChunkMatch, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error)
	CountByDocument(ctx context.Context, documentID string) (int, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

type QuestionRepositoryInterface interface {
	Create(ctx context.Context, q *domain.Question) error
	GetByID(ctx context.Context, id string) (*domain.Question, error)
	MarkAnswered(ctx context.Context, id string) error
	ListAnsweredChunkIDs(ctx context.Context, userID, documentID string) ([]string, error)
}

type AnswerRepositoryInterface interface {
	Create(ctx context.Context, a *domain.Answer) error
	ListByQuestion(ctx context.Context, questionID string) ([]*domain.Answer, error)
}

type MasteryRepositoryInterface interface {
	Get(ctx context.Context, userID, documentID string) (*domain.MasteryRecord, error)
	Create(ctx context.Context, m *domain.MasteryRecord) error
	UpdateVersioned(ctx context.Context, m *domain.MasteryRecord, expectedVersion int64) (bool, error)
}

type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	GetByDocument(ctx context.Context, documentID string) (*domain.IngestJob, error)
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
	Requeue(ctx context.Context, id string, errMsg string) error
}
