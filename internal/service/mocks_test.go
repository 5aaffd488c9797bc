package service

import (
	"context"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Document]), args.Error(1)
}

func (m *MockDocumentRepository) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) Search(ctx context.Context, query ChunkSearchQuery) ([]ChunkMatch, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ChunkMatch), args.Error(1)
}

func (m *MockChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

func (m *MockChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// MockQuestionRepository is a mock implementation of QuestionRepositoryInterface
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Question), args.Error(1)
}

func (m *MockQuestionRepository) MarkAnswered(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuestionRepository) ListAnsweredChunkIDs(ctx context.Context, userID, documentID string) ([]string, error) {
	args := m.Called(ctx, userID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockAnswerRepository is a mock implementation of AnswerRepositoryInterface
type MockAnswerRepository struct {
	mock.Mock
}

func (m *MockAnswerRepository) Create(ctx context.Context, a *domain.Answer) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAnswerRepository) ListByQuestion(ctx context.Context, questionID string) ([]*domain.Answer, error) {
	args := m.Called(ctx, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Answer), args.Error(1)
}

// MockMasteryRepository is a mock implementation of MasteryRepositoryInterface
type MockMasteryRepository struct {
	mock.Mock
}

func (m *MockMasteryRepository) Get(ctx context.Context, userID, documentID string) (*domain.MasteryRecord, error) {
	args := m.Called(ctx, userID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MasteryRecord), args.Error(1)
}

func (m *MockMasteryRepository) Create(ctx context.Context, record *domain.MasteryRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockMasteryRepository) UpdateVersioned(ctx context.Context, record *domain.MasteryRecord, expectedVersion int64) (bool, error) {
	args := m.Called(ctx, record, expectedVersion)
	return args.Bool(0), args.Error(1)
}

// MockIngestJobRepository is a mock implementation of IngestJobRepositoryInterface
type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockIngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) GetByDocument(ctx context.Context, documentID string) (*domain.IngestJob, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestJobRepository) IncrementRetries(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIngestJobRepository) Requeue(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

// MockCompletionClient is a mock implementation of CompletionClient
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt, jsonOutput)
	return args.String(0), args.Error(1)
}

// MockEmbeddingClient mocks both the single and batched embedding oracles
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// stubTxRepositories hands the test's mocks to transactional code.
type stubTxRepositories struct {
	documents *MockDocumentRepository
	chunks    *MockChunkRepository
	questions *MockQuestionRepository
	answers   *MockAnswerRepository
	mastery   *MockMasteryRepository
	jobs      *MockIngestJobRepository
}

func (s *stubTxRepositories) Documents() DocumentRepositoryInterface  { return s.documents }
func (s *stubTxRepositories) Chunks() ChunkRepositoryInterface       { return s.chunks }
func (s *stubTxRepositories) Questions() QuestionRepositoryInterface { return s.questions }
func (s *stubTxRepositories) Answers() AnswerRepositoryInterface     { return s.answers }
func (s *stubTxRepositories) Mastery() MasteryRepositoryInterface    { return s.mastery }
func (s *stubTxRepositories) IngestJobs() IngestJobRepositoryInterface {
	return s.jobs
}

// stubTxRunner runs the function directly against the stub repositories.
type stubTxRunner struct {
	repos *stubTxRepositories
}

func (r *stubTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(r.repos)
}

// fixedUUIDGen returns a deterministic sequence of ids.
type fixedUUIDGen struct {
	ids  []string
	next int
}

func (g *fixedUUIDGen) NewString() string {
	if g.next >= len(g.ids) {
		return "uuid-overflow"
	}
	id := g.ids[g.next]
	g.next++
	return id
}
