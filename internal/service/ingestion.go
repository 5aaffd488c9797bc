package service

import (
	"context"
	"fmt"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/ingest"
	"github.com/clinsim-ai/clinsim/internal/telemetry"
)

// EmbeddingClient is the batched embedding oracle used during ingestion.
type EmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// embedBatchSize bounds how many chunk texts go into one embedding request.
const embedBatchSize = 64

// IngestionService turns a stored document into its embedded chunk set.
// Ingestion is all-or-nothing per document: chunks land in a single
// transaction after every embedding succeeded, so a partial set is never
// queryable.
type IngestionService struct {
	documentRepo DocumentRepositoryInterface
	embedder     EmbeddingClient
	txRunner     TxRunner
	chunkCfg     ingest.ChunkConfig
	uuidGen      UUIDGenerator
}

func NewIngestionService(documentRepo DocumentRepositoryInterface, embedder EmbeddingClient, txRunner TxRunner, chunkCfg ingest.ChunkConfig) *IngestionService {
	return &IngestionService{
		documentRepo: documentRepo,
		embedder:     embedder,
		txRunner:     txRunner,
		chunkCfg:     chunkCfg,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

func NewIngestionServiceWithUUIDGen(documentRepo DocumentRepositoryInterface, embedder EmbeddingClient, txRunner TxRunner, chunkCfg ingest.ChunkConfig, uuidGen UUIDGenerator) *IngestionService {
	s := NewIngestionService(documentRepo, embedder, txRunner, chunkCfg)
	s.uuidGen = uuidGen
	return s
}

// IngestDocument chunks, classifies, and embeds one document, then replaces
// its chunk set atomically. Safe to re-run: a retried job deletes whatever
// an earlier completed run left behind before inserting.
func (s *IngestionService) IngestDocument(ctx context.Context, documentID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.IngestDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return 0, err
	}

	drafts := ingest.Split(doc.Content, s.chunkCfg)
	if len(drafts) == 0 {
		return 0, fmt.Errorf("document %s has no chunkable content: %w", documentID, domain.ErrInsufficientContent)
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Content
	}

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(drafts))
	for i, d := range drafts {
		chunks[i] = domain.Chunk{
			ID:            s.uuidGen.NewString(),
			DocumentID:    documentID,
			ChunkIndex:    d.Index,
			Content:       d.Content,
			Embedding:     vectors[i],
			PageNumber:    d.PageNumber,
			SectionHeader: d.SectionHeader,
			Type:          d.Type,
			CreatedAt:     now,
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByDocument(ctx, documentID); err != nil {
			return err
		}
		return repos.Chunks().InsertChunks(ctx, chunks)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store chunks for document %s: %w", documentID, err)
	}
	return len(chunks), nil
}

// embedAll runs the embedding oracle over the chunk texts in bounded
// batches. Any failure aborts the whole ingestion; the gateway has already
// retried transient errors with backoff.
func (s *IngestionService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := s.embedder.GenerateEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts: %w", len(batch), end-start, domain.ErrEmbeddingUnavailable)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
