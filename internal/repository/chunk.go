package repository

import (
	"context"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence and vector search of document chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// InsertChunks writes a document's chunk set. Callers run this inside the
// ingestion transaction so a failure leaves no partial chunks queryable.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks
				(id, document_id, chunk_index, content, embedding, page_number, section_header, chunk_type, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID,
			c.DocumentID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			c.PageNumber,
			nullableString(c.SectionHeader),
			c.Type,
			createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Search runs a cosine-similarity query scoped to one document, excluding the
// given chunk ids and anything below the similarity floor. Ties fall back to
// lowest chunk id for determinism.
func (r *ChunkRepository) Search(ctx context.Context, query service.ChunkSearchQuery) ([]service.ChunkMatch, error) {
	if query.TopK <= 0 {
		query.TopK = 10
	}

	excludeIDs := query.ExcludeChunkIDs
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	vec := pgvector.NewVector(query.Vector)
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, chunk_index, content, page_number, section_header, chunk_type,
		        1 - (embedding <=> $1) AS similarity
		 FROM document_chunks
		 WHERE document_id = $2
		   AND NOT (id = ANY($3))
		   AND 1 - (embedding <=> $1) >= $4
		 ORDER BY embedding <=> $1 ASC, id ASC
		 LIMIT $5`,
		vec, query.DocumentID, excludeIDs, query.MinSimilarity, query.TopK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []service.ChunkMatch
	for rows.Next() {
		var m service.ChunkMatch
		var section *string
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.ChunkIndex, &m.Chunk.Content,
			&m.Chunk.PageNumber, &section, &m.Chunk.Type, &m.Similarity); err != nil {
			return nil, err
		}
		if section != nil {
			m.Chunk.SectionHeader = *section
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// GetByIDs fetches chunks by id, preserving the requested order.
func (r *ChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return []domain.Chunk{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, chunk_index, content, page_number, section_header, chunk_type, created_at
		 FROM document_chunks WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]domain.Chunk, len(ids))
	for rows.Next() {
		var c domain.Chunk
		var section *string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.PageNumber, &section, &c.Type, &c.CreatedAt); err != nil {
			return nil, err
		}
		if section != nil {
			c.SectionHeader = *section
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// CountByDocument returns the number of chunks stored for a document.
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// DeleteByDocument drops a document's chunks, used when retrying a failed
// ingestion.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}
