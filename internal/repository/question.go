package repository

import (
	"context"
	"errors"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type QuestionRepository struct {
	db dbtx
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{db: pool}
}

func NewQuestionRepositoryWithTx(tx pgx.Tx) *QuestionRepository {
	return &QuestionRepository{db: tx}
}

func (r *QuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO questions (id, document_id, user_id, vignette, question_text, difficulty_level, source_chunk_ids, was_answered, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.DocumentID, nullableString(q.UserID), q.Vignette, q.QuestionText, q.DifficultyLevel, q.SourceChunkIDs, q.WasAnswered, q.CreatedAt,
	)
	return err
}

func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	var q domain.Question
	var userID *string
	err := r.db.QueryRow(ctx,
		`SELECT id, document_id, user_id, vignette, question_text, difficulty_level, source_chunk_ids, was_answered, created_at
		 FROM questions WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.DocumentID, &userID, &q.Vignette, &q.QuestionText, &q.DifficultyLevel, &q.SourceChunkIDs, &q.WasAnswered, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, err
	}
	if userID != nil {
		q.UserID = *userID
	}
	return &q, nil
}

// MarkAnswered flips was_answered exactly once. Returns
// ErrQuestionAlreadyAnswered if another submission got there first, so a
// question accepts at most one scored answer.
func (r *QuestionRepository) MarkAnswered(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE questions SET was_answered = TRUE WHERE id = $1 AND was_answered = FALSE`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if existing.WasAnswered {
			return domain.ErrQuestionAlreadyAnswered
		}
		return domain.ErrQuestionNotFound
	}
	return nil
}

// ListAnsweredChunkIDs returns the source chunk ids of every answered
// question a user has seen for a document, used as the retrieval exclusion
// set.
func (r *QuestionRepository) ListAnsweredChunkIDs(ctx context.Context, userID, documentID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT source_chunk_ids FROM questions
		 WHERE document_id = $1 AND user_id = $2 AND was_answered`,
		documentID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var ids []string
	for rows.Next() {
		var chunkIDs []string
		if err := rows.Scan(&chunkIDs); err != nil {
			return nil, err
		}
		for _, id := range chunkIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}
