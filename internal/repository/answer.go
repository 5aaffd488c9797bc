package repository

import (
	"context"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AnswerRepository struct {
	db dbtx
}

func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{db: pool}
}

func NewAnswerRepositoryWithTx(tx pgx.Tx) *AnswerRepository {
	return &AnswerRepository{db: tx}
}

func (r *AnswerRepository) Create(ctx context.Context, a *domain.Answer) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO answers
			(id, question_id, user_id, answer_text,
			 clinical_accuracy_score, risk_assessment_score, communication_score, efficiency_score, total_score,
			 feedback, strengths, improvements, model_used,
			 level_before, level_after, level_change, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.QuestionID, a.UserID, a.AnswerText,
		a.Scores.ClinicalAccuracy, a.Scores.RiskAssessment, a.Scores.Communication, a.Scores.Efficiency, a.Scores.Total,
		a.Feedback, a.Strengths, a.Improvements, nullableString(a.ModelUsed),
		a.LevelBefore, a.LevelAfter, a.LevelChange, a.CreatedAt,
	)
	return err
}

// ListByQuestion returns the answers recorded for a question, oldest first.
func (r *AnswerRepository) ListByQuestion(ctx context.Context, questionID string) ([]*domain.Answer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, question_id, user_id, answer_text,
		        clinical_accuracy_score, risk_assessment_score, communication_score, efficiency_score, total_score,
		        feedback, strengths, improvements, model_used,
		        level_before, level_after, level_change, created_at
		 FROM answers WHERE question_id = $1 ORDER BY created_at ASC`,
		questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnswerRows(rows)
}

func scanAnswerRows(rows pgx.Rows) ([]*domain.Answer, error) {
	var answers []*domain.Answer
	for rows.Next() {
		var a domain.Answer
		var modelUsed *string
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.AnswerText,
			&a.Scores.ClinicalAccuracy, &a.Scores.RiskAssessment, &a.Scores.Communication, &a.Scores.Efficiency, &a.Scores.Total,
			&a.Feedback, &a.Strengths, &a.Improvements, &modelUsed,
			&a.LevelBefore, &a.LevelAfter, &a.LevelChange, &a.CreatedAt); err != nil {
			return nil, err
		}
		if modelUsed != nil {
			a.ModelUsed = *modelUsed
		}
		answers = append(answers, &a)
	}
	return answers, rows.Err()
}
