package repository

import (
	"context"
	"errors"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MasteryRepository persists per-(user, document) mastery records. Updates
// use optimistic concurrency: the version column must match the value the
// record was read at or the write is rejected.
type MasteryRepository struct {
	db dbtx
}

func NewMasteryRepository(pool *pgxpool.Pool) *MasteryRepository {
	return &MasteryRepository{db: pool}
}

func NewMasteryRepositoryWithTx(tx pgx.Tx) *MasteryRepository {
	return &MasteryRepository{db: tx}
}

func (r *MasteryRepository) Get(ctx context.Context, userID, documentID string) (*domain.MasteryRecord, error) {
	var m domain.MasteryRecord
	err := r.db.QueryRow(ctx,
		`SELECT user_id, document_id, current_level, questions_answered, questions_correct,
		        avg_score, avg_clinical_accuracy, avg_risk_assessment, avg_communication, avg_efficiency,
		        last_active, version, created_at
		 FROM mastery_records WHERE user_id = $1 AND document_id = $2`,
		userID, documentID,
	).Scan(&m.UserID, &m.DocumentID, &m.CurrentLevel, &m.QuestionsAnswered, &m.QuestionsCorrect,
		&m.AvgScore, &m.AvgClinicalAcc, &m.AvgRiskAssessment, &m.AvgCommunication, &m.AvgEfficiency,
		&m.LastActive, &m.Version, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMasteryNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Create inserts the initial record. A concurrent first submission may race
// here; ON CONFLICT DO NOTHING lets the loser re-read and retry.
func (r *MasteryRepository) Create(ctx context.Context, m *domain.MasteryRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO mastery_records
			(user_id, document_id, current_level, questions_answered, questions_correct,
			 avg_score, avg_clinical_accuracy, avg_risk_assessment, avg_communication, avg_efficiency,
			 last_active, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (user_id, document_id) DO NOTHING`,
		m.UserID, m.DocumentID, m.CurrentLevel, m.QuestionsAnswered, m.QuestionsCorrect,
		m.AvgScore, m.AvgClinicalAcc, m.AvgRiskAssessment, m.AvgCommunication, m.AvgEfficiency,
		m.LastActive, m.Version, m.CreatedAt,
	)
	return err
}

// UpdateVersioned writes the full mutated record in one statement, guarded by
// the version read before mutation. Returns false when another writer won the
// race; the caller re-reads and retries.
func (r *MasteryRepository) UpdateVersioned(ctx context.Context, m *domain.MasteryRecord, expectedVersion int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE mastery_records
		 SET current_level = $1,
		     questions_answered = $2,
		     questions_correct = $3,
		     avg_score = $4,
		     avg_clinical_accuracy = $5,
		     avg_risk_assessment = $6,
		     avg_communication = $7,
		     avg_efficiency = $8,
		     last_active = $9,
		     version = $10
		 WHERE user_id = $11 AND document_id = $12 AND version = $13`,
		m.CurrentLevel, m.QuestionsAnswered, m.QuestionsCorrect,
		m.AvgScore, m.AvgClinicalAcc, m.AvgRiskAssessment, m.AvgCommunication, m.AvgEfficiency,
		m.LastActive, expectedVersion+1,
		m.UserID, m.DocumentID, expectedVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	m.Version = expectedVersion + 1
	return true, nil
}
