//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredAnswer(questionID, userID string, createdAt time.Time) *domain.Answer {
	return &domain.Answer{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		UserID:     userID,
		AnswerText: "Start broad-spectrum antibiotics and obtain cultures first.",
		Scores: domain.ScoreBreakdown{
			ClinicalAccuracy: 3.5,
			RiskAssessment:   2.0,
			Communication:    1.5,
			Efficiency:       1.5,
			Total:            8.5,
		},
		Feedback:     "Strong prioritization of time-critical interventions.",
		Strengths:    []string{"antibiotic timing"},
		Improvements: []string{"mention source control"},
		ModelUsed:    "gpt-4o-mini",
		LevelBefore:  2,
		LevelAfter:   3,
		LevelChange:  1,
		CreatedAt:    createdAt.UTC().Truncate(time.Microsecond),
	}
}

func TestAnswerRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	questionRepo := NewQuestionRepository(pool)
	answerRepo := NewAnswerRepository(pool)

	doc := newStoredDocument("Guideline", time.Now())
	require.NoError(t, docRepo.Create(ctx, doc))

	q := newStoredQuestion(doc.ID, "user-1", []string{"chunk-1"})
	require.NoError(t, questionRepo.Create(ctx, q))

	a := newStoredAnswer(q.ID, "user-1", time.Now())
	require.NoError(t, answerRepo.Create(ctx, a))

	answers, err := answerRepo.ListByQuestion(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)

	got := answers[0]
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, q.ID, got.QuestionID)
	assert.Equal(t, a.AnswerText, got.AnswerText)
	assert.Equal(t, 3.5, got.Scores.ClinicalAccuracy)
	assert.Equal(t, 8.5, got.Scores.Total)
	assert.Equal(t, []string{"antibiotic timing"}, got.Strengths)
	assert.Equal(t, []string{"mention source control"}, got.Improvements)
	assert.Equal(t, "gpt-4o-mini", got.ModelUsed)
	assert.Equal(t, 2, got.LevelBefore)
	assert.Equal(t, 3, got.LevelAfter)
	assert.Equal(t, 1, got.LevelChange)
}

func TestAnswerRepository_ListByQuestion_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	answerRepo := NewAnswerRepository(pool)

	answers, err := answerRepo.ListByQuestion(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, answers)
}
