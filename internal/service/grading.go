package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/telemetry"
)

// ScorerInterface abstracts the answer scorer for testing.
type ScorerInterface interface {
	Score(ctx context.Context, question *domain.Question, chunks []domain.Chunk, answerText string) (*ScoringResult, error)
}

// masteryRetryAttempts bounds the optimistic-concurrency retry loop for
// concurrent submissions against the same (user, document) record.
const masteryRetryAttempts = 3

var errMasteryRetry = errors.New("mastery version conflict, retrying with fresh read")

// GradingService runs the answer submission flow: score the answer against
// its question's source chunks, then atomically mark the question answered,
// fold the score into the mastery record, and persist the Answer. The
// mastery read-modify-write is guarded by a version check and retried with
// fresh reads on conflict.
type GradingService struct {
	scorer       ScorerInterface
	questionRepo QuestionRepositoryInterface
	chunkRepo    ChunkRepositoryInterface
	txRunner     TxRunner
	policy       domain.LevelPolicy
	uuidGen      UUIDGenerator
}

func NewGradingService(scorer ScorerInterface, questionRepo QuestionRepositoryInterface, chunkRepo ChunkRepositoryInterface, txRunner TxRunner, policy domain.LevelPolicy) *GradingService {
	return &GradingService{
		scorer:       scorer,
		questionRepo: questionRepo,
		chunkRepo:    chunkRepo,
		txRunner:     txRunner,
		policy:       policy,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

func NewGradingServiceWithUUIDGen(scorer ScorerInterface, questionRepo QuestionRepositoryInterface, chunkRepo ChunkRepositoryInterface, txRunner TxRunner, policy domain.LevelPolicy, uuidGen UUIDGenerator) *GradingService {
	s := NewGradingService(scorer, questionRepo, chunkRepo, txRunner, policy)
	s.uuidGen = uuidGen
	return s
}

// SubmitResult is the outcome of a scored submission.
type SubmitResult struct {
	Answer       *domain.Answer
	Mastery      *domain.MasteryRecord
	SourceChunks []domain.Chunk
}

// SubmitAnswer scores and records a learner's answer. The oracle call runs
// outside the transaction; everything state-changing commits atomically or
// not at all.
func (s *GradingService) SubmitAnswer(ctx context.Context, userID, questionID, answerText string) (*SubmitResult, error) {
	if answerText == "" {
		return nil, fmt.Errorf("answer text is required: %w", domain.ErrMissingRequiredField)
	}

	ctx, span := telemetry.StartSpan(ctx, "GradingService.SubmitAnswer", telemetry.SpanAttributes{
		UserID:     userID,
		QuestionID: questionID,
		Operation:  "submit_answer",
	})
	defer span.End()

	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	// A user-scoped question is invisible to other users.
	if question.UserID != "" && question.UserID != userID {
		return nil, domain.ErrQuestionNotFound
	}
	if question.WasAnswered {
		return nil, domain.ErrQuestionAlreadyAnswered
	}

	chunks, err := s.chunkRepo.GetByIDs(ctx, question.SourceChunkIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load source chunks: %w", err)
	}

	scoring, err := s.scorer.Score(ctx, question, chunks, answerText)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < masteryRetryAttempts; attempt++ {
		result, err := s.commitSubmission(ctx, userID, question, answerText, scoring)
		if err == nil {
			result.SourceChunks = chunks
			return result, nil
		}
		if !errors.Is(err, errMasteryRetry) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("user %s document %s: %w", userID, question.DocumentID, domain.ErrMasteryConflict)
}

// commitSubmission is one optimistic attempt. A version conflict rolls the
// whole transaction back, including the was_answered flip, so the next
// attempt starts clean.
func (s *GradingService) commitSubmission(ctx context.Context, userID string, question *domain.Question, answerText string, scoring *ScoringResult) (*SubmitResult, error) {
	var result *SubmitResult

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		now := time.Now().UTC()

		if err := repos.Questions().MarkAnswered(ctx, question.ID); err != nil {
			return err
		}

		mastery, err := s.loadOrCreateMastery(ctx, repos.Mastery(), userID, question.DocumentID, now)
		if err != nil {
			return err
		}

		expectedVersion := mastery.Version
		levelBefore := mastery.CurrentLevel
		levelChange := mastery.Apply(scoring.Scores, s.policy, now)

		ok, err := repos.Mastery().UpdateVersioned(ctx, mastery, expectedVersion)
		if err != nil {
			return err
		}
		if !ok {
			return errMasteryRetry
		}

		answer := &domain.Answer{
			ID:           s.uuidGen.NewString(),
			QuestionID:   question.ID,
			UserID:       userID,
			AnswerText:   answerText,
			Scores:       scoring.Scores,
			Feedback:     scoring.Feedback,
			Strengths:    scoring.Strengths,
			Improvements: scoring.Improvements,
			ModelUsed:    scoring.ModelUsed,
			LevelBefore:  levelBefore,
			LevelAfter:   mastery.CurrentLevel,
			LevelChange:  levelChange,
			CreatedAt:    now,
		}
		if err := domain.ValidateAnswer(answer); err != nil {
			return fmt.Errorf("scored answer failed validation: %w", err)
		}
		if err := repos.Answers().Create(ctx, answer); err != nil {
			return err
		}

		result = &SubmitResult{Answer: answer, Mastery: mastery}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// loadOrCreateMastery reads the record, inserting the initial level-1 row on
// first interaction. The insert is ON CONFLICT DO NOTHING, so a racing first
// submission falls through to the re-read.
func (s *GradingService) loadOrCreateMastery(ctx context.Context, repo MasteryRepositoryInterface, userID, documentID string, now time.Time) (*domain.MasteryRecord, error) {
	mastery, err := repo.Get(ctx, userID, documentID)
	if err == nil {
		return mastery, nil
	}
	if !errors.Is(err, domain.ErrMasteryNotFound) {
		return nil, err
	}

	if err := repo.Create(ctx, domain.NewMasteryRecord(userID, documentID, now)); err != nil {
		return nil, err
	}
	return repo.Get(ctx, userID, documentID)
}
