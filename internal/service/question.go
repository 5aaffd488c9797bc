package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/telemetry"
)

// RetrieverInterface abstracts difficulty-biased chunk retrieval.
type RetrieverInterface interface {
	Retrieve(ctx context.Context, documentID string, targetDifficulty int, excludeChunkIDs []string, k int) ([]domain.Chunk, error)
}

// GeneratorInterface abstracts question generation.
type GeneratorInterface interface {
	Generate(ctx context.Context, documentID, userID string, difficulty int, chunks []domain.Chunk) (*domain.Question, error)
}

// QuestionService produces the next question for a learner: look up their
// mastery level, retrieve chunks they have not been tested on at that level,
// generate, and store.
type QuestionService struct {
	documentRepo DocumentRepositoryInterface
	questionRepo QuestionRepositoryInterface
	masteryRepo  MasteryRepositoryInterface
	retriever    RetrieverInterface
	generator    GeneratorInterface
}

func NewQuestionService(documentRepo DocumentRepositoryInterface, questionRepo QuestionRepositoryInterface, masteryRepo MasteryRepositoryInterface, retriever RetrieverInterface, generator GeneratorInterface) *QuestionService {
	return &QuestionService{
		documentRepo: documentRepo,
		questionRepo: questionRepo,
		masteryRepo:  masteryRepo,
		retriever:    retriever,
		generator:    generator,
	}
}

// NextQuestion generates and stores a question at the learner's current
// level. Chunks already used by the learner's answered questions are
// excluded; once the document is exhausted the exclusion set is dropped and
// content recycles rather than surfacing a dead end.
func (s *QuestionService) NextQuestion(ctx context.Context, userID, documentID string) (*domain.Question, error) {
	ctx, span := telemetry.StartSpan(ctx, "QuestionService.NextQuestion", telemetry.SpanAttributes{
		UserID:     userID,
		DocumentID: documentID,
		Operation:  "next_question",
	})
	defer span.End()

	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsActive {
		return nil, domain.ErrDocumentInactive
	}

	level := domain.MinLevel
	mastery, err := s.masteryRepo.Get(ctx, userID, documentID)
	if err == nil {
		level = mastery.CurrentLevel
	} else if !errors.Is(err, domain.ErrMasteryNotFound) {
		return nil, err
	}

	exclude, err := s.questionRepo.ListAnsweredChunkIDs(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answered chunk ids: %w", err)
	}

	chunks, err := s.retriever.Retrieve(ctx, documentID, level, exclude, 0)
	if errors.Is(err, domain.ErrInsufficientContent) && len(exclude) > 0 {
		chunks, err = s.retriever.Retrieve(ctx, documentID, level, nil, 0)
	}
	if err != nil {
		return nil, err
	}

	question, err := s.generator.Generate(ctx, documentID, userID, level, chunks)
	if err != nil {
		return nil, err
	}

	if err := s.questionRepo.Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to store question: %w", err)
	}
	return question, nil
}
