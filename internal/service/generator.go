package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
)

// CompletionClient is the text-generation oracle used by question generation
// and answer grading.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error)
}

// QuestionGenerator turns retrieved chunks into a clinical vignette plus
// question via the completion oracle, recording the chunks as provenance.
type QuestionGenerator struct {
	completion CompletionClient
	uuidGen    UUIDGenerator
}

func NewQuestionGenerator(completion CompletionClient) *QuestionGenerator {
	return &QuestionGenerator{
		completion: completion,
		uuidGen:    &DefaultUUIDGenerator{},
	}
}

func NewQuestionGeneratorWithUUIDGen(completion CompletionClient, uuidGen UUIDGenerator) *QuestionGenerator {
	return &QuestionGenerator{
		completion: completion,
		uuidGen:    uuidGen,
	}
}

// Generate produces an unanswered Question at the given difficulty from the
// chunk contents. If the oracle's first output cannot be decomposed into
// vignette and question fields, it retries once with a stricter prompt
// before failing with a generation parse error.
func (g *QuestionGenerator) Generate(ctx context.Context, documentID, userID string, difficulty int, chunks []domain.Chunk) (*domain.Question, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrInsufficientContent)
	}

	level := domain.ClampLevel(difficulty)
	prompt := strings.ReplaceAll(levelPrompts[level], "{context}", chunkContext(chunks))

	raw, err := g.completion.Complete(ctx, generationSystemPrompt, prompt, false)
	if err != nil {
		return nil, fmt.Errorf("failed to generate question: %w", err)
	}

	vignette, questionText, parseErr := parseGeneratedQuestion(raw)
	if parseErr != nil {
		raw, err = g.completion.Complete(ctx, generationSystemPrompt, prompt+"\n\n"+strictFormatReminder, false)
		if err != nil {
			return nil, fmt.Errorf("failed to generate question on retry: %w", err)
		}
		vignette, questionText, parseErr = parseGeneratedQuestion(raw)
		if parseErr != nil {
			return nil, fmt.Errorf("%v: %w", parseErr, domain.ErrGenerationParse)
		}
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}

	q := domain.NewQuestion(g.uuidGen.NewString(), documentID, userID, vignette, questionText, level, chunkIDs, time.Now().UTC())
	if err := domain.ValidateQuestion(q); err != nil {
		return nil, fmt.Errorf("generated question failed validation: %w", err)
	}
	return q, nil
}

// chunkContext assembles the prompt context block, one chunk per paragraph
// tagged with its page.
func chunkContext(chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[Page %d] %s", c.PageNumber, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

// parseGeneratedQuestion decomposes the oracle's labeled output into the
// vignette and question fields. Answer-choice lines stay part of the
// question text; the model answer and explanation are cut.
func parseGeneratedQuestion(raw string) (vignette, questionText string, err error) {
	vi := strings.Index(raw, "Vignette:")
	qi := strings.Index(raw, "Question:")
	if vi == -1 || qi == -1 || qi < vi {
		return "", "", fmt.Errorf("missing Vignette/Question labels in oracle output")
	}

	vignette = strings.TrimSpace(raw[vi+len("Vignette:") : qi])

	rest := raw[qi+len("Question:"):]
	if ai := strings.Index(rest, "Answer:"); ai != -1 {
		rest = rest[:ai]
	}
	questionText = strings.TrimSpace(rest)

	if vignette == "" || questionText == "" {
		return "", "", fmt.Errorf("empty vignette or question in oracle output")
	}
	return vignette, questionText, nil
}
