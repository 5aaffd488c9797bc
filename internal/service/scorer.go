package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clinsim-ai/clinsim/internal/domain"
)

// AnswerScorer grades free-text answers against the four-dimension rubric
// via the completion oracle in JSON mode. Parse failures are hard errors: a
// defaulted score would corrupt mastery state.
type AnswerScorer struct {
	completion CompletionClient
	model      string
}

func NewAnswerScorer(completion CompletionClient, model string) *AnswerScorer {
	return &AnswerScorer{
		completion: completion,
		model:      model,
	}
}

// ScoringResult is a parsed, clamped rubric evaluation.
type ScoringResult struct {
	Scores       domain.ScoreBreakdown
	Feedback     string
	Strengths    []string
	Improvements []string
	ModelUsed    string
}

type gradingResponse struct {
	ClinicalAccuracyScore float64  `json:"clinical_accuracy_score"`
	RiskAssessmentScore   float64  `json:"risk_assessment_score"`
	CommunicationScore    float64  `json:"communication_score"`
	EfficiencyScore       float64  `json:"efficiency_score"`
	TotalScore            float64  `json:"total_score"`
	Feedback              string   `json:"feedback"`
	Strengths             []string `json:"strengths"`
	AreasForImprovement   []string `json:"areas_for_improvement"`
}

// Score grades one answer. Sub-scores are clamped to their declared ranges
// and the total is recomputed as the component sum; the oracle's stated
// total is discarded.
func (s *AnswerScorer) Score(ctx context.Context, question *domain.Question, chunks []domain.Chunk, answerText string) (*ScoringResult, error) {
	raw, err := s.completion.Complete(ctx, gradingSystemPrompt, gradingPrompt(question, chunks, answerText), true)
	if err != nil {
		return nil, fmt.Errorf("failed to score answer: %w", err)
	}

	parsed, parseErr := parseGradingResponse(raw)
	if parseErr != nil {
		return nil, fmt.Errorf("%v: %w", parseErr, domain.ErrScoringParse)
	}

	scores := domain.ScoreBreakdown{
		ClinicalAccuracy: parsed.ClinicalAccuracyScore,
		RiskAssessment:   parsed.RiskAssessmentScore,
		Communication:    parsed.CommunicationScore,
		Efficiency:       parsed.EfficiencyScore,
	}.Clamp()

	return &ScoringResult{
		Scores:       scores,
		Feedback:     parsed.Feedback,
		Strengths:    parsed.Strengths,
		Improvements: parsed.AreasForImprovement,
		ModelUsed:    s.model,
	}, nil
}

func gradingPrompt(question *domain.Question, chunks []domain.Chunk, answerText string) string {
	var b strings.Builder
	b.WriteString("CLINICAL SCENARIO:\n")
	b.WriteString(question.Vignette)
	b.WriteString("\n\n")
	b.WriteString(question.QuestionText)
	b.WriteString("\n\nUSER'S ANSWER:\n")
	b.WriteString(answerText)
	b.WriteString("\n\nGUIDELINE REFERENCE:\n")
	b.WriteString(chunkContext(chunks))
	b.WriteString("\n\nEvaluate this answer using the 4-domain rubric. Remember: clinical correctness alone is not enough.\n\nRespond with JSON only, no additional text.")
	return b.String()
}

// parseGradingResponse is the single parse boundary for grading output.
func parseGradingResponse(raw string) (*gradingResponse, error) {
	var parsed gradingResponse
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("invalid grading JSON: %v", err)
	}
	if parsed.Feedback == "" {
		return nil, fmt.Errorf("grading response missing feedback")
	}
	return &parsed, nil
}

// stripJSONFences removes a markdown code fence if the oracle wrapped its
// JSON in one.
func stripJSONFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
