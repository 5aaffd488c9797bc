package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinsim-ai/clinsim/internal/api"
	"github.com/clinsim-ai/clinsim/internal/api/middleware"
	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/service"
	"github.com/go-chi/chi/v5"
)

type QuestionService interface {
	NextQuestion(ctx context.Context, userID, documentID string) (*domain.Question, error)
}

type GradingService interface {
	SubmitAnswer(ctx context.Context, userID, questionID, answerText string) (*service.SubmitResult, error)
}

type MasteryService interface {
	Progress(ctx context.Context, userID, documentID string) (*domain.MasteryRecord, error)
}

// SimulatorHandler drives a learner's session: generate the next question at
// the learner's level, grade free-text answers, and report progress.
type SimulatorHandler struct {
	questions QuestionService
	grading   GradingService
	mastery   MasteryService
}

func NewSimulatorHandler(questions QuestionService, grading GradingService, mastery MasteryService) *SimulatorHandler {
	return &SimulatorHandler{
		questions: questions,
		grading:   grading,
		mastery:   mastery,
	}
}

type QuestionResponse struct {
	ID              string   `json:"id"`
	DocumentID      string   `json:"document_id"`
	Vignette        string   `json:"vignette"`
	QuestionText    string   `json:"question_text"`
	DifficultyLevel int      `json:"difficulty_level"`
	SourceChunkIDs  []string `json:"source_chunk_ids"`
	CreatedAt       string   `json:"created_at"`
}

func questionToResponse(q *domain.Question) *QuestionResponse {
	return &QuestionResponse{
		ID:              q.ID,
		DocumentID:      q.DocumentID,
		Vignette:        q.Vignette,
		QuestionText:    q.QuestionText,
		DifficultyLevel: q.DifficultyLevel,
		SourceChunkIDs:  q.SourceChunkIDs,
		CreatedAt:       q.CreatedAt.Format(time.RFC3339),
	}
}

func (h *SimulatorHandler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "documentID")
	if documentID == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	question, err := h.questions.NextQuestion(r.Context(), userID, documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, questionToResponse(question))
}

type SubmitAnswerRequest struct {
	AnswerText string `json:"answer_text"`
}

type ScoreResponse struct {
	ClinicalAccuracy float64 `json:"clinical_accuracy"`
	RiskAssessment   float64 `json:"risk_assessment"`
	Communication    float64 `json:"communication"`
	Efficiency       float64 `json:"efficiency"`
	Total            float64 `json:"total"`
}

type AnswerResponse struct {
	ID           string        `json:"id"`
	QuestionID   string        `json:"question_id"`
	Scores       ScoreResponse `json:"scores"`
	Feedback     string        `json:"feedback"`
	Strengths    []string      `json:"strengths"`
	Improvements []string      `json:"improvements"`
	LevelBefore  int           `json:"level_before"`
	LevelAfter   int           `json:"level_after"`
	LevelChange  int           `json:"level_change"`
	CreatedAt    string        `json:"created_at"`
}

type MasteryResponse struct {
	DocumentID        string  `json:"document_id"`
	CurrentLevel      int     `json:"current_level"`
	QuestionsAnswered int     `json:"questions_answered"`
	QuestionsCorrect  int     `json:"questions_correct"`
	AvgScore          float64 `json:"avg_score"`
	AvgClinicalAcc    float64 `json:"avg_clinical_accuracy"`
	AvgRiskAssessment float64 `json:"avg_risk_assessment"`
	AvgCommunication  float64 `json:"avg_communication"`
	AvgEfficiency     float64 `json:"avg_efficiency"`
	LastActive        string  `json:"last_active,omitempty"`
}

// GuidelineReference echoes the guideline passage a graded answer was
// scored against, truncated so responses stay small.
type GuidelineReference struct {
	Content string `json:"content"`
	Page    int    `json:"page"`
}

const referenceExcerptLen = 200

type SubmitAnswerResponse struct {
	Answer     *AnswerResponse      `json:"answer"`
	Mastery    *MasteryResponse     `json:"mastery"`
	References []GuidelineReference `json:"references"`
}

func referencesFor(chunks []domain.Chunk) []GuidelineReference {
	refs := make([]GuidelineReference, 0, len(chunks))
	for _, c := range chunks {
		content := c.Content
		if r := []rune(content); len(r) > referenceExcerptLen {
			content = string(r[:referenceExcerptLen])
		}
		refs = append(refs, GuidelineReference{Content: content, Page: c.PageNumber})
	}
	return refs
}

func answerToResponse(a *domain.Answer) *AnswerResponse {
	return &AnswerResponse{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		Scores: ScoreResponse{
			ClinicalAccuracy: a.Scores.ClinicalAccuracy,
			RiskAssessment:   a.Scores.RiskAssessment,
			Communication:    a.Scores.Communication,
			Efficiency:       a.Scores.Efficiency,
			Total:            a.Scores.Total,
		},
		Feedback:     a.Feedback,
		Strengths:    a.Strengths,
		Improvements: a.Improvements,
		LevelBefore:  a.LevelBefore,
		LevelAfter:   a.LevelAfter,
		LevelChange:  a.LevelChange,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}

func masteryToResponse(m *domain.MasteryRecord) *MasteryResponse {
	resp := &MasteryResponse{
		DocumentID:        m.DocumentID,
		CurrentLevel:      m.CurrentLevel,
		QuestionsAnswered: m.QuestionsAnswered,
		QuestionsCorrect:  m.QuestionsCorrect,
		AvgScore:          m.AvgScore,
		AvgClinicalAcc:    m.AvgClinicalAcc,
		AvgRiskAssessment: m.AvgRiskAssessment,
		AvgCommunication:  m.AvgCommunication,
		AvgEfficiency:     m.AvgEfficiency,
	}
	if !m.LastActive.IsZero() {
		resp.LastActive = m.LastActive.Format(time.RFC3339)
	}
	return resp
}

func (h *SimulatorHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	questionID := chi.URLParam(r, "questionID")
	if questionID == "" {
		api.Error(w, http.StatusBadRequest, "question id is required")
		return
	}

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AnswerText == "" {
		api.Error(w, http.StatusBadRequest, "answer_text is required")
		return
	}

	result, err := h.grading.SubmitAnswer(r.Context(), userID, questionID, req.AnswerText)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SubmitAnswerResponse{
		Answer:     answerToResponse(result.Answer),
		Mastery:    masteryToResponse(result.Mastery),
		References: referencesFor(result.SourceChunks),
	})
}

func (h *SimulatorHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "documentID")
	if documentID == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	record, err := h.mastery.Progress(r.Context(), userID, documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, masteryToResponse(record))
}
