package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockQuestionService struct {
	mock.Mock
}

func (m *MockQuestionService) NextQuestion(ctx context.Context, userID, documentID string) (*domain.Question, error) {
	args := m.Called(ctx, userID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Question), args.Error(1)
}

type MockGradingService struct {
	mock.Mock
}

func (m *MockGradingService) SubmitAnswer(ctx context.Context, userID, questionID, answerText string) (*service.SubmitResult, error) {
	args := m.Called(ctx, userID, questionID, answerText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SubmitResult), args.Error(1)
}

type MockMasteryService struct {
	mock.Mock
}

func (m *MockMasteryService) Progress(ctx context.Context, userID, documentID string) (*domain.MasteryRecord, error) {
	args := m.Called(ctx, userID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MasteryRecord), args.Error(1)
}

func newSimulatorHandler() (*SimulatorHandler, *MockQuestionService, *MockGradingService, *MockMasteryService) {
	questions := new(MockQuestionService)
	grading := new(MockGradingService)
	mastery := new(MockMasteryService)
	return NewSimulatorHandler(questions, grading, mastery), questions, grading, mastery
}

func newTestQuestion() *domain.Question {
	return &domain.Question{
		ID:              "q-123",
		DocumentID:      "doc-123",
		UserID:          "user-456",
		Vignette:        "A 67-year-old man presents with fever and hypotension.",
		QuestionText:    "What is your immediate management priority?",
		DifficultyLevel: 3,
		SourceChunkIDs:  []string{"chunk-1", "chunk-2"},
		CreatedAt:       time.Now().UTC(),
	}
}

func TestSimulatorHandler_NextQuestion_Success(t *testing.T) {
	handler, questions, _, _ := newSimulatorHandler()

	questions.On("NextQuestion", mock.Anything, "user-456", "doc-123").Return(newTestQuestion(), nil)

	req := requestWithUserID(http.MethodPost, "/simulator/documents/doc-123/questions", nil)
	req = withURLParam(req, "documentID", "doc-123")
	w := httptest.NewRecorder()

	handler.NextQuestion(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "q-123", data["id"])
	assert.Equal(t, float64(3), data["difficulty_level"])
	assert.Len(t, data["source_chunk_ids"].([]interface{}), 2)
	questions.AssertExpectations(t)
}

func TestSimulatorHandler_NextQuestion_Unauthorized(t *testing.T) {
	handler, _, _, _ := newSimulatorHandler()

	req := httptest.NewRequest(http.MethodPost, "/simulator/documents/doc-123/questions", nil)
	req = withURLParam(req, "documentID", "doc-123")
	w := httptest.NewRecorder()

	handler.NextQuestion(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSimulatorHandler_NextQuestion_InactiveDocument(t *testing.T) {
	handler, questions, _, _ := newSimulatorHandler()

	questions.On("NextQuestion", mock.Anything, "user-456", "doc-123").Return(nil, domain.ErrDocumentInactive)

	req := requestWithUserID(http.MethodPost, "/simulator/documents/doc-123/questions", nil)
	req = withURLParam(req, "documentID", "doc-123")
	w := httptest.NewRecorder()

	handler.NextQuestion(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	questions.AssertExpectations(t)
}

func TestSimulatorHandler_NextQuestion_EmptyDocument(t *testing.T) {
	handler, questions, _, _ := newSimulatorHandler()

	questions.On("NextQuestion", mock.Anything, "user-456", "doc-empty").Return(nil, domain.ErrInsufficientContent)

	req := requestWithUserID(http.MethodPost, "/simulator/documents/doc-empty/questions", nil)
	req = withURLParam(req, "documentID", "doc-empty")
	w := httptest.NewRecorder()

	handler.NextQuestion(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	questions.AssertExpectations(t)
}

func TestSimulatorHandler_SubmitAnswer_Success(t *testing.T) {
	handler, _, grading, _ := newSimulatorHandler()

	result := &service.SubmitResult{
		Answer: &domain.Answer{
			ID:         "a-123",
			QuestionID: "q-123",
			UserID:     "user-456",
			AnswerText: "Start IV fluids and broad-spectrum antibiotics.",
			Scores: domain.ScoreBreakdown{
				ClinicalAccuracy: 4.0,
				RiskAssessment:   3.0,
				Communication:    1.0,
				Efficiency:       0.5,
				Total:            8.5,
			},
			Feedback:    "Strong sepsis bundle.",
			LevelBefore: 2,
			LevelAfter:  3,
			LevelChange: 1,
			CreatedAt:   time.Now().UTC(),
		},
		Mastery: &domain.MasteryRecord{
			UserID:            "user-456",
			DocumentID:        "doc-123",
			CurrentLevel:      3,
			QuestionsAnswered: 5,
			QuestionsCorrect:  4,
			AvgScore:          7.8,
			LastActive:        time.Now().UTC(),
		},
		SourceChunks: []domain.Chunk{
			{ID: "chunk-1", Content: "Begin fluid resuscitation within the first hour of recognized sepsis.", PageNumber: 12},
			{ID: "chunk-2", Content: strings.Repeat("Administer broad-spectrum antibiotics promptly. ", 10), PageNumber: 14},
		},
	}
	grading.On("SubmitAnswer", mock.Anything, "user-456", "q-123", "Start IV fluids and broad-spectrum antibiotics.").Return(result, nil)

	body := `{"answer_text":"Start IV fluids and broad-spectrum antibiotics."}`
	req := requestWithUserID(http.MethodPost, "/simulator/questions/q-123/answers", []byte(body))
	req = withURLParam(req, "questionID", "q-123")
	w := httptest.NewRecorder()

	handler.SubmitAnswer(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	answer := data["answer"].(map[string]interface{})
	scores := answer["scores"].(map[string]interface{})
	assert.Equal(t, 8.5, scores["total"])
	assert.Equal(t, float64(1), answer["level_change"])
	mastery := data["mastery"].(map[string]interface{})
	assert.Equal(t, float64(3), mastery["current_level"])
	refs := data["references"].([]interface{})
	require.Len(t, refs, 2)
	first := refs[0].(map[string]interface{})
	assert.Equal(t, "Begin fluid resuscitation within the first hour of recognized sepsis.", first["content"])
	assert.Equal(t, float64(12), first["page"])
	second := refs[1].(map[string]interface{})
	assert.Len(t, second["content"].(string), referenceExcerptLen)
	assert.Equal(t, float64(14), second["page"])
	grading.AssertExpectations(t)
}

func TestSimulatorHandler_SubmitAnswer_EmptyAnswer(t *testing.T) {
	handler, _, grading, _ := newSimulatorHandler()

	body := `{"answer_text":""}`
	req := requestWithUserID(http.MethodPost, "/simulator/questions/q-123/answers", []byte(body))
	req = withURLParam(req, "questionID", "q-123")
	w := httptest.NewRecorder()

	handler.SubmitAnswer(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "answer_text is required")
	grading.AssertNotCalled(t, "SubmitAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSimulatorHandler_SubmitAnswer_AlreadyAnswered(t *testing.T) {
	handler, _, grading, _ := newSimulatorHandler()

	grading.On("SubmitAnswer", mock.Anything, "user-456", "q-123", "my answer").
		Return(nil, domain.ErrQuestionAlreadyAnswered)

	body := `{"answer_text":"my answer"}`
	req := requestWithUserID(http.MethodPost, "/simulator/questions/q-123/answers", []byte(body))
	req = withURLParam(req, "questionID", "q-123")
	w := httptest.NewRecorder()

	handler.SubmitAnswer(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	grading.AssertExpectations(t)
}

func TestSimulatorHandler_SubmitAnswer_ScoringUnparseable(t *testing.T) {
	handler, _, grading, _ := newSimulatorHandler()

	grading.On("SubmitAnswer", mock.Anything, "user-456", "q-123", "my answer").
		Return(nil, domain.ErrScoringParse)

	body := `{"answer_text":"my answer"}`
	req := requestWithUserID(http.MethodPost, "/simulator/questions/q-123/answers", []byte(body))
	req = withURLParam(req, "questionID", "q-123")
	w := httptest.NewRecorder()

	handler.SubmitAnswer(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	grading.AssertExpectations(t)
}

func TestSimulatorHandler_Progress_Success(t *testing.T) {
	handler, _, _, mastery := newSimulatorHandler()

	record := &domain.MasteryRecord{
		UserID:            "user-456",
		DocumentID:        "doc-123",
		CurrentLevel:      4,
		QuestionsAnswered: 12,
		QuestionsCorrect:  9,
		AvgScore:          8.1,
		LastActive:        time.Now().UTC(),
	}
	mastery.On("Progress", mock.Anything, "user-456", "doc-123").Return(record, nil)

	req := requestWithUserID(http.MethodGet, "/simulator/progress/doc-123", nil)
	req = withURLParam(req, "documentID", "doc-123")
	w := httptest.NewRecorder()

	handler.Progress(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(4), data["current_level"])
	assert.Equal(t, float64(12), data["questions_answered"])
	mastery.AssertExpectations(t)
}

func TestSimulatorHandler_Progress_NewLearnerDefaults(t *testing.T) {
	handler, _, _, mastery := newSimulatorHandler()

	record := domain.NewMasteryRecord("user-456", "doc-123", time.Now().UTC())
	mastery.On("Progress", mock.Anything, "user-456", "doc-123").Return(record, nil)

	req := requestWithUserID(http.MethodGet, "/simulator/progress/doc-123", nil)
	req = withURLParam(req, "documentID", "doc-123")
	w := httptest.NewRecorder()

	handler.Progress(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(domain.MinLevel), data["current_level"])
	assert.Equal(t, float64(0), data["questions_answered"])
	mastery.AssertExpectations(t)
}
