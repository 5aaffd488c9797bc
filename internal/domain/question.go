package domain

import (
	"fmt"
	"time"
)

// Mastery level bounds. Questions are generated at the learner's current
// level within this range.
const (
	MinLevel = 1
	MaxLevel = 5
)

// ClampLevel bounds a level to the valid range
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// Question is a generated clinical vignette plus question text. It accepts
// at most one scored answer in the mastery-affecting path; WasAnswered flips
// exactly once.
type Question struct {
	ID              string
	DocumentID      string
	UserID          string
	Vignette        string
	QuestionText    string
	DifficultyLevel int
	SourceChunkIDs  []string
	WasAnswered     bool
	CreatedAt       time.Time
}

// NewQuestion creates a new unanswered Question instance
func NewQuestion(id, documentID, userID, vignette, questionText string, difficultyLevel int, sourceChunkIDs []string, createdAt time.Time) *Question {
	return &Question{
		ID:              id,
		DocumentID:      documentID,
		UserID:          userID,
		Vignette:        vignette,
		QuestionText:    questionText,
		DifficultyLevel: difficultyLevel,
		SourceChunkIDs:  sourceChunkIDs,
		WasAnswered:     false,
		CreatedAt:       createdAt,
	}
}

// ValidateQuestion validates a Question instance. Provenance is required:
// the scorer grounds its rubric on the source chunks.
func ValidateQuestion(q *Question) error {
	if q == nil {
		return fmt.Errorf("question cannot be nil")
	}

	if q.ID == "" {
		return fmt.Errorf("question ID is required")
	}

	if q.DocumentID == "" {
		return fmt.Errorf("question DocumentID is required")
	}

	if q.Vignette == "" {
		return fmt.Errorf("question Vignette is required")
	}

	if q.QuestionText == "" {
		return fmt.Errorf("question QuestionText is required")
	}

	if q.DifficultyLevel < MinLevel || q.DifficultyLevel > MaxLevel {
		return fmt.Errorf("question DifficultyLevel must be between %d and %d", MinLevel, MaxLevel)
	}

	if len(q.SourceChunkIDs) == 0 {
		return fmt.Errorf("question SourceChunkIDs must be non-empty")
	}

	return nil
}
