package domain

import (
	"fmt"
	"math"
	"time"
)

// Rubric dimension maxima. The four dimensions sum to at most MaxTotalScore.
const (
	MaxClinicalAccuracyScore = 4.0
	MaxRiskAssessmentScore   = 3.0
	MaxCommunicationScore    = 2.0
	MaxEfficiencyScore       = 1.0
	MaxTotalScore            = 10.0
)

const scoreSumTolerance = 1e-9

// ScoreBreakdown decomposes a total score into the four rubric dimensions.
// Total is always the component sum; the grading oracle's stated total is
// never trusted.
type ScoreBreakdown struct {
	ClinicalAccuracy float64
	RiskAssessment   float64
	Communication    float64
	Efficiency       float64
	Total            float64
}

// Clamp bounds each dimension to its declared range and recomputes Total as
// the component sum.
func (s ScoreBreakdown) Clamp() ScoreBreakdown {
	clamped := ScoreBreakdown{
		ClinicalAccuracy: clampScore(s.ClinicalAccuracy, MaxClinicalAccuracyScore),
		RiskAssessment:   clampScore(s.RiskAssessment, MaxRiskAssessmentScore),
		Communication:    clampScore(s.Communication, MaxCommunicationScore),
		Efficiency:       clampScore(s.Efficiency, MaxEfficiencyScore),
	}
	clamped.Total = clamped.ClinicalAccuracy + clamped.RiskAssessment + clamped.Communication + clamped.Efficiency
	return clamped
}

func clampScore(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// Answer is a learner's scored free-text response to a question. Answers are
// immutable once created.
type Answer struct {
	ID           string
	QuestionID   string
	UserID       string
	AnswerText   string
	Scores       ScoreBreakdown
	Feedback     string
	Strengths    []string
	Improvements []string
	ModelUsed    string
	LevelBefore  int
	LevelAfter   int
	LevelChange  int
	CreatedAt    time.Time
}

// ValidateAnswer validates an Answer instance, enforcing the rubric ranges,
// the component-sum invariant, and the level transition arithmetic.
func ValidateAnswer(a *Answer) error {
	if a == nil {
		return fmt.Errorf("answer cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("answer ID is required")
	}

	if a.QuestionID == "" {
		return fmt.Errorf("answer QuestionID is required")
	}

	if a.AnswerText == "" {
		return fmt.Errorf("answer AnswerText is required")
	}

	s := a.Scores
	if s.ClinicalAccuracy < 0 || s.ClinicalAccuracy > MaxClinicalAccuracyScore {
		return fmt.Errorf("clinical accuracy score %.2f out of range [0, %.0f]", s.ClinicalAccuracy, MaxClinicalAccuracyScore)
	}
	if s.RiskAssessment < 0 || s.RiskAssessment > MaxRiskAssessmentScore {
		return fmt.Errorf("risk assessment score %.2f out of range [0, %.0f]", s.RiskAssessment, MaxRiskAssessmentScore)
	}
	if s.Communication < 0 || s.Communication > MaxCommunicationScore {
		return fmt.Errorf("communication score %.2f out of range [0, %.0f]", s.Communication, MaxCommunicationScore)
	}
	if s.Efficiency < 0 || s.Efficiency > MaxEfficiencyScore {
		return fmt.Errorf("efficiency score %.2f out of range [0, %.0f]", s.Efficiency, MaxEfficiencyScore)
	}

	sum := s.ClinicalAccuracy + s.RiskAssessment + s.Communication + s.Efficiency
	if math.Abs(sum-s.Total) > scoreSumTolerance {
		return fmt.Errorf("total score %.2f does not equal component sum %.2f", s.Total, sum)
	}

	if a.LevelChange < -1 || a.LevelChange > 1 {
		return fmt.Errorf("level change %d out of range [-1, 1]", a.LevelChange)
	}

	if a.LevelBefore < MinLevel || a.LevelBefore > MaxLevel {
		return fmt.Errorf("level before %d out of range [%d, %d]", a.LevelBefore, MinLevel, MaxLevel)
	}

	if a.LevelAfter != ClampLevel(a.LevelBefore+a.LevelChange) {
		return fmt.Errorf("level after %d inconsistent with before %d and change %d", a.LevelAfter, a.LevelBefore, a.LevelChange)
	}

	return nil
}
