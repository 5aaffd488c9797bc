package domain

import (
	"fmt"
	"time"
)

// LevelPolicy holds the mastery thresholds. Scores at or above
// LevelUpThreshold advance the level, scores at or below LevelDownThreshold
// drop it, and the band between them is a dead zone with no movement.
// CorrectnessThreshold is a separate cutoff for the questions_correct
// counter.
type LevelPolicy struct {
	LevelUpThreshold     float64
	LevelDownThreshold   float64
	CorrectnessThreshold float64
}

// ValidateLevelPolicy fails fast on an inverted or degenerate hysteresis
// band.
func ValidateLevelPolicy(p LevelPolicy) error {
	if p.LevelDownThreshold >= p.LevelUpThreshold {
		return fmt.Errorf("level down threshold %.2f must be below level up threshold %.2f", p.LevelDownThreshold, p.LevelUpThreshold)
	}
	if p.LevelUpThreshold < 0 || p.LevelUpThreshold > MaxTotalScore {
		return fmt.Errorf("level up threshold %.2f out of range [0, %.0f]", p.LevelUpThreshold, MaxTotalScore)
	}
	if p.LevelDownThreshold < 0 || p.LevelDownThreshold > MaxTotalScore {
		return fmt.Errorf("level down threshold %.2f out of range [0, %.0f]", p.LevelDownThreshold, MaxTotalScore)
	}
	if p.CorrectnessThreshold < 0 || p.CorrectnessThreshold > MaxTotalScore {
		return fmt.Errorf("correctness threshold %.2f out of range [0, %.0f]", p.CorrectnessThreshold, MaxTotalScore)
	}
	return nil
}

// MasteryRecord is the per-(user, document) learning state. It is mutated
// exactly once per submitted answer; Version guards the read-modify-write
// against concurrent submissions.
type MasteryRecord struct {
	UserID            string
	DocumentID        string
	CurrentLevel      int
	QuestionsAnswered int
	QuestionsCorrect  int
	AvgScore          float64
	AvgClinicalAcc    float64
	AvgRiskAssessment float64
	AvgCommunication  float64
	AvgEfficiency     float64
	LastActive        time.Time
	Version           int64
	CreatedAt         time.Time
}

// NewMasteryRecord creates the initial record at level 1
func NewMasteryRecord(userID, documentID string, createdAt time.Time) *MasteryRecord {
	return &MasteryRecord{
		UserID:       userID,
		DocumentID:   documentID,
		CurrentLevel: MinLevel,
		LastActive:   createdAt,
		Version:      1,
		CreatedAt:    createdAt,
	}
}

// levelUpMinAnswered gates advancement out of each level on a minimum
// number of answered questions. A single lucky score is enough to leave
// level 1 but not the upper levels.
var levelUpMinAnswered = map[int]int{1: 1, 2: 2, 3: 3, 4: 3, 5: 5}

const defaultLevelUpMinAnswered = 3

// LevelChangeFor derives the level transition from a total score via the
// hysteresis rule. A level-up additionally requires the record to have
// enough answered questions for its current level; a level-down is never
// gated. Movement is clamped at both level bounds.
func (m *MasteryRecord) LevelChangeFor(totalScore float64, policy LevelPolicy) int {
	switch {
	case totalScore >= policy.LevelUpThreshold:
		if m.CurrentLevel >= MaxLevel {
			return 0
		}
		required, ok := levelUpMinAnswered[m.CurrentLevel]
		if !ok {
			required = defaultLevelUpMinAnswered
		}
		if m.QuestionsAnswered >= required {
			return 1
		}
	case totalScore <= policy.LevelDownThreshold:
		if m.CurrentLevel > MinLevel {
			return -1
		}
	}
	return 0
}

// Apply folds one scored answer into the record: incremental running
// averages, counters, level transition, and activity timestamp. Returns the
// level change so the caller can snapshot it on the Answer.
func (m *MasteryRecord) Apply(scores ScoreBreakdown, policy LevelPolicy, now time.Time) int {
	n := float64(m.QuestionsAnswered)
	m.AvgScore += (scores.Total - m.AvgScore) / (n + 1)
	m.AvgClinicalAcc += (scores.ClinicalAccuracy - m.AvgClinicalAcc) / (n + 1)
	m.AvgRiskAssessment += (scores.RiskAssessment - m.AvgRiskAssessment) / (n + 1)
	m.AvgCommunication += (scores.Communication - m.AvgCommunication) / (n + 1)
	m.AvgEfficiency += (scores.Efficiency - m.AvgEfficiency) / (n + 1)

	m.QuestionsAnswered++
	if scores.Total >= policy.CorrectnessThreshold {
		m.QuestionsCorrect++
	}

	// The answer being applied counts toward the level-up minimum.
	change := m.LevelChangeFor(scores.Total, policy)
	m.CurrentLevel = ClampLevel(m.CurrentLevel + change)
	m.LastActive = now

	return change
}
