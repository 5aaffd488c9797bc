package service

import (
	"context"
	"errors"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
)

// MasteryService exposes read access to mastery state. Writes happen only
// through the grading flow's transactional update.
type MasteryService struct {
	masteryRepo MasteryRepositoryInterface
}

func NewMasteryService(masteryRepo MasteryRepositoryInterface) *MasteryService {
	return &MasteryService{masteryRepo: masteryRepo}
}

// Progress returns the learner's mastery record for a document. A learner
// who has never answered a question gets the initial level-1 view without a
// row being created.
func (s *MasteryService) Progress(ctx context.Context, userID, documentID string) (*domain.MasteryRecord, error) {
	mastery, err := s.masteryRepo.Get(ctx, userID, documentID)
	if err == nil {
		return mastery, nil
	}
	if errors.Is(err, domain.ErrMasteryNotFound) {
		return domain.NewMasteryRecord(userID, documentID, time.Now().UTC()), nil
	}
	return nil, err
}
