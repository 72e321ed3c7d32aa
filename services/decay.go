package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"repbbs/models"
)

// DecayService penalizes users who have not posted within the trailing
// inactivity window. It runs on a wall-clock schedule independent of request
// traffic; a failed sweep is logged by the caller and simply waits for the
// next tick, which still penalizes correctly over the longer elapsed window.
type DecayService struct {
	db           *gorm.DB
	inactiveDays int
	penalty      int
}

// SweepStats summarizes one decay run.
type SweepStats struct {
	Scanned   int
	Penalized int
	Elapsed   time.Duration
}

func NewDecayService(db *gorm.DB, inactiveDays, penalty int) *DecayService {
	if inactiveDays <= 0 {
		inactiveDays = 7
	}
	if penalty <= 0 {
		penalty = 5
	}
	return &DecayService{db: db, inactiveDays: inactiveDays, penalty: penalty}
}

// Sweep walks all users and applies the inactivity penalty through the
// reputation ledger. A user who has never posted is never penalized; a user
// whose newest post is at least the window old loses the penalty, clamped
// at zero. All adjustments of one sweep commit together.
func (s *DecayService) Sweep() (SweepStats, error) {
	start := time.Now()
	stats := SweepStats{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var users []models.User
		if err := tx.Find(&users).Error; err != nil {
			return err
		}
		stats.Scanned = len(users)

		cutoff := start.AddDate(0, 0, -s.inactiveDays)
		for _, user := range users {
			var lastPost models.Post
			err := tx.Where("user_id = ?", user.ID).
				Order("created_at DESC").
				First(&lastPost).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if lastPost.CreatedAt.After(cutoff) {
				continue
			}
			if err := ApplyReputationDecay(tx, user.ID, s.penalty); err != nil {
				return err
			}
			stats.Penalized++
		}
		return nil
	})

	stats.Elapsed = time.Since(start)
	if err != nil {
		return stats, err
	}
	return stats, nil
}
